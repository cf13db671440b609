package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/spf13/viper"
)

// Defaults applied when the config file is missing or a field is malformed.
const (
	DefaultMemory          = "2G"
	DefaultRestartInterval = 12.0
	DefaultMaxBackups      = 3
)

var memoryRe = regexp.MustCompile(`(?i)^\d+[GM]$`)

// Config is the operator-editable settings file (craftd.conf, JSON).
// Callers take a Snapshot at each decision point rather than caching
// one, so an edit takes effect on the next action.
type Config struct {
	LastServerVersion    string  `json:"last_server_version" mapstructure:"last_server_version"`
	CheckUpdates         bool    `json:"check_updates" mapstructure:"check_updates"`
	UpdateToSnapshot     bool    `json:"update_to_snapshot" mapstructure:"update_to_snapshot"`
	EnableBackups        bool    `json:"enable_backups" mapstructure:"enable_backups"`
	MaxBackups           int     `json:"max_backups" mapstructure:"max_backups"`
	EnableAutoRestart    bool    `json:"enable_auto_restart" mapstructure:"enable_auto_restart"`
	EnableSchedule       bool    `json:"enable_schedule" mapstructure:"enable_schedule"`
	RestartIntervalHours float64 `json:"restart_interval" mapstructure:"restart_interval"`
	ServerMemory         string  `json:"server_memory" mapstructure:"server_memory"`
	EnableFileLog        bool    `json:"enable_logging" mapstructure:"enable_logging"`
	DiscordWebhook       string  `json:"discord_webhook" mapstructure:"discord_webhook"`
}

// Default returns the built-in configuration used when no file exists.
func Default() Config {
	return Config{
		LastServerVersion:    "0.0.0",
		CheckUpdates:         true,
		UpdateToSnapshot:     false,
		EnableBackups:        true,
		MaxBackups:           DefaultMaxBackups,
		EnableAutoRestart:    true,
		EnableSchedule:       false,
		RestartIntervalHours: DefaultRestartInterval,
		ServerMemory:         DefaultMemory,
		EnableFileLog:        true,
	}
}

// Validate normalizes malformed fields to their defaults rather than
// failing: a broken config file must never keep the server down.
func (c *Config) Validate() {
	if !memoryRe.MatchString(c.ServerMemory) {
		c.ServerMemory = DefaultMemory
	} else {
		c.ServerMemory = normalizeMemory(c.ServerMemory)
	}
	if c.RestartIntervalHours <= 0 {
		c.RestartIntervalHours = DefaultRestartInterval
	}
	if c.MaxBackups < 0 {
		c.MaxBackups = DefaultMaxBackups
	}
}

func normalizeMemory(mem string) string {
	b := []byte(mem)
	switch last := len(b) - 1; b[last] {
	case 'g':
		b[last] = 'G'
	case 'm':
		b[last] = 'M'
	}
	return string(b)
}

// Paths locates the managed server's on-disk state. All fields default
// to names inside the server directory.
type Paths struct {
	Dir         string // server working directory
	Artifact    string // server jar
	World       string // persistent data directory
	BackupDir   string // timestamped archives
	VersionFile string // installed version id
	FlavorFile  string // server flavor marker
	LogFile     string // append-only console log
	ConfigFile  string // craftd.conf
	HistoryDB   string // lifecycle event history (sqlite)
}

// DefaultPaths returns the standard layout rooted at dir.
func DefaultPaths(dir string) Paths {
	return Paths{
		Dir:         dir,
		Artifact:    filepath.Join(dir, "minecraft_server.jar"),
		World:       filepath.Join(dir, "world"),
		BackupDir:   filepath.Join(dir, "world_backups"),
		VersionFile: filepath.Join(dir, "version_info.txt"),
		FlavorFile:  filepath.Join(dir, "server_type.txt"),
		LogFile:     filepath.Join(dir, "craftd.log"),
		ConfigFile:  filepath.Join(dir, "craftd.conf"),
		HistoryDB:   filepath.Join(dir, "craftd_history.db"),
	}
}

// Store owns the config lifecycle: loaded once at startup, mutated by
// the operator or the updater, persisted on change.
type Store struct {
	mu   sync.Mutex
	cfg  Config
	path string
}

// Load reads and validates the config file at path. A missing file
// yields the defaults and writes them out so the operator has a file
// to edit; a malformed file is an error.
func Load(path string) (*Store, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := write(path, cfg); err != nil {
			return nil, err
		}
		return &Store{cfg: cfg, path: path}, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.Validate()
	return &Store{cfg: cfg, path: path}, nil
}

// Snapshot returns a copy of the current config.
func (s *Store) Snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Update applies fn to the config under lock and persists the result.
func (s *Store) Update(fn func(*Config)) error {
	s.mu.Lock()
	fn(&s.cfg)
	s.cfg.Validate()
	cfg := s.cfg
	path := s.path
	s.mu.Unlock()
	return write(path, cfg)
}

func write(path string, cfg Config) error {
	b, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
