// Package history persists supervisor lifecycle events so operators
// can reconstruct crash loops and update activity after the fact.
package history

import (
	"context"
	"time"
)

// EventType classifies a lifecycle event.
type EventType string

const (
	EventStart        EventType = "start"
	EventStop         EventType = "stop"
	EventCrash        EventType = "crash"
	EventCrashRestart EventType = "crash_restart"
	EventUpdate       EventType = "update"
	EventBackup       EventType = "backup"
)

// Event is one recorded lifecycle occurrence. Detail carries the
// event-specific payload: exit code for stops, version id for updates,
// archive name for backups.
type Event struct {
	ID     int64     `json:"id"`
	Type   EventType `json:"type"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Store records and queries lifecycle events.
type Store interface {
	Record(ctx context.Context, typ EventType, detail string) error
	Recent(ctx context.Context, limit int) ([]Event, error)
	PurgeOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
	Close() error
}

// Noop discards events; used when history is disabled.
type Noop struct{}

func (Noop) Record(context.Context, EventType, string) error { return nil }

func (Noop) Recent(context.Context, int) ([]Event, error) { return nil, nil }

func (Noop) PurgeOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }

func (Noop) Close() error { return nil }
