package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and attaches every subcommand.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	apiFlags := &APIFlags{}

	craftdCommand := command{out: os.Stdout}

	root := createRootCommand(globalFlags)
	root.PersistentFlags().StringVar(&apiFlags.URL, "api-url", "", "daemon URL (default http://localhost:8420)")
	root.PersistentFlags().DurationVar(&apiFlags.Timeout, "api-timeout", 10*time.Second, "request timeout")

	root.AddCommand(
		createServeCommand(globalFlags),
		createRunCommand(globalFlags),
		createStatusCommand(craftdCommand, apiFlags),
		createStartCommand(craftdCommand, apiFlags),
		createStopCommand(craftdCommand, apiFlags),
		createRestartCommand(craftdCommand, apiFlags),
		createSendCommand(craftdCommand, apiFlags),
		createHistoryCommand(craftdCommand, apiFlags),
		createBackupsCommand(craftdCommand, apiFlags),
		createUpdateCommand(craftdCommand, globalFlags),
		createInstallCommand(craftdCommand, globalFlags),
		createBackupCommand(craftdCommand, globalFlags),
		createVersionCommand(craftdCommand),
	)

	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "craftd",
		Short: "Minecraft server supervisor and update engine",
		Long: `Craftd supervises one Minecraft dedicated server: it installs and
updates the server jar against the Mojang version manifest, backs up the
world before each start, restarts after crashes and exposes an HTTP API.

Examples:
  craftd serve --dir=/srv/minecraft          # Run the daemon
  craftd status                              # Query the local daemon
  craftd send "say restarting in 5 minutes"  # Console command via API
  craftd install --flavor=Vanilla --dir=/srv/minecraft`,
	}

	root.PersistentFlags().StringVar(&flags.Dir, "dir", defaultDir(), "server directory for local commands")

	return root
}

// createServeCommand creates the serve subcommand
func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	serveFlags := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the craftd daemon",
		Long: `Run the craftd daemon: start the managed server and expose the HTTP
API until interrupted. SIGINT or SIGTERM stops the server gracefully
before the daemon exits.

Examples:
  craftd serve --dir=/srv/minecraft
  craftd serve --listen=:9090 --base-path=/api
  craftd serve --logfile=/var/log/craftd-daemon.log --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(globalFlags.Dir, *serveFlags)
		},
	}

	cmd.Flags().StringVar(&serveFlags.Listen, "listen", ":8420", "HTTP listen address")
	cmd.Flags().StringVar(&serveFlags.BasePath, "base-path", "", "API base path (e.g. /api)")
	cmd.Flags().StringVar(&serveFlags.LogFile, "logfile", "", "daemon log file (rotated; console output always on)")
	cmd.Flags().BoolVar(&serveFlags.Debug, "debug", false, "log at debug level")

	return cmd
}

// createRunCommand creates the run subcommand
func createRunCommand(globalFlags *GlobalFlags) *cobra.Command {
	serveFlags := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the server in the foreground without the API",
		Long: `Run the managed server in console mode: start it, mirror its output
to the terminal and stop it gracefully on the first interrupt. Unlike
serve, no HTTP API is exposed.

Examples:
  craftd run --dir=/srv/minecraft`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeadless(globalFlags.Dir, *serveFlags)
		},
	}

	cmd.Flags().StringVar(&serveFlags.LogFile, "logfile", "", "daemon log file (rotated; console output always on)")
	cmd.Flags().BoolVar(&serveFlags.Debug, "debug", false, "log at debug level")

	return cmd
}

// createStatusCommand creates the status subcommand
func createStatusCommand(craftdCommand command, apiFlags *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return craftdCommand.Status(*apiFlags)
		},
	}
}

// createStartCommand creates the start subcommand
func createStartCommand(craftdCommand command, apiFlags *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the server via the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return craftdCommand.Start(*apiFlags)
		},
	}
}

// createStopCommand creates the stop subcommand
func createStopCommand(craftdCommand command, apiFlags *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the server gracefully",
		RunE: func(cmd *cobra.Command, args []string) error {
			return craftdCommand.Stop(*apiFlags)
		},
	}
}

// createRestartCommand creates the restart subcommand
func createRestartCommand(craftdCommand command, apiFlags *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return craftdCommand.Restart(*apiFlags)
		},
	}
}

// createSendCommand creates the send subcommand
func createSendCommand(craftdCommand command, apiFlags *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "send <command>",
		Short: "Send a console command to the running server",
		Long: `Send one command line to the server console.

Examples:
  craftd send "say server restarting soon"
  craftd send list`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return craftdCommand.Send(*apiFlags, strings.Join(args, " "))
		},
	}
}

// createHistoryCommand creates the history subcommand
func createHistoryCommand(craftdCommand command, apiFlags *APIFlags) *cobra.Command {
	historyFlags := &HistoryFlags{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent lifecycle events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return craftdCommand.History(*apiFlags, historyFlags.Limit)
		},
	}

	cmd.Flags().IntVar(&historyFlags.Limit, "limit", 20, "number of events to show")

	return cmd
}

// createBackupsCommand creates the backups subcommand
func createBackupsCommand(craftdCommand command, apiFlags *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List world backup archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return craftdCommand.Backups(*apiFlags)
		},
	}
}

// createUpdateCommand creates the update subcommand
func createUpdateCommand(craftdCommand command, globalFlags *GlobalFlags) *cobra.Command {
	updateFlags := &UpdateFlags{}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the server jar against the version manifest",
		Long: `Compare the local server jar with the latest published build and
replace it when they differ. Run this while the daemon is stopped.

Examples:
  craftd update --dir=/srv/minecraft
  craftd update --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return craftdCommand.Update(globalFlags.Dir, updateFlags.Force)
		},
	}

	cmd.Flags().BoolVar(&updateFlags.Force, "force", false, "replace the jar even when hashes match")

	return cmd
}

// createInstallCommand creates the install subcommand
func createInstallCommand(craftdCommand command, globalFlags *GlobalFlags) *cobra.Command {
	installFlags := &InstallFlags{}

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install a fresh server",
		Long: `Install a server into the server directory and accept the EULA.
Vanilla downloads the latest build from the version manifest; Forge and
NeoForge run the distribution's installer, which must be given by URL.

Examples:
  craftd install --flavor=Vanilla --dir=/srv/minecraft
  craftd install --flavor=NeoForge --installer-url=https://.../neoforge-installer.jar`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return craftdCommand.Install(globalFlags.Dir, *installFlags)
		},
	}

	cmd.Flags().StringVar(&installFlags.Flavor, "flavor", "Vanilla", "server flavor: Vanilla, Forge or NeoForge")
	cmd.Flags().StringVar(&installFlags.InstallerURL, "installer-url", "", "installer jar URL (modded flavors)")

	return cmd
}

// createVersionCommand creates the version subcommand
func createVersionCommand(craftdCommand command) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the craftd version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _ = fmt.Fprintln(craftdCommand.out, "craftd", version)
			return nil
		},
	}
}

// createBackupCommand creates the backup subcommand
func createBackupCommand(craftdCommand command, globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Archive the world directory now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return craftdCommand.Backup(globalFlags.Dir)
		},
	}
}
