package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the ocsge-pv CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "ocsge-pv",
		Short:   "Match photovoltaic declarations against detected installations",
		Version: a.version,
		Long: `ocsge-pv maintains the links between declared photovoltaic installations
and installations detected on aerial imagery.

Declarations reference cadastral parcels instead of carrying a drawn
footprint. The geometrize command derives those footprints from the
cadastre, the pair command scores them against the detections and
atomically replaces the link table, and the import command pulls accepted
dossiers from the declarations API.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	// Add global flags. Defaults are the values LoadConfig gathered from the
	// environment, so an unset flag does not clobber them.
	rootCmd.PersistentFlags().StringVarP(&a.config.ConfigFile, "config", "c", a.config.ConfigFile,
		"settings file, YAML or JSON (env OCSGE_PV_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&a.config.Verbose, "verbose", "v", a.config.Verbose,
		"verbose output (shortcut for --log-level=debug)")
	rootCmd.PersistentFlags().BoolVarP(&a.config.Quiet, "quiet", "q", a.config.Quiet,
		"minimal output (shortcut for --log-level=warn)")
	rootCmd.PersistentFlags().BoolVar(&a.config.NoColor, "no-color", a.config.NoColor,
		"disable colored output")
	rootCmd.PersistentFlags().StringVar(&a.config.LogLevel, "log-level", a.config.LogLevel,
		"log level: trace, debug, info, warn, error (overrides -v/-q)")

	// Customize version output to match the version subcommand
	rootCmd.SetVersionTemplate("ocsge-pv {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand is called before any command runs. Flags are parsed by now,
// so the logger is rebuilt with their final values.
func (a *App) setupCommand(_ *cobra.Command, _ []string) error {
	logger := NewLogger(a.config)
	a.logger = &logger
	return nil
}

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(a.NewImportCommand())
	rootCmd.AddCommand(a.NewGeometrizeCommand())
	rootCmd.AddCommand(a.NewPairCommand())
	rootCmd.AddCommand(a.NewVersionCommand())
}

// ExitOnError is a helper that prints an error and exits with status 1.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
