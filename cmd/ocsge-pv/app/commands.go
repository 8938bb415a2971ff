package app

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	ocsgepv "github.com/IGNF/ocsge-pv"
	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
	"github.com/IGNF/ocsge-pv/pkg/inventory"
)

// NewGeometrizeCommand creates the geometrize command.
func (a *App) NewGeometrizeCommand() *cobra.Command {
	var (
		batchSize    int
		ensureSchema bool
	)

	cmd := &cobra.Command{
		Use:   "geometrize",
		Short: "Derive declaration footprints from cadastral parcels",
		Long: `Geometrize derives a footprint for every declaration that does not
have one yet. A declaration lists the cadastral parcels it sits on; the
command looks each reference up in the cadastre, dissolves the parcel
polygons into a single multipolygon and stores it on the declaration.

Declarations with a reference that cannot be resolved are left untouched
and reported as unresolved; they are retried on the next run. Only
declarations without a footprint are examined, so rerunning the command
is cheap.`,
		Example: `  ocsge-pv geometrize                       # Process pending declarations
  ocsge-pv geometrize --batch-size 50       # Smaller cadastre queries
  ocsge-pv geometrize --ensure-schema       # Create missing tables first`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var opts []ocsgepv.Option
			if cmd.Flags().Changed("batch-size") {
				opts = append(opts, ocsgepv.WithBatchSize(batchSize))
			}

			eng, err := a.NewEngine(ctx, opts...)
			if err != nil {
				return err
			}
			defer eng.Close()

			if ensureSchema {
				if err := eng.EnsureSchema(ctx); err != nil {
					return err
				}
			}

			report, err := eng.Geometrize(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0,
		"declarations fetched per batch (default from the settings file)")
	cmd.Flags().BoolVar(&ensureSchema, "ensure-schema", false,
		"create missing tables and columns before running")

	return cmd
}

// NewPairCommand creates the pair command.
func (a *App) NewPairCommand() *cobra.Command {
	var (
		threshold float64
		mode      string
		workers   int
	)

	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Match declarations against detected installations",
		Long: `Pair scores every geometrized declaration against every detected
installation it overlaps. The score is the intersection area divided by
the smaller of the two footprints, so a small installation fully inside
a large declared parcel still scores 1.

Pairs at or above the threshold become links. In many-to-many mode every
qualifying pair is kept; in best-match mode each declaration keeps only
its highest-scoring detection. The link table is replaced in a single
transaction, so rerunning the command from the same inventories yields
the same table.`,
		Example: `  ocsge-pv pair                             # Settings-file threshold and mode
  ocsge-pv pair --threshold 0.5             # Stricter overlap requirement
  ocsge-pv pair --mode best-match           # One link per declaration
  ocsge-pv pair --workers 8                 # Limit scoring concurrency`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var opts []ocsgepv.Option
			if cmd.Flags().Changed("threshold") {
				opts = append(opts, ocsgepv.WithThreshold(threshold))
			}
			if mode != "" {
				parsed, err := inventory.ParseMode(mode)
				if err != nil {
					return pkgerrors.NewConfigError("pairing", "invalid mode", err)
				}
				opts = append(opts, ocsgepv.WithMode(parsed))
			}
			if cmd.Flags().Changed("workers") {
				opts = append(opts, ocsgepv.WithWorkers(workers))
			}

			eng, err := a.NewEngine(ctx, opts...)
			if err != nil {
				return err
			}
			defer eng.Close()

			report, err := eng.Pair(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0,
		"minimum overlap score for a link, between 0 and 1")
	cmd.Flags().StringVar(&mode, "mode", "",
		"pairing mode: many-to-many or best-match")
	cmd.Flags().IntVar(&workers, "workers", 0,
		"concurrent scoring workers (default: one per CPU)")

	return cmd
}

// NewImportCommand creates the import command.
func (a *App) NewImportCommand() *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Pull declaration dossiers from the declarations API",
		Long: `Import fetches accepted dossiers from the declarations API and upserts
them into the declarations table. A re-imported declaration loses its
stored footprint when its parcel references changed, which queues it for
the next geometrize run.

The API endpoint and procedure number come from the settings file; the
bearer token is read from OCSGE_PV_DS_TOKEN.`,
		Example: `  ocsge-pv import                           # Full import
  ocsge-pv import --since 2024-05-01        # Dossiers updated since a date
  ocsge-pv import --since 2024-05-01T08:00:00Z`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var updatedSince *time.Time
			if since != "" {
				parsed, err := parseSince(since)
				if err != nil {
					return err
				}
				updatedSince = &parsed
			}

			eng, err := a.NewEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close()

			report, err := eng.Import(ctx, updatedSince)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "",
		"only fetch dossiers updated after this instant (RFC 3339 or YYYY-MM-DD)")

	return cmd
}

// parseSince accepts an RFC 3339 timestamp or a bare date.
func parseSince(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, pkgerrors.NewConfigError("import",
		fmt.Sprintf("cannot parse %q, want RFC 3339 or YYYY-MM-DD", value), nil)
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("ocsge-pv version %s\n", a.version)
			cmd.Printf("  commit:   %s\n", a.commit)
			cmd.Printf("  built:    %s\n", a.date)
			cmd.Printf("  built by: %s\n", a.builtBy)
			cmd.Printf("  go:       %s\n", runtime.Version())
			cmd.Printf("  platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
