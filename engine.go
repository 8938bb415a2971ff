// Package ocsgepv matches photovoltaic installation declarations against
// installations detected on aerial imagery. Declarations reference cadastral
// parcels; the engine derives a ground footprint for each declaration by
// dissolving its parcels, scores footprint overlap against the detections,
// and atomically replaces the link table with the resulting pair set.
//
// The engine exposes three synchronous runs:
//   - Geometrize derives footprints for declarations that do not have one
//   - Pair scores footprints and materializes the links
//   - Import pulls accepted dossiers from the declarations API
//
// Example usage:
//
//	eng, err := ocsgepv.New(ctx, ocsgepv.WithConfigFile("settings.yaml"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
//	report, err := eng.Pair(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Summary())
package ocsgepv

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/IGNF/ocsge-pv/internal/dossiers"
	"github.com/IGNF/ocsge-pv/internal/geometrize"
	"github.com/IGNF/ocsge-pv/internal/resolve"
	"github.com/IGNF/ocsge-pv/internal/store"
	"github.com/IGNF/ocsge-pv/pkg/config"
	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
	"github.com/IGNF/ocsge-pv/pkg/inventory"
	"github.com/IGNF/ocsge-pv/pkg/logging"
	"github.com/IGNF/ocsge-pv/pkg/pairing"
)

// Compile-time interface check to ensure proper implementation.
var _ Engine = (*engine)(nil)

// Engine runs the matching pipeline against the configured databases.
type Engine interface {

	// Geometrize derives a footprint for every declaration awaiting one by
	// dissolving its cadastral parcels. Per-record faults are counted in the
	// report instead of failing the run.
	Geometrize(ctx context.Context) (*inventory.GeometrizeReport, error)

	// Pair scores every geometrized declaration against the detections and
	// replaces the link table with the accepted pairs in one transaction.
	Pair(ctx context.Context) (*inventory.PairReport, error)

	// Import fetches the procedure's accepted dossiers from the declarations
	// API and upserts them into the declaration table. A non-nil since
	// restricts the fetch to dossiers modified at or after that instant.
	Import(ctx context.Context, since *time.Time) (*inventory.ImportReport, error)

	// EnsureSchema creates the matching tables and their indexes when absent.
	EnsureSchema(ctx context.Context) error

	// Ping verifies the configured databases respond.
	Ping(ctx context.Context) error

	// Close releases the database connections.
	Close()
}

// storage is the persistence surface the engine drives. Implemented by
// store.Store; tests swap newStore to run the pipeline against a fake.
type storage interface {
	PendingDeclarations(ctx context.Context, afterID int64, limit int) ([]inventory.Declaration, error)
	ApplyFootprints(ctx context.Context, updates []inventory.FootprintUpdate) error
	GeometrizedDeclarations(ctx context.Context) ([]inventory.Declaration, error)
	Detections(ctx context.Context) ([]inventory.Detection, error)
	ParcelFootprints(ctx context.Context, idus []string) (map[string][]byte, error)
	UpsertDeclarations(ctx context.Context, decls []inventory.Declaration) error
	ReplaceLinks(ctx context.Context, links []inventory.Link) (int64, error)
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
	Close()
}

// newStore and newFetcher are construction seams for tests.
var (
	newStore = func(ctx context.Context, settings *config.Settings) (storage, error) {
		return store.New(ctx, settings)
	}
	newFetcher = func(settings config.ImportSettings) dossiers.Fetcher {
		return dossiers.NewClient(settings)
	}
)

// engine is the internal implementation of the Engine interface.
type engine struct {
	settings *config.Settings
	store    storage
	fetcher  dossiers.Fetcher
}

// New loads the settings, connects to the configured databases, and returns
// a ready Engine. The caller owns the returned Engine and must Close it.
func New(ctx context.Context, opts ...Option) (Engine, error) {
	options, err := newOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("applying options: %w", err)
	}

	settings, err := options.resolveSettings()
	if err != nil {
		return nil, err
	}

	if options.logger != nil {
		ctx = logging.WithLogger(ctx, options.logger)
	}

	st, err := newStore(ctx, settings)
	if err != nil {
		return nil, err
	}

	eng := &engine{
		settings: settings,
		store:    st,
	}
	if settings.Import.APIURL != "" {
		eng.fetcher = newFetcher(settings.Import)
	}
	return eng, nil
}

// Geometrize derives a footprint for every declaration awaiting one.
func (e *engine) Geometrize(ctx context.Context) (*inventory.GeometrizeReport, error) {
	runID := uuid.New()
	ctx = logging.WithRunID(ctx, runID.String())
	log := logging.Ctx(ctx)
	log.Info().
		Int("batch_size", e.settings.Geometrize.BatchSize).
		Msg("geometrize run starting")

	resolver := resolve.New(e.store)
	report, err := geometrize.Run(ctx, e.store, resolver, geometrize.Options{
		BatchSize: e.settings.Geometrize.BatchSize,
	})
	if err != nil {
		return nil, err
	}
	report.RunID = runID

	log.Info().Msg(report.Summary())
	return report, nil
}

// Pair scores geometrized declarations against detections and materializes
// the accepted pairs.
func (e *engine) Pair(ctx context.Context) (*inventory.PairReport, error) {
	runID := uuid.New()
	ctx = logging.WithRunID(ctx, runID.String())
	log := logging.Ctx(ctx)
	start := time.Now()

	threshold := e.settings.Pairing.Threshold
	mode := e.settings.Pairing.ParsedMode()
	log.Info().
		Float64("threshold", threshold).
		Str("mode", mode.String()).
		Msg("pairing run starting")

	declarations, err := e.store.GeometrizedDeclarations(ctx)
	if err != nil {
		return nil, err
	}
	detections, err := e.store.Detections(ctx)
	if err != nil {
		return nil, err
	}

	result, err := pairing.Pair(ctx, declarations, detections, pairing.Options{
		Threshold: threshold,
		Mode:      mode,
		Workers:   e.settings.Pairing.Workers,
	})
	if err != nil {
		return nil, err
	}

	inserted, err := e.store.ReplaceLinks(ctx, result.Links)
	if err != nil {
		return nil, err
	}

	report := &inventory.PairReport{
		RunID:        runID,
		Declarations: result.Declarations,
		Detections:   result.Detections,
		Candidates:   result.Candidates,
		Links:        int(inserted),
		Threshold:    threshold,
		Mode:         mode,
		Elapsed:      time.Since(start),
	}
	log.Info().Msg(report.Summary())
	return report, nil
}

// Import fetches accepted dossiers and upserts them as declarations.
func (e *engine) Import(ctx context.Context, since *time.Time) (*inventory.ImportReport, error) {
	if e.fetcher == nil {
		return nil, pkgerrors.NewConfigError("import", "api_url is not configured", nil)
	}

	runID := uuid.New()
	ctx = logging.WithRunID(ctx, runID.String())
	log := logging.Ctx(ctx)
	log.Info().Msg("import run starting")

	report, err := dossiers.Run(ctx, e.fetcher, e.store, since)
	if err != nil {
		return nil, err
	}
	report.RunID = runID

	log.Info().Msg(report.Summary())
	return report, nil
}

// EnsureSchema creates the matching tables and their indexes when absent.
func (e *engine) EnsureSchema(ctx context.Context) error {
	return e.store.EnsureSchema(ctx)
}

// Ping verifies the configured databases respond.
func (e *engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// Close releases the database connections.
func (e *engine) Close() {
	e.store.Close()
}
