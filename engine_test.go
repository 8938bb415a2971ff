package ocsgepv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/IGNF/ocsge-pv/internal/dossiers"
	"github.com/IGNF/ocsge-pv/pkg/config"
	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
	"github.com/IGNF/ocsge-pv/pkg/geometry"
	"github.com/IGNF/ocsge-pv/pkg/inventory"
	"github.com/IGNF/ocsge-pv/pkg/logging"
)

// fakeStorage keeps the whole persistence surface in memory and records
// every write the engine hands it.
type fakeStorage struct {
	pending     []inventory.Declaration
	parcels     map[string][]byte
	geometrized []inventory.Declaration
	detections  []inventory.Detection

	applied  [][]inventory.FootprintUpdate
	replaced [][]inventory.Link
	upserted [][]inventory.Declaration

	queryErr   error
	replaceErr error

	ensured bool
	pinged  bool
	closed  bool
}

func (f *fakeStorage) PendingDeclarations(_ context.Context, afterID int64, limit int) ([]inventory.Declaration, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []inventory.Declaration
	for _, d := range f.pending {
		if d.ID <= afterID {
			continue
		}
		out = append(out, d)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStorage) ApplyFootprints(_ context.Context, updates []inventory.FootprintUpdate) error {
	f.applied = append(f.applied, append([]inventory.FootprintUpdate(nil), updates...))
	return nil
}

func (f *fakeStorage) GeometrizedDeclarations(_ context.Context) ([]inventory.Declaration, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.geometrized, nil
}

func (f *fakeStorage) Detections(_ context.Context) ([]inventory.Detection, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.detections, nil
}

func (f *fakeStorage) ParcelFootprints(_ context.Context, idus []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(idus))
	for _, idu := range idus {
		if g, ok := f.parcels[idu]; ok {
			out[idu] = g
		}
	}
	return out, nil
}

func (f *fakeStorage) UpsertDeclarations(_ context.Context, decls []inventory.Declaration) error {
	f.upserted = append(f.upserted, append([]inventory.Declaration(nil), decls...))
	return nil
}

func (f *fakeStorage) ReplaceLinks(_ context.Context, links []inventory.Link) (int64, error) {
	if f.replaceErr != nil {
		return 0, f.replaceErr
	}
	f.replaced = append(f.replaced, append([]inventory.Link(nil), links...))
	return int64(len(links)), nil
}

func (f *fakeStorage) EnsureSchema(_ context.Context) error { f.ensured = true; return nil }
func (f *fakeStorage) Ping(_ context.Context) error         { f.pinged = true; return nil }
func (f *fakeStorage) Close()                               { f.closed = true }

type fakeFetcher struct {
	nodes []dossiers.Dossier
	err   error
	since *time.Time
}

func (f *fakeFetcher) FetchDossiers(_ context.Context, since *time.Time) ([]dossiers.Dossier, error) {
	f.since = since
	if f.err != nil {
		return nil, f.err
	}
	return f.nodes, nil
}

func swapStore(t *testing.T, st storage) {
	t.Helper()
	prev := newStore
	newStore = func(context.Context, *config.Settings) (storage, error) {
		return st, nil
	}
	t.Cleanup(func() { newStore = prev })
}

func swapFetcher(t *testing.T, f dossiers.Fetcher) {
	t.Helper()
	prev := newFetcher
	newFetcher = func(config.ImportSettings) dossiers.Fetcher { return f }
	t.Cleanup(func() { newFetcher = prev })
}

func quietCtx() context.Context {
	return logging.WithLogger(context.Background(), logging.NewNopLogger())
}

func testSettings() *config.Settings {
	s := config.Default()
	s.MainDatabase.Host = "localhost"
	s.MainDatabase.Name = "suivi_pv"
	s.MainDatabase.User = "suivi"
	return s
}

func squareEWKB(t *testing.T, minX, minY, size float64) []byte {
	t.Helper()
	p := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{minX, minY}, {minX + size, minY}, {minX + size, minY + size}, {minX, minY + size}, {minX, minY},
	}})
	p.SetSRID(geometry.SRIDLambert93)
	data, err := geometry.Encode(p)
	require.NoError(t, err)
	return data
}

func TestNew(t *testing.T) {
	t.Run("settings are required", func(t *testing.T) {
		_, err := New(quietCtx())
		require.Error(t, err)

		var cfgErr *pkgerrors.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "engine", cfgErr.Component)
	})

	t.Run("an invalid option fails fast", func(t *testing.T) {
		_, err := New(quietCtx(), WithThreshold(1.5))
		require.Error(t, err)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
		assert.ErrorContains(t, err, "applying options")
	})

	t.Run("overrides land in the run settings", func(t *testing.T) {
		swapStore(t, &fakeStorage{})

		eng, err := New(quietCtx(),
			WithSettings(testSettings()),
			WithThreshold(0.5),
			WithMode(inventory.ModeBestMatch),
			WithWorkers(4),
			WithBatchSize(50),
		)
		require.NoError(t, err)
		defer eng.Close()

		e := eng.(*engine)
		assert.Equal(t, 0.5, e.settings.Pairing.Threshold)
		assert.Equal(t, inventory.ModeBestMatch.String(), e.settings.Pairing.Mode)
		assert.Equal(t, 4, e.settings.Pairing.Workers)
		assert.Equal(t, 50, e.settings.Geometrize.BatchSize)
	})

	t.Run("the engine works on its own settings copy", func(t *testing.T) {
		swapStore(t, &fakeStorage{})
		settings := testSettings()

		eng, err := New(quietCtx(), WithSettings(settings))
		require.NoError(t, err)
		defer eng.Close()

		settings.Pairing.Threshold = 0.9
		assert.Equal(t, 0.0, eng.(*engine).settings.Pairing.Threshold)
	})

	t.Run("supplied settings are validated", func(t *testing.T) {
		swapStore(t, &fakeStorage{})
		settings := testSettings()
		settings.MainDatabase.Host = ""

		_, err := New(quietCtx(), WithSettings(settings))
		require.Error(t, err)

		var cfgErr *pkgerrors.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "main_database", cfgErr.Component)
	})

	t.Run("store failure propagates", func(t *testing.T) {
		boom := errors.New("connection refused")
		prev := newStore
		newStore = func(context.Context, *config.Settings) (storage, error) {
			return nil, boom
		}
		t.Cleanup(func() { newStore = prev })

		_, err := New(quietCtx(), WithSettings(testSettings()))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("no import endpoint leaves the fetcher unset", func(t *testing.T) {
		swapStore(t, &fakeStorage{})

		eng, err := New(quietCtx(), WithSettings(testSettings()))
		require.NoError(t, err)
		defer eng.Close()

		assert.Nil(t, eng.(*engine).fetcher)
	})

	t.Run("an import endpoint wires a fetcher", func(t *testing.T) {
		swapStore(t, &fakeStorage{})
		settings := testSettings()
		settings.Import = config.ImportSettings{
			APIURL:     "https://api.example/graphql",
			DemarcheID: 108800,
			Token:      "secret",
		}

		eng, err := New(quietCtx(), WithSettings(settings))
		require.NoError(t, err)
		defer eng.Close()

		assert.NotNil(t, eng.(*engine).fetcher)
	})
}

func TestEngineGeometrize(t *testing.T) {
	t.Run("derives and persists footprints", func(t *testing.T) {
		fake := &fakeStorage{
			pending: []inventory.Declaration{{
				ID:         7,
				ParcelRefs: "340070000A0001;340070000A0002",
				Status:     inventory.FootprintPending,
			}},
			parcels: map[string][]byte{
				"340070000A0001": squareEWKB(t, 0, 0, 1),
				"340070000A0002": squareEWKB(t, 1, 0, 1),
			},
		}
		swapStore(t, fake)

		eng, err := New(quietCtx(), WithSettings(testSettings()))
		require.NoError(t, err)
		defer eng.Close()

		report, err := eng.Geometrize(quietCtx())
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, report.RunID)
		assert.Equal(t, 1, report.Examined)
		assert.Equal(t, 1, report.Geometrized)
		assert.Equal(t, 0, report.Unresolved)

		require.Len(t, fake.applied, 1)
		require.Len(t, fake.applied[0], 1)
		update := fake.applied[0][0]
		assert.Equal(t, int64(7), update.DeclarationID)
		assert.Equal(t, inventory.FootprintComputed, update.Status)
		assert.NotEmpty(t, update.Footprint)
	})

	t.Run("each run gets a fresh run id", func(t *testing.T) {
		fake := &fakeStorage{}
		swapStore(t, fake)

		eng, err := New(quietCtx(), WithSettings(testSettings()))
		require.NoError(t, err)
		defer eng.Close()

		first, err := eng.Geometrize(quietCtx())
		require.NoError(t, err)
		second, err := eng.Geometrize(quietCtx())
		require.NoError(t, err)

		assert.NotEqual(t, first.RunID, second.RunID)
	})

	t.Run("store failure is fatal", func(t *testing.T) {
		boom := errors.New("connection reset")
		swapStore(t, &fakeStorage{queryErr: boom})

		eng, err := New(quietCtx(), WithSettings(testSettings()))
		require.NoError(t, err)
		defer eng.Close()

		report, err := eng.Geometrize(quietCtx())
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, report)
	})
}

func TestEnginePair(t *testing.T) {
	t.Run("materializes links and echoes the tunables", func(t *testing.T) {
		fake := &fakeStorage{
			geometrized: []inventory.Declaration{{
				ID:        1,
				Footprint: squareEWKB(t, 0, 0, 2),
				Status:    inventory.FootprintComputed,
			}},
			detections: []inventory.Detection{{
				ID:        10,
				Footprint: squareEWKB(t, 0, 0, 2),
			}},
		}
		swapStore(t, fake)

		eng, err := New(quietCtx(),
			WithSettings(testSettings()),
			WithThreshold(0.5),
			WithMode(inventory.ModeBestMatch),
		)
		require.NoError(t, err)
		defer eng.Close()

		report, err := eng.Pair(quietCtx())
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, report.RunID)
		assert.Equal(t, 1, report.Declarations)
		assert.Equal(t, 1, report.Detections)
		assert.Equal(t, 1, report.Links)
		assert.Equal(t, 0.5, report.Threshold)
		assert.Equal(t, inventory.ModeBestMatch, report.Mode)

		require.Len(t, fake.replaced, 1)
		assert.Equal(t, []inventory.Link{{DeclarationID: 1, DetectionID: 10}}, fake.replaced[0])
	})

	t.Run("empty inventories still replace the link table", func(t *testing.T) {
		fake := &fakeStorage{}
		swapStore(t, fake)

		eng, err := New(quietCtx(), WithSettings(testSettings()))
		require.NoError(t, err)
		defer eng.Close()

		report, err := eng.Pair(quietCtx())
		require.NoError(t, err)

		assert.Equal(t, 0, report.Links)
		assert.Len(t, fake.replaced, 1, "the previous pair set must be cleared")
	})

	t.Run("materialization failure propagates", func(t *testing.T) {
		fake := &fakeStorage{replaceErr: pkgerrors.NewScopeLockedError("public.liens")}
		swapStore(t, fake)

		eng, err := New(quietCtx(), WithSettings(testSettings()))
		require.NoError(t, err)
		defer eng.Close()

		report, err := eng.Pair(quietCtx())
		assert.True(t, pkgerrors.IsScopeLocked(err))
		assert.Nil(t, report)
	})
}

func TestEngineImport(t *testing.T) {
	importSettings := func() *config.Settings {
		s := testSettings()
		s.Import = config.ImportSettings{
			APIURL:     "https://api.example/graphql",
			DemarcheID: 108800,
			Token:      "secret",
		}
		return s
	}

	t.Run("upserts fetched dossiers", func(t *testing.T) {
		fake := &fakeStorage{}
		fetcher := &fakeFetcher{nodes: []dossiers.Dossier{{Number: 3}}}
		swapStore(t, fake)
		swapFetcher(t, fetcher)

		eng, err := New(quietCtx(), WithSettings(importSettings()))
		require.NoError(t, err)
		defer eng.Close()

		report, err := eng.Import(quietCtx(), nil)
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, report.RunID)
		assert.Equal(t, 1, report.Fetched)
		assert.Equal(t, 1, report.Upserted)

		require.Len(t, fake.upserted, 1)
		require.Len(t, fake.upserted[0], 1)
		assert.Equal(t, int64(3), fake.upserted[0][0].ID)
	})

	t.Run("forwards the incremental filter", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		swapStore(t, &fakeStorage{})
		swapFetcher(t, fetcher)

		eng, err := New(quietCtx(), WithSettings(importSettings()))
		require.NoError(t, err)
		defer eng.Close()

		since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		_, err = eng.Import(quietCtx(), &since)
		require.NoError(t, err)

		require.NotNil(t, fetcher.since)
		assert.Equal(t, since, *fetcher.since)
	})

	t.Run("an unconfigured endpoint is a config error", func(t *testing.T) {
		swapStore(t, &fakeStorage{})

		eng, err := New(quietCtx(), WithSettings(testSettings()))
		require.NoError(t, err)
		defer eng.Close()

		_, err = eng.Import(quietCtx(), nil)
		require.Error(t, err)

		var cfgErr *pkgerrors.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "import", cfgErr.Component)
	})
}

func TestEngineDelegation(t *testing.T) {
	fake := &fakeStorage{}
	swapStore(t, fake)

	eng, err := New(quietCtx(), WithSettings(testSettings()))
	require.NoError(t, err)

	require.NoError(t, eng.EnsureSchema(quietCtx()))
	assert.True(t, fake.ensured)

	require.NoError(t, eng.Ping(quietCtx()))
	assert.True(t, fake.pinged)

	eng.Close()
	assert.True(t, fake.closed)
}
