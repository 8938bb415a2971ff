package dossiers

import (
	"context"
	"sort"
	"time"

	"github.com/IGNF/ocsge-pv/pkg/inventory"
	"github.com/IGNF/ocsge-pv/pkg/logging"
)

// Fetcher pulls accepted dossiers from the declarations API. Implemented by
// Client.
type Fetcher interface {
	FetchDossiers(ctx context.Context, since *time.Time) ([]Dossier, error)
}

// Sink persists imported declarations. Implemented by the store.
type Sink interface {
	UpsertDeclarations(ctx context.Context, decls []inventory.Declaration) error
}

// Run imports the procedure's accepted dossiers into the declaration table
// and reports what happened. Dossiers are deduplicated by number and
// written in ascending number order; a re-imported dossier overwrites its
// previous row, which resets the footprint state.
func Run(ctx context.Context, fetcher Fetcher, sink Sink, since *time.Time) (*inventory.ImportReport, error) {
	log := logging.Ctx(ctx)
	start := time.Now()

	fetched, err := fetcher.FetchDossiers(ctx, since)
	if err != nil {
		return nil, err
	}

	report := &inventory.ImportReport{Fetched: len(fetched)}

	seen := make(map[int64]struct{}, len(fetched))
	decls := make([]inventory.Declaration, 0, len(fetched))
	for i := range fetched {
		d := &fetched[i]
		if _, dup := seen[d.Number]; dup {
			continue
		}
		seen[d.Number] = struct{}{}

		decl, raw, issues := d.Declaration()
		if len(issues) > 0 {
			log.Warn().
				Int64("id_dossier", decl.ID).
				Strs("champs", issues).
				Msg("unusable champ values")
		}
		if raw {
			report.Rejected++
			log.Warn().
				Int64("id_dossier", decl.ID).
				Msg("dossier draws raw geometries, keeping its cadastral references only")
		}
		decls = append(decls, decl)
	}

	sort.Slice(decls, func(i, j int) bool { return decls[i].ID < decls[j].ID })

	if err := sink.UpsertDeclarations(ctx, decls); err != nil {
		return nil, err
	}

	report.Upserted = len(decls)
	report.Elapsed = time.Since(start)
	return report, nil
}
