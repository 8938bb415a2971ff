// Package geometrize drives the footprint derivation run: it pages through
// declarations awaiting a footprint, resolves each one's parcel references
// into a geometry, and writes the verdicts back in batches.
//
// Per-record faults never abort the run. A declaration whose references all
// miss the cadastre is marked unresolved; one that trips a geometry fault
// stays pending for the next run. Store failures are fatal because they
// would silently lose verdicts.
package geometrize

import (
	"context"
	"errors"
	"time"

	"github.com/IGNF/ocsge-pv/internal/parcelref"
	"github.com/IGNF/ocsge-pv/internal/resolve"
	"github.com/IGNF/ocsge-pv/pkg/constants"
	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
	"github.com/IGNF/ocsge-pv/pkg/inventory"
	"github.com/IGNF/ocsge-pv/pkg/logging"
)

// Source is the persistence surface the run needs: fetching declarations
// without a footprint and persisting the verdicts. Implemented by the store.
type Source interface {
	PendingDeclarations(ctx context.Context, afterID int64, limit int) ([]inventory.Declaration, error)
	ApplyFootprints(ctx context.Context, updates []inventory.FootprintUpdate) error
}

// Resolver computes one declaration's footprint from its parcel references.
// Implemented by resolve.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, declarationID int64, refs []string) (*resolve.Outcome, error)
}

// Options tune a geometrization run.
type Options struct {
	// BatchSize is the number of declarations fetched and written back per
	// round trip. Zero means constants.DefaultBatchSize.
	BatchSize int
}

// Run geometrizes every pending declaration and reports what happened.
// Declarations are processed in ascending id order with keyset pagination,
// so a declaration marked unresolved in this run is not refetched by it.
func Run(ctx context.Context, source Source, resolver Resolver, opts Options) (*inventory.GeometrizeReport, error) {
	log := logging.Ctx(ctx)
	start := time.Now()

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = constants.DefaultBatchSize
	}

	report := &inventory.GeometrizeReport{}
	afterID := int64(0)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		decls, err := source.PendingDeclarations(ctx, afterID, batchSize)
		if err != nil {
			return nil, err
		}
		if len(decls) == 0 {
			break
		}

		updates := make([]inventory.FootprintUpdate, 0, len(decls))
		for i := range decls {
			update, ok, err := geometrizeOne(ctx, resolver, &decls[i], report)
			if err != nil {
				return nil, err
			}
			if ok {
				updates = append(updates, update)
			}
		}

		if err := source.ApplyFootprints(ctx, updates); err != nil {
			return nil, err
		}

		afterID = decls[len(decls)-1].ID
		log.Debug().
			Int("batch", len(decls)).
			Int("examined", report.Examined).
			Int("geometrized", report.Geometrized).
			Msg("batch written")

		if len(decls) < batchSize {
			break
		}
	}

	report.Elapsed = time.Since(start)
	return report, nil
}

// geometrizeOne resolves one declaration and translates the outcome into a
// footprint update. ok is false when the declaration produced no update,
// which happens on a geometry fault (left pending) and on a fatal error.
func geometrizeOne(ctx context.Context, resolver Resolver, d *inventory.Declaration, report *inventory.GeometrizeReport) (update inventory.FootprintUpdate, ok bool, fatal error) {
	log := logging.Ctx(ctx)
	report.Examined++

	refs, anomalies := parcelref.Parse(d.ParcelRefs)
	if len(anomalies) > 0 {
		excluded := make([]string, len(anomalies))
		for i, a := range anomalies {
			excluded[i] = a.String()
		}
		log.Warn().
			Int64("id_dossier", d.ID).
			Strs("excluded", excluded).
			Msg("unusable parcel references")
	}

	out, err := resolver.Resolve(ctx, d.ID, refs)
	switch {
	case err == nil:
		report.Geometrized++
		return inventory.FootprintUpdate{
			DeclarationID:  d.ID,
			Footprint:      out.Footprint,
			Status:         inventory.FootprintComputed,
			MissingParcels: out.Missing,
		}, true, nil

	case pkgerrors.IsUnresolved(err):
		report.Unresolved++
		missing := len(refs)
		var unresolved *pkgerrors.UnresolvedReferenceError
		if errors.As(err, &unresolved) {
			missing = unresolved.Missing
		}
		log.Warn().
			Int64("id_dossier", d.ID).
			Int("references", len(refs)).
			Msg("no parcel reference matched the cadastre")
		return inventory.FootprintUpdate{
			DeclarationID:  d.ID,
			Status:         inventory.FootprintUnresolved,
			MissingParcels: missing,
		}, true, nil

	case pkgerrors.IsGeometry(err):
		report.Skipped++
		log.Warn().
			Int64("id_dossier", d.ID).
			Err(err).
			Msg("geometry fault, declaration left pending")
		return inventory.FootprintUpdate{}, false, nil

	default:
		return inventory.FootprintUpdate{}, false, err
	}
}
