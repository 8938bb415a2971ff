// Package resolve derives declaration footprints from cadastral parcel
// references. Each declaration's validated IDUs are looked up on the
// cadastre and the found parcel polygons are dissolved into one valid
// multi-polygon footprint.
//
// Missing parcels degrade the footprint instead of failing it; only a
// declaration where every reference misses is unresolved. References are
// sorted before lookup and union, so the footprint bytes do not depend on
// the order operators typed the references in.
package resolve

import (
	"context"
	"fmt"
	"sort"

	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
	"github.com/IGNF/ocsge-pv/pkg/geometry"
)

// ParcelSource looks up parcel footprints by IDU. Implemented by the store
// against the cadastre endpoint.
type ParcelSource interface {
	ParcelFootprints(ctx context.Context, idus []string) (map[string][]byte, error)
}

// Outcome is the result of resolving one declaration.
type Outcome struct {
	Footprint []byte // EWKB multi-polygon in Lambert-93
	Resolved  int    // references matched to a cadastre parcel
	Missing   int    // references that matched nothing
}

// Resolver turns parcel references into footprints. It owns a GEOS context,
// so a Resolver must not be shared across goroutines.
type Resolver struct {
	parcels ParcelSource
	gctx    *geometry.Context
}

// New creates a Resolver reading parcels from the given source.
func New(parcels ParcelSource) *Resolver {
	return &Resolver{parcels: parcels, gctx: geometry.NewContext()}
}

// Resolve computes the footprint for one declaration from its validated
// parcel references. A declaration with no reference matching the cadastre
// returns an UnresolvedReferenceError; a union fault returns a
// GeometryError. Both are per-record verdicts the caller records without
// aborting its batch.
func (r *Resolver) Resolve(ctx context.Context, declarationID int64, refs []string) (out *Outcome, err error) {
	// GEOS faults surface as panics from the binding; turn them into a
	// per-declaration error so one degenerate parcel cannot kill the run.
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = pkgerrors.NewGeometryError("resolve",
				fmt.Sprintf("declaration %d", declarationID), fmt.Sprint(rec))
		}
	}()

	refs = sortedUnique(refs)
	if len(refs) == 0 {
		return nil, pkgerrors.NewUnresolvedReferenceError(declarationID, refs, 0)
	}

	parcels, err := r.parcels.ParcelFootprints(ctx, refs)
	if err != nil {
		return nil, err
	}

	parts := make([][]byte, 0, len(refs))
	for _, ref := range refs {
		if ewkb, ok := parcels[ref]; ok {
			parts = append(parts, ewkb)
		}
	}
	missing := len(refs) - len(parts)

	if len(parts) == 0 {
		return nil, pkgerrors.NewUnresolvedReferenceError(declarationID, refs, missing)
	}

	footprint, err := r.gctx.UnionEWKB(parts, geometry.SRIDLambert93)
	if err != nil {
		return nil, pkgerrors.WrapGeometry("resolve",
			fmt.Sprintf("declaration %d", declarationID), err)
	}

	return &Outcome{
		Footprint: footprint,
		Resolved:  len(parts),
		Missing:   missing,
	}, nil
}

func sortedUnique(refs []string) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, len(refs))
	copy(out, refs)
	sort.Strings(out)

	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}
