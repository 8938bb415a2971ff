package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GeometrizeReport aggregates the outcome of one geometrization run.
// Per-record faults are counted here instead of failing the run.
type GeometrizeReport struct {
	RunID       uuid.UUID     // correlates log lines of this run
	Examined    int           // declarations fetched for processing
	Geometrized int           // footprints computed and persisted
	Unresolved  int           // declarations marked irresoluble
	Skipped     int           // declarations skipped on a geometry fault
	Elapsed     time.Duration // wall-clock duration of the run
}

// Summary returns a one-line human-readable digest of the run.
func (r *GeometrizeReport) Summary() string {
	return fmt.Sprintf("examined %d declarations: %d geometrized, %d unresolved, %d skipped (%s)",
		r.Examined, r.Geometrized, r.Unresolved, r.Skipped, r.Elapsed.Round(time.Millisecond))
}

// PairReport aggregates the outcome of one pairing run.
type PairReport struct {
	RunID        uuid.UUID     // correlates log lines of this run
	Declarations int           // declarations with a footprint considered
	Detections   int           // detections loaded into the candidate index
	Candidates   int           // candidate pairs examined after the coarse filter
	Links        int           // links materialized
	Threshold    float64       // similarity threshold applied
	Mode         Mode          // multiplicity policy applied
	Elapsed      time.Duration // wall-clock duration of the run
}

// Summary returns a one-line human-readable digest of the run.
func (r *PairReport) Summary() string {
	return fmt.Sprintf("paired %d declarations against %d detections: %d candidates, %d links (threshold %g, %s, %s)",
		r.Declarations, r.Detections, r.Candidates, r.Links,
		r.Threshold, r.Mode, r.Elapsed.Round(time.Millisecond))
}

// ImportReport aggregates the outcome of one declarations import run.
type ImportReport struct {
	RunID    uuid.UUID     // correlates log lines of this run
	Fetched  int           // dossiers returned by the declarations API
	Upserted int           // declaration rows inserted or updated
	Rejected int           // dossiers carrying raw drawn geometries instead of cadastral parcels
	Elapsed  time.Duration // wall-clock duration of the run
}

// Summary returns a one-line human-readable digest of the run.
func (r *ImportReport) Summary() string {
	return fmt.Sprintf("fetched %d dossiers: %d upserted, %d with raw geometries (%s)",
		r.Fetched, r.Upserted, r.Rejected, r.Elapsed.Round(time.Millisecond))
}
