// Package pairing matches declaration footprints against detection
// footprints. It builds a uniform-grid candidate index over detection
// bounding boxes, scores the candidate pairs by overlap ratio on a pool of
// GEOS-backed workers, and reduces the scored set to a deterministic link
// list under the configured multiplicity mode.
package pairing

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/IGNF/ocsge-pv/pkg/constants"
	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
	"github.com/IGNF/ocsge-pv/pkg/geometry"
	"github.com/IGNF/ocsge-pv/pkg/inventory"
	"github.com/IGNF/ocsge-pv/pkg/logging"
)

// Options tunes a pairing run. The zero value scores with threshold 0,
// keeps every qualifying pair, and sizes the pool and grid automatically.
type Options struct {
	// Threshold is the minimum overlap score, in [0,1]. 0 keeps every
	// pair with a positive intersection area.
	Threshold float64
	// Mode selects the multiplicity policy.
	Mode inventory.Mode
	// Workers caps the scoring goroutines. 0 means NumCPU, bounded by
	// constants.MaxWorkers.
	Workers int
	// CellSize overrides the candidate grid cell size, in CRS units.
	// 0 derives it from the detection footprints.
	CellSize float64
}

// Result is the outcome of one pairing run.
type Result struct {
	// Links is sorted by declaration id then detection id and contains no
	// duplicates.
	Links []inventory.Link
	// Declarations counts the declarations that carried a footprint.
	Declarations int
	// Detections counts the detections indexed after preparation.
	Detections int
	// Candidates counts the pairs handed to scorers after the coarse
	// bounding-box filter.
	Candidates int
	// SkippedDeclarations counts declarations left out: missing or
	// undecodable footprint, or a scoring fault.
	SkippedDeclarations int
	// SkippedDetections counts detections dropped at preparation:
	// undecodable, unrepairable, or empty.
	SkippedDetections int
	// CellSize is the grid cell size the run used.
	CellSize float64
}

type scoreTask struct {
	declID int64
	ewkb   []byte
	dets   []CandidateDetection
}

type scoreOutcome struct {
	declID     int64
	candidates []Candidate
	err        error
}

// Pair matches every geometrized declaration against the detections and
// returns the resulting links plus run counters. The link list is identical
// across reruns on the same input, whatever the worker count.
func Pair(ctx context.Context, declarations []inventory.Declaration, detections []inventory.Detection, opts Options) (*Result, error) {
	log := logging.Ctx(ctx)
	res := &Result{}

	prepared, skippedDets := prepareDetections(ctx, detections)
	res.Detections = len(prepared)
	res.SkippedDetections = skippedDets

	cellSize := opts.CellSize
	if cellSize <= 0 {
		boxes := make([]geometry.Box, len(prepared))
		for i, det := range prepared {
			boxes[i] = det.Box
		}
		cellSize = AutoCellSize(boxes)
	}
	res.CellSize = cellSize

	index := NewIndex(cellSize)
	detByID := make(map[int64]CandidateDetection, len(prepared))
	for _, det := range prepared {
		index.Insert(det.ID, det.Box)
		detByID[det.ID] = det
	}

	var tasks []scoreTask
	for i := range declarations {
		decl := &declarations[i]
		if !decl.HasFootprint() {
			res.SkippedDeclarations++
			continue
		}
		box, _, err := geometry.Describe(decl.Footprint)
		if err != nil {
			res.SkippedDeclarations++
			log.Warn().Err(err).Int64("id_dossier", decl.ID).
				Msg("skipping declaration with undecodable footprint")
			continue
		}
		res.Declarations++

		ids := index.Candidates(box)
		if len(ids) == 0 {
			continue
		}
		res.Candidates += len(ids)

		dets := make([]CandidateDetection, len(ids))
		for j, id := range ids {
			dets[j] = detByID[id]
		}
		tasks = append(tasks, scoreTask{declID: decl.ID, ewkb: decl.Footprint, dets: dets})
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > constants.MaxWorkers {
		workers = constants.MaxWorkers
	}
	if len(tasks) > 0 && workers > len(tasks) {
		workers = len(tasks)
	}

	log.Info().
		Int("declarations", res.Declarations).
		Int("detections", res.Detections).
		Int("candidates", res.Candidates).
		Float64("cell_size", cellSize).
		Int("workers", workers).
		Msg("scoring candidate pairs")

	jobs := make(chan scoreTask)
	outcomes := make(chan scoreOutcome)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			scorer := NewScorer()
			for t := range jobs {
				candidates, err := runScoreTask(scorer, t)
				outcomes <- scoreOutcome{declID: t.declID, candidates: candidates, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, t := range tasks {
			select {
			case jobs <- t:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var collected []Candidate
	scored := 0
	for outcome := range outcomes {
		scored++
		if scored%1000 == 0 {
			log.Debug().Int("scored", scored).Int("total", len(tasks)).
				Msg("scoring progress")
		}
		if outcome.err != nil {
			res.SkippedDeclarations++
			log.Warn().Err(outcome.err).Int64("id_dossier", outcome.declID).
				Msg("scoring failed, skipping declaration")
			continue
		}
		collected = append(collected, outcome.candidates...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matcher := Matcher{Threshold: opts.Threshold, Mode: opts.Mode}
	res.Links = matcher.Match(collected)

	log.Info().Int("links", len(res.Links)).Msg("pairing complete")
	return res, nil
}

// runScoreTask wraps one declaration's scoring. GEOS overlay faults surface
// as panics from the binding; they become per-declaration errors here so a
// single bad geometry cannot kill the run.
func runScoreTask(s *Scorer, t scoreTask) (candidates []Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.NewGeometryError("score",
				fmt.Sprintf("declaration %d", t.declID), fmt.Sprint(r))
		}
	}()
	return s.ScoreCandidates(t.declID, t.ewkb, t.dets)
}

// prepareDetections decodes, validates and, when needed, repairs every
// detection footprint once, returning summaries ready to index and score.
// Unusable footprints are dropped and counted, never fatal.
func prepareDetections(ctx context.Context, detections []inventory.Detection) ([]CandidateDetection, int) {
	log := logging.Ctx(ctx)
	gctx := geometry.NewContext()

	prepared := make([]CandidateDetection, 0, len(detections))
	skipped := 0
	for i := range detections {
		det := &detections[i]
		cd, err := prepareDetection(gctx, det)
		if err != nil {
			skipped++
			log.Warn().Err(err).Int64("id_detection", det.ID).
				Msg("skipping unusable detection footprint")
			continue
		}
		prepared = append(prepared, cd)
	}
	return prepared, skipped
}

func prepareDetection(gctx *geometry.Context, det *inventory.Detection) (CandidateDetection, error) {
	g, err := gctx.FromEWKB(det.Footprint)
	if err != nil {
		return CandidateDetection{}, err
	}

	payload := det.Footprint
	if !g.IsValid() {
		if g, err = gctx.Repair(g); err != nil {
			return CandidateDetection{}, err
		}
		if payload, err = geometry.MultiPolygonEWKB(g, geometry.SRIDLambert93); err != nil {
			g.Destroy()
			return CandidateDetection{}, err
		}
	}
	defer g.Destroy()

	if g.IsEmpty() {
		return CandidateDetection{}, pkgerrors.NewGeometryError("prepare", "", "empty footprint")
	}

	bounds := g.Bounds()
	return CandidateDetection{
		ID:   det.ID,
		EWKB: payload,
		Box:  geometry.Box{MinX: bounds.MinX, MinY: bounds.MinY, MaxX: bounds.MaxX, MaxY: bounds.MaxY},
		Area: g.Area(),
	}, nil
}
