package pairing

import (
	"math"

	"github.com/IGNF/ocsge-pv/pkg/geometry"
)

// CandidateDetection is a detection prepared for scoring: a valid EWKB
// payload plus the bounding box and planar area derived from it, computed
// once at load so scoring workers never re-derive them.
type CandidateDetection struct {
	ID   int64
	EWKB []byte
	Box  geometry.Box
	Area float64
}

// Score is the overlap similarity of two footprints: intersection area over
// the smaller footprint's area. 1 means the smaller footprint lies entirely
// within the larger one. Non-positive areas make the ratio meaningless and
// score 0.
func Score(intersection, declArea, detArea float64) float64 {
	smaller := math.Min(declArea, detArea)
	if intersection <= 0 || smaller <= 0 {
		return 0
	}
	return intersection / smaller
}

// Scorer computes overlap scores for one declaration at a time against its
// candidate detections. Each scorer owns a GEOS context and must stay on a
// single goroutine.
type Scorer struct {
	gctx *geometry.Context
}

// NewScorer creates a scorer with its own GEOS context.
func NewScorer() *Scorer {
	return &Scorer{gctx: geometry.NewContext()}
}

// ScoreCandidates scores a declaration footprint against each candidate
// detection. Pairs with an empty intersection or a degenerate area are
// dropped, so every returned candidate carries a positive score.
func (s *Scorer) ScoreCandidates(declID int64, declEWKB []byte, dets []CandidateDetection) ([]Candidate, error) {
	declGeom, err := s.gctx.FromEWKB(declEWKB)
	if err != nil {
		return nil, err
	}
	defer declGeom.Destroy()
	declArea := declGeom.Area()

	var out []Candidate
	for _, det := range dets {
		detGeom, err := s.gctx.FromEWKB(det.EWKB)
		if err != nil {
			return nil, err
		}
		intersection, err := s.gctx.IntersectionArea(declGeom, detGeom)
		detGeom.Destroy()
		if err != nil {
			return nil, err
		}
		score := Score(intersection, declArea, det.Area)
		if score <= 0 {
			continue
		}
		out = append(out, Candidate{
			DeclarationID: declID,
			DetectionID:   det.ID,
			Score:         score,
		})
	}
	return out, nil
}
