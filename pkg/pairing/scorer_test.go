package pairing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IGNF/ocsge-pv/pkg/pairing"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name         string
		intersection float64
		declArea     float64
		detArea      float64
		want         float64
	}{
		{name: "detection inside declaration", intersection: 50, declArea: 100, detArea: 50, want: 1},
		{name: "partial overlap", intersection: 40, declArea: 100, detArea: 100, want: 0.4},
		{name: "no intersection", intersection: 0, declArea: 100, detArea: 100, want: 0},
		{name: "degenerate declaration", intersection: 10, declArea: 0, detArea: 100, want: 0},
		{name: "degenerate detection", intersection: 10, declArea: 100, detArea: -1, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pairing.Score(tt.intersection, tt.declArea, tt.detArea)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestScorerScoreCandidates(t *testing.T) {
	scorer := pairing.NewScorer()

	prepare := func(id int64, minX, minY, maxX, maxY float64) pairing.CandidateDetection {
		return pairing.CandidateDetection{
			ID:   id,
			EWKB: rectEWKB(t, minX, minY, maxX, maxY),
			Box:  box(minX, minY, maxX, maxY),
			Area: (maxX - minX) * (maxY - minY),
		}
	}

	t.Run("scores each overlapping candidate", func(t *testing.T) {
		decl := rectEWKB(t, 0, 0, 10, 10)
		dets := []pairing.CandidateDetection{
			prepare(1, 0, 0, 10, 10),
			prepare(2, 6, 0, 16, 10),
		}

		candidates, err := scorer.ScoreCandidates(42, decl, dets)
		require.NoError(t, err)

		require.Len(t, candidates, 2)
		assert.Equal(t, int64(42), candidates[0].DeclarationID)
		assert.Equal(t, int64(1), candidates[0].DetectionID)
		assert.InDelta(t, 1.0, candidates[0].Score, 1e-9)
		assert.Equal(t, int64(2), candidates[1].DetectionID)
		assert.InDelta(t, 0.4, candidates[1].Score, 1e-9)
	})

	t.Run("zero-area overlap yields no candidate", func(t *testing.T) {
		decl := rectEWKB(t, 0, 0, 10, 10)
		dets := []pairing.CandidateDetection{
			prepare(1, 10, 0, 20, 10),
		}

		candidates, err := scorer.ScoreCandidates(42, decl, dets)
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("garbage declaration bytes are an error", func(t *testing.T) {
		_, err := scorer.ScoreCandidates(42, []byte{0x00, 0x01}, nil)
		require.Error(t, err)
	})
}
