package inventory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/IGNF/ocsge-pv/pkg/inventory"
)

func TestGeometrizeReportSummary(t *testing.T) {
	r := &inventory.GeometrizeReport{
		Examined:    120,
		Geometrized: 110,
		Unresolved:  7,
		Skipped:     3,
		Elapsed:     1500 * time.Millisecond,
	}
	s := r.Summary()
	assert.Contains(t, s, "examined 120 declarations")
	assert.Contains(t, s, "110 geometrized")
	assert.Contains(t, s, "7 unresolved")
	assert.Contains(t, s, "3 skipped")
}

func TestPairReportSummary(t *testing.T) {
	r := &inventory.PairReport{
		Declarations: 40,
		Detections:   300,
		Candidates:   95,
		Links:        52,
		Threshold:    0.5,
		Mode:         inventory.ModeBestMatch,
		Elapsed:      2 * time.Second,
	}
	s := r.Summary()
	assert.Contains(t, s, "40 declarations")
	assert.Contains(t, s, "300 detections")
	assert.Contains(t, s, "52 links")
	assert.Contains(t, s, "threshold 0.5")
	assert.Contains(t, s, "best-match")
}

func TestImportReportSummary(t *testing.T) {
	r := &inventory.ImportReport{
		Fetched:  15,
		Upserted: 14,
		Rejected: 1,
		Elapsed:  time.Second,
	}
	s := r.Summary()
	assert.Contains(t, s, "fetched 15 dossiers")
	assert.Contains(t, s, "14 upserted")
	assert.Contains(t, s, "1 with raw geometries")
}
