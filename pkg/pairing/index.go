package pairing

import (
	"fmt"
	"math"
	"sort"

	"github.com/IGNF/ocsge-pv/pkg/geometry"
)

// MinCellSize is the smallest grid cell the index will use, in CRS units
// (meters in Lambert-93). Finer cells multiply the cell count without
// improving selectivity for parcel-scale footprints.
const MinCellSize = 1.0

// maxQueryCellsPerAxis bounds the cell walk for a single query. A footprint
// spanning more cells than this falls back to a linear scan over all
// entries, which is slower but equally sound.
const maxQueryCellsPerAxis = 1024

// Index is a uniform-grid spatial index over detection bounding boxes. It
// answers "which detections could overlap this box" from grid cells alone,
// narrowing the exact overlay work from every possible pair down to the
// pairs whose boxes share cells.
type Index struct {
	cellSize float64
	grid     map[string][]int
	entries  []indexEntry
}

type indexEntry struct {
	id  int64
	box geometry.Box
}

// NewIndex creates an empty index with the given cell size in CRS units.
// Sizes below MinCellSize are raised to it.
func NewIndex(cellSize float64) *Index {
	if math.IsNaN(cellSize) || cellSize < MinCellSize {
		cellSize = MinCellSize
	}
	return &Index{
		cellSize: cellSize,
		grid:     make(map[string][]int),
	}
}

// CellSize returns the cell size the index was built with.
func (ix *Index) CellSize() float64 {
	return ix.cellSize
}

// Len returns the number of indexed boxes.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Insert registers a bounding box under every grid cell it touches.
func (ix *Index) Insert(id int64, box geometry.Box) {
	n := len(ix.entries)
	ix.entries = append(ix.entries, indexEntry{id: id, box: box})

	minCellX, minCellY, maxCellX, maxCellY := ix.cellRange(box)
	for x := minCellX; x <= maxCellX; x++ {
		for y := minCellY; y <= maxCellY; y++ {
			key := cellKey(x, y)
			ix.grid[key] = append(ix.grid[key], n)
		}
	}
}

// Candidates returns the ids of all indexed boxes intersecting the query
// box, deduplicated and in ascending order. Box intersection
// over-approximates geometry intersection, so the result may contain false
// positives but never misses a true overlap.
func (ix *Index) Candidates(box geometry.Box) []int64 {
	minCellX, minCellY, maxCellX, maxCellY := ix.cellRange(box)
	if maxCellX-minCellX >= maxQueryCellsPerAxis || maxCellY-minCellY >= maxQueryCellsPerAxis {
		return ix.scan(box)
	}

	seen := make(map[int]struct{})
	var ids []int64
	for x := minCellX; x <= maxCellX; x++ {
		for y := minCellY; y <= maxCellY; y++ {
			for _, n := range ix.grid[cellKey(x, y)] {
				if _, ok := seen[n]; ok {
					continue
				}
				seen[n] = struct{}{}
				if ix.entries[n].box.Intersects(box) {
					ids = append(ids, ix.entries[n].id)
				}
			}
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// scan is the unindexed fallback for query boxes too large to walk cell by
// cell.
func (ix *Index) scan(box geometry.Box) []int64 {
	var ids []int64
	for _, e := range ix.entries {
		if e.box.Intersects(box) {
			ids = append(ids, e.id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (ix *Index) cellRange(box geometry.Box) (minX, minY, maxX, maxY int) {
	minX = int(math.Floor(box.MinX / ix.cellSize))
	minY = int(math.Floor(box.MinY / ix.cellSize))
	maxX = int(math.Floor(box.MaxX / ix.cellSize))
	maxY = int(math.Floor(box.MaxY / ix.cellSize))
	return minX, minY, maxX, maxY
}

func cellKey(x, y int) string {
	return fmt.Sprintf("%d,%d", x, y)
}

// AutoCellSize derives a grid cell size from the boxes to be indexed: the
// median of each box's larger extent, floored at MinCellSize. The median
// keeps a handful of sprawling footprints from inflating the cell size
// until the grid degenerates into a single cell.
func AutoCellSize(boxes []geometry.Box) float64 {
	if len(boxes) == 0 {
		return MinCellSize
	}
	extents := make([]float64, 0, len(boxes))
	for _, b := range boxes {
		extents = append(extents, math.Max(b.Width(), b.Height()))
	}
	sort.Float64s(extents)
	size := extents[len(extents)/2]
	if math.IsNaN(size) || size < MinCellSize {
		return MinCellSize
	}
	return size
}
