// Package geometry provides the geometric primitives shared by the
// geometrizer and the pairing engine: EWKB encoding and decoding, bounding
// boxes and planar areas (pure Go via go-geom), and GEOS-backed overlay
// operations (union, intersection) through per-goroutine contexts.
//
// All geometries are planar in the Lambert-93 reference system (EPSG:2154),
// the CRS shared by the French cadastre and OCS-GE detections. Footprints
// travel between the store and the engine as immutable EWKB byte slices.
package geometry

import (
	"encoding/binary"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
)

// SRIDLambert93 is the EPSG code of the planar reference system both
// inventories are delivered in.
const SRIDLambert93 = 2154

// Box is an axis-aligned 2D bounding box.
type Box struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Intersects reports whether the two boxes share at least one point.
// Touching edges count as intersecting, which keeps the candidate
// index sound for geometries that merely touch.
func (b Box) Intersects(o Box) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX &&
		b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

// Width returns the horizontal extent of the box.
func (b Box) Width() float64 {
	return b.MaxX - b.MinX
}

// Height returns the vertical extent of the box.
func (b Box) Height() float64 {
	return b.MaxY - b.MinY
}

// Decode parses EWKB (or plain WKB) bytes into a go-geom geometry.
func Decode(data []byte) (geom.T, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, pkgerrors.WrapGeometry("decode", "", err)
	}
	return g, nil
}

// Encode serializes a geometry to little-endian EWKB, keeping its SRID.
func Encode(g geom.T) ([]byte, error) {
	data, err := ewkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, pkgerrors.WrapGeometry("encode", "", err)
	}
	return data, nil
}

// BoundsOf returns the 2D bounding box of a geometry.
func BoundsOf(g geom.T) Box {
	b := g.Bounds()
	return Box{
		MinX: b.Min(0),
		MinY: b.Min(1),
		MaxX: b.Max(0),
		MaxY: b.Max(1),
	}
}

// AreaOf returns the planar area of a polygonal geometry, 0 for anything else.
func AreaOf(g geom.T) float64 {
	switch gg := g.(type) {
	case *geom.Polygon:
		return gg.Area()
	case *geom.MultiPolygon:
		return gg.Area()
	default:
		return 0
	}
}

// Describe decodes an EWKB footprint just far enough to report its bounding
// box and planar area. The candidate index is built from these summaries so
// detections never need a GEOS context at load time.
func Describe(data []byte) (Box, float64, error) {
	g, err := Decode(data)
	if err != nil {
		return Box{}, 0, err
	}
	return BoundsOf(g), AreaOf(g), nil
}
