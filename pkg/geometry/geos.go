package geometry

import (
	"encoding/binary"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geos"

	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
)

// Context wraps a GEOS context. Geometries created on a Context belong to it
// and must not be shared across goroutines; scoring workers each create
// their own so overlay operations never serialize on a shared handle.
type Context struct {
	gctx *geos.Context
}

// NewContext creates a fresh GEOS context.
func NewContext() *Context {
	return &Context{gctx: geos.NewContext()}
}

// FromEWKB parses EWKB bytes into a GEOS geometry owned by this context.
// The caller is responsible for calling Destroy on the result.
func (c *Context) FromEWKB(data []byte) (*geos.Geom, error) {
	g, err := c.gctx.NewGeomFromWKB(data)
	if err != nil {
		return nil, pkgerrors.WrapGeometry("decode", "", err)
	}
	return g, nil
}

// Repair returns a valid version of g, rebuilding linework and discarding
// collapsed components when needed. Ownership of g transfers to Repair: on
// success the caller must Destroy only the returned geometry.
func (c *Context) Repair(g *geos.Geom) (*geos.Geom, error) {
	if g.IsValid() {
		return g, nil
	}
	reason := g.IsValidReason()
	fixed := g.MakeValidWithParams(geos.MakeValidLinework, geos.MakeValidDiscardCollapsed)
	if fixed == nil || fixed.IsEmpty() {
		if fixed != nil {
			fixed.Destroy()
		}
		g.Destroy()
		return nil, pkgerrors.NewGeometryError("repair", "", reason)
	}
	g.Destroy()
	return fixed, nil
}

// UnionEWKB dissolves the given EWKB polygons into a single valid
// multi-polygon footprint, returned as EWKB with the given SRID. Adjacent
// and overlapping inputs merge. The result is normalized before encoding,
// so the same input set yields bit-identical bytes run after run.
func (c *Context) UnionEWKB(parts [][]byte, srid int) ([]byte, error) {
	geoms := make([]*geos.Geom, 0, len(parts))
	destroyAll := func() {
		for _, g := range geoms {
			g.Destroy()
		}
	}

	for i, part := range parts {
		g, err := c.FromEWKB(part)
		if err != nil {
			destroyAll()
			return nil, err
		}
		g, err = c.Repair(g)
		if err != nil {
			destroyAll()
			return nil, pkgerrors.WrapGeometry("union", fmt.Sprintf("part %d", i), err)
		}
		if g.IsEmpty() {
			g.Destroy()
			continue
		}
		geoms = append(geoms, g)
	}

	if len(geoms) == 0 {
		return nil, pkgerrors.NewGeometryError("union", "", "no non-empty input")
	}

	union := cascadedUnion(geoms)
	if union == nil {
		return nil, pkgerrors.NewGeometryError("union", "", "union returned nil")
	}
	defer union.Destroy()

	if union.IsEmpty() {
		return nil, pkgerrors.NewGeometryError("union", "", "empty result")
	}
	union.Normalize()

	return MultiPolygonEWKB(union, srid)
}

// cascadedUnion merges polygonal geometries pairwise, divide and conquer.
// It takes ownership of every input geometry.
func cascadedUnion(geoms []*geos.Geom) *geos.Geom {
	if len(geoms) == 1 {
		return geoms[0]
	}

	mid := len(geoms) / 2
	left := cascadedUnion(geoms[:mid])
	right := cascadedUnion(geoms[mid:])

	result := left.Union(right)

	left.Destroy()
	right.Destroy()

	return result
}

// IntersectionArea returns the overlap area of two geometries on this
// context, 0 when they are disjoint.
func (c *Context) IntersectionArea(a, b *geos.Geom) (float64, error) {
	if !a.Intersects(b) {
		return 0, nil
	}
	inter := a.Intersection(b)
	if inter == nil {
		return 0, pkgerrors.NewGeometryError("intersection", "", "intersection returned nil")
	}
	defer inter.Destroy()
	return inter.Area(), nil
}

// MultiPolygonEWKB coerces a GEOS polygonal geometry to a multi-polygon
// and encodes it as EWKB. Overlay results can be either a Polygon or a
// MultiPolygon; the store columns are always MultiPolygon.
func MultiPolygonEWKB(g *geos.Geom, srid int) ([]byte, error) {
	t, err := wkb.Unmarshal(g.ToWKB())
	if err != nil {
		return nil, pkgerrors.WrapGeometry("encode", "", err)
	}

	var mp *geom.MultiPolygon
	switch tt := t.(type) {
	case *geom.MultiPolygon:
		mp = tt
	case *geom.Polygon:
		mp = geom.NewMultiPolygon(geom.XY)
		if err := mp.Push(tt); err != nil {
			return nil, pkgerrors.WrapGeometry("encode", "", err)
		}
	default:
		return nil, pkgerrors.NewGeometryError("encode", "",
			fmt.Sprintf("non-polygonal geometry %T", t))
	}

	mp.SetSRID(srid)
	data, err := ewkb.Marshal(mp, binary.LittleEndian)
	if err != nil {
		return nil, pkgerrors.WrapGeometry("encode", "", err)
	}
	return data, nil
}
