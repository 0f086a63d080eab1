// Package geo provides the geometry routines used to place stations and domains
// on forecast model grids: margin boxes, antipodes, grid border tracing and
// boundary-inclusive point-in-polygon tests.
package geo

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/shopspring/decimal"
)

// Point is a 3-D position in degrees east, degrees north and meters.
type Point struct {
	Lon float64
	Lat float64
	Alt float64
}

// MarshalJSON encodes the point as a GeoJSON-style [lon, lat, alt] triple.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{p.Lon, p.Lat, p.Alt})
}

// UnmarshalJSON accepts [lon, lat] or [lon, lat, alt].
func (p *Point) UnmarshalJSON(data []byte) error {
	var coords []float64
	if err := json.Unmarshal(data, &coords); err != nil {
		return err
	}
	if len(coords) < 2 || len(coords) > 3 {
		return fmt.Errorf("invalid point: expected 2 or 3 coordinates, got %d", len(coords))
	}
	p.Lon, p.Lat, p.Alt = coords[0], coords[1], 0
	if len(coords) == 3 {
		p.Alt = coords[2]
	}
	return nil
}

// Orb drops the altitude.
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Polygon is a single ring of points. Rings built by MarginToPolygon and
// Rectangle are explicitly closed; traced grid borders are not (see Closed).
type Polygon []Point

// Closed returns the ring with its first point repeated at the end when needed.
func (p Polygon) Closed() Polygon {
	if len(p) == 0 || p[0] == p[len(p)-1] {
		return p
	}
	closed := make(Polygon, len(p), len(p)+1)
	copy(closed, p)
	return append(closed, p[0])
}

// Ring converts the polygon to a closed 2-D orb ring.
func (p Polygon) Ring() orb.Ring {
	closed := p.Closed()
	ring := make(orb.Ring, len(closed))
	for i, pt := range closed {
		ring[i] = pt.Orb()
	}
	return ring
}

// Envelope returns the bounding box as west, south, east, north.
func (p Polygon) Envelope() (west, south, east, north float64) {
	b := p.Ring().Bound()
	return b.Left(), b.Bottom(), b.Right(), b.Top()
}

// Height returns the altitude of the first vertex, or 0 for an empty polygon.
func (p Polygon) Height() float64 {
	if len(p) == 0 {
		return 0
	}
	return p[0].Alt
}

// Centroid returns the area centroid of the polygon at altitude 0.
func (p Polygon) Centroid() Point {
	c, _ := planar.CentroidArea(orb.Polygon{p.Ring()})
	return Point{Lon: c.X(), Lat: c.Y()}
}

// MultiPolygon is a set of polygons, used by legacy forecast borders.
type MultiPolygon []Polygon

// Orb converts to an orb multipolygon with one outer ring per member.
func (mp MultiPolygon) Orb() orb.MultiPolygon {
	out := make(orb.MultiPolygon, len(mp))
	for i, p := range mp {
		out[i] = orb.Polygon{p.Ring()}
	}
	return out
}

// Margin holds the degree offsets used to inflate a point into a box.
type Margin struct {
	West  decimal.Decimal
	East  decimal.Decimal
	North decimal.Decimal
	South decimal.Decimal
}

// Equal reports whether both margins have the same offsets, regardless of
// decimal scale.
func (m Margin) Equal(o Margin) bool {
	return m.West.Equal(o.West) && m.East.Equal(o.East) &&
		m.North.Equal(o.North) && m.South.Equal(o.South)
}

// MarginToPolygon returns the closed box around (lon, lat) expanded by the
// margin, at altitude alt. Vertex order is SW, NW, NE, SE, SW.
//
// Longitudes are not wrapped at the antimeridian and latitudes are not
// clamped at the poles.
func MarginToPolygon(lon, lat, alt float64, m Margin) Polygon {
	dlon := decimal.NewFromFloat(lon)
	dlat := decimal.NewFromFloat(lat)

	minLon := dlon.Sub(m.West).InexactFloat64()
	maxLon := dlon.Add(m.East).InexactFloat64()
	minLat := dlat.Sub(m.South).InexactFloat64()
	maxLat := dlat.Add(m.North).InexactFloat64()

	return Polygon{
		{minLon, minLat, alt},
		{minLon, maxLat, alt},
		{maxLon, maxLat, alt},
		{maxLon, minLat, alt},
		{minLon, minLat, alt},
	}
}

// Rectangle returns the closed ring NW, NE, SE, SW, NW used for domains.
func Rectangle(west, east, north, south, alt float64) Polygon {
	return Polygon{
		{west, north, alt},
		{east, north, alt},
		{east, south, alt},
		{west, south, alt},
		{west, north, alt},
	}
}

// Normalize maps a longitude into [-180, 180).
func Normalize(lon float64) float64 {
	return floorMod(floorMod(lon, 360)+540, 360) - 180
}

func floorMod(x, y float64) float64 {
	r := math.Mod(x, y)
	if r != 0 && (r < 0) != (y < 0) {
		r += y
	}
	return r
}

// Antipode returns the point on the other side of the earth. Altitude is kept.
func Antipode(p Point) Point {
	return Point{
		Lon: Normalize(p.Lon + 180),
		Lat: -p.Lat,
		Alt: p.Alt,
	}
}

// PointInPolygon reports whether p lies inside poly or on its boundary.
func PointInPolygon(p Point, poly Polygon) bool {
	if len(poly) < 3 {
		return false
	}
	return planar.RingContains(poly.Ring(), p.Orb())
}

// PointInMultiPolygon reports whether p lies inside any member polygon,
// boundary included.
func PointInMultiPolygon(p Point, mp MultiPolygon) bool {
	for _, poly := range mp {
		if PointInPolygon(p, poly) {
			return true
		}
	}
	return false
}
