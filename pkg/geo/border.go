package geo

import (
	"fmt"
)

// Array is a dense row-major numeric array as read from a gridded source.
type Array struct {
	Name  string
	Shape []int
	Data  []float64
}

// At returns the element at row i, column j of a 2-D array.
func (a Array) At(i, j int) float64 {
	return a.Data[i*a.Shape[1]+j]
}

// VariableError reports a coordinate variable missing from a source.
type VariableError struct {
	Variable string
	Source   string
}

func (e *VariableError) Error() string {
	return fmt.Sprintf("Can not find variable '%s' in file '%s'", e.Variable, e.Source)
}

// DimensionError reports a coordinate variable with the wrong number of dimensions
// or a shape that cannot describe a grid.
type DimensionError struct {
	Variable string
	Shape    []int
}

func (e *DimensionError) Error() string {
	if len(e.Shape) == 2 {
		return fmt.Sprintf("Invalid dimension for variable %s. Must be 2D with at least 2x2 points, got %dx%d.",
			e.Variable, e.Shape[0], e.Shape[1])
	}
	return fmt.Sprintf("Invalid dimension for variable %s. Must be 2D.", e.Variable)
}

// TraceGridBorder walks the perimeter of a structured n x m grid and returns
// its points as (lon, lat) at altitude 0. The walk follows row 0 left to right,
// column m-1 top to bottom, row n-1 right to left and column 0 bottom to top,
// emitting each corner once, for 2(n+m)-4 points in total. The ring is left
// open; use Polygon.Closed before storing it as a GeoJSON ring.
func TraceGridBorder(lat, lon Array) (Polygon, error) {
	for _, a := range []Array{lat, lon} {
		if len(a.Shape) != 2 {
			return nil, &DimensionError{Variable: a.Name, Shape: a.Shape}
		}
		if len(a.Data) != a.Shape[0]*a.Shape[1] {
			return nil, fmt.Errorf("variable %s holds %d values for shape %v", a.Name, len(a.Data), a.Shape)
		}
	}
	if lat.Shape[0] != lon.Shape[0] || lat.Shape[1] != lon.Shape[1] {
		return nil, fmt.Errorf("latitude shape %v does not match longitude shape %v", lat.Shape, lon.Shape)
	}

	n, m := lat.Shape[0], lat.Shape[1]
	if n < 2 || m < 2 {
		return nil, &DimensionError{Variable: lat.Name, Shape: lat.Shape}
	}

	ring := make(Polygon, 0, 2*(n+m)-4)
	at := func(i, j int) Point {
		return Point{Lon: lon.At(i, j), Lat: lat.At(i, j)}
	}

	// east edge: first row
	for j := 0; j < m; j++ {
		ring = append(ring, at(0, j))
	}
	// north edge: last column
	for i := 1; i < n; i++ {
		ring = append(ring, at(i, m-1))
	}
	// west edge: last row, reversed
	for j := m - 2; j >= 0; j-- {
		ring = append(ring, at(n-1, j))
	}
	// south edge: first column, reversed
	for i := n - 2; i >= 1; i-- {
		ring = append(ring, at(i, 0))
	}

	return ring, nil
}
