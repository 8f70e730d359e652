// Package obstacles is a static obstacle map used to check driven or planned paths.
package obstacles

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
)

// circleVertices is the number of vertices of the closed ring approximating a circle.
const circleVertices = 101

// Map is a set of polygonal obstacles.
type Map struct {
	shapes orb.MultiPolygon
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{}
}

// Len returns the number of shapes.
func (m *Map) Len() int {
	return len(m.shapes)
}

// AddRectangle adds the axis aligned rectangle with lower left corner (x, y).
func (m *Map) AddRectangle(x, y, width, height float64) error {
	if width < 0 || height < 0 {
		return errors.Errorf("rectangle at (%g, %g) has negative size %gx%g", x, y, width, height)
	}
	m.shapes = append(m.shapes, orb.Polygon{orb.Ring{
		{x, y}, {x + width, y}, {x + width, y + height}, {x, y + height}, {x, y},
	}})
	return nil
}

// AddCircle adds a circle centered at (x, y), approximated by a polygon.
func (m *Map) AddCircle(x, y, radius float64) error {
	if radius < 0 {
		return errors.Errorf("circle at (%g, %g) has negative radius %g", x, y, radius)
	}
	ring := make(orb.Ring, circleVertices)
	for i := range ring {
		angle := 2 * math.Pi / (circleVertices - 1) * float64(i)
		ring[i] = orb.Point{x + radius*math.Cos(angle), y + radius*math.Sin(angle)}
	}
	m.shapes = append(m.shapes, orb.Polygon{ring})
	return nil
}

// AddPolygon adds the polygon with the given vertices. The ring is closed if needed.
func (m *Map) AddPolygon(points ...orb.Point) error {
	if len(points) < 3 {
		return errors.Errorf("a polygon needs at least 3 points, got %d", len(points))
	}
	ring := append(orb.Ring{}, points...)
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	m.shapes = append(m.shapes, orb.Polygon{ring})
	return nil
}

// Valid reports whether (x, y) lies outside every obstacle. Points on an obstacle boundary are not
// valid.
func (m *Map) Valid(x, y float64) bool {
	return !planar.MultiPolygonContains(m.shapes, orb.Point{x, y})
}

// FirstCollision returns the index of the first point inside an obstacle, or -1.
func (m *Map) FirstCollision(xs, ys []float64) int {
	for i := range xs {
		if !m.Valid(xs[i], ys[i]) {
			return i
		}
	}
	return -1
}

// PlotData returns the outline of every shape as x and y coordinate slices.
func (m *Map) PlotData() (xs, ys [][]float64) {
	for _, shape := range m.shapes {
		var x, y []float64
		for _, ring := range shape {
			for _, pt := range ring {
				x = append(x, pt.X())
				y = append(y, pt.Y())
			}
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return xs, ys
}

// Area returns the total area covered by the shapes, counting overlaps twice.
func (m *Map) Area() float64 {
	return planar.Area(m.shapes)
}
