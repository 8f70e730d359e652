package obstacles

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"go.viam.com/test"
)

func TestRectangle(t *testing.T) {
	m := NewMap()
	test.That(t, m.AddRectangle(0, 0, 2, 1), test.ShouldBeNil)
	test.That(t, m.Valid(1, 0.5), test.ShouldBeFalse)
	test.That(t, m.Valid(3, 0.5), test.ShouldBeTrue)
	test.That(t, m.Valid(2, 0.5), test.ShouldBeFalse)
	test.That(t, m.Valid(0, 0), test.ShouldBeFalse)
	test.That(t, m.Area(), test.ShouldAlmostEqual, 2)

	test.That(t, m.AddRectangle(0, 0, -1, 1), test.ShouldNotBeNil)
	test.That(t, m.Len(), test.ShouldEqual, 1)
}

func TestCircle(t *testing.T) {
	m := NewMap()
	test.That(t, m.AddCircle(5, 5, 2), test.ShouldBeNil)
	test.That(t, m.Valid(5, 5), test.ShouldBeFalse)
	test.That(t, m.Valid(6.9, 5), test.ShouldBeFalse)
	test.That(t, m.Valid(7.1, 5), test.ShouldBeTrue)
	test.That(t, m.Area(), test.ShouldAlmostEqual, math.Pi*4, 0.05)

	xs, ys := m.PlotData()
	test.That(t, xs, test.ShouldHaveLength, 1)
	test.That(t, xs[0], test.ShouldHaveLength, circleVertices)
	test.That(t, xs[0][0], test.ShouldAlmostEqual, 7)
	test.That(t, ys[0][0], test.ShouldAlmostEqual, 5)
	test.That(t, ys[0][25], test.ShouldAlmostEqual, 7)
}

func TestPolygon(t *testing.T) {
	m := NewMap()
	test.That(t, m.AddPolygon(orb.Point{0, 0}, orb.Point{4, 0}, orb.Point{0, 4}), test.ShouldBeNil)
	test.That(t, m.Valid(1, 1), test.ShouldBeFalse)
	test.That(t, m.Valid(3, 3), test.ShouldBeTrue)
	test.That(t, m.AddPolygon(orb.Point{0, 0}, orb.Point{1, 1}), test.ShouldNotBeNil)

	test.That(t, m.FirstCollision([]float64{5, 4, 1, 0.5}, []float64{5, 3, 1, 0.5}), test.ShouldEqual, 2)
	test.That(t, m.FirstCollision([]float64{5}, []float64{5}), test.ShouldEqual, -1)
}

func TestBoundaryIsBlocked(t *testing.T) {
	m := NewMap()
	test.That(t, m.AddRectangle(10, 10, 2, 1), test.ShouldBeNil)
	test.That(t, m.AddPolygon(orb.Point{0, 0}, orb.Point{4, 0}, orb.Point{0, 4}), test.ShouldBeNil)

	for _, tc := range []struct {
		name  string
		x, y  float64
		valid bool
	}{
		{"rectangle corner", 10, 10, false},
		{"rectangle far corner", 12, 11, false},
		{"rectangle top edge", 11, 11, false},
		{"above rectangle", 11, 11.001, true},
		{"polygon vertex", 4, 0, false},
		{"polygon hypotenuse", 2, 2, false},
		{"beyond hypotenuse", 2.001, 2.001, true},
		{"below polygon", 2, -0.001, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			test.That(t, m.Valid(tc.x, tc.y), test.ShouldEqual, tc.valid)
		})
	}
}

func TestReadXML(t *testing.T) {
	doc := `<?xml version="1.0"?>
<map>
  <rectangle x="0" y="0" width="2" height="1"/>
  <tree x="1" y="1"/>
  <circle x="5" y="5" radius="1.5"/>
</map>`
	filename := filepath.Join(t.TempDir(), "map.xml")
	test.That(t, os.WriteFile(filename, []byte(doc), 0o600), test.ShouldBeNil)
	m, err := ReadXML(filename)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Len(), test.ShouldEqual, 2)
	test.That(t, m.Valid(1, 0.5), test.ShouldBeFalse)
	test.That(t, m.Valid(5, 6), test.ShouldBeFalse)
	test.That(t, m.Valid(3, 3), test.ShouldBeTrue)

	_, err = ParseXML([]byte(`<map><circle x="1" y="1" radius="-1"/></map>`))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ParseXML([]byte(`<map>`))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ReadXML(filepath.Join(t.TempDir(), "missing.xml"))
	test.That(t, err, test.ShouldNotBeNil)
}
