package globalpath

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"github.com/acsr/racecar/kinematics"
	"github.com/acsr/racecar/trajectory"
)

func straightPath(t *testing.T) *Path {
	t.Helper()
	path, err := NewPath([]r2.Point{{X: 0}, {X: 5}, {X: 10}, {X: 20}})
	test.That(t, err, test.ShouldBeNil)
	return path
}

func arcPath(t *testing.T, radius float64) *Path {
	t.Helper()
	var points []r2.Point
	for i := 0; i <= 36; i++ {
		a := math.Pi * float64(i) / 36
		points = append(points, r2.Point{X: radius * math.Sin(a), Y: radius * (1 - math.Cos(a))})
	}
	path, err := NewPath(points)
	test.That(t, err, test.ShouldBeNil)
	return path
}

func TestNewPathErrors(t *testing.T) {
	_, err := NewPath([]r2.Point{{X: 1}})
	test.That(t, err, test.ShouldBeError, errTooFewWaypoints)
	_, err = NewPath([]r2.Point{{X: 1}, {X: 1}, {X: 2}})
	test.That(t, err, test.ShouldWrap, errRepeatedPoint)
}

func TestStraightPath(t *testing.T) {
	path := straightPath(t)
	test.That(t, path.Length(), test.ShouldAlmostEqual, 20, 1e-12)

	pos := path.Position(7)
	test.That(t, pos.X, test.ShouldAlmostEqual, 7, 1e-9)
	test.That(t, pos.Y, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, path.Heading(7), test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, path.Curvature(7), test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, path.Position(50).X, test.ShouldAlmostEqual, 20, 1e-9)

	test.That(t, path.Project(r2.Point{X: 7, Y: 3}), test.ShouldAlmostEqual, 7, 1e-6)
	test.That(t, path.Project(r2.Point{X: -4, Y: 1}), test.ShouldAlmostEqual, 0, 1e-6)

	frenet := path.ToFrenet([]float64{7, 3, 0.2, 5})
	test.That(t, frenet[0], test.ShouldAlmostEqual, 7, 1e-6)
	test.That(t, frenet[1], test.ShouldAlmostEqual, 3, 1e-6)
	test.That(t, frenet[2], test.ShouldEqual, 0.2)
	test.That(t, frenet[3], test.ShouldEqual, 5.)

	back := path.ToCartesian(frenet)
	test.That(t, back[0], test.ShouldAlmostEqual, 7, 1e-6)
	test.That(t, back[1], test.ShouldAlmostEqual, 3, 1e-6)
}

func TestArcPathCurvature(t *testing.T) {
	path := arcPath(t, 10)
	mid := path.Length() / 2
	test.That(t, path.Curvature(mid), test.ShouldAlmostEqual, 0.1, 5e-3)
	test.That(t, path.Heading(mid), test.ShouldAlmostEqual, math.Pi/2, 1e-2)

	// the arc curves left, so a point outside it has negative offset
	frenet := path.ToFrenet([]float64{11, 10, 0, 0})
	test.That(t, frenet[1], test.ShouldBeLessThan, 0)
}

func TestProviderReference(t *testing.T) {
	path := straightPath(t)
	const horizon, dt = 10, 0.1

	t.Run("cartesian", func(t *testing.T) {
		provider := NewProvider(path, 5, 2, Cartesian)
		ref, err := provider.Reference([]float64{2, 0.5, 0, 3}, horizon, dt)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ref.Validate(trajectory.Shape{NX: 4, NU: 2, Horizon: horizon}), test.ShouldBeNil)
		for k := 0; k <= horizon; k++ {
			test.That(t, ref.X.At(kinematics.IndexX, k), test.ShouldAlmostEqual, 2+0.5*float64(k), 1e-5)
			test.That(t, ref.X.At(kinematics.IndexY, k), test.ShouldAlmostEqual, 0, 1e-9)
			test.That(t, ref.X.At(kinematics.IndexSpeed, k), test.ShouldEqual, 5.)
		}
		test.That(t, ref.U.At(kinematics.IndexSteering, 0), test.ShouldAlmostEqual, 0, 1e-6)
		test.That(t, ref.U.At(kinematics.IndexThrottle, 0), test.ShouldEqual, 0.)
	})

	t.Run("curvilinear parks at the end", func(t *testing.T) {
		provider := NewProvider(path, 5, 2, Curvilinear)
		ref, err := provider.Reference([]float64{19, 0.2, 0, 5}, horizon, dt)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ref.X.At(kinematics.IndexProgress, 0), test.ShouldEqual, 19.)
		test.That(t, ref.X.At(kinematics.IndexLateral, 0), test.ShouldEqual, 0.)
		test.That(t, ref.X.At(kinematics.IndexProgress, horizon), test.ShouldEqual, 20.)
		test.That(t, ref.X.At(kinematics.IndexSpeed, horizon), test.ShouldEqual, 0.)
		test.That(t, ref.X.At(kinematics.IndexSpeed, 1), test.ShouldEqual, 5.)
	})

	t.Run("headings follow the state across turns", func(t *testing.T) {
		provider := NewProvider(path, 5, 2, Cartesian)
		ref, err := provider.Reference([]float64{2, 0.5, 4 * math.Pi, 3}, horizon, dt)
		test.That(t, err, test.ShouldBeNil)
		for k := 0; k <= horizon; k++ {
			test.That(t, ref.X.At(kinematics.IndexHeading, k), test.ShouldAlmostEqual, 4*math.Pi, 1e-6)
		}

		ref, err = provider.Reference([]float64{2, 0.5, -0.1, 3}, horizon, dt)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ref.X.At(kinematics.IndexHeading, 0), test.ShouldAlmostEqual, 0, 1e-6)
	})

	t.Run("bad state", func(t *testing.T) {
		provider := NewProvider(path, 5, 2, Cartesian)
		_, err := provider.Reference([]float64{2, 0.5}, horizon, dt)
		test.That(t, trajectory.IsShapeMismatch(err), test.ShouldBeTrue)
	})
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "path.json")
	test.That(t, os.WriteFile(good, []byte(`{"waypoints": [[0, 0], [10, 0], [20, 5]], "speed": 4}`), 0o600), test.ShouldBeNil)
	path, speed, err := ReadFile(good)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, speed, test.ShouldEqual, 4.)
	test.That(t, path.Waypoints(), test.ShouldHaveLength, 3)

	bad := filepath.Join(dir, "bad.json")
	test.That(t, os.WriteFile(bad, []byte(`{"waypoints": [[0, 0]]}`), 0o600), test.ShouldBeNil)
	_, _, err = ReadFile(bad)
	test.That(t, err, test.ShouldWrap, errTooFewWaypoints)

	_, _, err = ReadFile(filepath.Join(dir, "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}
