package globalpath

import (
	"encoding/json"
	"os"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// File is the on-disk description of a reference path.
type File struct {
	Waypoints [][2]float64 `json:"waypoints"`
	// Speed is the target speed along the path in m/s.
	Speed float64 `json:"speed"`
}

// ReadFile loads a path description from a JSON file.
func ReadFile(filename string) (*Path, float64, error) {
	//nolint:gosec
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "reading path file %q", filename)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, 0, errors.Wrapf(err, "parsing path file %q", filename)
	}
	if f.Speed < 0 {
		return nil, 0, errors.Errorf("path file %q: speed must not be negative", filename)
	}
	points := make([]r2.Point, 0, len(f.Waypoints))
	for _, w := range f.Waypoints {
		points = append(points, r2.Point{X: w[0], Y: w[1]})
	}
	path, err := NewPath(points)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "path file %q", filename)
	}
	return path, f.Speed, nil
}
