package motionplan

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/acsr/racecar/config"
	"github.com/acsr/racecar/kinematics"
	"github.com/acsr/racecar/utils"
)

// ModelConstructor builds the dynamics of a planner variant from its configuration.
// geometry is nil unless the caller supplied WithPathGeometry.
type ModelConstructor func(cfg *config.Config, geometry kinematics.PathGeometry) (kinematics.Model, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]ModelConstructor{}
)

func init() {
	RegisterModel(config.FrameCartesian, func(cfg *config.Config, _ kinematics.PathGeometry) (kinematics.Model, error) {
		return kinematics.NewBicycle(cfg.WheelBaseLength(), cfg.Longitudinal()), nil
	})
	RegisterModel(config.FrameCurvilinear, func(cfg *config.Config, geometry kinematics.PathGeometry) (kinematics.Model, error) {
		if geometry == nil {
			return nil, utils.NewConfigValidationFieldRequiredError("planner", "path geometry")
		}
		return kinematics.NewCurvilinearBicycle(cfg.WheelBaseLength(), cfg.Longitudinal(), geometry), nil
	})
}

// RegisterModel registers a planner variant under a frame name. It panics on duplicates.
func RegisterModel(frame string, constructor ModelConstructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[frame]; ok {
		panic(errors.Errorf("trying to register two planner variants for frame %q", frame))
	}
	registry[frame] = constructor
}

// RegisteredFrames returns the sorted names of all planner variants.
func RegisteredFrames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	frames := make([]string, 0, len(registry))
	for frame := range registry {
		frames = append(frames, frame)
	}
	sort.Strings(frames)
	return frames
}

// ModelFor builds the dynamics registered for the frame of cfg.
func ModelFor(cfg *config.Config, geometry kinematics.PathGeometry) (kinematics.Model, error) {
	registryMu.RLock()
	constructor, ok := registry[cfg.FrameName()]
	registryMu.RUnlock()
	if !ok {
		return nil, utils.NewConfigValidationError("planner",
			errors.Errorf("unknown frame %q, registered frames are %v", cfg.FrameName(), RegisteredFrames()))
	}
	return constructor(cfg, geometry)
}
