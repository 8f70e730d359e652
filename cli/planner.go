package cli

import (
	"encoding/json"
	"math"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/acsr/racecar/config"
	"github.com/acsr/racecar/globalpath"
	"github.com/acsr/racecar/kinematics"
	"github.com/acsr/racecar/logging"
	"github.com/acsr/racecar/motionplan"
)

// session is everything a command needs to run planning cycles.
type session struct {
	cfg     *config.Config
	path    *globalpath.Path
	model   kinematics.Model
	planner motionplan.Planner
	x0      []float64
	clock   clock.Clock
	logger  logging.Logger
}

// newLogger writes to the error writer of the app, leaving Writer to command output.
func newLogger(c *cli.Context) logging.Logger {
	logger := logging.NewBlankLogger("planner")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	if !c.Bool(flagDebug) {
		logger.SetLevel(logging.INFO)
	}
	return logger
}

func newSession(c *cli.Context) (*session, error) {
	logger := newLogger(c)
	cfg, err := config.ReadFile(c.Path(flagConfig))
	if err != nil {
		return nil, err
	}
	path, speed, err := globalpath.ReadFile(c.Path(flagPath))
	if err != nil {
		return nil, err
	}
	if c.IsSet(flagSpeed) {
		speed = c.Float64(flagSpeed)
	}

	clk := clock.New()
	frame := globalpath.Cartesian
	opts := []motionplan.Option{motionplan.WithClock(clk)}
	if cfg.FrameName() == config.FrameCurvilinear {
		frame = globalpath.Curvilinear
		opts = append(opts, motionplan.WithPathGeometry(path))
	}
	provider := globalpath.NewProvider(path, speed, cfg.WheelBaseLength(), frame)

	model, err := motionplan.ModelFor(cfg, path)
	if err != nil {
		return nil, err
	}
	planner, err := motionplan.NewPlanner(cfg, provider, logger, opts...)
	if err != nil {
		return nil, err
	}

	x0 := c.Float64Slice(flagState)
	if len(x0) == 0 {
		x0 = startState(path, speed, frame)
	}
	if len(x0) != kinematics.NX {
		return nil, errors.Errorf("--%s needs %d values, got %d", flagState, kinematics.NX, len(x0))
	}
	return &session{cfg: cfg, path: path, model: model, planner: planner, x0: x0, clock: clk, logger: logger}, nil
}

// startState places the vehicle on the first waypoint, aligned with the path and at target speed.
func startState(path *globalpath.Path, speed float64, frame globalpath.Frame) []float64 {
	heading := path.Heading(0)
	if frame == globalpath.Curvilinear {
		return []float64{0, 0, heading, speed}
	}
	start := path.Position(0)
	return []float64{start.X, start.Y, heading, speed}
}

// position returns the Cartesian position of a state in the session frame.
func (s *session) position(x []float64) r2.Point {
	if s.cfg.FrameName() == config.FrameCurvilinear {
		cart := s.path.ToCartesian(x)
		return r2.Point{X: cart[0], Y: cart[1]}
	}
	return r2.Point{X: x[kinematics.IndexX], Y: x[kinematics.IndexY]}
}

// trackingError is the distance of a state from the reference path.
func (s *session) trackingError(x []float64) float64 {
	if s.cfg.FrameName() == config.FrameCurvilinear {
		return math.Abs(x[kinematics.IndexLateral])
	}
	pos := s.position(x)
	return s.path.Position(s.path.Project(pos)).Sub(pos).Norm()
}

// PlanAction runs one planning cycle from the given state and prints the trajectory.
func PlanAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	traj, err := s.planner.Plan(c.Context, s.x0)
	if err != nil {
		return Errorf(c.App.ErrWriter, "%v", err)
	}
	if err := motionplan.CheckTrajectory(traj, s.x0, s.model, s.cfg, 1e-4); err != nil {
		warningf(c.App.ErrWriter, "planned trajectory does not satisfy its constraints: %v", err)
	}
	printf(c.App.Writer, "%s", traj)
	return nil
}

// SchemaAction prints the JSON schema of the configuration file.
func SchemaAction(c *cli.Context) error {
	data, err := json.MarshalIndent(config.Schema(), "", "  ")
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", data)
	return nil
}
