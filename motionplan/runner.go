package motionplan

import (
	"context"

	"github.com/acsr/racecar/logging"
	"github.com/acsr/racecar/trajectory"
	"github.com/acsr/racecar/utils"
)

type planRequest struct {
	ctx    context.Context
	x0     []float64
	result chan planResult
}

type planResult struct {
	traj *trajectory.Trajectory
	err  error
}

// Runner owns a Planner on a single goroutine and serializes Plan calls from any number of callers.
// It implements Planner.
type Runner struct {
	planner  Planner
	requests chan planRequest
	workers  utils.StoppableWorkers
	logger   logging.Logger
}

// NewRunner starts the goroutine that owns planner.
func NewRunner(planner Planner, logger logging.Logger) *Runner {
	r := &Runner{
		planner:  planner,
		requests: make(chan planRequest),
		logger:   logger,
	}
	r.workers = utils.NewStoppableWorkers(r.loop)
	return r
}

func (r *Runner) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-r.requests:
			planCtx, cancel := context.WithCancel(req.ctx)
			stop := context.AfterFunc(ctx, cancel)
			traj, err := r.planner.Plan(planCtx, req.x0)
			stop()
			cancel()
			req.result <- planResult{traj: traj, err: err}
		}
	}
}

// Shape implements Planner.
func (r *Runner) Shape() trajectory.Shape {
	return r.planner.Shape()
}

// Plan queues a planning cycle and waits for it. Close or ctx ending aborts the wait.
func (r *Runner) Plan(ctx context.Context, x0 []float64) (*trajectory.Trajectory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := planRequest{ctx: ctx, x0: append([]float64{}, x0...), result: make(chan planResult, 1)}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.workers.Context().Done():
		return nil, errRunnerClosed
	case r.requests <- req:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-req.result:
		return res.traj, res.err
	}
}

// Close stops the owning goroutine after any cycle in progress is cancelled.
func (r *Runner) Close() {
	r.workers.Stop()
	r.logger.Debug("planner runner closed")
}
