// Package cli contains the planner command line tool.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Flags.
	flagDebug     = "debug"
	flagConfig    = "config"
	flagPath      = "path"
	flagState     = "state"
	flagSpeed     = "speed"
	flagSteps     = "steps"
	flagObstacles = "obstacles"
	flagDatabase  = "db"
	flagPlot      = "plot"
)

var commonFlags = []cli.Flag{
	&cli.PathFlag{
		Name:     flagConfig,
		Aliases:  []string{"c"},
		Required: true,
		Usage:    "load the planner configuration from `FILE`",
	},
	&cli.PathFlag{
		Name:     flagPath,
		Aliases:  []string{"p"},
		Required: true,
		Usage:    "load the reference path from `FILE`",
	},
	&cli.Float64SliceFlag{
		Name:  flagState,
		Usage: "initial state in the configured frame; defaults to the start of the path",
	},
	&cli.Float64Flag{
		Name:  flagSpeed,
		Usage: "target speed along the path, overriding the path file",
	},
}

var app = &cli.App{
	Name:            "planner",
	Usage:           "plan and simulate receding horizon trajectories for a kinematic bicycle",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:   "plan",
			Usage:  "run one planning cycle and print the trajectory",
			Flags:  commonFlags,
			Action: PlanAction,
		},
		{
			Name:  "simulate",
			Usage: "drive along the path in closed loop, applying the first planned control each cycle",
			Flags: append(append([]cli.Flag{}, commonFlags...),
				&cli.IntFlag{
					Name:  flagSteps,
					Value: 100,
					Usage: "maximum number of planning cycles",
				},
				&cli.PathFlag{
					Name:  flagObstacles,
					Usage: "check the driven path against the obstacle map in `FILE`",
				},
				&cli.PathFlag{
					Name:  flagDatabase,
					Usage: "save the driven trajectory to the SQLite database `FILE`",
				},
				&cli.PathFlag{
					Name:  flagPlot,
					Usage: "write a PNG plot of the driven path to `FILE`",
				},
			),
			Action: SimulateAction,
		},
		{
			Name:   "schema",
			Usage:  "print the JSON schema of the planner configuration",
			Action: SchemaAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
