// Package main is the planner command itself.
package main

import (
	"log"
	"os"

	"github.com/acsr/racecar/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
