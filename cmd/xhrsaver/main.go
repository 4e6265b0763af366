package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var VERSION = "0.1.0"

func main() {
	app := cli.NewApp()
	app.Name = "xhrsaver"
	app.Version = VERSION
	app.Usage = "Save purchase history details captured from a browser session"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML config file",
		},
	}
	app.Commands = []*cli.Command{
		watchCmd(),
		historyCmd(),
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
