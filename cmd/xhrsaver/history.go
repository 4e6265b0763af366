package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"xhrsaver/internal/storage"
	"xhrsaver/pkg/model"

	"github.com/urfave/cli/v2"
)

func historyCmd() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List recorded downloads",
		ArgsUsage: "[term...]",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of entries",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "state",
				Usage: "Filter by state: in_progress, interrupted, complete",
			},
		}, commonFlags...),
		Action: runHistory,
	}
}

func runHistory(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	l := newLogger(cfg)
	db, err := openHistory(cfg, l)
	if err != nil {
		return err
	}
	defer storage.Close(db)

	items, err := storage.NewDownloadStore(db).Search(c.Context, model.DownloadQuery{
		Query: c.Args().Slice(),
		State: model.DownloadState(c.String("state")),
		Limit: c.Int("limit"),
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATE\tBYTES\tFILE")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", it.StartTime.Format(time.DateTime), it.State, it.BytesReceived, it.Filename)
	}
	return w.Flush()
}
