package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xhrsaver/internal/download"
	"xhrsaver/internal/storage"
	"xhrsaver/pkg/api"
	"xhrsaver/pkg/model"

	"github.com/urfave/cli/v2"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Attach to a browser tab and save matching responses",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "devtools",
				Aliases: []string{"d"},
				Usage:   "DevTools HTTP endpoint, e.g. http://127.0.0.1:9222",
			},
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Target ID to attach, defaults to the first page",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Download directory",
			},
		}, commonFlags...),
		Action: runWatch,
	}
}

func runWatch(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("devtools") {
		cfg.Browser.DevToolsURL = c.String("devtools")
	}
	if c.IsSet("dir") {
		cfg.Download.Dir = c.String("dir")
	}

	l := newLogger(cfg)
	db, err := openHistory(cfg, l)
	if err != nil {
		return err
	}
	defer storage.Close(db)

	downloads, err := download.NewManager(cfg.Download.Dir, storage.NewDownloadStore(db), l)
	if err != nil {
		return err
	}

	svc := api.NewService(l, downloads)
	defer svc.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	id, err := svc.StartSession(model.SessionConfig{
		DevToolsURL:      cfg.Browser.DevToolsURL,
		ProcessTimeoutMS: cfg.Browser.ProcessTimeoutMS,
		EventCapacity:    cfg.Browser.EventCapacity,
	})
	if err != nil {
		return err
	}
	events, err := svc.SubscribeEvents(id)
	if err != nil {
		return err
	}

	attachCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	target, err := svc.AttachTarget(attachCtx, id, model.TargetID(c.String("target")))
	if err != nil {
		return fmt.Errorf("attach target: %w", err)
	}
	if err := svc.EnableInterception(attachCtx, id); err != nil {
		return fmt.Errorf("enable interception: %w", err)
	}
	l.Info("开始监听", "target", string(target), "dir", downloads.Dir())

	for {
		select {
		case <-ctx.Done():
			l.Info("收到退出信号，停止监听")
			return nil
		case evt := <-events:
			printEvent(evt)
		}
	}
}

func printEvent(evt model.Event) {
	ts := time.UnixMilli(evt.Timestamp).Format(time.TimeOnly)
	switch evt.Type {
	case "saved":
		switch evt.Status {
		case model.SaveStatusFailed:
			fmt.Printf("%s %-8s %s: %s\n", ts, evt.Status, evt.Filename, evt.Error)
		default:
			fmt.Printf("%s %-8s %s\n", ts, evt.Status, evt.Filename)
		}
	case "failed", "detached":
		fmt.Printf("%s %-8s %s %s\n", ts, evt.Type, evt.Target, evt.Error)
	default:
		fmt.Printf("%s %-8s %s %s\n", ts, evt.Type, evt.Target, evt.URL)
	}
}
