package main

import (
	"fmt"

	"xhrsaver/internal/config"
	"xhrsaver/internal/logger"
	"xhrsaver/internal/storage"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

// loadConfig 读取配置文件和环境变量，命令行参数优先
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.Context, c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("db") {
		cfg.Sqlite.Dsn = c.String("db")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logger.Logger {
	return logger.New(logger.Options{
		Level:      cfg.Log.Level,
		Writer:     cfg.Log.Writer,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
}

func openHistory(cfg *config.Config, l logger.Logger) (*gorm.DB, error) {
	db, err := storage.Open(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, l)
	if err != nil {
		return nil, fmt.Errorf("open download history %s: %w", cfg.Sqlite.Dsn, err)
	}
	return db, nil
}

var commonFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "db",
		Usage: "Download history SQLite file",
	},
	&cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn, error",
	},
}
