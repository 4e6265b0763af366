package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "XHRSAVER_"

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Sqlite struct {
		Dsn    string `yaml:"dsn" env:"DSN,overwrite"`
		Prefix string `yaml:"prefix" env:"PREFIX,overwrite"`
	} `yaml:"sqlite" env:",prefix=SQLITE_"`

	Log struct {
		Level      string   `yaml:"level" env:"LEVEL,overwrite"`
		Writer     []string `yaml:"writer" env:"WRITER,overwrite"`
		File       string   `yaml:"file" env:"FILE,overwrite"`
		MaxSizeMB  int      `yaml:"maxSizeMB" env:"MAX_SIZE_MB,overwrite"`
		MaxBackups int      `yaml:"maxBackups" env:"MAX_BACKUPS,overwrite"`
		MaxAgeDays int      `yaml:"maxAgeDays" env:"MAX_AGE_DAYS,overwrite"`
	} `yaml:"log" env:",prefix=LOG_"`

	Download struct {
		Dir string `yaml:"dir" env:"DIR,overwrite"`
	} `yaml:"download" env:",prefix=DOWNLOAD_"`

	Browser struct {
		DevToolsURL      string `yaml:"devToolsURL" env:"DEVTOOLS_URL,overwrite"`
		ProcessTimeoutMS int    `yaml:"processTimeoutMS" env:"PROCESS_TIMEOUT_MS,overwrite"`
		EventCapacity    int    `yaml:"eventCapacity" env:"EVENT_CAPACITY,overwrite"`
	} `yaml:"browser" env:",prefix=BROWSER_"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{Version: "1.0.0"}
	c.Sqlite.Dsn = "xhrsaver.sqlite3"
	c.Sqlite.Prefix = "xhrsaver_"
	c.Log.Level = "debug"
	c.Log.Writer = []string{"console", "file"}
	c.Log.File = "logs/xhrsaver.log"
	c.Log.MaxSizeMB = 10
	c.Log.MaxBackups = 3
	c.Log.MaxAgeDays = 7
	c.Download.Dir = "downloads"
	c.Browser.DevToolsURL = "http://127.0.0.1:9222"
	c.Browser.ProcessTimeoutMS = 3000
	c.Browser.EventCapacity = 256
	return c
}

// Load 依次应用默认值、配置文件（可选）和环境变量
func Load(ctx context.Context, path string) (*Config, error) {
	c := NewConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("config file %s not found", path)
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ApplyEnv(ctx, c, envconfig.OsLookuper()); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv 使用环境变量覆盖配置
func ApplyEnv(ctx context.Context, c *Config, l envconfig.Lookuper) error {
	if err := envconfig.ProcessWith(ctx, c, envconfig.PrefixLookuper(EnvPrefix, l)); err != nil {
		return fmt.Errorf("process env config: %w", err)
	}
	return nil
}
