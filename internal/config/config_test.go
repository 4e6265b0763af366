package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	c := NewConfig()
	assert.Equal(t, "xhrsaver.sqlite3", c.Sqlite.Dsn)
	assert.Equal(t, "xhrsaver_", c.Sqlite.Prefix)
	assert.Equal(t, []string{"console", "file"}, c.Log.Writer)
	assert.Equal(t, "downloads", c.Download.Dir)
	assert.Equal(t, "http://127.0.0.1:9222", c.Browser.DevToolsURL)
	assert.Equal(t, 3000, c.Browser.ProcessTimeoutMS)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(`
sqlite:
  dsn: /tmp/history.sqlite3
log:
  level: warn
  writer: [console]
download:
  dir: /data/downloads
`), 0o644)
	require.NoError(t, err)

	c, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/history.sqlite3", c.Sqlite.Dsn)
	assert.Equal(t, "xhrsaver_", c.Sqlite.Prefix)
	assert.Equal(t, "warn", c.Log.Level)
	assert.Equal(t, []string{"console"}, c.Log.Writer)
	assert.Equal(t, "/data/downloads", c.Download.Dir)
	assert.Equal(t, "http://127.0.0.1:9222", c.Browser.DevToolsURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: [unclosed"), 0o644))

	_, err := Load(context.Background(), path)
	require.Error(t, err)
}

func TestApplyEnv_Overrides(t *testing.T) {
	c := NewConfig()
	l := envconfig.MapLookuper(map[string]string{
		"XHRSAVER_DOWNLOAD_DIR":         "/srv/out",
		"XHRSAVER_BROWSER_DEVTOOLS_URL": "http://10.0.0.2:9222",
		"XHRSAVER_LOG_LEVEL":            "error",
	})

	require.NoError(t, ApplyEnv(context.Background(), c, l))
	assert.Equal(t, "/srv/out", c.Download.Dir)
	assert.Equal(t, "http://10.0.0.2:9222", c.Browser.DevToolsURL)
	assert.Equal(t, "error", c.Log.Level)
	assert.Equal(t, "xhrsaver.sqlite3", c.Sqlite.Dsn)
}
