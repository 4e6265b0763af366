package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 键值对风格的日志接口
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	Err(err error, msg string, kv ...any)
	With(kv ...any) Logger
}

// Options 日志输出配置
type Options struct {
	Level      string   // debug/info/warn/error
	Writer     []string // console, file
	File       string   // 日志文件路径
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type zlog struct {
	l zerolog.Logger
}

// New 根据配置创建 zerolog 实现的日志
func New(opts Options) Logger {
	var writers []io.Writer
	for _, w := range opts.Writer {
		switch strings.ToLower(w) {
		case "console":
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
		case "file":
			if opts.File == "" {
				continue
			}
			writers = append(writers, &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    opts.MaxSizeMB,
				MaxBackups: opts.MaxBackups,
				MaxAge:     opts.MaxAgeDays,
				Compress:   true,
			})
		}
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}
	return NewWithWriter(zerolog.MultiLevelWriter(writers...), opts.Level)
}

// NewWithWriter 输出到指定 writer（JSON 格式）
func NewWithWriter(w io.Writer, level string) Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return &zlog{l: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

// NewNop 丢弃所有输出
func NewNop() Logger {
	return &zlog{l: zerolog.Nop()}
}

func (z *zlog) Debug(msg string, kv ...any) { z.l.Debug().Fields(kv).Msg(msg) }

func (z *zlog) Info(msg string, kv ...any) { z.l.Info().Fields(kv).Msg(msg) }

func (z *zlog) Warn(msg string, kv ...any) { z.l.Warn().Fields(kv).Msg(msg) }

func (z *zlog) Error(msg string, kv ...any) { z.l.Error().Fields(kv).Msg(msg) }

func (z *zlog) Err(err error, msg string, kv ...any) {
	z.l.Error().Err(err).Fields(kv).Msg(msg)
}

// With 返回附带固定字段的子日志，如 component
func (z *zlog) With(kv ...any) Logger {
	return &zlog{l: z.l.With().Fields(kv).Logger()}
}
