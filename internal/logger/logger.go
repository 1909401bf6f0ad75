// Package logger configures the global zerolog logger.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/s0up4200/deletarr-go/internal/config"
)

const bufferTimeFormat = "2006-01-02 15:04:05"

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
}

// ParseLevel maps a config level to zerolog, falling back to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Setup points the global logger at stdout, the optional rotating log file
// and the ring buffer. debug forces debug level regardless of cfg.
func Setup(cfg config.Logging, ring *RingBuffer, debug bool) {
	level := ParseLevel(cfg.Level)
	if debug && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339},
	}

	if cfg.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
		})
	}

	if ring != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        ring,
			NoColor:    true,
			TimeFormat: bufferTimeFormat,
		})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()

	log.Debug().
		Str("level", level.String()).
		Str("file", cfg.File).
		Msg("logger initialized")
}
