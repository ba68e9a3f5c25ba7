package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var once sync.Once

// Options controls how the global logger is configured.
type Options struct {
	Level  string // trace, debug, info, warn, error; defaults to info
	Pretty bool   // Human-readable console output instead of JSON
	Writer io.Writer
}

// Init configures the global zerolog logger. It is safe to call more than
// once; only the first call takes effect.
func Init(opts Options) {
	once.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339

		var w io.Writer = os.Stderr
		if opts.Writer != nil {
			w = opts.Writer
		}
		if opts.Pretty {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
		}

		log.Logger = zerolog.New(w).Level(parseLevel(opts.Level)).With().Timestamp().Logger()
	})
}

// Get returns the configured global logger, initializing with defaults if
// Init was never called.
func Get() *zerolog.Logger {
	Init(Options{})
	return &log.Logger
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "info", "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}
