package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// ZerologAdapter wraps zerolog.Logger to implement the Logger interface.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter builds a zerolog backed Logger. Format "text" selects the
// human readable console writer.
func NewZerologAdapter(cfg Config) *ZerologAdapter {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Format == "text" {
		out = zerolog.ConsoleWriter{Out: out, NoColor: true}
	}
	zl := zerolog.New(out).With().Timestamp().Logger().Level(zerologLevel(cfg.Level))
	return &ZerologAdapter{logger: zl}
}

// NewZerologFrom adapts an existing zerolog.Logger.
func NewZerologFrom(zl zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: zl}
}

func zerologLevel(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug logs a debug message.
func (z *ZerologAdapter) Debug(msg string, args ...any) { z.logger.Debug().Fields(args).Msg(msg) }

// Info logs an informational message.
func (z *ZerologAdapter) Info(msg string, args ...any) { z.logger.Info().Fields(args).Msg(msg) }

// Warn logs a warning message.
func (z *ZerologAdapter) Warn(msg string, args ...any) { z.logger.Warn().Fields(args).Msg(msg) }

// Error logs an error message.
func (z *ZerologAdapter) Error(msg string, args ...any) { z.logger.Error().Fields(args).Msg(msg) }

// With returns a child adapter carrying args as context fields.
func (z *ZerologAdapter) With(args ...any) Logger {
	return &ZerologAdapter{logger: z.logger.With().Fields(args).Logger()}
}
