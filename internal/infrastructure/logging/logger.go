package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/strayware/pawlink/internal/infrastructure/config"
)

// Logger is the daemon's structured logger. It embeds *slog.Logger, so the
// slog call surface (Debug/Info/Warn/Error with alternating key-value args)
// is available directly. That shape is also what every pawlink package
// accepts as its Logger interface, so a *Logger can be handed straight to
// the bridge, the transports and the infrastructure clients.
type Logger struct {
	*slog.Logger
}

// New builds a logger from the logging section of config.yaml.
func New(cfg config.LoggingConfig, version string) *Logger {
	return build(cfg, version, destination(cfg.Output))
}

// Default is the bootstrap logger used before config.yaml has been read:
// JSON to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}

// With returns a child logger carrying extra default attributes, typically
// a component tag per subsystem.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// build assembles the handler chain. Every record carries service and
// version attributes so logs aggregated from several daemons stay
// attributable.
func build(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "pawlinkd"),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler)}
}

func destination(output string) io.Writer {
	if strings.EqualFold(output, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

// parseLevel maps a config level string to slog. Unrecognised values fall
// back to info rather than failing startup.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
