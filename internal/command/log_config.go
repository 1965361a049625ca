package command

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joeycumines/canine/internal/config"
	"github.com/joeycumines/canine/internal/logfile"
)

// logConfig is the resolved logging setup.
type logConfig struct {
	level slog.Level
	// explicit is set when the level came from a flag rather than config.
	explicit bool
	// logFile is nil when logging goes to stderr.
	logFile io.WriteCloser
}

// resolveLogConfig resolves logging from flags, then config (including its
// environment overrides), then defaults. The caller closes logFile.
func resolveLogConfig(flagPath, flagLevel string, cfg *config.Config) (logConfig, error) {
	schema := config.DefaultSchema()
	var lc logConfig

	levelStr := flagLevel
	if levelStr != "" {
		lc.explicit = true
	} else {
		levelStr = schema.Resolve(cfg, config.KeyLogLevel)
	}
	level, err := parseLogLevel(levelStr)
	if err != nil {
		return lc, err
	}
	lc.level = level

	path := flagPath
	if path == "" {
		path = schema.Resolve(cfg, config.KeyLogFile)
	}
	if path != "" {
		w, err := logfile.Open(path,
			logfile.WithMaxSizeMB(schema.ResolveInt(cfg, config.KeyLogMaxSizeMB)),
			logfile.WithMaxBackups(schema.ResolveInt(cfg, config.KeyLogMaxFiles)),
		)
		if err != nil {
			return lc, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		lc.logFile = w
	}
	return lc, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", s)
	}
}

// handler builds the slog handler: JSON lines into the log file when one is
// configured, otherwise text on stderr, where anything below warn is dropped
// unless a level was asked for explicitly.
func (lc logConfig) handler(stderr io.Writer) slog.Handler {
	if lc.logFile != nil {
		return slog.NewJSONHandler(lc.logFile, &slog.HandlerOptions{Level: lc.level})
	}
	level := lc.level
	if !lc.explicit {
		level = max(level, slog.LevelWarn)
	}
	return slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
}

// SetupLogging installs the default slog logger. The returned function
// closes the log file, if any.
func SetupLogging(flagPath, flagLevel string, cfg *config.Config, stderr io.Writer) (func() error, error) {
	lc, err := resolveLogConfig(flagPath, flagLevel, cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(lc.handler(stderr)))
	return func() error {
		if lc.logFile == nil {
			return nil
		}
		return lc.logFile.Close()
	}, nil
}
