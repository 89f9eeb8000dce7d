package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/runvoy/keyforge/internal/constants"
)

// Initialize sets up the global slog logger based on the environment
func Initialize(env constants.Environment, level slog.Level) *slog.Logger {
	return InitializeWithWriter(os.Stderr, env, level)
}

// InitializeWithWriter is Initialize with an explicit destination.
func InitializeWithWriter(w io.Writer, env constants.Environment, level slog.Level) *slog.Logger {
	var handler slog.Handler

	if env == constants.Production {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:       level,
			TimeFormat:  time.TimeOnly,
			NoColor:     !isTerminal(w),
			ReplaceAttr: replaceAttrForDev,
		})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("logger initialized", "env", env, "level", level)

	return logger
}

// replaceAttrForDev flattens map attributes into sorted key=value pairs so
// they stay readable on a single coloured line.
func replaceAttrForDev(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	switch a.Value.Any().(type) {
	case map[string]string, map[string]any:
		return slog.String(a.Key, flattenMapAttr(a.Key, a.Value.Any()))
	default:
		return a
	}
}

func flattenMapAttr(prefix string, value any) string {
	pairs := make([]string, 0)
	var walk func(prefix string, value any)
	walk = func(prefix string, value any) {
		switch m := value.(type) {
		case map[string]string:
			for k, v := range m {
				pairs = append(pairs, joinKey(prefix, k)+"="+v)
			}
		case map[string]any:
			for k, v := range m {
				walk(joinKey(prefix, k), v)
			}
		default:
			if prefix == "" {
				pairs = append(pairs, fmt.Sprint(value))
				return
			}
			pairs = append(pairs, prefix+"="+fmt.Sprint(value))
		}
	}

	switch value.(type) {
	case map[string]string, map[string]any:
		walk(prefix, value)
	default:
		return fmt.Sprint(value)
	}

	sort.Strings(pairs)
	return strings.Join(pairs, " ")
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
