package worker

import (
	"fmt"
	"log/slog"
	"strings"
)

// Level is the worker log level. Unlike slog it carries the two
// severities above ERROR that the status projection exposes.
type Level int

const (
	// LevelDebug logs everything
	LevelDebug Level = iota
	// LevelInfo logs informational messages and above
	LevelInfo
	// LevelWarn logs warnings and above
	LevelWarn
	// LevelError logs errors and above
	LevelError
	// LevelCritical logs critical conditions and above
	LevelCritical
	// LevelFatal logs only fatal conditions
	LevelFatal
)

// Custom slog levels for the severities slog does not define.
const (
	slogLevelCritical = slog.Level(12)
	slogLevelFatal    = slog.Level(16)
)

// String returns the canonical name of the level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	case LevelFatal:
		return "FATAL"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// Slog maps the level onto the slog level scale
func (l Level) Slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	case LevelCritical:
		return slogLevelCritical
	case LevelFatal:
		return slogLevelFatal
	default:
		return slog.LevelDebug
	}
}

// levelSynonyms maps every accepted spelling to its level. Lookup happens
// once at the boundary; nothing re-parses level strings ad hoc.
var levelSynonyms = map[string]Level{
	"D":           LevelDebug,
	"DBG":         LevelDebug,
	"DEBUG":       LevelDebug,
	"I":           LevelInfo,
	"INF":         LevelInfo,
	"INFO":        LevelInfo,
	"INFORMATION": LevelInfo,
	"W":           LevelWarn,
	"WRN":         LevelWarn,
	"WARN":        LevelWarn,
	"WARNING":     LevelWarn,
	"E":           LevelError,
	"ERR":         LevelError,
	"ERROR":       LevelError,
	"C":           LevelCritical,
	"CRT":         LevelCritical,
	"CRIT":        LevelCritical,
	"CRITICAL":    LevelCritical,
	"F":           LevelFatal,
	"FTL":         LevelFatal,
	"FAT":         LevelFatal,
	"FATAL":       LevelFatal,
}

// ParseLevel resolves a level name or synonym, case-insensitively.
func ParseLevel(s string) (Level, error) {
	if level, ok := levelSynonyms[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return level, nil
	}
	return LevelDebug, fmt.Errorf("unknown log level %q", s)
}
