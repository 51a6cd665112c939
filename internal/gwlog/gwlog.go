// Package gwlog provides level-gated logging for the gateway, extending
// the teacher's single DebugEnabled/Debug() pair into a full level
// hierarchy with a RUST_LOG-style environment filter and per-session
// tagging, per spec.md §6/§7 ("log events tagged with session
// identifier and stage").
package gwlog

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level orders logging severity, least to most severe.
type Level int32

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name (case-insensitive) to a Level.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, true
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

var current atomic.Int32

func init() {
	SetLevel(LevelInfo)
	if spec := os.Getenv("RUST_LOG"); spec != "" {
		if lvl, ok := ParseFilter(spec); ok {
			SetLevel(lvl)
		}
	}
}

// SetLevel sets the process-wide minimum level that will be logged.
func SetLevel(l Level) { current.Store(int32(l)) }

// CurrentLevel returns the process-wide minimum level.
func CurrentLevel() Level { return Level(current.Load()) }

// ParseFilter parses a RUST_LOG-style filter string, e.g. "debug" or
// "tn3270gw=info,internal/negotiate=trace". Per-module targets are
// accepted syntactically but only their level is honored: the result is
// the most permissive (lowest) level named anywhere in the string,
// since this logger does not do per-package routing.
func ParseFilter(spec string) (Level, bool) {
	best := LevelInfo
	found := false
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		levelPart := part
		if eq := strings.IndexByte(part, '='); eq >= 0 {
			levelPart = part[eq+1:]
		}
		if lvl, ok := ParseLevel(levelPart); ok {
			if !found || lvl < best {
				best = lvl
				found = true
			}
		}
	}
	return best, found
}

// Logger tags every line it emits with an optional session id and
// processing stage, per spec.md §7's "log events tagged with session
// identifier and stage" requirement.
type Logger struct {
	sessionID string
	stage     string
}

// New returns an untagged Logger.
func New() *Logger { return &Logger{} }

// With returns a copy of l tagged with sessionID and stage. Either may
// be empty to leave that tag off.
func (l *Logger) With(sessionID, stage string) *Logger {
	return &Logger{sessionID: sessionID, stage: stage}
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level < CurrentLevel() {
		return
	}
	var b strings.Builder
	b.WriteString(level.String())
	if l.sessionID != "" {
		fmt.Fprintf(&b, " session=%s", l.sessionID)
	}
	if l.stage != "" {
		fmt.Fprintf(&b, " stage=%s", l.stage)
	}
	b.WriteString(": ")
	fmt.Fprintf(&b, format, args...)
	log.Print(b.String())
}

func (l *Logger) Tracef(format string, args ...any) { l.log(LevelTrace, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }

var std = New()

// Debugf logs at debug level on the untagged default logger.
func Debugf(format string, args ...any) { std.Debugf(format, args...) }

// Infof logs at info level on the untagged default logger.
func Infof(format string, args ...any) { std.Infof(format, args...) }

// Warnf logs at warn level on the untagged default logger.
func Warnf(format string, args ...any) { std.Warnf(format, args...) }

// Errorf logs at error level on the untagged default logger.
func Errorf(format string, args ...any) { std.Errorf(format, args...) }
