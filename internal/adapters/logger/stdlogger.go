package logger

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
)

// LogLevel orders log severities for threshold filtering.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
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

// ParseLevel maps a configuration string to a LogLevel, defaulting to Info
// for anything unrecognised.
func ParseLevel(levelStr string) LogLevel {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// StdLogger implements ports.Logger on the standard log package, writing
// line-oriented records to stderr. Fields are rendered in key order so that
// repeated events produce identical lines.
type StdLogger struct {
	logger *log.Logger
	level  LogLevel
}

// NewStdLogger creates a logger that drops records below level.
func NewStdLogger(level LogLevel) *StdLogger {
	return &StdLogger{
		logger: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds),
		level:  level,
	}
}

func (l *StdLogger) log(level LogLevel, msg string, err error, fields ...map[string]interface{}) {
	if level < l.level {
		return
	}

	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(level.String())
	sb.WriteString("] ")
	sb.WriteString(msg)

	if err != nil {
		fmt.Fprintf(&sb, " | error: %v", err)
	}

	if len(fields) > 0 && len(fields[0]) > 0 {
		keys := make([]string, 0, len(fields[0]))
		for k := range fields[0] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&sb, " %s=%v", k, fields[0][k])
		}
	}

	l.logger.Println(sb.String())
}

func (l *StdLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, nil, fields...)
}

func (l *StdLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, nil, fields...)
}

func (l *StdLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, nil, fields...)
}

func (l *StdLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, err, fields...)
}
