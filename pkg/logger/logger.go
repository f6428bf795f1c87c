package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

var currentLevel LogLevel = LevelInfo

// Init initializes the logger with the specified level from environment
func Init() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))
	switch levelStr {
	case "debug":
		currentLevel = LevelDebug
	case "info":
		currentLevel = LevelInfo
	case "warn":
		currentLevel = LevelWarn
	case "error":
		currentLevel = LevelError
	default:
		currentLevel = LevelInfo
	}
}

// Debug logs a debug message (only if LOG_LEVEL=debug)
func Debug(format string, v ...interface{}) {
	if currentLevel >= LevelDebug {
		log.Printf("[DEBUG] "+format, v...)
	}
}

// Info logs an info message (if LOG_LEVEL=info or debug)
func Info(format string, v ...interface{}) {
	if currentLevel >= LevelInfo {
		log.Printf("[INFO] "+format, v...)
	}
}

// Warn logs a warning message (if LOG_LEVEL=warn, info, or debug)
func Warn(format string, v ...interface{}) {
	if currentLevel >= LevelWarn {
		log.Printf("[WARN] "+format, v...)
	}
}

// Error logs an error message (always logged)
func Error(format string, v ...interface{}) {
	log.Printf("[ERROR] "+format, v...)
}

// Fields is a set of structured key/value pairs attached to a single log
// line, for call sites that want to log a handful of related values
// (client id, session id) without hand-formatting each one.
type Fields map[string]interface{}

// WithFields formats fields as `key=value` pairs appended to msg, then
// logs at Info level. It exists for call sites that accumulate context
// incrementally (a session id, then a client id) rather than building
// one full Printf format string up front.
func WithFields(msg string, fields Fields) {
	if currentLevel < LevelInfo {
		return
	}
	out := msg
	for k, v := range fields {
		out += fmt.Sprintf(" %s=%v", k, v)
	}
	log.Printf("[INFO] %s", out)
}
