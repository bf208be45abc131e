// Package logger provides the leveled logging utility used throughout the
// batch engine. It wraps the standard `log` package and filters messages by
// the globally configured level.
package logger

import (
	"log"
	"strings"
)

// Level represents a logging level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// current is the active global level. Messages below it are discarded.
var current = LevelInfo

// SetLevel sets the global log level from its string form
// ("DEBUG", "INFO", "WARN", "ERROR", "FATAL", case-insensitive).
// Unknown values fall back to INFO.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		current = LevelDebug
	case "INFO":
		current = LevelInfo
	case "WARN":
		current = LevelWarn
	case "ERROR":
		current = LevelError
	case "FATAL":
		current = LevelFatal
	default:
		log.Printf("[WARN] unknown log level %q, defaulting to INFO", level)
		current = LevelInfo
	}
}

// Debugf logs a DEBUG-level message.
func Debugf(format string, v ...interface{}) {
	if current <= LevelDebug {
		log.Printf("[DEBUG] "+format, v...)
	}
}

// Infof logs an INFO-level message.
func Infof(format string, v ...interface{}) {
	if current <= LevelInfo {
		log.Printf("[INFO] "+format, v...)
	}
}

// Warnf logs a WARN-level message.
func Warnf(format string, v ...interface{}) {
	if current <= LevelWarn {
		log.Printf("[WARN] "+format, v...)
	}
}

// Errorf logs an ERROR-level message.
func Errorf(format string, v ...interface{}) {
	if current <= LevelError {
		log.Printf("[ERROR] "+format, v...)
	}
}

// Fatalf logs a FATAL-level message and terminates the process.
func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}
