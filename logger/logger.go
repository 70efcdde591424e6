package logger

import (
	"time"
)

// Level orders log messages by severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"debug", "info", "warn", "error", "fatal"}

// String returns the level name.
func (l Level) String() string {
	if l < LevelDebug || l > LevelFatal {
		return "unknown"
	}
	return levelNames[l]
}

// ParseLevel returns the level of the given name, unknown names are treated as debug.
func ParseLevel(name string) Level {
	for i, n := range levelNames {
		if n == name {
			return Level(i)
		}
	}
	return LevelDebug
}

// Log is log marshaled and written in to the io.Writer of the helper implementing Logger abstraction.
type Log struct {
	ID        any       `json:"_id"        bson:"_id"        db:"id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
	Service   string    `json:"service"    bson:"service"    db:"service"`
	Level     string    `json:"level"      bson:"level"      db:"level"`
	Msg       string    `json:"msg"        bson:"msg"        db:"msg"`
}

// Logger provides logging methods for debug, info, warning, error and fatal.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)
}
