package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bartossh/Multisigner/logger"
)

// Config configures the Helper.
type Config struct {
	Service string `yaml:"service"`
	Level   string `yaml:"level"`
}

// Helper helps with writing logs to io.Writers.
// Helper implements logger.Logger interface.
// Writing is done concurrently with out blocking the current thread.
type Helper struct {
	service     string
	level       logger.Level
	callOnErr   func(error)
	callOnFatal func(error)
	writers     []io.Writer
}

// New creates new Helper. callOnFatal is called after the fatal log was written, it may be nil.
func New(cfg Config, callOnErr, callOnFatal func(error), writers ...io.Writer) Helper {
	if callOnErr == nil {
		callOnErr = func(error) {}
	}
	return Helper{
		service:     cfg.Service,
		level:       logger.ParseLevel(cfg.Level),
		callOnErr:   callOnErr,
		callOnFatal: callOnFatal,
		writers:     writers,
	}
}

// Debug writes debug log.
func (h Helper) Debug(msg string) {
	h.write(logger.LevelDebug, msg)
}

// Info writes info log.
func (h Helper) Info(msg string) {
	h.write(logger.LevelInfo, msg)
}

// Warn writes warning log.
func (h Helper) Warn(msg string) {
	h.write(logger.LevelWarn, msg)
}

// Error writes error log.
func (h Helper) Error(msg string) {
	h.write(logger.LevelError, msg)
}

// Fatal writes fatal log synchronously and then calls the fatal callback.
func (h Helper) Fatal(msg string) {
	h.writeAll(h.entry(logger.LevelFatal, msg))
	if h.callOnFatal != nil {
		h.callOnFatal(fmt.Errorf("fatal: %s", msg))
	}
}

func (h Helper) entry(level logger.Level, msg string) *logger.Log {
	return &logger.Log{
		ID:        primitive.NewObjectID(),
		CreatedAt: time.Now(),
		Service:   h.service,
		Level:     level.String(),
		Msg:       msg,
	}
}

func (h Helper) write(level logger.Level, msg string) {
	if level < h.level {
		return
	}
	l := h.entry(level, msg)
	go h.writeAll(l)
}

func (h Helper) writeAll(l *logger.Log) {
	raw, err := json.Marshal(l)
	if err != nil {
		h.callOnErr(err)
		return
	}
	for _, w := range h.writers {
		if _, err := w.Write(raw); err != nil {
			h.callOnErr(err)
		}
	}
}
