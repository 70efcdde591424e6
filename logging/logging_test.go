package logging

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bartossh/Multisigner/logger"
)

type chanWriter struct {
	c chan []byte
}

func (w chanWriter) Write(p []byte) (int, error) {
	w.c <- append([]byte(nil), p...)
	return len(p), nil
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func receive(t *testing.T, c <-chan []byte) logger.Log {
	t.Helper()
	select {
	case raw := <-c:
		var l logger.Log
		assert.Nil(t, json.Unmarshal(raw, &l))
		return l
	case <-time.After(time.Second):
		t.Fatal("log was not written")
	}
	return logger.Log{}
}

func TestHelperWritesLevels(t *testing.T) {
	w := chanWriter{c: make(chan []byte, 4)}
	h := New(Config{Service: "ledgerd", Level: "debug"}, nil, nil, w)

	h.Debug("debug message")
	l := receive(t, w.c)
	assert.Equal(t, "debug", l.Level)
	assert.Equal(t, "ledgerd", l.Service)
	assert.Equal(t, "debug message", l.Msg)

	h.Error("error message")
	l = receive(t, w.c)
	assert.Equal(t, "error", l.Level)
}

func TestHelperFiltersBelowLevel(t *testing.T) {
	w := chanWriter{c: make(chan []byte, 4)}
	h := New(Config{Level: "warn"}, nil, nil, w)

	h.Debug("skipped")
	h.Info("skipped")
	h.Warn("written")
	l := receive(t, w.c)
	assert.Equal(t, "written", l.Msg)
	assert.Len(t, w.c, 0)
}

func TestHelperFatalCallsCallback(t *testing.T) {
	w := chanWriter{c: make(chan []byte, 1)}
	var fatal error
	h := New(Config{}, nil, func(err error) { fatal = err }, w)

	h.Fatal("cannot start")
	l := receive(t, w.c)
	assert.Equal(t, "fatal", l.Level)
	assert.ErrorContains(t, fatal, "cannot start")
}

func TestHelperReportsWriterError(t *testing.T) {
	errs := make(chan error, 1)
	h := New(Config{}, func(err error) { errs <- err }, nil, failWriter{})

	h.Info("message")
	select {
	case err := <-errs:
		assert.ErrorContains(t, err, "disk full")
	case <-time.After(time.Second):
		t.Fatal("error callback was not called")
	}
}
