package stdoutwriter

import (
	"io"
	"os"
)

// Logger writes every log entry as a separate line to the standard output.
type Logger struct {
	out io.Writer
}

// New creates Logger writing to os.Stdout.
func New() Logger {
	return Logger{out: os.Stdout}
}

func (l Logger) Write(p []byte) (n int, err error) {
	out := l.out
	if out == nil {
		out = os.Stdout
	}
	line := make([]byte, 0, len(p)+1)
	line = append(append(line, p...), '\n')
	if _, err := out.Write(line); err != nil {
		return 0, err
	}
	return len(p), nil
}
