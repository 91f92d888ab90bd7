package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when the context ends while waiting for input.
var ErrInputCancelled = errors.New("input canceled")

type scannedLine struct {
	err  error
	text string
}

// LineReader reads trimmed lines from a terminal without blocking past
// context cancellation. A single goroutine scans the input on first use and
// keeps going until EOF, so a line typed after a canceled read is not lost.
type LineReader struct {
	src   io.Reader
	lines chan scannedLine
	once  sync.Once
}

// NewLineReader wraps src.
func NewLineReader(src io.Reader) *LineReader {
	return &LineReader{src: src, lines: make(chan scannedLine)}
}

func (r *LineReader) start() {
	go func() {
		scanner := bufio.NewScanner(r.src)
		for scanner.Scan() {
			r.lines <- scannedLine{text: scanner.Text()}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		for {
			r.lines <- scannedLine{err: err}
		}
	}()
}

// ReadLine returns the next line without surrounding whitespace. A final line
// without a newline is returned normally; io.EOF follows it.
func (r *LineReader) ReadLine(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ErrInputCancelled
	}
	r.once.Do(r.start)

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case line := <-r.lines:
		return strings.TrimSpace(line.text), line.err
	}
}
