// Package transform implements the built-in line transforms.
//
// Every transform returns an independently owned string and passes the
// terminator through untouched. All of them are byte-oriented; none is
// UTF-8 aware.
package transform

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/itayaharoni2/analyzer/stage"
)

// TypewriterPause is the delay between consecutive typewriter bytes.
const TypewriterPause = 100 * time.Millisecond

// Logger writes "[logger] <line>\n" to w and returns a copy of the line.
// The write goes out immediately; w is expected to be unbuffered
// (os.Stdout in the analyzer binary).
func Logger(w io.Writer) stage.Transform {
	return func(line string) (string, error) {
		if line == stage.Terminator {
			return line, nil
		}
		if _, err := fmt.Fprintf(w, "[logger] %s\n", line); err != nil {
			return "", fmt.Errorf("logger: %w", err)
		}
		return strings.Clone(line), nil
	}
}

// Uppercaser uppercases ASCII letters; all other bytes pass through.
func Uppercaser() stage.Transform {
	return func(line string) (string, error) {
		if line == stage.Terminator {
			return line, nil
		}
		b := []byte(line)
		for i, c := range b {
			if 'a' <= c && c <= 'z' {
				b[i] = c - 'a' + 'A'
			}
		}
		return string(b), nil
	}
}

// Rotator right-rotates the line by one byte: the last byte wraps to the
// front. Lines of length 0 or 1 are returned as copies.
func Rotator() stage.Transform {
	return func(line string) (string, error) {
		if line == stage.Terminator {
			return line, nil
		}
		n := len(line)
		if n <= 1 {
			return strings.Clone(line), nil
		}
		return line[n-1:] + line[:n-1], nil
	}
}

// Flipper reverses the bytes of the line.
func Flipper() stage.Transform {
	return func(line string) (string, error) {
		if line == stage.Terminator {
			return line, nil
		}
		b := []byte(line)
		for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
			b[i], b[j] = b[j], b[i]
		}
		return string(b), nil
	}
}

// Expander inserts a single space between adjacent bytes, turning a line
// of length n into one of length 2n-1. Empty lines stay empty.
func Expander() stage.Transform {
	return func(line string) (string, error) {
		if line == stage.Terminator {
			return line, nil
		}
		if len(line) == 0 {
			return "", nil
		}
		var sb strings.Builder
		sb.Grow(2*len(line) - 1)
		for i := 0; i < len(line); i++ {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteByte(line[i])
		}
		return sb.String(), nil
	}
}

// Typewriter writes "[typewriter] " then the line byte by byte with a
// 100ms pause between bytes, then a newline, and returns a copy of the
// line. Empty lines emit nothing. The pacing limiter is per stage, so the
// sleep is isolated to the typewriter's own worker.
func Typewriter(w io.Writer) stage.Transform {
	limiter := rate.NewLimiter(rate.Every(TypewriterPause), 1)
	return func(line string) (string, error) {
		if line == stage.Terminator {
			return line, nil
		}
		if len(line) == 0 {
			return "", nil
		}
		if _, err := io.WriteString(w, "[typewriter] "); err != nil {
			return "", fmt.Errorf("typewriter: %w", err)
		}
		for i := 0; i < len(line); i++ {
			if err := limiter.Wait(context.Background()); err != nil {
				return "", fmt.Errorf("typewriter: %w", err)
			}
			if _, err := w.Write([]byte{line[i]}); err != nil {
				return "", fmt.Errorf("typewriter: %w", err)
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return "", fmt.Errorf("typewriter: %w", err)
		}
		return strings.Clone(line), nil
	}
}
