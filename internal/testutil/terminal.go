package testutil

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Terminal drives an interactive CLI loop in-process: it writes lines to
// the loop's input, captures its output, and waits expect-style for
// strings to appear.
type Terminal struct {
	stdin  io.WriteCloser
	stdout io.ReadCloser

	mu     sync.Mutex
	output strings.Builder

	cancel chan struct{}
	wg     sync.WaitGroup
}

// NewTerminal creates a terminal over the loop's input writer and output
// reader and starts capturing output.
func NewTerminal(stdin io.WriteCloser, stdout io.ReadCloser) (*Terminal, error) {
	if stdin == nil {
		return nil, errors.New("stdin cannot be nil")
	}
	if stdout == nil {
		return nil, errors.New("stdout cannot be nil")
	}

	t := &Terminal{
		stdin:  stdin,
		stdout: stdout,
		cancel: make(chan struct{}),
	}
	t.wg.Add(1)
	go t.capture()
	return t, nil
}

func (t *Terminal) capture() {
	defer t.wg.Done()

	buf := make([]byte, 1024)
	for {
		n, err := t.stdout.Read(buf)
		if n > 0 {
			t.mu.Lock()
			t.output.Write(buf[:n])
			t.mu.Unlock()
		}
		if err != nil {
			return
		}
		select {
		case <-t.cancel:
			return
		default:
		}
	}
}

// SendLine sends a line of input (with newline).
func (t *Terminal) SendLine(input string) error {
	if _, err := fmt.Fprintf(t.stdin, "%s\n", input); err != nil {
		return fmt.Errorf("sending line: %w", err)
	}
	return nil
}

// ExpectString waits until the captured output contains expected.
func (t *Terminal) ExpectString(expected string, timeout time.Duration) error {
	deadline := time.After(timeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return fmt.Errorf("timeout waiting for %q\nGot output:\n%s", expected, t.Output())
		case <-ticker.C:
			if strings.Contains(t.Output(), expected) {
				return nil
			}
		case <-t.cancel:
			return errors.New("terminal closed")
		}
	}
}

// Output returns the output captured so far.
func (t *Terminal) Output() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.output.String()
}

// Close closes both ends and waits for the capture goroutine.
func (t *Terminal) Close() error {
	close(t.cancel)

	var errs []error
	if err := t.stdin.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing stdin: %w", err))
	}
	if err := t.stdout.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing stdout: %w", err))
	}

	t.wg.Wait()
	return errors.Join(errs...)
}
