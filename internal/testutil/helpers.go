package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
)

// ErrTest is a generic test error.
var ErrTest = errors.New("test error")

// TempFile creates a temporary file with content.
func TempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ResultCollector captures callback results on a channel.
type ResultCollector struct {
	ch chan core.Result
}

// NewResultCollector creates a collector with room for n results.
func NewResultCollector(n int) *ResultCollector {
	if n <= 0 {
		n = 1
	}
	return &ResultCollector{ch: make(chan core.Result, n)}
}

// Callback returns the callback to hand to a store operation.
func (c *ResultCollector) Callback() core.Callback {
	return func(r core.Result) {
		c.ch <- r
	}
}

// Wait returns the next result or fails the test after timeout.
func (c *ResultCollector) Wait(t *testing.T, timeout time.Duration) core.Result {
	t.Helper()
	select {
	case r := <-c.ch:
		return r
	case <-time.After(timeout):
		t.Fatalf("no result within %s", timeout)
		return core.Result{}
	}
}

// AssertNoMore fails if another result arrives within d.
func (c *ResultCollector) AssertNoMore(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case r := <-c.ch:
		t.Fatalf("unexpected extra result: %+v", r)
	case <-time.After(d):
	}
}
