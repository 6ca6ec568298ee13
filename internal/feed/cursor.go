package feed

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Cursor tracks the last delivered time_us, optionally persisted to a file
// so a restart resumes near where it left off. A slightly stale cursor is
// fine: replayed events are idempotent.
type Cursor struct {
	mu    sync.Mutex
	value int64
	path  string
}

// NewCursor creates a cursor persisted at path. An empty path keeps the
// cursor in memory only. A missing or unreadable file starts from zero
// (live tail).
func NewCursor(path string) *Cursor {
	c := &Cursor{path: path}
	if path == "" {
		return c
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return c
	}
	c.value = v
	return c
}

func (c *Cursor) Get() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set records a newer position. Older values are ignored so late updates
// cannot move the cursor backwards.
func (c *Cursor) Set(v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v > c.value {
		c.value = v
	}
}

// Save writes the current position to the cursor file, if one is configured.
func (c *Cursor) Save() error {
	c.mu.Lock()
	v, path := c.value, c.path
	c.mu.Unlock()

	if path == "" || v == 0 {
		return nil
	}
	if err := os.WriteFile(path, []byte(strconv.FormatInt(v, 10)), 0644); err != nil {
		return fmt.Errorf("writing cursor file: %w", err)
	}
	return nil
}
