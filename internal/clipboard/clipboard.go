// Package clipboard provides write-only text clipboards.
package clipboard

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/atotto/clipboard"
)

// Writer writes text to a clipboard.
type Writer interface {
	WriteText(ctx context.Context, text string) error
}

// System writes to the host clipboard (xclip/xsel/wl-copy, pbcopy, or the
// Windows API, depending on platform).
type System struct{}

func (System) WriteText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard: no clipboard utility available on this host")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	return nil
}

// SystemUsable reports whether System can reach a clipboard on this host.
func SystemUsable() bool {
	return systemUsable(runtime.GOOS, os.Getenv)
}

// systemUsable requires a display on X11 and Wayland hosts; xclip and
// wl-copy fail without one.
func systemUsable(goos string, getenv func(string) string) bool {
	if clipboard.Unsupported {
		return false
	}
	switch goos {
	case "darwin", "windows":
		return true
	}
	return getenv("DISPLAY") != "" || getenv("WAYLAND_DISPLAY") != ""
}

// Memory keeps the last written text. It is used by the web UI when the
// server is not on the user's machine, and by tests.
type Memory struct {
	mu     sync.Mutex
	text   string
	writes int
}

func (m *Memory) WriteText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.text = text
	m.writes++
	m.mu.Unlock()
	return nil
}

// Text returns the last written text.
func (m *Memory) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// Writes returns the number of successful writes.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// New returns the writer named by kind ("system" or "memory").
func New(kind string) (Writer, error) {
	switch kind {
	case "system":
		return System{}, nil
	case "memory":
		return &Memory{}, nil
	default:
		return nil, fmt.Errorf("clipboard: unknown kind %q", kind)
	}
}
