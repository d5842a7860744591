package clipboard

import (
	"context"
	"testing"

	"github.com/atotto/clipboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryWriteText(t *testing.T) {
	m := &Memory{}
	require.NoError(t, m.WriteText(context.Background(), "Hello\nWorld"))
	assert.Equal(t, "Hello\nWorld", m.Text())
	assert.Equal(t, 1, m.Writes())
}

func TestMemoryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &Memory{}
	assert.ErrorIs(t, m.WriteText(ctx, "x"), context.Canceled)
	assert.Zero(t, m.Writes())
}

func TestNew(t *testing.T) {
	w, err := New("memory")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, w)

	w, err = New("system")
	require.NoError(t, err)
	assert.IsType(t, System{}, w)

	_, err = New("x11")
	assert.Error(t, err)
}

func TestSystemUsableNeedsDisplay(t *testing.T) {
	none := func(string) string { return "" }
	wayland := func(k string) string {
		if k == "WAYLAND_DISPLAY" {
			return "wayland-0"
		}
		return ""
	}

	assert.False(t, systemUsable("linux", none))
	assert.False(t, systemUsable("freebsd", none))
	assert.Equal(t, !clipboard.Unsupported, systemUsable("linux", wayland))
	assert.Equal(t, !clipboard.Unsupported, systemUsable("darwin", none))
}
