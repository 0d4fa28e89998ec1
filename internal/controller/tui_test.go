package controller

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "gorts.dev/pkg/gorts/internal/model"
)

// syncBuffer guards the buffer shared with the Bubble Tea renderer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func TestTUI_PrintsReportAroundSpinner(t *testing.T) {
	out := &syncBuffer{}
	ui := NewTUI(out)
	ctx := context.Background()

	require.NoError(t, ui.Start(ctx, WithRunMode()))
	ui.DisplayModule(ctx, "/src/app", "example.com/app", 1)
	require.NoError(t, ui.DisplayReport(ctx, sampleReport()))
	ui.Wait(ctx)
	ui.Close(ctx)

	text := out.String()
	assert.Contains(t, text, "Module example.com/app (/src/app), 1 package(s)")
	assert.Contains(t, text, "example.com/app.TestY")
	assert.Contains(t, text, "Restored 1 file(s)")
}

func TestTUI_CloseWithoutStart(t *testing.T) {
	out := &syncBuffer{}
	ui := NewTUI(out)

	ui.Close(context.Background())
	ui.DisplayRestored(context.Background(), []m.Path{"a.go", "b.go"})

	assert.Equal(t, "Restored 2 file(s)\n", out.String())
}

func TestTUI_StartCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, NewTUI(&syncBuffer{}).Start(ctx), context.Canceled)
}

func TestProgressModel(t *testing.T) {
	pm := newProgressModel(ModeSelect.String())

	assert.NotNil(t, pm.Init())
	assert.Contains(t, pm.View(), "Selecting tests...")

	updated, cmd := pm.Update(spinner.TickMsg{ID: pm.spinner.ID()})
	assert.NotNil(t, cmd)
	assert.Contains(t, updated.View(), "Selecting tests")

	updated, cmd = updated.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.NotNil(t, cmd)
	assert.Empty(t, updated.View())
}
