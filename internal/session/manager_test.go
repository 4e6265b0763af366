package session

import (
	"context"
	"testing"
	"time"

	"xhrsaver/internal/bridge"
	"xhrsaver/internal/bus"
	"xhrsaver/internal/logger"
	"xhrsaver/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(logger.NewNop())

	s := m.Create("s-1", model.SessionConfig{})
	assert.Equal(t, defaultEventCapacity, cap(s.Events))

	got, ok := m.Get("s-1")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Len(t, m.List(), 1)

	assert.True(t, m.Delete("s-1"))
	assert.False(t, m.Delete("s-1"))
	_, ok = m.Get("s-1")
	assert.False(t, ok)
	assert.Error(t, s.Context().Err())
	assert.ErrorIs(t, s.Window.Post(context.Background(), model.PageMessage{}), bus.ErrClosed)
}

func TestSession_Bridges(t *testing.T) {
	s := New("s-1", model.SessionConfig{EventCapacity: 4})
	t.Cleanup(s.Close)
	runtime := bus.NewRuntime(1)
	t.Cleanup(runtime.Close)

	b := bridge.New("tab-1", s.Window, runtime, logger.NewNop())
	assert.True(t, s.AddBridge("tab-1", b))
	assert.False(t, s.AddBridge("tab-1", b))
	select {
	case <-b.Ready():
	case <-time.After(time.Second):
		t.Fatal("bridge not started")
	}
	assert.Equal(t, []model.TargetID{"tab-1"}, s.Targets())

	assert.True(t, s.RemoveBridge("tab-1"))
	assert.False(t, s.RemoveBridge("tab-1"))
	assert.Empty(t, s.Targets())
}

func TestSession_CloseWithRunningBridges(t *testing.T) {
	s := New("s-1", model.SessionConfig{})
	runtime := bus.NewRuntime(1)
	t.Cleanup(runtime.Close)

	var bridges []*bridge.Bridge
	for _, id := range []model.TargetID{"tab-1", "tab-2"} {
		b := bridge.New(id, s.Window, runtime, logger.NewNop())
		require.True(t, s.AddBridge(id, b))
		bridges = append(bridges, b)
	}
	for _, b := range bridges {
		select {
		case <-b.Ready():
		case <-time.After(time.Second):
			t.Fatal("bridge not started")
		}
	}

	assert.NotPanics(t, s.Close)
	assert.Empty(t, s.Targets())
	assert.NotPanics(t, s.Close)
}
