package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"xhrsaver/internal/bus"
	"xhrsaver/internal/logger"
	"xhrsaver/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []model.RelayMessage
}

func (r *recorder) handle(_ context.Context, msg model.RelayMessage) *model.SaveResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return &model.SaveResponse{Status: model.SaveStatusSuccess, Filename: "gerbes/x.json"}
}

func (r *recorder) received() []model.RelayMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.RelayMessage(nil), r.msgs...)
}

func startBridge(t *testing.T) (*Bridge, *bus.Window, *recorder, chan model.SaveResponse) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	window := bus.NewWindow()
	runtime := bus.NewRuntime(8)
	t.Cleanup(window.Close)
	t.Cleanup(runtime.Close)

	rec := &recorder{}
	go func() { _ = runtime.Serve(ctx, rec.handle) }()

	results := make(chan model.SaveResponse, 4)
	b := New("tab-1", window, runtime, logger.NewNop())
	b.OnResult(func(_ model.RelayMessage, resp model.SaveResponse) { results <- resp })
	go func() { _ = b.Run(ctx) }()

	select {
	case <-b.Ready():
	case <-time.After(time.Second):
		t.Fatal("bridge not listening")
	}
	return b, window, rec, results
}

func TestInject_InstallsFixedTarget(t *testing.T) {
	b := New("tab-1", bus.NewWindow(), bus.NewRuntime(1), logger.NewNop())
	ic, err := b.Inject()
	require.NoError(t, err)

	assert.Equal(t, Config(), ic.Config())
	assert.True(t, ic.Matches("post", "https://www.example.com"+TargetURL+"?x=1"))
	assert.False(t, ic.Matches("GET", "https://www.example.com"+TargetURL))
}

func TestRun_ForwardsOwnPageMessages(t *testing.T) {
	_, window, rec, results := startBridge(t)
	post := `{"storeNumber":"2"}`

	require.NoError(t, window.Post(context.Background(), model.PageMessage{
		Type:     model.PageMessageType,
		Source:   "tab-1",
		Data:     `{"ok":true}`,
		PostBody: &post,
	}))

	select {
	case resp := <-results:
		assert.Equal(t, model.SaveStatusSuccess, resp.Status)
	case <-time.After(time.Second):
		t.Fatal("no save result")
	}
	msgs := rec.received()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.ActionSaveJSON, msgs[0].Action)
	assert.Equal(t, `{"ok":true}`, msgs[0].Data)
	require.NotNil(t, msgs[0].PostBody)
	assert.Equal(t, post, *msgs[0].PostBody)
}

func TestRun_IgnoresForeignAndUnknownMessages(t *testing.T) {
	_, window, rec, _ := startBridge(t)
	ctx := context.Background()

	require.NoError(t, window.Post(ctx, model.PageMessage{Type: model.PageMessageType, Source: "tab-2", Data: `{}`}))
	require.NoError(t, window.Post(ctx, model.PageMessage{Type: "SOMETHING_ELSE", Source: "tab-1", Data: `{}`}))
	require.NoError(t, window.Post(ctx, model.PageMessage{Type: model.PageMessageType, Source: "tab-1", Data: `{"last":1}`}))

	require.Eventually(t, func() bool { return len(rec.received()) == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	msgs := rec.received()
	require.Len(t, msgs, 1)
	assert.Equal(t, `{"last":1}`, msgs[0].Data)
	assert.Nil(t, msgs[0].PostBody)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	b := New("tab-1", bus.NewWindow(), bus.NewRuntime(1), logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
