package service

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"xhrsaver/internal/download"
	"xhrsaver/internal/logger"
	"xhrsaver/internal/storage"
	"xhrsaver/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailsPath = "/atlas/v1/purchase-history/v2/details"

func newTestService(t *testing.T) (*svc, *download.Manager) {
	t.Helper()
	root := t.TempDir()
	db, err := storage.Open(filepath.Join(root, "history.sqlite3"), "test_", logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close(db) })

	dm, err := download.NewManager(filepath.Join(root, "Downloads"), storage.NewDownloadStore(db), logger.NewNop())
	require.NoError(t, err)

	s := New(logger.NewNop(), dm)
	t.Cleanup(s.Close)
	return s, dm
}

func nextEvent(t *testing.T, events <-chan model.Event, typ string) model.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case evt := <-events:
			if evt.Type == typ {
				return evt
			}
		case <-timeout:
			t.Fatalf("no %q event", typ)
		}
	}
}

func TestAttachClient_SavesOnceAndSkipsDuplicate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	t.Cleanup(srv.Close)

	s, dm := newTestService(t)
	id, err := s.StartSession(model.SessionConfig{})
	require.NoError(t, err)
	events, err := s.SubscribeEvents(id)
	require.NoError(t, err)

	client, err := s.AttachClient(id, "client-1", srv.Client())
	require.NoError(t, err)
	nextEvent(t, events, "attached")

	body := `{"divisionNumber":"1","storeNumber":"2","transactionDate":"2024-06-01","terminalNumber":"3","transactionId":"4"}`
	post := func() {
		resp, err := client.Post(srv.URL+detailsPath, "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		got, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"ok":true}`, string(got))
	}

	post()
	saved := nextEvent(t, events, "saved")
	assert.Equal(t, model.SaveStatusSuccess, saved.Status)
	assert.Equal(t, "gerbes/1~2~2024-06-01~3~4.json", saved.Filename)
	assert.NotEmpty(t, saved.DownloadID)

	content, err := os.ReadFile(filepath.Join(dm.Dir(), "gerbes", "1~2~2024-06-01~3~4.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(content))

	post()
	skipped := nextEvent(t, events, "saved")
	assert.Equal(t, model.SaveStatusSkipped, skipped.Status)

	entries, err := os.ReadDir(filepath.Join(dm.Dir(), "gerbes"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAttachClient_IgnoresOtherRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	t.Cleanup(srv.Close)

	s, dm := newTestService(t)
	id, err := s.StartSession(model.SessionConfig{})
	require.NoError(t, err)
	client, err := s.AttachClient(id, "client-1", srv.Client())
	require.NoError(t, err)

	resp, err := client.Get(srv.URL + detailsPath)
	require.NoError(t, err)
	_ = resp.Body.Close()
	resp, err = client.Post(srv.URL+"/other", "application/json", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	_ = resp.Body.Close()

	time.Sleep(50 * time.Millisecond)
	items, err := dm.Search(context.Background(), model.DownloadQuery{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSessionNotFound(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.SubscribeEvents("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, s.StopSession("missing"), ErrSessionNotFound)
	_, err = s.AttachClient("missing", "c", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAttachClient_DuplicateSource(t *testing.T) {
	s, _ := newTestService(t)
	id, err := s.StartSession(model.SessionConfig{})
	require.NoError(t, err)

	_, err = s.AttachClient(id, "client-1", nil)
	require.NoError(t, err)
	_, err = s.AttachClient(id, "client-1", nil)
	assert.ErrorIs(t, err, ErrBridgeExists)

	require.NoError(t, s.DetachTarget(id, "client-1"))
	require.NoError(t, s.StopSession(id))
}

func TestStopSession_WithAttachedClients(t *testing.T) {
	s, _ := newTestService(t)
	id, err := s.StartSession(model.SessionConfig{})
	require.NoError(t, err)
	_, err = s.AttachClient(id, "client-1", nil)
	require.NoError(t, err)
	_, err = s.AttachClient(id, "client-2", nil)
	require.NoError(t, err)

	require.NoError(t, s.StopSession(id))
	_, err = s.SubscribeEvents(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = s.StartSession(model.SessionConfig{})
	require.NoError(t, err)
	assert.NotPanics(t, s.Close)
}
