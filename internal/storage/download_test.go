package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	ilog "xhrsaver/internal/logger"
	"xhrsaver/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DownloadStore {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.sqlite3"), "test_", ilog.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return NewDownloadStore(db)
}

func seed(t *testing.T, s *DownloadStore, id, filename string, state model.DownloadState, start time.Time) {
	t.Helper()
	require.NoError(t, s.Create(context.Background(), &DownloadRecord{
		ID:        id,
		URL:       "data:application/json;base64,",
		Filename:  filename,
		Mime:      "application/json",
		State:     string(state),
		StartTime: start,
	}))
}

func TestDownloadStore_SearchByTermAndState(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	seed(t, s, "1", "/home/user/Downloads/gerbes/12~34~2024-01-01~5~999.json", model.DownloadComplete, now.Add(-2*time.Minute))
	seed(t, s, "2", "/home/user/Downloads/other/12~34~2024-01-01~5~999.json", model.DownloadComplete, now.Add(-time.Minute))
	seed(t, s, "3", "/home/user/Downloads/gerbes/12~34~2024-01-01~5~999.json", model.DownloadInterrupted, now)
	seed(t, s, "4", "/home/user/Downloads/gerbes/purchase-history-details.json", model.DownloadComplete, now)

	items, err := s.Search(context.Background(), model.DownloadQuery{
		Query: []string{"12~34~2024-01-01~5~999.json"},
		State: model.DownloadComplete,
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, model.DownloadID("2"), items[0].ID)
	assert.Equal(t, model.DownloadID("1"), items[1].ID)
}

func TestDownloadStore_SearchCaseInsensitiveAndExclude(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	seed(t, s, "a", "/dl/gerbes/Report.JSON", model.DownloadComplete, now)
	seed(t, s, "b", "/dl/tmp/report.json", model.DownloadComplete, now)

	items, err := s.Search(context.Background(), model.DownloadQuery{Query: []string{"report.json"}})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = s.Search(context.Background(), model.DownloadQuery{Query: []string{"report.json", "-tmp"}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.DownloadID("a"), items[0].ID)
}

func TestDownloadStore_SearchTreatsLikeWildcardsLiterally(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "a", "/dl/a_b.json", model.DownloadComplete, time.Now())
	seed(t, s, "b", "/dl/axb.json", model.DownloadComplete, time.Now())

	items, err := s.Search(context.Background(), model.DownloadQuery{Query: []string{"a_b"}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.DownloadID("a"), items[0].ID)
}

func TestDownloadStore_MarkCompleteAndInterrupted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s, "ok", "/dl/ok.json", model.DownloadInProgress, time.Now())
	seed(t, s, "bad", "/dl/bad.json", model.DownloadInProgress, time.Now())

	require.NoError(t, s.MarkComplete(ctx, "ok", 11, time.Now()))
	require.NoError(t, s.MarkInterrupted(ctx, "bad", "disk full", time.Now()))

	items, err := s.Search(ctx, model.DownloadQuery{State: model.DownloadComplete})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(11), items[0].BytesReceived)
	assert.NotNil(t, items[0].EndTime)

	items, err = s.Search(ctx, model.DownloadQuery{State: model.DownloadInterrupted})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "disk full", items[0].Error)
}

func TestDownloadStore_ListLimit(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		seed(t, s, id, "/dl/"+id+".json", model.DownloadComplete, now.Add(time.Duration(i)*time.Second))
	}

	items, err := s.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, model.DownloadID("c"), items[0].ID)
}
