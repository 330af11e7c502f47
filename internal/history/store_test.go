package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rbright/speechcraft/internal/feedback"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAssignsIDAndTimestamp(t *testing.T) {
	store := openTestStore(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return fixed }

	saved, err := store.Record(context.Background(), Attempt{
		ScenarioID:     "1",
		ScenarioTitle:  "The Coffee Shop Dilemma",
		Transcript:     "we should switch to paper bags",
		Feedback:       feedback.Result{Score: 82, Suggestions: []string{"Add data."}},
		ElapsedSeconds: 10,
	})
	require.NoError(t, err)
	require.Len(t, saved.ID, 36)
	require.Equal(t, fixed, saved.CreatedAt)

	list, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, saved.ID, list[0].ID)
	require.Equal(t, "we should switch to paper bags", list[0].Transcript)
	require.Equal(t, 82.0, list[0].Feedback.Score)
	require.Equal(t, []string{"Add data."}, list[0].Feedback.Suggestions)
	require.Equal(t, 10, list[0].ElapsedSeconds)
	require.True(t, fixed.Equal(list[0].CreatedAt))
}

func TestListNewestFirstWithLimit(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := store.Record(context.Background(), Attempt{
			ScenarioID:    "2",
			ScenarioTitle: "A Childhood Wonder",
			Feedback:      feedback.Result{Score: float64(60 + i)},
			CreatedAt:     base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	list, err := store.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, 62.0, list[0].Feedback.Score)
	require.Equal(t, 61.0, list[1].Feedback.Score)

	all, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestOpenReusesExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	first, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	_, err = first.Record(context.Background(), Attempt{ScenarioID: "3", ScenarioTitle: "Funding the Future"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	defer second.Close()

	list, err := second.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
}
