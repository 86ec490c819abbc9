package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaakya-labs/anuvadam/internal/engine"
	"github.com/vaakya-labs/anuvadam/internal/jobs"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "anuvadam.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_RecordAndListRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordRun(ctx, jobs.RunRecord{
		JobID:      "job-a",
		Engine:     "google-standard",
		Source:     "en",
		Target:     "te",
		Segments:   12,
		State:      jobs.StateCompleted,
		Quality:    engine.QualityFull,
		DurationMS: 340,
	}))
	require.NoError(t, store.RecordRun(ctx, jobs.RunRecord{
		JobID:    "job-a",
		Engine:   "gemini-flash",
		Source:   "en",
		Target:   "te",
		Segments: 12,
		State:    jobs.StateError,
		Error:    "credentials rejected",
	}))
	require.NoError(t, store.RecordRun(ctx, jobs.RunRecord{
		JobID:    "job-b",
		Engine:   "google-standard",
		Source:   "en",
		Target:   "te",
		Segments: 1,
		State:    jobs.StateCompleted,
		Quality:  engine.QualityDegraded,
	}))

	runs, err := store.ListRuns(ctx, "job-a")
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first.
	assert.Equal(t, "gemini-flash", runs[0].Engine)
	assert.Equal(t, jobs.StateError, runs[0].State)
	assert.Equal(t, "credentials rejected", runs[0].Error)
	assert.Equal(t, "google-standard", runs[1].Engine)
	assert.Equal(t, engine.QualityFull, runs[1].Quality)
	assert.Equal(t, int64(340), runs[1].DurationMS)

	runs, err = store.ListRuns(ctx, "job-c")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSQLiteStore_Feedback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.SaveFeedback(ctx, FeedbackEntry{
		JobID:         "job-a",
		Engine:        "gemini-flash",
		SourceText:    "District Collector",
		EngineText:    "జిల్లా సేకరించేవాడు",
		CorrectedText: "జిల్లా కలెక్టర్",
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	entries, err := store.ListFeedback(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "జిల్లా కలెక్టర్", entries[0].CorrectedText)
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestSQLiteStore_FeedbackValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SaveFeedback(ctx, FeedbackEntry{CorrectedText: "fixed"})
	require.Error(t, err)
	_, err = store.SaveFeedback(ctx, FeedbackEntry{SourceText: "original"})
	require.Error(t, err)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anuvadam.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.RecordRun(context.Background(), jobs.RunRecord{
		JobID: "job-a", Engine: "indictrans2", Source: "en", Target: "te",
		Segments: 3, State: jobs.StateCompleted, Quality: engine.QualityFull,
	}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	runs, err := reopened.ListRuns(context.Background(), "job-a")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "indictrans2", runs[0].Engine)
}

func TestSQLiteStore_EmptyPathRejected(t *testing.T) {
	_, err := NewSQLiteStore("   ")
	require.Error(t, err)
}
