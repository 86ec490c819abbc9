package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedJob(id string, updatedAt time.Time) *Job {
	return &Job{
		ID:       id,
		Segments: []string{"text"},
		Runs: map[string]*EngineRun{
			"alpha": {Engine: "alpha", State: StateCompleted, Texts: []string{"done"}},
		},
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
}

func TestStore_SnapshotsAreIsolated(t *testing.T) {
	store := NewStore()
	store.Put(completedJob("job-1", time.Now()))

	first, ok := store.Get("job-1")
	require.True(t, ok)
	first.Segments[0] = "mutated"
	first.Runs["alpha"].Texts[0] = "mutated"
	first.Runs["alpha"].State = StateError

	second, ok := store.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, "text", second.Segments[0])
	assert.Equal(t, "done", second.Runs["alpha"].Texts[0])
	assert.Equal(t, StateCompleted, second.Runs["alpha"].State)
}

func TestStore_PruneKeepsActiveAndFreshJobs(t *testing.T) {
	store := NewStore()
	store.Put(completedJob("stale", time.Now().Add(-2*time.Hour)))
	store.Put(completedJob("fresh", time.Now()))

	active := completedJob("active", time.Now().Add(-2*time.Hour))
	active.Runs["alpha"].State = StateTranslating
	store.Put(active)

	pruned := store.Prune(time.Hour)
	assert.Equal(t, []string{"stale"}, pruned)

	_, ok := store.Get("stale")
	assert.False(t, ok)
	_, ok = store.Get("fresh")
	assert.True(t, ok)
	_, ok = store.Get("active")
	assert.True(t, ok)
}

func TestStore_MutateRun(t *testing.T) {
	store := NewStore()
	store.Put(completedJob("job-1", time.Now().Add(-time.Minute)))

	snapshot, ok := store.mutateRun("job-1", "alpha", func(run *EngineRun) {
		run.State = StateError
		run.Error = "boom"
	})
	require.True(t, ok)
	assert.Equal(t, StateError, snapshot.State)

	job, ok := store.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, "boom", job.Runs["alpha"].Error)
	assert.WithinDuration(t, time.Now(), job.UpdatedAt, time.Second)

	_, ok = store.mutateRun("job-1", "missing", func(*EngineRun) {})
	assert.False(t, ok)
	_, ok = store.mutateRun("missing", "alpha", func(*EngineRun) {})
	assert.False(t, ok)
}

func TestCleaner_InvalidSchedule(t *testing.T) {
	_, err := NewCleaner(NewStore(), "not a cron spec", time.Hour)
	require.Error(t, err)
}

func TestCleaner_PrunesOnSchedule(t *testing.T) {
	store := NewStore()
	store.Put(completedJob("stale", time.Now().Add(-2*time.Hour)))

	cleaner, err := NewCleaner(store, "@every 100ms", time.Hour)
	require.NoError(t, err)
	cleaner.Start()
	defer cleaner.Stop()

	require.Eventually(t, func() bool {
		return store.Len() == 0
	}, 5*time.Second, 20*time.Millisecond)
}
