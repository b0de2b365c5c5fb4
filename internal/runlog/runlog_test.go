package runlog

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.MigrateUp("migrations"))
	return db
}

func TestMigrations(t *testing.T) {
	db := testDB(t)
	version, dirty, err := db.MigrateVersion("migrations")
	require.NoError(t, err)
	assert.False(t, dirty, "schema dirty after migrate up")
	assert.NotZero(t, version, "no migration version recorded")

	// Up again is a no-op.
	assert.NoError(t, db.MigrateUp("migrations"))
}

func TestRunLifecycle(t *testing.T) {
	db := testDB(t)

	id, err := db.StartRun(PipelineGeoreference, "waterline", 3)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.RecordChunk(id, 400))
	}
	require.NoError(t, db.CompleteRun(id, 0.97))

	r, err := db.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, r.Status)
	assert.Equal(t, 3, r.CompletedChunks)
	assert.Equal(t, 3, r.TotalChunks)
	assert.Equal(t, 1200, r.SoundingCount)
	require.True(t, r.Completeness.Valid)
	assert.Equal(t, 0.97, r.Completeness.Float64)
	assert.True(t, r.FinishedAt.Valid, "finished_at not set")

	// A completed run accepts no more chunks and cannot finish twice.
	assert.Error(t, db.RecordChunk(id, 1), "recorded chunk on a completed run")
	assert.Error(t, db.CompleteRun(id, 1.0), "completed a run twice")
}

func TestFailRun(t *testing.T) {
	db := testDB(t)
	id, err := db.StartRun(PipelineBackscatter, "", 2)
	require.NoError(t, err)
	require.NoError(t, db.FailRun(id, errors.New("chunk [4, 7) failed after 2 attempts")))

	r, err := db.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, r.Status)
	assert.NotEmpty(t, r.Error, "failure cause not recorded")
	assert.False(t, r.Completeness.Valid, "failed run carries a completeness statistic")
}

func TestListRuns(t *testing.T) {
	db := testDB(t)
	for i := 0; i < 3; i++ {
		_, err := db.StartRun(PipelineGeoreference, "ellipse", 1)
		require.NoError(t, err)
	}
	runs, err := db.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestGetRunNotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetRun("no-such-run")
	assert.Error(t, err, "expected error for unknown run id")
}
