package tracker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opdscore/internal/core/domain/models"
	"opdscore/internal/core/domain/ports"
)

func sampleStatuses() []models.BookStatus {
	end := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	pos := 2
	return []models.BookStatus{
		models.StatusHeld{Book: "a", QueuePosition: &pos, End: &end, Revocable: true},
		models.StatusDownloading{Book: "b", CurrentBytes: 10, ExpectedBytes: 100, LoanEnd: &end},
		models.StatusDownloadFailed{Book: "c", Err: errors.New("connection reset")},
		models.StatusLoanable{Book: "d"},
	}
}

// exerciseStore checks the contract every StatusStore implements.
func exerciseStore(t *testing.T, store ports.StatusStore) {
	t.Helper()
	ctx := context.Background()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded, "new store is empty")

	want := sampleStatuses()
	require.NoError(t, store.Save(ctx, want))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, len(want))

	byID := make(map[models.BookID]models.BookStatus)
	for _, s := range loaded {
		byID[s.ID()] = s
	}

	held, ok := byID["a"].(models.StatusHeld)
	require.True(t, ok)
	require.NotNil(t, held.QueuePosition)
	assert.Equal(t, 2, *held.QueuePosition)
	require.NotNil(t, held.End)
	assert.True(t, held.End.Equal(time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.True(t, held.Revocable)

	downloading, ok := byID["b"].(models.StatusDownloading)
	require.True(t, ok)
	assert.Equal(t, int64(10), downloading.CurrentBytes)
	assert.Equal(t, int64(100), downloading.ExpectedBytes)

	failed, ok := byID["c"].(models.StatusDownloadFailed)
	require.True(t, ok)
	assert.EqualError(t, failed.Err, "connection reset")

	assert.Equal(t, models.StatusLoanable{Book: "d"}, byID["d"])

	// Overwrite: one status changes, one disappears.
	require.NoError(t, store.Save(ctx, []models.BookStatus{
		models.StatusDownloaded{Book: "b", Returnable: true},
		models.StatusLoanable{Book: "d"},
	}))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	kinds := map[models.BookID]models.StatusKind{}
	for _, s := range loaded {
		kinds[s.ID()] = s.Kind()
	}
	assert.Equal(t, map[models.BookID]models.StatusKind{
		"b": models.StatusKindDownloaded,
		"d": models.StatusKindLoanable,
	}, kinds)

	require.NoError(t, store.Save(ctx, nil))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestFileStatusStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	store, err := NewFileStatusStore(path)
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")
}

func TestFileStatusStore_EmptyAndCorruptFiles(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	store, err := NewFileStatusStore(empty)
	require.NoError(t, err)
	statuses, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, statuses)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{"), 0o644))
	store, err = NewFileStatusStore(corrupt)
	require.NoError(t, err)
	_, err = store.Load(context.Background())
	assert.Error(t, err)

	unknown := filepath.Join(dir, "unknown.json")
	require.NoError(t, os.WriteFile(unknown, []byte(`{"statuses":[{"book_id":"x","kind":"lost"}]}`), 0o644))
	store, err = NewFileStatusStore(unknown)
	require.NoError(t, err)
	_, err = store.Load(context.Background())
	assert.Error(t, err)
}

func TestSQLStatusStore(t *testing.T) {
	store, err := OpenSQLStatusStore(context.Background(), "file::memory:?cache=shared")
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestSQLStatusStore_File(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "state.db")

	store, err := OpenSQLStatusStore(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, sampleStatuses()))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLStatusStore(ctx, dsn)
	require.NoError(t, err)
	defer reopened.Close()

	statuses, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, statuses, 4)
}
