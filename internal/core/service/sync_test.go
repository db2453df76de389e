package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opdscore/internal/adapters/tracker"
	"opdscore/internal/config"
	"opdscore/internal/core/domain/models"
	"opdscore/internal/core/service"
)

// mockFeedSource implements ports.FeedSource
type mockFeedSource struct {
	feeds    []*models.Feed
	errFetch error
}

func (m *mockFeedSource) FetchFeeds(ctx context.Context) ([]*models.Feed, error) {
	if m.errFetch != nil {
		return nil, m.errFetch
	}
	return m.feeds, nil
}

func entry(id string, a models.Availability) *models.FeedEntry {
	return models.NewFeedEntry(id, "Book "+id, time.Now(), models.WithAvailability(a))
}

func TestSyncService_Run(t *testing.T) {
	ctx := context.Background()
	store, err := tracker.NewFileStatusStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	downloaded := models.StatusDownloaded{Book: models.NewBookIDFromEntryID("urn:2")}
	require.NoError(t, store.Save(ctx, []models.BookStatus{downloaded}))

	src := &mockFeedSource{feeds: []*models.Feed{
		{
			Entries: []*models.FeedEntry{
				entry("urn:1", models.AvailabilityLoanable{}),
				entry("urn:2", models.AvailabilityLoaned{}),
			},
			Skipped: []models.EntryError{{Index: 2, Err: errors.New("bad")}},
		},
		{
			Entries: []*models.FeedEntry{
				entry("urn:1", models.AvailabilityHoldable{}),
				entry("urn:3", models.AvailabilityHeldReady{}),
			},
		},
	}}

	registry := service.NewStatusRegistry()
	svc := service.NewSyncService(&config.Config{}, src, store, registry, nil)

	report, err := svc.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, &service.SyncReport{
		Feeds:      2,
		Entries:    3,
		Applied:    2,
		Ignored:    1,
		Skipped:    1,
		Duplicates: 1,
		Tracked:    3,
	}, report)

	got, _ := registry.Get(models.NewBookIDFromEntryID("urn:1"))
	assert.Equal(t, models.StatusKindLoanable, got.Kind())
	got, _ = registry.Get(models.NewBookIDFromEntryID("urn:2"))
	assert.Equal(t, models.StatusKindDownloaded, got.Kind(), "stored download outranks the feed")
	got, _ = registry.Get(models.NewBookIDFromEntryID("urn:3"))
	held, ok := got.(models.StatusHeld)
	require.True(t, ok)
	assert.True(t, held.Ready)

	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted, 3)
}

func TestSyncService_BatchSize(t *testing.T) {
	store, err := tracker.NewFileStatusStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	src := &mockFeedSource{feeds: []*models.Feed{{Entries: []*models.FeedEntry{
		entry("urn:1", models.AvailabilityLoanable{}),
		entry("urn:2", models.AvailabilityLoanable{}),
		entry("urn:3", models.AvailabilityLoanable{}),
	}}}}

	svc := service.NewSyncService(&config.Config{BatchSize: 2}, src, store, service.NewStatusRegistry(), nil)
	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Entries)
	assert.Equal(t, 2, report.Tracked)
}

func TestSyncService_NoFeeds(t *testing.T) {
	store, err := tracker.NewFileStatusStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	svc := service.NewSyncService(&config.Config{}, &mockFeedSource{}, store, service.NewStatusRegistry(), nil)
	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Entries)
}

func TestSyncService_FetchError(t *testing.T) {
	store, err := tracker.NewFileStatusStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	boom := errors.New("catalog down")
	svc := service.NewSyncService(&config.Config{}, &mockFeedSource{errFetch: boom}, store, service.NewStatusRegistry(), nil)
	_, err = svc.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestCreateStatusStore(t *testing.T) {
	ctx := context.Background()

	store, err := service.CreateStatusStore(ctx, &config.Config{StateBackend: "file", StatePath: filepath.Join(t.TempDir(), "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &tracker.FileStatusStore{}, store)

	store, err = service.CreateStatusStore(ctx, &config.Config{StateBackend: "sqlite", DatabaseDSN: "file:" + filepath.Join(t.TempDir(), "s.db")})
	require.NoError(t, err)
	assert.IsType(t, &tracker.SQLStatusStore{}, store)
	require.NoError(t, store.Close())

	_, err = service.CreateStatusStore(ctx, &config.Config{StateBackend: "redis"})
	assert.Error(t, err)
}
