package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"opdscore/internal/config"
	"opdscore/internal/core/domain/models"
	"opdscore/internal/core/domain/ports"
)

// SyncReport summarizes one sync run.
type SyncReport struct {
	Feeds   int `json:"feeds"`
	Entries int `json:"entries"`
	// Applied counts seeded statuses that replaced the stored one.
	Applied int `json:"applied"`
	// Ignored counts seeded statuses outranked by a stored status.
	Ignored int `json:"ignored"`
	// Skipped counts malformed entries left out of their feeds.
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
	Tracked    int `json:"tracked"`
}

type SyncService struct {
	cfg      *config.Config
	src      ports.FeedSource
	store    ports.StatusStore
	registry *StatusRegistry
	logger   *zap.Logger
}

func NewSyncService(
	cfg *config.Config,
	src ports.FeedSource,
	store ports.StatusStore,
	registry *StatusRegistry,
	logger *zap.Logger,
) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		cfg:      cfg,
		src:      src,
		store:    store,
		registry: registry,
		logger:   logger,
	}
}

// Run reconciles the persisted statuses with the availability advertised by
// the catalog and saves the result.
func (s *SyncService) Run(ctx context.Context) (*SyncReport, error) {
	// 1. Restore persisted state
	stored, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load statuses: %w", err)
	}
	s.registry.Restore(stored)
	s.logger.Info("Starting sync", zap.Int("tracked", len(stored)))

	// 2. Fetch feeds
	feeds, err := s.src.FetchFeeds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feeds: %w", err)
	}

	report := &SyncReport{Feeds: len(feeds)}

	// 3. Collect entries, first occurrence of a book wins
	seen := make(map[models.BookID]bool)
	var entries []*models.FeedEntry
	for _, feed := range feeds {
		report.Skipped += len(feed.Skipped)
		for _, entry := range feed.Entries {
			id := entry.BookID()
			if seen[id] {
				report.Duplicates++
				continue
			}
			seen[id] = true
			entries = append(entries, entry)
		}
	}

	// 4. Apply batch size limit
	if s.cfg.BatchSize > 0 && len(entries) > s.cfg.BatchSize {
		s.logger.Info("Limiting sync batch",
			zap.Int("batch_size", s.cfg.BatchSize),
			zap.Int("found", len(entries)))
		entries = entries[:s.cfg.BatchSize]
	}
	report.Entries = len(entries)

	// 5. Seed statuses
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		status := models.StatusFromAvailability(entry.BookID(), entry.Availability)
		if s.registry.Update(status) {
			report.Applied++
			continue
		}
		report.Ignored++
		if current, ok := s.registry.Get(status.ID()); ok {
			s.logger.Debug("Keeping higher priority status",
				zap.String("book", entry.Title),
				zap.String("current", string(current.Kind())),
				zap.String("advertised", string(status.Kind())))
		}
	}

	// 6. Persist
	snapshot := s.registry.Snapshot()
	report.Tracked = len(snapshot)
	if err := s.store.Save(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to save statuses: %w", err)
	}

	s.logger.Info("Sync complete",
		zap.Int("feeds", report.Feeds),
		zap.Int("entries", report.Entries),
		zap.Int("applied", report.Applied),
		zap.Int("ignored", report.Ignored),
		zap.Int("skipped", report.Skipped))
	return report, nil
}
