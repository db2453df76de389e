package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"opdscore/internal/core/domain/models"
	"opdscore/internal/core/domain/ports"
)

var _ ports.StatusStore = (*SQLStatusStore)(nil)

type statusRow struct {
	bun.BaseModel `bun:"table:book_statuses,alias:bs"`

	BookID        string     `bun:",pk"`
	Kind          string     `bun:",notnull"`
	QueuePosition *int       `bun:"queue_position"`
	RangeStart    *time.Time `bun:"range_start"`
	RangeEnd      *time.Time `bun:"range_end"`
	Flag          bool       `bun:",notnull"`
	Ready         bool       `bun:",notnull"`
	CurrentBytes  int64      `bun:",notnull"`
	ExpectedBytes int64      `bun:",notnull"`
	ErrorMessage  string     `bun:",nullzero"`
	UpdatedAt     time.Time  `bun:",nullzero,notnull,default:current_timestamp"`
}

// SQLStatusStore implements ports.StatusStore on a SQLite database.
type SQLStatusStore struct {
	db *bun.DB
}

// OpenSQLStatusStore opens the SQLite database at dsn.
func OpenSQLStatusStore(ctx context.Context, dsn string) (*SQLStatusStore, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers; a single connection also keeps in-memory
	// databases alive across queries.
	sqldb.SetMaxOpenConns(1)

	store, err := NewSQLStatusStore(ctx, sqldb)
	if err != nil {
		sqldb.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStatusStore wraps db and creates the status table if needed.
func NewSQLStatusStore(ctx context.Context, db *sql.DB) (*SQLStatusStore, error) {
	bunDB := bun.NewDB(db, sqlitedialect.New())
	if _, err := bunDB.NewCreateTable().Model((*statusRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create book_statuses table: %w", err)
	}
	return &SQLStatusStore{db: bunDB}, nil
}

func (s *SQLStatusStore) Load(ctx context.Context) ([]models.BookStatus, error) {
	var rows []statusRow
	if err := s.db.NewSelect().Model(&rows).Order("book_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to load statuses: %w", err)
	}

	statuses := make([]models.BookStatus, 0, len(rows))
	for _, row := range rows {
		status, err := models.DecodeStatus(row.record())
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Save upserts statuses and removes rows for books no longer tracked.
func (s *SQLStatusStore) Save(ctx context.Context, statuses []models.BookStatus) error {
	rows := make([]statusRow, 0, len(statuses))
	ids := make([]string, 0, len(statuses))
	now := time.Now().UTC()
	for _, st := range statuses {
		row := newStatusRow(models.EncodeStatus(st))
		row.UpdatedAt = now
		rows = append(rows, row)
		ids = append(ids, row.BookID)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		del := tx.NewDelete().Model((*statusRow)(nil))
		if len(ids) > 0 {
			del = del.Where("book_id NOT IN (?)", bun.In(ids))
		} else {
			del = del.Where("1 = 1")
		}
		if _, err := del.Exec(ctx); err != nil {
			return fmt.Errorf("failed to prune statuses: %w", err)
		}

		if len(rows) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&rows).
			On("CONFLICT (book_id) DO UPDATE").
			Set("kind = EXCLUDED.kind").
			Set("queue_position = EXCLUDED.queue_position").
			Set("range_start = EXCLUDED.range_start").
			Set("range_end = EXCLUDED.range_end").
			Set("flag = EXCLUDED.flag").
			Set("ready = EXCLUDED.ready").
			Set("current_bytes = EXCLUDED.current_bytes").
			Set("expected_bytes = EXCLUDED.expected_bytes").
			Set("error_message = EXCLUDED.error_message").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert statuses: %w", err)
		}
		return nil
	})
}

func (s *SQLStatusStore) Close() error {
	return s.db.Close()
}

func newStatusRow(r models.StatusRecord) statusRow {
	return statusRow{
		BookID:        string(r.BookID),
		Kind:          string(r.Kind),
		QueuePosition: r.QueuePosition,
		RangeStart:    r.Start,
		RangeEnd:      r.End,
		Flag:          r.Flag,
		Ready:         r.Ready,
		CurrentBytes:  r.CurrentBytes,
		ExpectedBytes: r.ExpectedBytes,
		ErrorMessage:  r.Error,
	}
}

func (row statusRow) record() models.StatusRecord {
	return models.StatusRecord{
		BookID:        models.BookID(row.BookID),
		Kind:          models.StatusKind(row.Kind),
		QueuePosition: row.QueuePosition,
		Start:         row.RangeStart,
		End:           row.RangeEnd,
		Flag:          row.Flag,
		Ready:         row.Ready,
		CurrentBytes:  row.CurrentBytes,
		ExpectedBytes: row.ExpectedBytes,
		Error:         row.ErrorMessage,
	}
}
