package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwell-analytics/insight/internal/models"
)

// listCap bounds unpaginated window scans. Dashboard windows are one
// reporting period wide; anything larger should go through the
// paginated listings.
const listCap = 50000

// PostgresWorkItemStore implements WorkItemStore using PostgreSQL.
type PostgresWorkItemStore struct {
	pool *pgxpool.Pool
}

// NewPostgresWorkItemStore creates a new PostgreSQL-backed store.
func NewPostgresWorkItemStore(pool *pgxpool.Pool) *PostgresWorkItemStore {
	return &PostgresWorkItemStore{pool: pool}
}

// EnsureSchema creates the work_items table and its indexes.
func (s *PostgresWorkItemStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS work_items (
			item_id                     TEXT PRIMARY KEY,
			student_id                  TEXT,
			student_acquisition_channel TEXT,
			student_location            TEXT,
			student_is_multi_draft      BOOLEAN,
			draft                       INT NOT NULL,
			draft_bucket                TEXT NOT NULL,
			word_count                  INT NOT NULL,
			turnaround                  TEXT NOT NULL,
			revenue                     DOUBLE PRECISION NOT NULL,
			rating                      DOUBLE PRECISION,
			satisfaction                TEXT,
			item_status                 TEXT NOT NULL,
			is_completed                BOOLEAN NOT NULL,
			submitted_at                TEXT,
			submitted_at_ms             BIGINT,
			time_remaining_hours        DOUBLE PRECISION,
			is_late                     BOOLEAN
		);
		CREATE INDEX IF NOT EXISTS idx_work_items_submitted
			ON work_items (submitted_at_ms);
		CREATE INDEX IF NOT EXISTS idx_work_items_status_submitted
			ON work_items (item_status, submitted_at_ms);
		CREATE INDEX IF NOT EXISTS idx_work_items_turnaround_submitted
			ON work_items (turnaround, submitted_at_ms);
		CREATE INDEX IF NOT EXISTS idx_work_items_late_submitted
			ON work_items (is_late, submitted_at_ms);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

const workItemColumns = `item_id, student_id, student_acquisition_channel, student_location,
	student_is_multi_draft, draft, draft_bucket, word_count, turnaround, revenue,
	rating, satisfaction, item_status, is_completed, submitted_at, submitted_at_ms,
	time_remaining_hours, is_late`

// Upsert stores one work item, replacing any previous row for the same
// item ID.
func (s *PostgresWorkItemStore) Upsert(ctx context.Context, item *models.WorkItem) error {
	if item == nil {
		return nil
	}

	_, err := s.pool.Exec(ctx, upsertWorkItemSQL, upsertArgs(item)...)
	if err != nil {
		return fmt.Errorf("failed to upsert work item %s: %w", item.ItemID, err)
	}
	return nil
}

const upsertWorkItemSQL = `
	INSERT INTO work_items (` + workItemColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	ON CONFLICT (item_id) DO UPDATE SET
		student_id = EXCLUDED.student_id,
		student_acquisition_channel = EXCLUDED.student_acquisition_channel,
		student_location = EXCLUDED.student_location,
		student_is_multi_draft = EXCLUDED.student_is_multi_draft,
		draft = EXCLUDED.draft,
		draft_bucket = EXCLUDED.draft_bucket,
		word_count = EXCLUDED.word_count,
		turnaround = EXCLUDED.turnaround,
		revenue = EXCLUDED.revenue,
		rating = EXCLUDED.rating,
		satisfaction = EXCLUDED.satisfaction,
		item_status = EXCLUDED.item_status,
		is_completed = EXCLUDED.is_completed,
		submitted_at = EXCLUDED.submitted_at,
		submitted_at_ms = EXCLUDED.submitted_at_ms,
		time_remaining_hours = EXCLUDED.time_remaining_hours,
		is_late = EXCLUDED.is_late
`

func upsertArgs(item *models.WorkItem) []interface{} {
	return []interface{}{
		item.ItemID, nullString(item.StudentID), nullString(item.StudentChannel),
		nullString(item.StudentLocation), item.StudentMultiDraft, item.Draft,
		item.DraftBucket, item.WordCount, item.Turnaround, item.Revenue,
		item.Rating, nullString(item.Satisfaction), item.Status, item.IsCompleted,
		nullString(item.SubmittedAt), item.SubmittedAtMs, item.TimeRemainingHours, item.IsLate,
	}
}

// UpsertBatch stores a batch of work items in one transaction.
func (s *PostgresWorkItemStore) UpsertBatch(ctx context.Context, items []*models.WorkItem) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range items {
		if err := s.upsertTx(ctx, tx, item); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresWorkItemStore) upsertTx(ctx context.Context, tx pgx.Tx, item *models.WorkItem) error {
	if item == nil {
		return nil
	}
	_, err := tx.Exec(ctx, upsertWorkItemSQL, upsertArgs(item)...)
	if err != nil {
		return fmt.Errorf("failed to upsert work item %s: %w", item.ItemID, err)
	}
	return nil
}

// GetByItemID retrieves a work item by its ID.
func (s *PostgresWorkItemStore) GetByItemID(ctx context.Context, itemID string) (*models.WorkItem, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+workItemColumns+` FROM work_items WHERE item_id = $1
	`, itemID)

	item, err := scanWorkItem(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get work item: %w", err)
	}
	return item, nil
}

// ListRange returns items within the submitted-at window, with optional
// status/turnaround narrowing.
func (s *PostgresWorkItemStore) ListRange(ctx context.Context, q ItemQuery) ([]*models.WorkItem, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + workItemColumns + ` FROM work_items
		WHERE submitted_at_ms >= $1 AND submitted_at_ms <= $2`)
	args := []interface{}{q.FromMs, q.ToMs}

	if q.Status != "" {
		args = append(args, q.Status)
		b.WriteString(" AND item_status = $" + strconv.Itoa(len(args)))
	}
	if q.Turnaround != "" {
		args = append(args, q.Turnaround)
		b.WriteString(" AND turnaround = $" + strconv.Itoa(len(args)))
	}
	b.WriteString(" ORDER BY submitted_at_ms ASC LIMIT " + strconv.Itoa(listCap))

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	defer rows.Close()

	return collectWorkItems(rows)
}

// ListUnassigned returns a page of unassigned items, newest first.
func (s *PostgresWorkItemStore) ListUnassigned(ctx context.Context, q PageQuery) ([]*models.WorkItem, bool, error) {
	q.Status = models.StatusUnassigned
	return s.listPage(ctx, q, "item_status = $3")
}

// ListLate returns a page of late items, newest first.
func (s *PostgresWorkItemStore) ListLate(ctx context.Context, q PageQuery) ([]*models.WorkItem, bool, error) {
	return s.listPage(ctx, q, "is_late IS TRUE")
}

func (s *PostgresWorkItemStore) listPage(ctx context.Context, q PageQuery, predicate string) ([]*models.WorkItem, bool, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + workItemColumns + ` FROM work_items
		WHERE submitted_at_ms >= $1 AND submitted_at_ms <= $2`)
	args := []interface{}{q.FromMs, q.ToMs}

	if strings.Contains(predicate, "$3") {
		args = append(args, q.Status)
	} else if q.Status != "" {
		args = append(args, q.Status)
		b.WriteString(" AND item_status = $" + strconv.Itoa(len(args)))
	}
	b.WriteString(" AND " + predicate)

	if q.Turnaround != "" {
		args = append(args, q.Turnaround)
		b.WriteString(" AND turnaround = $" + strconv.Itoa(len(args)))
	}
	if q.DraftBucket != "" {
		args = append(args, q.DraftBucket)
		b.WriteString(" AND draft_bucket = $" + strconv.Itoa(len(args)))
	}
	if q.Channel != "" {
		args = append(args, q.Channel)
		b.WriteString(" AND student_acquisition_channel = $" + strconv.Itoa(len(args)))
	}
	if q.MultiDraft != nil {
		args = append(args, *q.MultiDraft)
		b.WriteString(" AND student_is_multi_draft = $" + strconv.Itoa(len(args)))
	}

	// Fetch one extra row to detect whether more pages remain.
	b.WriteString(" ORDER BY submitted_at_ms DESC")
	b.WriteString(" LIMIT " + strconv.Itoa(q.Limit+1))
	b.WriteString(" OFFSET " + strconv.Itoa(q.Offset))

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list work items page: %w", err)
	}
	defer rows.Close()

	items, err := collectWorkItems(rows)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(items) > q.Limit
	if hasMore {
		items = items[:q.Limit]
	}
	return items, hasMore, nil
}

// CountAll returns the total number of stored work items.
func (s *PostgresWorkItemStore) CountAll(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM work_items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count work items: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkItem(row rowScanner) (*models.WorkItem, error) {
	var item models.WorkItem
	var studentID, channel, location, satisfaction, submittedAt *string

	err := row.Scan(
		&item.ItemID, &studentID, &channel, &location,
		&item.StudentMultiDraft, &item.Draft, &item.DraftBucket, &item.WordCount,
		&item.Turnaround, &item.Revenue, &item.Rating, &satisfaction,
		&item.Status, &item.IsCompleted, &submittedAt, &item.SubmittedAtMs,
		&item.TimeRemainingHours, &item.IsLate,
	)
	if err != nil {
		return nil, err
	}

	if studentID != nil {
		item.StudentID = *studentID
	}
	if channel != nil {
		item.StudentChannel = *channel
	}
	if location != nil {
		item.StudentLocation = *location
	}
	if satisfaction != nil {
		item.Satisfaction = *satisfaction
	}
	if submittedAt != nil {
		item.SubmittedAt = *submittedAt
	}

	return &item, nil
}

func collectWorkItems(rows pgx.Rows) ([]*models.WorkItem, error) {
	var items []*models.WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
