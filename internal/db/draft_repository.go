package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Draft repository errors.
var ErrDraftNotFound = errors.New("draft not found")

// defaultDraftCap bounds the number of persisted drafts. The store is
// never garbage-collected by time, so the cap keeps unbounded thread
// churn from accumulating entries forever; the oldest saved drafts are
// evicted first.
const defaultDraftCap = 200

// DraftRepository persists in-progress replies keyed by thread id.
type DraftRepository struct {
	db  *DB
	cap int
}

// NewDraftRepository creates a DraftRepository with the default cap.
func NewDraftRepository(db *DB) *DraftRepository {
	return &DraftRepository{db: db, cap: defaultDraftCap}
}

// NewDraftRepositoryWithCap creates a DraftRepository with a custom cap.
// A cap of zero disables eviction.
func NewDraftRepositoryWithCap(db *DB, cap int) *DraftRepository {
	return &DraftRepository{db: db, cap: cap}
}

// Put upserts a draft and evicts the oldest entries beyond the cap.
func (r *DraftRepository) Put(ctx context.Context, threadID, content string, savedAt time.Time) error {
	if threadID == "" {
		return fmt.Errorf("thread id is required")
	}

	return r.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO drafts (thread_id, content, saved_at)
			VALUES (?, ?, ?)
			ON CONFLICT (thread_id) DO UPDATE SET
				content = excluded.content,
				saved_at = excluded.saved_at
		`, threadID, content, savedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("upsert draft: %w", err)
		}

		if r.cap <= 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			DELETE FROM drafts WHERE thread_id IN (
				SELECT thread_id FROM drafts
				ORDER BY saved_at DESC
				LIMIT -1 OFFSET ?
			)
		`, r.cap)
		if err != nil {
			return fmt.Errorf("evict old drafts: %w", err)
		}
		return nil
	})
}

// Get returns the persisted draft for a thread.
func (r *DraftRepository) Get(ctx context.Context, threadID string) (content string, savedAt time.Time, err error) {
	var savedAtRaw string
	row := r.db.QueryRowContext(ctx, `
		SELECT content, saved_at FROM drafts WHERE thread_id = ?
	`, threadID)
	if err := row.Scan(&content, &savedAtRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, ErrDraftNotFound
		}
		return "", time.Time{}, fmt.Errorf("query draft: %w", err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, savedAtRaw)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("parse draft timestamp: %w", err)
	}
	return content, parsed, nil
}

// Delete removes a draft. Deleting a missing draft is a no-op.
func (r *DraftRepository) Delete(ctx context.Context, threadID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// Count returns the number of persisted drafts.
func (r *DraftRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM drafts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count drafts: %w", err)
	}
	return count, nil
}
