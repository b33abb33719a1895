package repository

import (
	"context"
	"time"
)

type retentionRepository struct {
	db DBTX
}

func NewRetentionRepository(db DBTX) RetentionRepository {
	return &retentionRepository{db: db}
}

// PurgeDequeued relies on ON DELETE CASCADE to remove the bundles' messages
// and documents. Archive records are kept. Rows locked by a running
// dequeue are skipped and picked up by a later batch.
func (r *retentionRepository) PurgeDequeued(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	res, err := r.db.ExecContext(ctx, `
        WITH doomed AS (
            SELECT id
            FROM bundles
            WHERE dequeued_at IS NOT NULL AND dequeued_at < $1
            ORDER BY dequeued_at ASC
            LIMIT $2
            FOR UPDATE SKIP LOCKED
        )
        DELETE FROM bundles b
        USING doomed
        WHERE b.id = doomed.id
    `, cutoff.UTC(), limit)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
