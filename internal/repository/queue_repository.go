package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/document"
	"market-gateway/internal/domain/queue"
	gateway_errors "market-gateway/pkg/errors"

	"github.com/google/uuid"
)

type queueRepository struct {
	db   DBTX
	opts []queue.Option
}

// NewQueueRepository returns a Postgres queue repository. opts are applied
// to every queue it loads.
func NewQueueRepository(db DBTX, opts ...queue.Option) QueueRepository {
	return &queueRepository{db: db, opts: opts}
}

func (r *queueRepository) GetForUpdate(ctx context.Context, receiver actor.Receiver) (*queue.ActorMessageQueue, bool, error) {
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, `
        SELECT id
        FROM actor_message_queues
        WHERE actor_number = $1 AND actor_role = $2
        FOR UPDATE
    `, receiver.Number, receiver.Role).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	bundles, err := r.openBundles(ctx, id)
	if err != nil {
		return nil, false, err
	}
	q, err := queue.Restore(id, receiver, bundles, r.opts...)
	if err != nil {
		return nil, false, err
	}
	return q, true, nil
}

func (r *queueRepository) GetOrCreateForUpdate(ctx context.Context, receiver actor.Receiver) (*queue.ActorMessageQueue, error) {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO actor_message_queues (id, actor_number, actor_role, created_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (actor_number, actor_role) DO NOTHING
    `, uuid.New(), receiver.Number, receiver.Role, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	q, found, err := r.GetForUpdate(ctx, receiver)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("queue for %s vanished after insert", receiver)
	}
	return q, nil
}

func (r *queueRepository) openBundles(ctx context.Context, queueID uuid.UUID) ([]*queue.Bundle, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, queue_id, business_reason, document_type, max_messages, message_count,
               created_at, closed_at, dequeued_at, render_state, render_format, render_error, rendered_at
        FROM bundles
        WHERE queue_id = $1 AND dequeued_at IS NULL
        ORDER BY created_at ASC, id ASC
    `, queueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bundles []*queue.Bundle
	for rows.Next() {
		var (
			s                  queue.BundleSnapshot
			closedAt, dequeued sql.NullTime
			renderFormat, rErr sql.NullString
			renderedAt         sql.NullTime
			renderState        string
		)
		if err := rows.Scan(
			&s.ID,
			&s.QueueID,
			&s.BusinessReason,
			&s.DocumentType,
			&s.MaxMessages,
			&s.MessageCount,
			&s.CreatedAt,
			&closedAt,
			&dequeued,
			&renderState,
			&renderFormat,
			&rErr,
			&renderedAt,
		); err != nil {
			return nil, err
		}
		s.CreatedAt = s.CreatedAt.UTC()
		s.ClosedAt = nullTime(closedAt)
		s.DequeuedAt = nullTime(dequeued)
		s.Document = queue.GeneratedDocument{
			State:  queue.RenderState(renderState),
			Format: document.DocumentFormat(renderFormat.String),
			Error:  rErr.String,
		}
		if renderedAt.Valid {
			s.Document.UpdatedAt = renderedAt.Time.UTC()
		}
		bundles = append(bundles, queue.RestoreBundle(s))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bundles, nil
}

func (r *queueRepository) SaveBundles(ctx context.Context, q *queue.ActorMessageQueue) error {
	for _, b := range q.Changed() {
		s := b.Snapshot()
		var renderedAt *time.Time
		if !s.Document.UpdatedAt.IsZero() {
			renderedAt = &s.Document.UpdatedAt
		}
		_, err := r.db.ExecContext(ctx, `
            INSERT INTO bundles (id, queue_id, business_reason, document_type, message_category, max_messages, message_count,
                                 created_at, closed_at, dequeued_at, render_state, render_format, render_error, rendered_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
            ON CONFLICT (id) DO UPDATE SET
                message_count = EXCLUDED.message_count,
                closed_at = EXCLUDED.closed_at,
                dequeued_at = EXCLUDED.dequeued_at,
                render_state = EXCLUDED.render_state,
                render_format = EXCLUDED.render_format,
                render_error = EXCLUDED.render_error,
                rendered_at = EXCLUDED.rendered_at
        `,
			s.ID,
			s.QueueID,
			s.BusinessReason,
			s.DocumentType,
			s.DocumentType.Category(),
			s.MaxMessages,
			s.MessageCount,
			s.CreatedAt,
			s.ClosedAt,
			s.DequeuedAt,
			s.Document.State,
			sql.NullString{String: string(s.Document.Format), Valid: s.Document.Format != ""},
			sql.NullString{String: s.Document.Error, Valid: s.Document.Error != ""},
			renderedAt,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: another bundle is open for %s/%s", gateway_errors.ErrConflict, s.BusinessReason, s.DocumentType)
		}
		if err != nil {
			return fmt.Errorf("save bundle %s: %w", s.ID, err)
		}
	}
	q.MarkPersisted()
	return nil
}
