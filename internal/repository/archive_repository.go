package repository

import (
	"context"
	"database/sql"
	"errors"

	"market-gateway/internal/archive"

	"github.com/google/uuid"
)

type archiveRepository struct {
	db DBTX
}

func NewArchiveRepository(db DBTX) ArchiveRepository {
	return &archiveRepository{db: db}
}

// Create records rec. A bundle is archived once; later records for the same
// bundle are ignored.
func (r *archiveRepository) Create(ctx context.Context, rec archive.Record) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO archived_messages (id, bundle_id, document_type, business_reason, format,
                                       sender_number, sender_role, receiver_number, receiver_role, object_key, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (bundle_id) DO NOTHING
    `,
		rec.ID,
		rec.BundleID,
		rec.DocumentType,
		rec.BusinessReason,
		rec.Format,
		rec.Sender.Number,
		rec.Sender.Role,
		rec.Receiver.Number,
		rec.Receiver.Role,
		rec.ObjectKey,
		rec.CreatedAt,
	)
	return err
}

func (r *archiveRepository) GetByBundle(ctx context.Context, bundleID uuid.UUID) (archive.Record, bool, error) {
	var rec archive.Record
	err := r.db.QueryRowContext(ctx, `
        SELECT id, bundle_id, document_type, business_reason, format,
               sender_number, sender_role, receiver_number, receiver_role, object_key, created_at
        FROM archived_messages
        WHERE bundle_id = $1
    `, bundleID).Scan(
		&rec.ID,
		&rec.BundleID,
		&rec.DocumentType,
		&rec.BusinessReason,
		&rec.Format,
		&rec.Sender.Number,
		&rec.Sender.Role,
		&rec.Receiver.Number,
		&rec.Receiver.Role,
		&rec.ObjectKey,
		&rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return archive.Record{}, false, nil
	}
	if err != nil {
		return archive.Record{}, false, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, true, nil
}
