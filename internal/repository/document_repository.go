package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

type documentRepository struct {
	db DBTX
}

func NewDocumentRepository(db DBTX) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Get(ctx context.Context, bundleID uuid.UUID) (StoredDocument, bool, error) {
	var doc StoredDocument
	err := r.db.QueryRowContext(ctx, `
        SELECT bundle_id, format, payload, updated_at
        FROM market_documents
        WHERE bundle_id = $1
    `, bundleID).Scan(&doc.BundleID, &doc.Format, &doc.Payload, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredDocument{}, false, nil
	}
	if err != nil {
		return StoredDocument{}, false, err
	}
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return doc, true, nil
}

func (r *documentRepository) Save(ctx context.Context, doc StoredDocument) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO market_documents (bundle_id, format, payload, updated_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (bundle_id) DO UPDATE SET
            format = EXCLUDED.format,
            payload = EXCLUDED.payload,
            updated_at = EXCLUDED.updated_at
    `, doc.BundleID, doc.Format, doc.Payload, doc.UpdatedAt)
	return err
}
