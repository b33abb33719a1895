package services

import (
	"context"

	"market-gateway/internal/archive"
	"market-gateway/internal/repository"

	"github.com/google/uuid"
)

// ArchiveService reads back archived market documents.
type ArchiveService struct {
	store    repository.Store
	archiver *archive.Archiver
}

func NewArchiveService(store repository.Store, archiver *archive.Archiver) *ArchiveService {
	return &ArchiveService{store: store, archiver: archiver}
}

// Lookup returns the archive record of a bundle and the archived document.
// found is false when the bundle was never archived.
func (s *ArchiveService) Lookup(ctx context.Context, bundleID uuid.UUID) (rec archive.Record, payload []byte, found bool, err error) {
	err = s.store.InTx(ctx, func(repos repository.Repositories) error {
		rec, found, err = repos.Archive.GetByBundle(ctx, bundleID)
		return err
	})
	if err != nil || !found || s.archiver == nil {
		return rec, nil, found, err
	}
	payload, err = s.archiver.Load(ctx, rec)
	if err != nil {
		return archive.Record{}, nil, false, err
	}
	return rec, payload, true, nil
}
