package repository

import (
	"context"
	"database/sql"

	"market-gateway/internal/domain/queue"
)

type postgresStore struct {
	db   *sql.DB
	opts []queue.Option
}

// NewPostgresStore returns a Store whose transactions run on db. opts are
// applied to every queue loaded through it.
func NewPostgresStore(db *sql.DB, opts ...queue.Option) Store {
	return &postgresStore{db: db, opts: opts}
}

func (s *postgresStore) InTx(ctx context.Context, fn func(Repositories) error) error {
	return WithTx(ctx, s.db, func(tx DBTX) error {
		return fn(Repositories{
			Queues:    NewQueueRepository(tx, s.opts...),
			Messages:  NewMessageRepository(tx),
			Documents: NewDocumentRepository(tx),
			Archive:   NewArchiveRepository(tx),
		})
	})
}

func (s *postgresStore) Retention() RetentionRepository {
	return NewRetentionRepository(s.db)
}

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
