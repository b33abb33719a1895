package repository

import (
	"context"
	"time"

	"market-gateway/internal/archive"
	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/document"
	"market-gateway/internal/domain/outgoing"
	"market-gateway/internal/domain/queue"

	"github.com/google/uuid"
)

// QueueRepository loads and saves actor message queues. Loads lock the queue
// row for the rest of the transaction.
type QueueRepository interface {
	// GetForUpdate returns the receiver's queue with every bundle that has
	// not been dequeued. found is false when the receiver has no queue.
	GetForUpdate(ctx context.Context, receiver actor.Receiver) (q *queue.ActorMessageQueue, found bool, err error)

	// GetOrCreateForUpdate is GetForUpdate, creating an empty queue first
	// when there is none.
	GetOrCreateForUpdate(ctx context.Context, receiver actor.Receiver) (*queue.ActorMessageQueue, error)

	// SaveBundles writes the bundles changed since the queue was loaded.
	SaveBundles(ctx context.Context, q *queue.ActorMessageQueue) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *outgoing.Message) error
	// ListByBundle returns the bundle's messages in enqueue order.
	ListByBundle(ctx context.Context, bundleID uuid.UUID) ([]outgoing.Message, error)
}

// StoredDocument is the rendered form of a bundle.
type StoredDocument struct {
	BundleID  uuid.UUID
	Format    document.DocumentFormat
	Payload   []byte
	UpdatedAt time.Time
}

type DocumentRepository interface {
	Get(ctx context.Context, bundleID uuid.UUID) (StoredDocument, bool, error)
	Save(ctx context.Context, doc StoredDocument) error
}

type ArchiveRepository interface {
	Create(ctx context.Context, rec archive.Record) error
	GetByBundle(ctx context.Context, bundleID uuid.UUID) (archive.Record, bool, error)
}

type RetentionRepository interface {
	// PurgeDequeued deletes at most limit bundles dequeued before cutoff,
	// with their messages and documents, and returns how many were deleted.
	PurgeDequeued(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// Repositories share one transaction.
type Repositories struct {
	Queues    QueueRepository
	Messages  MessageRepository
	Documents DocumentRepository
	Archive   ArchiveRepository
}

// Store is the transaction boundary of the queue engine. fn's changes are
// committed when it returns nil and rolled back otherwise.
type Store interface {
	InTx(ctx context.Context, fn func(Repositories) error) error
	Retention() RetentionRepository
	Ping(ctx context.Context) error
}
