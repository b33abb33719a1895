package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/document"
	gateway_errors "market-gateway/pkg/errors"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record indexes one archived market document. The document itself lives in
// the blob store under ObjectKey.
type Record struct {
	ID             uuid.UUID               `json:"id"`
	BundleID       uuid.UUID               `json:"bundleId"`
	DocumentType   document.DocumentType   `json:"documentType"`
	BusinessReason document.BusinessReason `json:"businessReason"`
	Format         document.DocumentFormat `json:"format"`
	Sender         actor.Receiver          `json:"sender"`
	Receiver       actor.Receiver          `json:"receiver"`
	ObjectKey      string                  `json:"objectKey"`
	CreatedAt      time.Time               `json:"createdAt"`
}

// BlobStore is the object storage the archive writes to. storage.Client
// satisfies it.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

type Archiver struct {
	blobs BlobStore
}

func NewArchiver(blobs BlobStore) *Archiver {
	return &Archiver{blobs: blobs}
}

// ObjectKey is archive/{yyyy}/{mm}/{dd}/{bundleId}.{ext}.
func ObjectKey(bundleID uuid.UUID, format document.DocumentFormat, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("archive/%04d/%02d/%02d/%s.%s", at.Year(), at.Month(), at.Day(), bundleID, format.Extension())
}

// Store uploads payload and a JSON manifest next to it, and returns rec with
// its id and object key filled in.
func (a *Archiver) Store(ctx context.Context, rec Record, payload []byte) (Record, error) {
	if rec.BundleID == uuid.Nil {
		return Record{}, fmt.Errorf("%w: archive record needs a bundle id", gateway_errors.ErrInvalidInput)
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.ObjectKey = ObjectKey(rec.BundleID, rec.Format, rec.CreatedAt)

	manifest, err := json.Marshal(rec)
	if err != nil {
		return Record{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.blobs.Put(gctx, rec.ObjectKey, rec.Format.ContentType(), payload)
	})
	g.Go(func() error {
		return a.blobs.Put(gctx, rec.ObjectKey+".manifest.json", "application/json", manifest)
	})
	if err := g.Wait(); err != nil {
		return Record{}, fmt.Errorf("archive bundle %s: %w", rec.BundleID, err)
	}
	return rec, nil
}

// Load returns the archived document of rec.
func (a *Archiver) Load(ctx context.Context, rec Record) ([]byte, error) {
	return a.blobs.Get(ctx, rec.ObjectKey)
}

// MemoryBlobStore keeps objects in memory. It backs the archive when no S3
// bucket is configured.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: map[string][]byte{}}
}

func (m *MemoryBlobStore) Put(_ context.Context, key, _ string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), body...)
	return nil
}

func (m *MemoryBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: object %s", gateway_errors.ErrNotFound, key)
	}
	return append([]byte(nil), body...), nil
}

// Keys lists stored object keys.
func (m *MemoryBlobStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
