package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"market-gateway/internal/archive"
	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/document"
	"market-gateway/internal/domain/outgoing"
	"market-gateway/internal/domain/queue"
	"market-gateway/internal/events"
	"market-gateway/internal/materializer"
	"market-gateway/internal/repository"
	"market-gateway/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	hub            = actor.Receiver{Number: "5790001330583", Role: actor.RoleMeteringPointAdministrator}
	energySupplier = actor.Receiver{Number: "5790000392551", Role: actor.RoleEnergySupplier}
	gridOperator   = actor.Receiver{Number: "5790001330552", Role: actor.RoleGridOperator}
)

// tickingClock advances by a millisecond on every reading so that bundles
// get distinct creation times.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTickingClock() *tickingClock {
	return &tickingClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type published struct {
	channel string
	env     events.Envelope
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []published
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	env, err := events.DecodeEnvelope(payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{channel: channel, env: env})
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, s := range p.sent {
		if s.env.EventType == eventType {
			out = append(out, s)
		}
	}
	return out
}

type fixture struct {
	store     *memory.Store
	blobs     *archive.MemoryBlobStore
	publisher *recordingPublisher
	enqueuer  *MessageEnqueuer
	peeker    *PeekService
	dequeuer  *DequeueService
	archive   *ArchiveService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := newTickingClock()
	f := &fixture{
		store:     memory.NewStore(queue.WithClock(clock.Now)),
		blobs:     archive.NewMemoryBlobStore(),
		publisher: &recordingPublisher{},
	}
	locks := NewReceiverLocker()
	archiver := archive.NewArchiver(f.blobs)
	opts := []Option{
		WithClock(clock.Now),
		WithNotifier(events.NewNotifier(f.publisher)),
		WithRetrier(NoRetry()),
	}
	f.enqueuer = NewMessageEnqueuer(f.store, locks, opts...)
	f.peeker = NewPeekService(f.store, locks, hub, materializer.DefaultRegistry(), archiver, opts...)
	f.dequeuer = NewDequeueService(f.store, locks, opts...)
	f.archive = NewArchiveService(f.store, archiver)
	return f
}

func newMessage(t testing.TB, r actor.Receiver, docType document.DocumentType, reason document.BusinessReason, record string) *outgoing.Message {
	t.Helper()
	msg, err := outgoing.New(outgoing.Params{
		DocumentType:   docType,
		ReceiverID:     r.Number,
		ReceiverRole:   r.Role,
		ProcessID:      uuid.New(),
		BusinessReason: reason,
		SenderID:       hub.Number,
		SenderRole:     hub.Role,
		MessageRecord:  json.RawMessage(record),
	}, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return msg
}

func (f *fixture) enqueue(t *testing.T, r actor.Receiver, docType document.DocumentType, reason document.BusinessReason) *outgoing.Message {
	t.Helper()
	msg := newMessage(t, r, docType, reason, `{"meteringPoint":"571313180400000028"}`)
	require.NoError(t, f.enqueuer.Enqueue(context.Background(), msg))
	return msg
}

// bundle loads the stored state of a bundle.
func (f *fixture) bundle(t *testing.T, r actor.Receiver, id uuid.UUID) (queue.BundleSnapshot, bool) {
	t.Helper()
	var (
		snap  queue.BundleSnapshot
		found bool
	)
	err := f.store.InTx(context.Background(), func(repos repository.Repositories) error {
		q, ok, err := repos.Queues.GetForUpdate(context.Background(), r)
		if err != nil || !ok {
			return err
		}
		if b, ok := q.Bundle(id); ok {
			snap, found = b.Snapshot(), true
		}
		return nil
	})
	require.NoError(t, err)
	return snap, found
}
