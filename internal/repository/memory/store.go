// Package memory is an in-process repository.Store. A transaction buffers its
// writes and applies them on commit. Loading a receiver's queue locks that
// receiver until the transaction ends, so transactions on different
// receivers run side by side.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"market-gateway/internal/archive"
	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/outgoing"
	"market-gateway/internal/domain/queue"
	"market-gateway/internal/repository"
	gateway_errors "market-gateway/pkg/errors"

	"github.com/google/uuid"
)

type state struct {
	queues  map[actor.Receiver]uuid.UUID
	bundles map[uuid.UUID]queue.BundleSnapshot
	// live indexes the bundles of each queue that are not dequeued.
	live      map[uuid.UUID]map[uuid.UUID]struct{}
	messages  map[uuid.UUID][]outgoing.Message
	messageID map[uuid.UUID]struct{}
	documents map[uuid.UUID]repository.StoredDocument
	archive   map[uuid.UUID]archive.Record
}

func newState() *state {
	return &state{
		queues:    map[actor.Receiver]uuid.UUID{},
		bundles:   map[uuid.UUID]queue.BundleSnapshot{},
		live:      map[uuid.UUID]map[uuid.UUID]struct{}{},
		messages:  map[uuid.UUID][]outgoing.Message{},
		messageID: map[uuid.UUID]struct{}{},
		documents: map[uuid.UUID]repository.StoredDocument{},
		archive:   map[uuid.UUID]archive.Record{},
	}
}

func (s *state) putBundle(b queue.BundleSnapshot) {
	s.bundles[b.ID] = b
	live, ok := s.live[b.QueueID]
	if b.DequeuedAt != nil {
		if ok {
			delete(live, b.ID)
			if len(live) == 0 {
				delete(s.live, b.QueueID)
			}
		}
		return
	}
	if !ok {
		live = map[uuid.UUID]struct{}{}
		s.live[b.QueueID] = live
	}
	live[b.ID] = struct{}{}
}

type Store struct {
	// mu guards st. It is held only while reading committed rows or
	// applying a commit, never for the length of a transaction.
	mu   sync.RWMutex
	st   *state
	rows *rowLocks
	opts []queue.Option
}

// NewStore returns an empty store. opts are applied to every queue loaded
// through it.
func NewStore(opts ...queue.Option) *Store {
	return &Store{st: newState(), rows: newRowLocks(), opts: opts}
}

func (s *Store) InTx(ctx context.Context, fn func(repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := newTx(s)
	defer t.release()

	if err := fn(repository.Repositories{
		Queues:    &queueRepo{tx: t},
		Messages:  &messageRepo{tx: t},
		Documents: &documentRepo{tx: t},
		Archive:   &archiveRepo{tx: t},
	}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.commit()
}

func (s *Store) Retention() repository.RetentionRepository {
	return &retentionRepo{store: s}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// tx holds the writes of one transaction and the receiver rows it locked.
type tx struct {
	store *Store
	held  map[actor.Receiver]func()

	queues    map[actor.Receiver]uuid.UUID
	bundles   map[uuid.UUID]queue.BundleSnapshot
	messages  map[uuid.UUID][]outgoing.Message
	messageID map[uuid.UUID]struct{}
	documents map[uuid.UUID]repository.StoredDocument
	archive   map[uuid.UUID]archive.Record
}

func newTx(s *Store) *tx {
	return &tx{
		store:     s,
		held:      map[actor.Receiver]func(){},
		queues:    map[actor.Receiver]uuid.UUID{},
		bundles:   map[uuid.UUID]queue.BundleSnapshot{},
		messages:  map[uuid.UUID][]outgoing.Message{},
		messageID: map[uuid.UUID]struct{}{},
		documents: map[uuid.UUID]repository.StoredDocument{},
		archive:   map[uuid.UUID]archive.Record{},
	}
}

// lock takes the receiver's row lock once per transaction.
func (t *tx) lock(ctx context.Context, r actor.Receiver) error {
	if _, ok := t.held[r]; ok {
		return nil
	}
	unlock, err := t.store.rows.lock(ctx, r)
	if err != nil {
		return err
	}
	t.held[r] = unlock
	return nil
}

func (t *tx) release() {
	for r, unlock := range t.held {
		unlock()
		delete(t.held, r)
	}
}

func (t *tx) queueID(r actor.Receiver) (uuid.UUID, bool) {
	if id, ok := t.queues[r]; ok {
		return id, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	id, ok := t.store.st.queues[r]
	return id, ok
}

// liveBundles returns the queue's bundles that are not dequeued, with this
// transaction's writes applied.
func (t *tx) liveBundles(queueID uuid.UUID) []queue.BundleSnapshot {
	byID := map[uuid.UUID]queue.BundleSnapshot{}

	t.store.mu.RLock()
	for id := range t.store.st.live[queueID] {
		byID[id] = t.store.st.bundles[id]
	}
	t.store.mu.RUnlock()

	for id, b := range t.bundles {
		if b.QueueID == queueID {
			byID[id] = b
		}
	}

	out := make([]queue.BundleSnapshot, 0, len(byID))
	for _, b := range byID {
		if b.DequeuedAt == nil {
			out = append(out, b)
		}
	}
	return out
}

func (t *tx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range t.messageID {
		if _, ok := s.st.messageID[id]; ok {
			return fmt.Errorf("%w: message %s already exists", gateway_errors.ErrConflict, id)
		}
	}

	for r, id := range t.queues {
		s.st.queues[r] = id
	}
	for _, b := range t.bundles {
		s.st.putBundle(b)
	}
	for id, msgs := range t.messages {
		s.st.messages[id] = append(s.st.messages[id], msgs...)
	}
	for id := range t.messageID {
		s.st.messageID[id] = struct{}{}
	}
	for id, doc := range t.documents {
		s.st.documents[id] = doc
	}
	for id, rec := range t.archive {
		if _, ok := s.st.archive[id]; !ok {
			s.st.archive[id] = rec
		}
	}
	return nil
}

type queueRepo struct {
	tx *tx
}

func (r *queueRepo) GetForUpdate(ctx context.Context, receiver actor.Receiver) (*queue.ActorMessageQueue, bool, error) {
	if err := r.tx.lock(ctx, receiver); err != nil {
		return nil, false, err
	}
	id, ok := r.tx.queueID(receiver)
	if !ok {
		return nil, false, nil
	}

	snapshots := r.tx.liveBundles(id)
	sort.Slice(snapshots, func(i, j int) bool {
		if !snapshots[i].CreatedAt.Equal(snapshots[j].CreatedAt) {
			return snapshots[i].CreatedAt.Before(snapshots[j].CreatedAt)
		}
		return snapshots[i].ID.String() < snapshots[j].ID.String()
	})

	bundles := make([]*queue.Bundle, 0, len(snapshots))
	for _, s := range snapshots {
		bundles = append(bundles, queue.RestoreBundle(s))
	}
	q, err := queue.Restore(id, receiver, bundles, r.tx.store.opts...)
	if err != nil {
		return nil, false, err
	}
	return q, true, nil
}

func (r *queueRepo) GetOrCreateForUpdate(ctx context.Context, receiver actor.Receiver) (*queue.ActorMessageQueue, error) {
	if receiver.IsZero() {
		return nil, fmt.Errorf("%w: queue receiver is required", gateway_errors.ErrInvalidInput)
	}
	if err := r.tx.lock(ctx, receiver); err != nil {
		return nil, err
	}
	if _, ok := r.tx.queueID(receiver); !ok {
		r.tx.queues[receiver] = uuid.New()
	}
	q, _, err := r.GetForUpdate(ctx, receiver)
	return q, err
}

func (r *queueRepo) SaveBundles(_ context.Context, q *queue.ActorMessageQueue) error {
	for _, b := range q.Changed() {
		s := b.Snapshot()
		if !s.Document.UpdatedAt.IsZero() {
			s.Document.UpdatedAt = s.Document.UpdatedAt.UTC()
		}
		r.tx.bundles[s.ID] = s
	}
	q.MarkPersisted()
	return nil
}

type messageRepo struct {
	tx *tx
}

func (r *messageRepo) Create(_ context.Context, msg *outgoing.Message) error {
	_, exists := r.tx.messageID[msg.ID]
	if !exists {
		r.tx.store.mu.RLock()
		_, exists = r.tx.store.st.messageID[msg.ID]
		r.tx.store.mu.RUnlock()
	}
	if exists {
		return fmt.Errorf("%w: message %s already exists", gateway_errors.ErrConflict, msg.ID)
	}

	r.tx.messageID[msg.ID] = struct{}{}
	if msg.AssignedBundleID.Valid {
		id := msg.AssignedBundleID.UUID
		r.tx.messages[id] = append(r.tx.messages[id], *msg)
	}
	return nil
}

func (r *messageRepo) ListByBundle(_ context.Context, bundleID uuid.UUID) ([]outgoing.Message, error) {
	r.tx.store.mu.RLock()
	msgs := append([]outgoing.Message(nil), r.tx.store.st.messages[bundleID]...)
	r.tx.store.mu.RUnlock()
	return append(msgs, r.tx.messages[bundleID]...), nil
}

type documentRepo struct {
	tx *tx
}

func (r *documentRepo) Get(_ context.Context, bundleID uuid.UUID) (repository.StoredDocument, bool, error) {
	if doc, ok := r.tx.documents[bundleID]; ok {
		return doc, true, nil
	}
	r.tx.store.mu.RLock()
	defer r.tx.store.mu.RUnlock()
	doc, ok := r.tx.store.st.documents[bundleID]
	return doc, ok, nil
}

func (r *documentRepo) Save(_ context.Context, doc repository.StoredDocument) error {
	doc.Payload = append([]byte(nil), doc.Payload...)
	r.tx.documents[doc.BundleID] = doc
	return nil
}

type archiveRepo struct {
	tx *tx
}

func (r *archiveRepo) Create(ctx context.Context, rec archive.Record) error {
	if _, ok, _ := r.GetByBundle(ctx, rec.BundleID); !ok {
		r.tx.archive[rec.BundleID] = rec
	}
	return nil
}

func (r *archiveRepo) GetByBundle(_ context.Context, bundleID uuid.UUID) (archive.Record, bool, error) {
	if rec, ok := r.tx.archive[bundleID]; ok {
		return rec, true, nil
	}
	r.tx.store.mu.RLock()
	defer r.tx.store.mu.RUnlock()
	rec, ok := r.tx.store.st.archive[bundleID]
	return rec, ok, nil
}

type retentionRepo struct {
	store *Store
}

// PurgeDequeued only removes committed dequeued bundles. Open transactions
// never load those, so the sweep needs no row locks.
func (r *retentionRepo) PurgeDequeued(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	st := r.store.st
	var doomed []queue.BundleSnapshot
	for _, b := range st.bundles {
		if b.DequeuedAt != nil && b.DequeuedAt.Before(cutoff) {
			doomed = append(doomed, b)
		}
	}
	sort.Slice(doomed, func(i, j int) bool { return doomed[i].DequeuedAt.Before(*doomed[j].DequeuedAt) })
	if len(doomed) > limit {
		doomed = doomed[:limit]
	}

	for _, b := range doomed {
		for _, m := range st.messages[b.ID] {
			delete(st.messageID, m.ID)
		}
		delete(st.messages, b.ID)
		delete(st.documents, b.ID)
		delete(st.bundles, b.ID)
	}
	return len(doomed), nil
}
