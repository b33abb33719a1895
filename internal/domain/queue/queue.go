package queue

import (
	"fmt"
	"time"

	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/document"
	"market-gateway/internal/domain/outgoing"
	gateway_errors "market-gateway/pkg/errors"

	"github.com/google/uuid"
)

type groupKey struct {
	reason  document.BusinessReason
	docType document.DocumentType
}

// ActorMessageQueue owns every bundle addressed to one receiver. It is not
// safe for concurrent use; callers serialize access per receiver.
type ActorMessageQueue struct {
	id       uuid.UUID
	receiver actor.Receiver
	bundles  []*Bundle

	// current holds the bundle accepting new messages for each grouping key.
	current map[groupKey]*Bundle

	policy BundleSizePolicy
	clock  func() time.Time
}

// PeekResult identifies the bundle an actor should fetch next. The zero
// value means there is nothing to peek.
type PeekResult struct {
	BundleID     uuid.UUID
	DocumentType document.DocumentType
}

// Empty reports whether no bundle was selected.
func (r PeekResult) Empty() bool {
	return r.BundleID == uuid.Nil
}

// Option configures an ActorMessageQueue.
type Option func(*ActorMessageQueue)

// WithBundleSizePolicy replaces the default bundle size policy.
func WithBundleSizePolicy(p BundleSizePolicy) Option {
	return func(q *ActorMessageQueue) {
		if p != nil {
			q.policy = p
		}
	}
}

// WithClock sets the time source used for close and dequeue timestamps.
func WithClock(clock func() time.Time) Option {
	return func(q *ActorMessageQueue) {
		if clock != nil {
			q.clock = clock
		}
	}
}

// CreateFor returns a new empty queue for receiver.
func CreateFor(receiver actor.Receiver, opts ...Option) (*ActorMessageQueue, error) {
	if receiver.IsZero() {
		return nil, fmt.Errorf("%w: queue receiver is required", gateway_errors.ErrInvalidInput)
	}
	return newQueue(uuid.New(), receiver, opts), nil
}

// Restore rebuilds a queue from persisted bundles. Bundles are kept in the
// given order.
func Restore(id uuid.UUID, receiver actor.Receiver, bundles []*Bundle, opts ...Option) (*ActorMessageQueue, error) {
	if receiver.IsZero() {
		return nil, fmt.Errorf("%w: queue receiver is required", gateway_errors.ErrInvalidInput)
	}
	q := newQueue(id, receiver, opts)
	for _, b := range bundles {
		if b.queueID != id {
			return nil, fmt.Errorf("%w: bundle %s belongs to queue %s, not %s", gateway_errors.ErrConflict, b.id, b.queueID, id)
		}
		q.bundles = append(q.bundles, b)
		if !b.accepts() {
			continue
		}
		key := groupKey{b.businessReason, b.documentType}
		if other, ok := q.current[key]; ok {
			return nil, fmt.Errorf("%w: bundles %s and %s are both open for %s/%s", gateway_errors.ErrConflict, other.id, b.id, key.reason, key.docType)
		}
		q.current[key] = b
	}
	return q, nil
}

func newQueue(id uuid.UUID, receiver actor.Receiver, opts []Option) *ActorMessageQueue {
	q := &ActorMessageQueue{
		id:       id,
		receiver: receiver,
		current:  map[groupKey]*Bundle{},
		policy:   DefaultBundleSizePolicy(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *ActorMessageQueue) ID() uuid.UUID            { return q.id }
func (q *ActorMessageQueue) Receiver() actor.Receiver { return q.receiver }

// Bundles returns the queue's bundles in their stored order.
func (q *ActorMessageQueue) Bundles() []*Bundle {
	return append([]*Bundle(nil), q.bundles...)
}

// Bundle looks up a bundle by id.
func (q *ActorMessageQueue) Bundle(id uuid.UUID) (*Bundle, bool) {
	for _, b := range q.bundles {
		if b.id == id {
			return b, true
		}
	}
	return nil, false
}

// Enqueue appends msg to the bundle currently accepting messages for its
// business reason and document type, opening a new bundle created at
// timestamp when there is none. maxOverride, when given, caps a newly opened
// bundle instead of the size policy. On error the queue and msg are left
// unchanged.
func (q *ActorMessageQueue) Enqueue(msg *outgoing.Message, timestamp time.Time, maxOverride ...int) error {
	if msg == nil {
		return fmt.Errorf("%w: message is required", gateway_errors.ErrInvalidInput)
	}
	if msg.Receiver != q.receiver {
		return fmt.Errorf("%w: message %s is addressed to %s, queue belongs to %s", gateway_errors.ErrReceiverMismatch, msg.ID, msg.Receiver, q.receiver)
	}
	if msg.AssignedBundleID.Valid {
		return fmt.Errorf("%w: message %s", gateway_errors.ErrAlreadyAssigned, msg.ID)
	}

	key := groupKey{msg.BusinessReason, msg.DocumentType}
	b, ok := q.current[key]
	if !ok {
		limit, err := q.maxMessagesFor(msg.DocumentType, maxOverride)
		if err != nil {
			return err
		}
		b = newBundle(q.id, msg.BusinessReason, msg.DocumentType, limit, timestamp)
	}

	if err := b.append(); err != nil {
		return err
	}
	if err := msg.AssignToBundle(b.id); err != nil {
		// unreachable: assignment was checked above
		return err
	}

	if !ok {
		q.bundles = append(q.bundles, b)
		q.current[key] = b
	}
	if !b.accepts() {
		delete(q.current, key)
	}
	return nil
}

func (q *ActorMessageQueue) maxMessagesFor(t document.DocumentType, override []int) (int, error) {
	if len(override) > 0 {
		if override[0] < 1 {
			return 0, fmt.Errorf("%w: bundle size override must be positive, got %d", gateway_errors.ErrInvalidInput, override[0])
		}
		return override[0], nil
	}
	if n := q.policy(t); n > 0 {
		return n, nil
	}
	return 1, nil
}

// Peek selects the earliest created bundle that has not been dequeued,
// optionally restricted to one message category, and closes it so that its
// content no longer changes. Peeking again before a dequeue returns the same
// bundle.
func (q *ActorMessageQueue) Peek(category ...document.MessageCategory) PeekResult {
	filter := document.CategoryNone
	if len(category) > 0 {
		filter = category[0]
	}

	next := q.nextBundleToPeek(filter)
	if next == nil {
		return PeekResult{}
	}

	next.close(q.clock())
	key := groupKey{next.businessReason, next.documentType}
	if q.current[key] == next {
		delete(q.current, key)
	}

	return PeekResult{BundleID: next.id, DocumentType: next.documentType}
}

func (q *ActorMessageQueue) nextBundleToPeek(category document.MessageCategory) *Bundle {
	var next *Bundle
	for _, b := range q.bundles {
		if b.IsDequeued() || !b.documentType.BelongsTo(category) {
			continue
		}
		if next == nil || b.created.Before(next.created) {
			next = b
		}
	}
	return next
}

// Dequeue marks the bundle as delivered. It returns false, without error,
// when the bundle is unknown or already dequeued.
func (q *ActorMessageQueue) Dequeue(bundleID uuid.UUID) bool {
	b, ok := q.Bundle(bundleID)
	if !ok || b.IsDequeued() {
		return false
	}

	key := groupKey{b.businessReason, b.documentType}
	if q.current[key] == b {
		delete(q.current, key)
	}
	return b.dequeue(q.clock())
}

// RecordDocument stores the render outcome of a closed bundle.
func (q *ActorMessageQueue) RecordDocument(bundleID uuid.UUID, doc GeneratedDocument) error {
	b, ok := q.Bundle(bundleID)
	if !ok {
		return fmt.Errorf("%w: bundle %s", gateway_errors.ErrNotFound, bundleID)
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = q.clock()
	}
	return b.recordDocument(doc)
}

// Changed returns the bundles modified since the queue was created, restored
// or last marked persisted.
func (q *ActorMessageQueue) Changed() []*Bundle {
	var changed []*Bundle
	for _, b := range q.bundles {
		if b.dirty {
			changed = append(changed, b)
		}
	}
	return changed
}

// MarkPersisted clears the change tracking after a successful save.
func (q *ActorMessageQueue) MarkPersisted() {
	for _, b := range q.bundles {
		b.dirty = false
	}
}
