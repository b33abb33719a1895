package queue

import (
	"fmt"
	"time"

	"market-gateway/internal/domain/document"
	gateway_errors "market-gateway/pkg/errors"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a bundle. Transitions only move forward:
// OPEN -> CLOSED -> DEQUEUED.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusClosed   Status = "CLOSED"
	StatusDequeued Status = "DEQUEUED"
)

// RenderState tracks whether a closed bundle has been materialized.
type RenderState string

const (
	NotRendered  RenderState = "NOT_RENDERED"
	Rendered     RenderState = "RENDERED"
	RenderFailed RenderState = "RENDER_FAILED"
)

// GeneratedDocument is the render state of a bundle. The rendered bytes live
// in the document store, keyed by bundle id.
type GeneratedDocument struct {
	State     RenderState
	Format    document.DocumentFormat
	Error     string
	UpdatedAt time.Time
}

// Bundle groups messages of one business reason and document type for a
// single receiver. It is the unit of peek and dequeue.
type Bundle struct {
	id             uuid.UUID
	queueID        uuid.UUID
	businessReason document.BusinessReason
	documentType   document.DocumentType
	maxMessages    int
	messageCount   int
	created        time.Time
	closedAt       *time.Time
	dequeuedAt     *time.Time
	document       GeneratedDocument

	dirty bool
}

// BundleSnapshot is the persisted form of a bundle.
type BundleSnapshot struct {
	ID             uuid.UUID
	QueueID        uuid.UUID
	BusinessReason document.BusinessReason
	DocumentType   document.DocumentType
	MaxMessages    int
	MessageCount   int
	CreatedAt      time.Time
	ClosedAt       *time.Time
	DequeuedAt     *time.Time
	Document       GeneratedDocument
}

func newBundle(queueID uuid.UUID, reason document.BusinessReason, docType document.DocumentType, maxMessages int, created time.Time) *Bundle {
	return &Bundle{
		id:             uuid.New(),
		queueID:        queueID,
		businessReason: reason,
		documentType:   docType,
		maxMessages:    maxMessages,
		created:        created.UTC(),
		document:       GeneratedDocument{State: NotRendered},
		dirty:          true,
	}
}

// RestoreBundle rebuilds a bundle from its snapshot.
func RestoreBundle(s BundleSnapshot) *Bundle {
	doc := s.Document
	if doc.State == "" {
		doc.State = NotRendered
	}
	return &Bundle{
		id:             s.ID,
		queueID:        s.QueueID,
		businessReason: s.BusinessReason,
		documentType:   s.DocumentType,
		maxMessages:    s.MaxMessages,
		messageCount:   s.MessageCount,
		created:        s.CreatedAt,
		closedAt:       s.ClosedAt,
		dequeuedAt:     s.DequeuedAt,
		document:       doc,
	}
}

// Snapshot returns the persisted form of b.
func (b *Bundle) Snapshot() BundleSnapshot {
	return BundleSnapshot{
		ID:             b.id,
		QueueID:        b.queueID,
		BusinessReason: b.businessReason,
		DocumentType:   b.documentType,
		MaxMessages:    b.maxMessages,
		MessageCount:   b.messageCount,
		CreatedAt:      b.created,
		ClosedAt:       b.closedAt,
		DequeuedAt:     b.dequeuedAt,
		Document:       b.document,
	}
}

func (b *Bundle) ID() uuid.UUID                           { return b.id }
func (b *Bundle) QueueID() uuid.UUID                      { return b.queueID }
func (b *Bundle) BusinessReason() document.BusinessReason { return b.businessReason }
func (b *Bundle) DocumentType() document.DocumentType     { return b.documentType }
func (b *Bundle) MaxMessages() int                        { return b.maxMessages }
func (b *Bundle) MessageCount() int                       { return b.messageCount }
func (b *Bundle) Created() time.Time                      { return b.created }
func (b *Bundle) ClosedAt() *time.Time                    { return b.closedAt }
func (b *Bundle) DequeuedAt() *time.Time                  { return b.dequeuedAt }
func (b *Bundle) Document() GeneratedDocument             { return b.document }

func (b *Bundle) IsClosed() bool   { return b.closedAt != nil }
func (b *Bundle) IsDequeued() bool { return b.dequeuedAt != nil }
func (b *Bundle) IsFull() bool     { return b.messageCount >= b.maxMessages }

// Status derives the lifecycle state from the close and dequeue timestamps.
func (b *Bundle) Status() Status {
	switch {
	case b.IsDequeued():
		return StatusDequeued
	case b.IsClosed():
		return StatusClosed
	default:
		return StatusOpen
	}
}

// accepts reports whether another message may be appended.
func (b *Bundle) accepts() bool {
	return !b.IsClosed() && !b.IsFull()
}

func (b *Bundle) append() error {
	if b.IsClosed() {
		return fmt.Errorf("%w: bundle %s is closed", gateway_errors.ErrConflict, b.id)
	}
	if b.IsFull() {
		return fmt.Errorf("%w: bundle %s holds %d of %d messages", gateway_errors.ErrBundleFull, b.id, b.messageCount, b.maxMessages)
	}
	b.messageCount++
	b.dirty = true
	return nil
}

func (b *Bundle) close(at time.Time) {
	if b.IsClosed() {
		return
	}
	t := at.UTC()
	b.closedAt = &t
	b.dirty = true
}

// dequeue reports false when b was already dequeued.
func (b *Bundle) dequeue(at time.Time) bool {
	if b.IsDequeued() {
		return false
	}
	b.close(at)
	t := at.UTC()
	b.dequeuedAt = &t
	b.dirty = true
	return true
}

func (b *Bundle) recordDocument(doc GeneratedDocument) error {
	if !b.IsClosed() {
		return fmt.Errorf("%w: bundle %s is not closed", gateway_errors.ErrConflict, b.id)
	}
	if b.document.State == Rendered && doc.State != Rendered {
		return fmt.Errorf("%w: bundle %s is already rendered", gateway_errors.ErrConflict, b.id)
	}
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	b.document = doc
	b.dirty = true
	return nil
}
