package events

import (
	"time"

	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/document"

	"github.com/google/uuid"
)

// Queue events
const (
	EventTypeBundleReady    = "bundle.ready"
	EventTypeBundleDequeued = "bundle.dequeued"
)

const AggregateTypeBundle = "bundle"

// BundleReady tells a receiver that a new bundle has been opened in its
// queue and will be returned by a future peek.
type BundleReady struct {
	ActorNumber    actor.ActorNumber        `json:"actor_number"`
	ActorRole      actor.ActorRole          `json:"actor_role"`
	BundleID       uuid.UUID                `json:"bundle_id"`
	DocumentType   document.DocumentType    `json:"document_type"`
	Category       document.MessageCategory `json:"category"`
	BusinessReason document.BusinessReason  `json:"business_reason"`
	OccurredAt     time.Time                `json:"occurred_at"`
}

// BundleDequeued confirms that a receiver acknowledged a bundle.
type BundleDequeued struct {
	ActorNumber actor.ActorNumber `json:"actor_number"`
	ActorRole   actor.ActorRole   `json:"actor_role"`
	BundleID    uuid.UUID         `json:"bundle_id"`
	OccurredAt  time.Time         `json:"occurred_at"`
}
