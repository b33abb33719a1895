package outgoing

import (
	"encoding/json"
	"fmt"
	"time"

	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/document"
	gateway_errors "market-gateway/pkg/errors"

	"github.com/google/uuid"
)

// Message is one produced document payload plus its addressing and business
// metadata. Everything except AssignedBundleID is fixed at creation.
type Message struct {
	ID               uuid.UUID
	DocumentType     document.DocumentType
	Receiver         actor.Receiver
	ProcessID        uuid.UUID
	BusinessReason   document.BusinessReason
	SenderID         actor.ActorNumber
	SenderRole       actor.ActorRole
	MessageRecord    json.RawMessage
	CreatedAt        time.Time
	AssignedBundleID uuid.NullUUID
}

// Params are the inputs a business process supplies for a new message.
type Params struct {
	DocumentType   document.DocumentType
	ReceiverID     actor.ActorNumber
	ReceiverRole   actor.ActorRole
	ProcessID      uuid.UUID
	BusinessReason document.BusinessReason
	SenderID       actor.ActorNumber
	SenderRole     actor.ActorRole
	MessageRecord  json.RawMessage
}

// New creates a message with a fresh id.
func New(p Params, now time.Time) (*Message, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Message{
		ID:             uuid.New(),
		DocumentType:   p.DocumentType,
		Receiver:       actor.Receiver{Number: p.ReceiverID, Role: p.ReceiverRole},
		ProcessID:      p.ProcessID,
		BusinessReason: p.BusinessReason,
		SenderID:       p.SenderID,
		SenderRole:     p.SenderRole,
		MessageRecord:  append(json.RawMessage(nil), p.MessageRecord...),
		CreatedAt:      now.UTC(),
	}, nil
}

func (p Params) validate() error {
	switch {
	case p.DocumentType == "":
		return fmt.Errorf("%w: document type is required", gateway_errors.ErrInvalidInput)
	case p.ReceiverID == "" || p.ReceiverRole == "":
		return fmt.Errorf("%w: receiver is required", gateway_errors.ErrInvalidInput)
	case p.BusinessReason == "":
		return fmt.Errorf("%w: business reason is required", gateway_errors.ErrInvalidInput)
	case p.SenderID == "" || p.SenderRole == "":
		return fmt.Errorf("%w: sender is required", gateway_errors.ErrInvalidInput)
	case len(p.MessageRecord) == 0:
		return fmt.Errorf("%w: message record is required", gateway_errors.ErrInvalidInput)
	case !json.Valid(p.MessageRecord):
		return fmt.Errorf("%w: message record is not valid JSON", gateway_errors.ErrInvalidInput)
	}
	return nil
}

// Category is the message category of the carried document type.
func (m *Message) Category() document.MessageCategory {
	return m.DocumentType.Category()
}

// AssignToBundle records the bundle the message was placed in. Assigning the
// same bundle twice is a no-op.
func (m *Message) AssignToBundle(bundleID uuid.UUID) error {
	if m.AssignedBundleID.Valid {
		if m.AssignedBundleID.UUID == bundleID {
			return nil
		}
		return fmt.Errorf("%w: message %s is in bundle %s", gateway_errors.ErrAlreadyAssigned, m.ID, m.AssignedBundleID.UUID)
	}
	m.AssignedBundleID = uuid.NullUUID{UUID: bundleID, Valid: true}
	return nil
}
