package httpdto

import (
	"encoding/json"
	"time"
)

// EnqueueMessageRequest is a produced message handed to the gateway by a
// business process.
type EnqueueMessageRequest struct {
	DocumentType   string          `json:"document_type" binding:"required"`
	ReceiverNumber string          `json:"receiver_number" binding:"required"`
	ReceiverRole   string          `json:"receiver_role" binding:"required"`
	ProcessID      string          `json:"process_id,omitempty"`
	BusinessReason string          `json:"business_reason" binding:"required"`
	SenderNumber   string          `json:"sender_number" binding:"required"`
	SenderRole     string          `json:"sender_role" binding:"required"`
	MessageRecord  json.RawMessage `json:"message_record" binding:"required"`
}

type EnqueueMessageResponse struct {
	MessageID string `json:"message_id"`
	BundleID  string `json:"bundle_id"`
}

type DequeueResponse struct {
	Dequeued bool `json:"dequeued"`
}

type ArchivedMessageResponse struct {
	BundleID       string    `json:"bundle_id"`
	DocumentType   string    `json:"document_type"`
	BusinessReason string    `json:"business_reason"`
	Format         string    `json:"format"`
	SenderNumber   string    `json:"sender_number"`
	SenderRole     string    `json:"sender_role"`
	ReceiverNumber string    `json:"receiver_number"`
	ReceiverRole   string    `json:"receiver_role"`
	ObjectKey      string    `json:"object_key"`
	CreatedAt      time.Time `json:"created_at"`
}
