package events

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Envelope struct {
	EventType     string              `json:"event_type"`
	AggregateType string              `json:"aggregate_type"`
	AggregateID   string              `json:"aggregate_id"`
	OccurredAt    time.Time           `json:"occurred_at"`
	Payload       jsoniter.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload, encoded as JSON, for publishing.
func NewEnvelope(eventType, aggregateType, aggregateID string, occurredAt time.Time, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    occurredAt.UTC(),
		Payload:       raw,
	}, nil
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}
