package materializer

import (
	"context"

	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/document"
)

type cimJSONWriter struct{}

func NewCIMJSONWriter() Writer { return cimJSONWriter{} }

func (cimJSONWriter) Format() document.DocumentFormat { return document.FormatJSON }

type codedValue struct {
	CodingScheme string `json:"codingScheme,omitempty"`
	Value        string `json:"value"`
}

type cimJSONDocument struct {
	MRID               string                   `json:"mRID"`
	Type               codedValue               `json:"type"`
	ProcessType        codedValue               `json:"process.processType"`
	BusinessSectorType codedValue               `json:"businessSector.type"`
	SenderMRID         codedValue               `json:"sender_MarketParticipant.mRID"`
	SenderRoleType     codedValue               `json:"sender_MarketParticipant.marketRole.type"`
	ReceiverMRID       codedValue               `json:"receiver_MarketParticipant.mRID"`
	ReceiverRoleType   codedValue               `json:"receiver_MarketParticipant.marketRole.type"`
	CreatedDateTime    string                   `json:"createdDateTime"`
	Series             []map[string]interface{} `json:"Series"`
}

func (cimJSONWriter) Write(ctx context.Context, req Request) ([]byte, error) {
	body := cimJSONDocument{
		MRID:               req.BundleID.String(),
		Type:               codedValue{Value: req.DocumentType.TypeCode()},
		ProcessType:        codedValue{Value: req.BusinessReason.Code()},
		BusinessSectorType: codedValue{Value: electricitySector},
		SenderMRID:         participantID(req.Sender),
		SenderRoleType:     codedValue{Value: req.Sender.Role.String()},
		ReceiverMRID:       participantID(req.Receiver),
		ReceiverRoleType:   codedValue{Value: req.Receiver.Role.String()},
		CreatedDateTime:    timestamp(req.CreatedAt),
		Series:             make([]map[string]interface{}, 0, len(req.Messages)),
	}

	for _, msg := range req.Messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fields, err := decodeRecord(msg)
		if err != nil {
			return nil, err
		}
		fields["mRID"] = msg.ID.String()
		body.Series = append(body.Series, fields)
	}

	return json.Marshal(map[string]cimJSONDocument{
		string(req.DocumentType) + "_MarketDocument": body,
	})
}

func participantID(r actor.Receiver) codedValue {
	return codedValue{CodingScheme: codingScheme(r.Number), Value: r.Number.String()}
}
