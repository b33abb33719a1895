package repository

import (
	"context"
	"fmt"

	"market-gateway/internal/domain/outgoing"
	gateway_errors "market-gateway/pkg/errors"

	"github.com/google/uuid"
)

type messageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *outgoing.Message) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO outgoing_messages (id, document_type, receiver_number, receiver_role, process_id, business_reason,
                                       sender_number, sender_role, message_record, assigned_bundle_id, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
    `,
		msg.ID,
		msg.DocumentType,
		msg.Receiver.Number,
		msg.Receiver.Role,
		msg.ProcessID,
		msg.BusinessReason,
		msg.SenderID,
		msg.SenderRole,
		string(msg.MessageRecord),
		msg.AssignedBundleID,
		msg.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: message %s already exists", gateway_errors.ErrConflict, msg.ID)
	}
	return err
}

func (r *messageRepository) ListByBundle(ctx context.Context, bundleID uuid.UUID) ([]outgoing.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, document_type, receiver_number, receiver_role, process_id, business_reason,
               sender_number, sender_role, message_record, assigned_bundle_id, created_at
        FROM outgoing_messages
        WHERE assigned_bundle_id = $1
        ORDER BY sequence ASC
    `, bundleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []outgoing.Message
	for rows.Next() {
		var (
			msg    outgoing.Message
			record []byte
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.DocumentType,
			&msg.Receiver.Number,
			&msg.Receiver.Role,
			&msg.ProcessID,
			&msg.BusinessReason,
			&msg.SenderID,
			&msg.SenderRole,
			&record,
			&msg.AssignedBundleID,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		msg.MessageRecord = record
		msg.CreatedAt = msg.CreatedAt.UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}
