package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-bridge/internal/domain"
)

// StoredMessage pairs a message with the ticket that owns it, as read
// back from the messages table.
type StoredMessage struct {
	TicketID string
	Message  domain.Message
}

// MessageRepository manages the ticket message history. Inserts are
// keyed on (ticket_id, ts) so replays of an unchanged ticket never
// duplicate rows.
type MessageRepository interface {
	InsertIfAbsent(ctx context.Context, ticketID string, msg *domain.Message) error
	ListAll(ctx context.Context) ([]StoredMessage, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) InsertIfAbsent(ctx context.Context, ticketID string, msg *domain.Message) error {
	var url, fileName, mimeType *string
	var sizeBytes *int64
	var duration *int
	if msg.Media != nil {
		url = &msg.Media.URL
		fileName = &msg.Media.FileName
		sizeBytes = &msg.Media.SizeBytes
		mimeType = &msg.Media.MimeType
		duration = &msg.Media.DurationSec
	}

	var metadata []byte
	if len(msg.Metadata) > 0 {
		encoded, err := json.Marshal(msg.Metadata)
		if err != nil {
			return err
		}
		metadata = encoded
	}

	const query = `
        INSERT INTO messages (ticket_id, author, kind, body, file_url, file_name, file_size, duration, mime_type, metadata, ts)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (ticket_id, ts) DO NOTHING`
	_, err := r.pool.Exec(ctx, query,
		ticketID,
		msg.Author,
		msg.Kind,
		msg.Body,
		url,
		fileName,
		sizeBytes,
		duration,
		mimeType,
		metadata,
		msg.Timestamp,
	)
	return err
}

func (r *messageRepository) ListAll(ctx context.Context) ([]StoredMessage, error) {
	const query = `
        SELECT ticket_id, author, kind, body, file_url, file_name, file_size, duration, mime_type, metadata, ts
        FROM messages ORDER BY ts ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []StoredMessage
	for rows.Next() {
		var (
			stored    StoredMessage
			url       *string
			fileName  *string
			sizeBytes *int64
			duration  *int
			mimeType  *string
			metadata  []byte
		)
		if err := rows.Scan(
			&stored.TicketID,
			&stored.Message.Author,
			&stored.Message.Kind,
			&stored.Message.Body,
			&url,
			&fileName,
			&sizeBytes,
			&duration,
			&mimeType,
			&metadata,
			&stored.Message.Timestamp,
		); err != nil {
			return nil, err
		}
		if url != nil {
			stored.Message.Media = &domain.MediaRef{URL: *url}
			if fileName != nil {
				stored.Message.Media.FileName = *fileName
			}
			if sizeBytes != nil {
				stored.Message.Media.SizeBytes = *sizeBytes
			}
			if duration != nil {
				stored.Message.Media.DurationSec = *duration
			}
			if mimeType != nil {
				stored.Message.Media.MimeType = *mimeType
			}
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &stored.Message.Metadata); err != nil {
				return nil, err
			}
		}
		result = append(result, stored)
	}
	return result, rows.Err()
}
