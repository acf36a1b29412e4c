package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/approvalkit/slack-workflow-engine/internal/models"
	"go.uber.org/zap"
)

// MessageRepository persists the one-to-one link between a request and its
// rendered Slack message.
type MessageRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMessageRepository creates a new message reference repository.
func NewMessageRepository(db *sql.DB, logger *zap.Logger) *MessageRepository {
	return &MessageRepository{db: db, logger: logger}
}

func (r *MessageRepository) exec(tx *sql.Tx) executor {
	if tx != nil {
		return tx
	}
	return r.db
}

// Save records the Slack message reference for a request, replacing any
// previous reference for the same request.
func (r *MessageRepository) Save(ctx context.Context, tx *sql.Tx, ref *models.MessageRef) error {
	query := `
		INSERT INTO messages (request_id, channel_id, ts, thread_ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (request_id) DO UPDATE SET
			channel_id = excluded.channel_id,
			ts = excluded.ts,
			thread_ts = excluded.thread_ts
	`

	result, err := r.exec(tx).ExecContext(ctx, query,
		ref.RequestID, ref.ChannelID, ref.TS, nullable(ref.ThreadTS))
	if err != nil {
		r.logger.Error("Failed to save message reference",
			zap.Int64("request_id", ref.RequestID), zap.Error(err))
		return fmt.Errorf("failed to save message reference: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		ref.ID = id
	}
	return nil
}

// GetByRequestID returns the message reference for a request, or nil when the
// message has not been published yet.
func (r *MessageRepository) GetByRequestID(ctx context.Context, tx *sql.Tx, requestID int64) (*models.MessageRef, error) {
	query := `SELECT id, request_id, channel_id, ts, thread_ts FROM messages WHERE request_id = ?`

	var ref models.MessageRef
	var threadTS sql.NullString

	err := r.exec(tx).QueryRowContext(ctx, query, requestID).Scan(
		&ref.ID, &ref.RequestID, &ref.ChannelID, &ref.TS, &threadTS)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get message reference",
			zap.Int64("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get message reference: %w", err)
	}

	ref.ThreadTS = threadTS.String
	return &ref, nil
}
