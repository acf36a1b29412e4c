package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/approvalkit/slack-workflow-engine/internal/models"
	"go.uber.org/zap"
)

// HistoryRepository reads the permanent status transition log. Writes happen
// inside RequestRepository.TransitionStatus so the audit row and the
// transition always commit together.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// ListByRequest returns the transition history of a request oldest-first.
func (r *HistoryRepository) ListByRequest(ctx context.Context, requestID int64) ([]models.StatusTransition, error) {
	query := `
		SELECT id, request_id, previous_status, new_status, decided_by, created_at
		FROM status_history
		WHERE request_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to list status history",
			zap.Int64("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list status history: %w", err)
	}
	defer rows.Close()

	var transitions []models.StatusTransition
	for rows.Next() {
		var t models.StatusTransition
		if err := rows.Scan(&t.ID, &t.RequestID, &t.PreviousStatus, &t.NewStatus, &t.DecidedBy, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status transition: %w", err)
		}
		transitions = append(transitions, t)
	}
	return transitions, rows.Err()
}
