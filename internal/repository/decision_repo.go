package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/approvalkit/slack-workflow-engine/internal/models"
	"go.uber.org/zap"
)

// DecisionRepository persists approval decisions. At most one live decision
// exists per (request, level, user); upserts overwrite in place so a
// corrected vote never double-counts.
type DecisionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDecisionRepository creates a new decision repository.
func NewDecisionRepository(db *sql.DB, logger *zap.Logger) *DecisionRepository {
	return &DecisionRepository{db: db, logger: logger}
}

func (r *DecisionRepository) exec(tx *sql.Tx) executor {
	if tx != nil {
		return tx
	}
	return r.db
}

// Upsert records or overwrites the decision of one user at one level.
// It must run inside the applicator's transaction so the subsequent
// re-evaluation observes the write.
func (r *DecisionRepository) Upsert(ctx context.Context, tx *sql.Tx, decision *models.ApprovalDecision) error {
	if decision.DecidedAt.IsZero() {
		decision.DecidedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO approval_decisions (request_id, level, decided_by, decision, decided_at, reason, attachment_url, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (request_id, level, decided_by) DO UPDATE SET
			decision = excluded.decision,
			decided_at = excluded.decided_at,
			reason = excluded.reason,
			attachment_url = excluded.attachment_url,
			source = excluded.source
	`

	_, err := r.exec(tx).ExecContext(ctx, query,
		decision.RequestID,
		decision.Level,
		decision.DecidedBy,
		decision.Decision,
		decision.DecidedAt,
		nullable(decision.Reason),
		nullable(decision.AttachmentURL),
		decision.Source,
	)
	if err != nil {
		r.logger.Error("Failed to upsert decision",
			zap.Int64("request_id", decision.RequestID),
			zap.Int("level", decision.Level),
			zap.String("decided_by", decision.DecidedBy),
			zap.Error(err))
		return fmt.Errorf("failed to upsert decision: %w", err)
	}
	return nil
}

// ListByRequestLevel returns every decision recorded at one level of a
// request ordered by decision time, which the evaluator relies on for its
// latest-per-user collapse.
func (r *DecisionRepository) ListByRequestLevel(ctx context.Context, tx *sql.Tx, requestID int64, level int) ([]models.ApprovalDecision, error) {
	query := `
		SELECT id, request_id, level, decided_by, decision, decided_at, reason, attachment_url, source
		FROM approval_decisions
		WHERE request_id = ? AND level = ?
		ORDER BY decided_at ASC, id ASC
	`
	return r.queryDecisions(ctx, tx, query, requestID, level)
}

// ListByRequest returns the full decision history of a request across all
// levels, for audit surfaces.
func (r *DecisionRepository) ListByRequest(ctx context.Context, tx *sql.Tx, requestID int64) ([]models.ApprovalDecision, error) {
	query := `
		SELECT id, request_id, level, decided_by, decision, decided_at, reason, attachment_url, source
		FROM approval_decisions
		WHERE request_id = ?
		ORDER BY level ASC, decided_at ASC, id ASC
	`
	return r.queryDecisions(ctx, tx, query, requestID)
}

func (r *DecisionRepository) queryDecisions(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]models.ApprovalDecision, error) {
	rows, err := r.exec(tx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list decisions", zap.Error(err))
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []models.ApprovalDecision
	for rows.Next() {
		var decision models.ApprovalDecision
		var reason, attachmentURL sql.NullString

		err := rows.Scan(
			&decision.ID,
			&decision.RequestID,
			&decision.Level,
			&decision.DecidedBy,
			&decision.Decision,
			&decision.DecidedAt,
			&reason,
			&attachmentURL,
			&decision.Source,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}

		decision.Reason = reason.String
		decision.AttachmentURL = attachmentURL.String
		decisions = append(decisions, decision)
	}
	return decisions, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
