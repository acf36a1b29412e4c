package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/approvalkit/slack-workflow-engine/internal/models"
	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Storage-boundary failures. The workflow engine translates these into its
// own error taxonomy before they reach callers.
var (
	// ErrVersionConflict is returned when a version-guarded update matched
	// zero rows: another transition committed first.
	ErrVersionConflict = errors.New("request version conflict")

	// ErrDuplicateKey is returned when an insert violates the request_key
	// uniqueness constraint.
	ErrDuplicateKey = errors.New("duplicate request key")

	// ErrNotTerminalizable is returned when a transition is attempted on a
	// request whose stored status is already terminal.
	ErrNotTerminalizable = errors.New("request status is terminal")
)

// RequestRepository persists workflow requests and owns the version-guarded
// status transition primitive.
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository.
func NewRequestRepository(db *sql.DB, logger *zap.Logger) *RequestRepository {
	return &RequestRepository{db: db, logger: logger}
}

func (r *RequestRepository) exec(tx *sql.Tx) executor {
	if tx != nil {
		return tx
	}
	return r.db
}

const requestColumns = `id, type, created_by, payload_json, status, created_at, updated_at,
	decided_by, decided_at, request_key, version`

// Create inserts a new request. A request_key collision reports
// ErrDuplicateKey so identical resubmissions are rejected before entering
// the state machine.
func (r *RequestRepository) Create(ctx context.Context, tx *sql.Tx, request *models.Request) error {
	query := `
		INSERT INTO requests (type, created_by, payload_json, status, created_at, updated_at, request_key, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = request.CreatedAt
	if request.Version == 0 {
		request.Version = 1
	}

	result, err := r.exec(tx).ExecContext(ctx, query,
		request.Type,
		request.CreatedBy,
		request.PayloadJSON,
		request.Status,
		request.CreatedAt,
		request.UpdatedAt,
		request.RequestKey,
		request.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		r.logger.Error("Failed to create request", zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	request.ID = id
	return nil
}

// GetByID retrieves a request, or nil when it does not exist.
func (r *RequestRepository) GetByID(ctx context.Context, tx *sql.Tx, id int64) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = ?`

	request, err := scanRequest(r.exec(tx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return request, nil
}

// TransitionStatus applies a version-guarded status transition and appends a
// status history row. The only business rule enforced here is that the
// current status must be non-terminal; the specific target status is the
// applicator's decision. Zero matched rows mean a concurrent transition won
// and the caller must not assume its view of the request is current.
func (r *RequestRepository) TransitionStatus(ctx context.Context, tx *sql.Tx, request *models.Request, newStatus, decidedBy string) error {
	if !strings.HasPrefix(request.Status, "PENDING") {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrNotTerminalizable, request.Status, newStatus)
	}

	now := time.Now().UTC()
	query := `
		UPDATE requests
		SET status = ?, decided_by = ?, decided_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	result, err := r.exec(tx).ExecContext(ctx, query,
		newStatus, decidedBy, now, now, request.ID, request.Version)
	if err != nil {
		r.logger.Error("Failed to transition request status",
			zap.Int64("request_id", request.ID),
			zap.String("new_status", newStatus),
			zap.Error(err))
		return fmt.Errorf("failed to transition status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected != 1 {
		return ErrVersionConflict
	}

	historyQuery := `
		INSERT INTO status_history (request_id, previous_status, new_status, decided_by, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := r.exec(tx).ExecContext(ctx, historyQuery,
		request.ID, request.Status, newStatus, decidedBy, now); err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}

	request.Status = newStatus
	request.DecidedBy = decidedBy
	request.DecidedAt = &now
	request.UpdatedAt = now
	request.Version++
	return nil
}

// ListFilter narrows and orders request listings for the App Home surface.
type ListFilter struct {
	WorkflowTypes []string
	Statuses      []string // "PENDING" matches every pending level
	StartAt       *time.Time
	EndAt         *time.Time
	SortBy        string // created_at (default), status, type
	SortOrder     string // asc or desc
	Query         string
	Limit         int
	Offset        int
}

// ListByCreator returns requests created by userID, newest first by default.
func (r *RequestRepository) ListByCreator(ctx context.Context, userID string, filter ListFilter) ([]*models.Request, error) {
	if userID == "" {
		return nil, nil
	}
	return r.list(ctx, "created_by = ?", []any{userID}, filter)
}

// ListForApprover returns requests not created by approverID matching the
// filter. Per-level eligibility is the evaluator's business; this query only
// narrows the candidate set.
func (r *RequestRepository) ListForApprover(ctx context.Context, approverID string, filter ListFilter) ([]*models.Request, error) {
	if approverID == "" {
		return nil, nil
	}
	return r.list(ctx, "created_by != ?", []any{approverID}, filter)
}

func (r *RequestRepository) list(ctx context.Context, where string, args []any, filter ListFilter) ([]*models.Request, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + requestColumns + ` FROM requests WHERE `)
	b.WriteString(where)

	if len(filter.WorkflowTypes) > 0 {
		b.WriteString(" AND type IN (?" + strings.Repeat(",?", len(filter.WorkflowTypes)-1) + ")")
		for _, t := range filter.WorkflowTypes {
			args = append(args, t)
		}
	}

	if len(filter.Statuses) > 0 {
		clauses := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			if strings.EqualFold(status, "PENDING") {
				clauses = append(clauses, "status LIKE 'PENDING%'")
			} else {
				clauses = append(clauses, "status = ?")
				args = append(args, status)
			}
		}
		b.WriteString(" AND (" + strings.Join(clauses, " OR ") + ")")
	}

	if filter.StartAt != nil {
		b.WriteString(" AND created_at >= ?")
		args = append(args, filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		b.WriteString(" AND created_at <= ?")
		args = append(args, filter.EndAt.UTC())
	}

	if filter.Query != "" {
		term := "%" + filter.Query + "%"
		b.WriteString(" AND (type LIKE ? OR created_by LIKE ? OR payload_json LIKE ?")
		args = append(args, term, term, term)
		if id, err := strconv.ParseInt(filter.Query, 10, 64); err == nil {
			b.WriteString(" OR id = ?")
			args = append(args, id)
		}
		b.WriteString(")")
	}

	column := "created_at"
	switch filter.SortBy {
	case "status":
		column = "status"
	case "type":
		column = "type"
	}
	direction := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		direction = "ASC"
	}
	b.WriteString(" ORDER BY " + column + " " + direction)

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	b.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.Request
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.Request, error) {
	var request models.Request
	var decidedBy sql.NullString
	var decidedAt sql.NullTime

	err := row.Scan(
		&request.ID,
		&request.Type,
		&request.CreatedBy,
		&request.PayloadJSON,
		&request.Status,
		&request.CreatedAt,
		&request.UpdatedAt,
		&decidedBy,
		&decidedAt,
		&request.RequestKey,
		&request.Version,
	)
	if err != nil {
		return nil, err
	}

	if decidedBy.Valid {
		request.DecidedBy = decidedBy.String
	}
	if decidedAt.Valid {
		t := decidedAt.Time
		request.DecidedAt = &t
	}
	return &request, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// executor covers both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
