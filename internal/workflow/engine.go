package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/approvalkit/slack-workflow-engine/internal/models"
	"github.com/approvalkit/slack-workflow-engine/internal/repository"
	"github.com/approvalkit/slack-workflow-engine/pkg/database"
	"go.uber.org/zap"
)

// Engine drives the multi-level approval state machine. All request mutation
// funnels through it; the HTTP layer only authenticates, authorizes, and
// renders.
type Engine struct {
	db           *database.DB
	requestRepo  *repository.RequestRepository
	decisionRepo *repository.DecisionRepository
	logger       *zap.Logger
}

// NewEngine creates a new workflow engine.
func NewEngine(
	db *database.DB,
	requestRepo *repository.RequestRepository,
	decisionRepo *repository.DecisionRepository,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		db:           db,
		requestRepo:  requestRepo,
		decisionRepo: decisionRepo,
		logger:       logger,
	}
}

// DecisionInput is one proposed approval or rejection. The caller must have
// already applied the authorization gate (approver allow-list, no
// self-decision); the engine enforces only per-level eligibility.
type DecisionInput struct {
	RequestID     int64
	ActingUser    string
	Decision      string // models.DecisionApproved or models.DecisionRejected
	Reason        string
	AttachmentURL string
	Source        string // models.SourceChannel or models.SourceHome
}

// DecisionResult describes the request after a decision was applied, with
// enough structure for the notification layer to re-render the message.
type DecisionResult struct {
	// FinalDecision is APPROVED or REJECTED once the request is terminal,
	// empty while it stays pending.
	FinalDecision string
	Status        Status
	StatusText    string
	// ApproverLevel is the level now awaiting decisions, 0 once terminal.
	ApproverLevel  int
	IncludeActions bool
	WaitingOn      []string
}

// CreateRequest persists a new submission and returns the stored request.
// An identical (type, user, payload) fingerprint collides on the request key
// and fails with ErrDuplicateRequest before entering the state machine.
func (e *Engine) CreateRequest(ctx context.Context, def *Definition, createdBy string, submission Submission) (*models.Request, error) {
	payload, err := CanonicalJSON(submission)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize submission: %w", err)
	}

	request := &models.Request{
		Type:        def.Type,
		CreatedBy:   createdBy,
		PayloadJSON: payload,
		Status:      InitialStatus(def).String(),
		RequestKey:  RequestKey(def.Type, createdBy, payload),
		Version:     1,
	}

	err = e.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		return e.requestRepo.Create(ctx, tx, request)
	})
	if errors.Is(err, repository.ErrDuplicateKey) {
		return nil, ErrDuplicateRequest
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("Workflow request created",
		zap.Int64("request_id", request.ID),
		zap.String("workflow_type", def.Type),
		zap.String("created_by", createdBy))
	return request, nil
}

// GetRequest loads a request outside any transaction, for display purposes.
func (e *Engine) GetRequest(ctx context.Context, id int64) (*models.Request, error) {
	return e.requestRepo.GetByID(ctx, nil, id)
}

// ListDecisions returns the full decision trail of a request across all
// levels, for audit surfaces.
func (e *Engine) ListDecisions(ctx context.Context, requestID int64) ([]models.ApprovalDecision, error) {
	return e.decisionRepo.ListByRequest(ctx, nil, requestID)
}

// RuntimeFor evaluates the current level tally of a request without applying
// any decision, for rendering "waiting on" surfaces.
func (e *Engine) RuntimeFor(ctx context.Context, def *Definition, request *models.Request) (LevelRuntime, error) {
	status, err := ParseStatus(request.Status)
	if err != nil {
		return LevelRuntime{}, err
	}

	var decisions []models.ApprovalDecision
	if status.IsPending() {
		decisions, err = e.decisionRepo.ListByRequestLevel(ctx, nil, request.ID, status.Level)
		if err != nil {
			return LevelRuntime{}, err
		}
	}
	return Evaluate(def, status, decisions), nil
}

// ApplyDecision validates, records, and resolves one decision inside a single
// transaction. Exactly one of two concurrent applications against the same
// request version can transition status; the loser observes ErrOptimisticLock
// and must ask its user to retry, never retry silently.
func (e *Engine) ApplyDecision(ctx context.Context, def *Definition, in DecisionInput) (*DecisionResult, error) {
	var result *DecisionResult

	err := e.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		request, err := e.requestRepo.GetByID(ctx, tx, in.RequestID)
		if err != nil {
			return err
		}
		if request == nil {
			return fmt.Errorf("request %d: %w", in.RequestID, ErrNotPending)
		}

		status, err := ParseStatus(request.Status)
		if err != nil {
			return err
		}
		if status.IsTerminal() {
			return ErrNotPending
		}

		decisions, err := e.decisionRepo.ListByRequestLevel(ctx, tx, request.ID, status.Level)
		if err != nil {
			return err
		}

		before := Evaluate(def, status, decisions)
		if !before.Actionable() {
			return ErrNotPending
		}
		if !before.IsWaitingOn(in.ActingUser) {
			return ErrNotWaitingOnUser
		}

		levelDef := def.LevelAt(before.Level)
		tieBreakerActing := before.AwaitingTieBreaker && in.ActingUser == levelDef.TieBreaker

		decision := &models.ApprovalDecision{
			RequestID:     request.ID,
			Level:         before.Level,
			DecidedBy:     in.ActingUser,
			Decision:      in.Decision,
			DecidedAt:     time.Now().UTC(),
			Reason:        in.Reason,
			AttachmentURL: in.AttachmentURL,
			Source:        in.Source,
		}
		if err := e.decisionRepo.Upsert(ctx, tx, decision); err != nil {
			return err
		}

		decisions, err = e.decisionRepo.ListByRequestLevel(ctx, tx, request.ID, status.Level)
		if err != nil {
			return err
		}
		after := Evaluate(def, status, decisions)

		outcome := resolveLevel(in.Decision, tieBreakerActing, after)

		switch outcome {
		case levelPending:
			result = e.buildResult(def, after, "")
			return nil

		case levelRejected:
			if err := e.transition(ctx, tx, request, Rejected, in.ActingUser); err != nil {
				return err
			}
			result = e.buildResult(def, Evaluate(def, Rejected, nil), models.DecisionRejected)
			return nil

		case levelCompleted:
			if before.Level >= def.TotalLevels() {
				if err := e.transition(ctx, tx, request, Approved, in.ActingUser); err != nil {
					return err
				}
				result = e.buildResult(def, Evaluate(def, Approved, nil), models.DecisionApproved)
				return nil
			}

			next := Pending(before.Level + 1)
			if err := e.transition(ctx, tx, request, next, in.ActingUser); err != nil {
				return err
			}
			// The next level starts with zero decisions.
			result = e.buildResult(def, Evaluate(def, next, nil), "")
			return nil

		default:
			return fmt.Errorf("unreachable level outcome %d", outcome)
		}
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Decision applied",
		zap.Int64("request_id", in.RequestID),
		zap.String("decided_by", in.ActingUser),
		zap.String("decision", in.Decision),
		zap.String("status", result.Status.String()))
	return result, nil
}

type levelOutcome int

const (
	levelPending levelOutcome = iota
	levelCompleted
	levelRejected
)

// resolveLevel decides what the just-recorded decision means for the active
// level. A rejection that produces an even split with a configured, undecided
// tie-breaker parks the level on the tie-breaker instead of terminating; any
// other rejection short-circuits the whole request, including the case where
// quorum has become unreachable.
func resolveLevel(decision string, tieBreakerActing bool, after LevelRuntime) levelOutcome {
	if tieBreakerActing {
		if decision == models.DecisionRejected {
			return levelRejected
		}
		return levelCompleted
	}

	switch {
	case after.Approvals >= after.Quorum:
		return levelCompleted
	case after.AwaitingTieBreaker:
		return levelPending
	case after.Rejections > 0:
		return levelRejected
	case len(after.WaitingOn) == 0:
		// Exhausted without quorum and without a live tie-break: fail safe
		// rather than leaving the request stuck with no eligible deciders.
		return levelRejected
	default:
		return levelPending
	}
}

func (e *Engine) transition(ctx context.Context, tx *sql.Tx, request *models.Request, newStatus Status, decidedBy string) error {
	err := e.requestRepo.TransitionStatus(ctx, tx, request, newStatus.String(), decidedBy)
	if errors.Is(err, repository.ErrVersionConflict) {
		return ErrOptimisticLock
	}
	if errors.Is(err, repository.ErrNotTerminalizable) {
		return ErrNotPending
	}
	return err
}

func (e *Engine) buildResult(def *Definition, runtime LevelRuntime, finalDecision string) *DecisionResult {
	return &DecisionResult{
		FinalDecision:  finalDecision,
		Status:         runtime.Status,
		StatusText:     FormatStatusText(runtime),
		ApproverLevel:  runtime.Level,
		IncludeActions: !runtime.Status.IsTerminal(),
		WaitingOn:      runtime.WaitingOn,
	}
}
