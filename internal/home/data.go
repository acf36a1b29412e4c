package home

import (
	"context"

	"github.com/approvalkit/slack-workflow-engine/internal/models"
	"github.com/approvalkit/slack-workflow-engine/internal/repository"
	"go.uber.org/zap"
)

// Summary is the lightweight request representation rendered on the Home tab.
type Summary struct {
	Request *models.Request
}

// Page is one page of summaries plus pagination hints.
type Page struct {
	Items       []Summary
	Offset      int
	Limit       int
	HasPrevious bool
	HasMore     bool
}

// Data answers the Home tab's two questions: what did I submit, and what is
// waiting on others to decide.
type Data struct {
	requestRepo *repository.RequestRepository
	logger      *zap.Logger
}

// NewData creates the Home data reader.
func NewData(requestRepo *repository.RequestRepository, logger *zap.Logger) *Data {
	return &Data{requestRepo: requestRepo, logger: logger}
}

// RecentRequests returns requests created by userID under the filters,
// newest first by default.
func (d *Data) RecentRequests(ctx context.Context, userID string, filters Filters) (Page, error) {
	requests, err := d.requestRepo.ListByCreator(ctx, userID, filters.toListFilter())
	if err != nil {
		return Page{}, err
	}
	return paginate(requests, filters), nil
}

// PendingApprovals returns pending requests created by someone other than
// approverID. Per-level eligibility is rendered, not filtered, here: the
// allow-list gate and the evaluator decide who may actually act.
func (d *Data) PendingApprovals(ctx context.Context, approverID string, filters Filters) (Page, error) {
	if len(filters.Statuses) == 0 {
		filters.Statuses = []string{"PENDING"}
	}
	requests, err := d.requestRepo.ListForApprover(ctx, approverID, filters.toListFilter())
	if err != nil {
		return Page{}, err
	}
	return paginate(requests, filters), nil
}

func paginate(requests []*models.Request, filters Filters) Page {
	hasMore := len(requests) > filters.Limit
	if hasMore {
		requests = requests[:filters.Limit]
	}

	items := make([]Summary, 0, len(requests))
	for _, request := range requests {
		items = append(items, Summary{Request: request})
	}

	return Page{
		Items:       items,
		Offset:      filters.Offset,
		Limit:       filters.Limit,
		HasPrevious: filters.Offset > 0,
		HasMore:     hasMore,
	}
}
