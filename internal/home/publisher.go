package home

import (
	"context"
	"time"

	"github.com/approvalkit/slack-workflow-engine/internal/slackkit"
	"go.uber.org/zap"
)

// Publisher assembles and publishes App Home views, debounced per user.
type Publisher struct {
	data      *Data
	client    *slackkit.Client
	debouncer *Debouncer
	pageSize  int
	logger    *zap.Logger
}

// NewPublisher creates a Home publisher.
func NewPublisher(data *Data, client *slackkit.Client, debounceWindow time.Duration, pageSize int, logger *zap.Logger) *Publisher {
	return &Publisher{
		data:      data,
		client:    client,
		debouncer: NewDebouncer(debounceWindow, nil),
		pageSize:  ClampLimit(pageSize, DefaultPageSize),
		logger:    logger,
	}
}

// Publish renders and publishes the Home tab for one user. Failures are
// logged; the Home tab is a convenience surface and must never fail a
// decision flow.
func (p *Publisher) Publish(ctx context.Context, userID string, filters Filters) {
	if userID == "" {
		return
	}
	if filters.Limit == 0 {
		filters = Normalize(RawFilters{Limit: p.pageSize, Offset: filters.Offset})
	}

	myRequests, err := p.data.RecentRequests(ctx, userID, filters)
	if err != nil {
		p.logger.Error("Failed to load user requests for Home",
			zap.String("user_id", userID), zap.Error(err))
		return
	}

	pendingFilters := filters
	pendingFilters.Statuses = nil
	pendingFilters.SortOrder = "asc"
	pendingApprovals, err := p.data.PendingApprovals(ctx, userID, pendingFilters)
	if err != nil {
		p.logger.Error("Failed to load pending approvals for Home",
			zap.String("user_id", userID), zap.Error(err))
		return
	}

	view := BuildView(myRequests, pendingApprovals, filters)
	if err := p.client.PublishHomeView(ctx, userID, view); err != nil {
		p.logger.Error("Failed to publish Home view",
			zap.String("user_id", userID), zap.Error(err))
	}
}

// PublishDebounced publishes unless the user's debounce window is still open.
func (p *Publisher) PublishDebounced(ctx context.Context, userID string, filters Filters) {
	if !p.debouncer.ShouldPublish(userID) {
		p.logger.Debug("Skipping Home publish inside debounce window",
			zap.String("user_id", userID))
		return
	}
	p.Publish(ctx, userID, filters)
}
