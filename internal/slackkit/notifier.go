package slackkit

import (
	"context"
	"encoding/json"

	"github.com/approvalkit/slack-workflow-engine/internal/models"
	"github.com/approvalkit/slack-workflow-engine/internal/repository"
	"github.com/approvalkit/slack-workflow-engine/internal/workflow"
	"go.uber.org/zap"
)

// Notifier publishes and refreshes the channel message of a request. Every
// call is best-effort: a Slack failure is logged and swallowed, never allowed
// to roll back or block a committed state transition.
type Notifier struct {
	client      *Client
	messageRepo *repository.MessageRepository
	logger      *zap.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(client *Client, messageRepo *repository.MessageRepository, logger *zap.Logger) *Notifier {
	return &Notifier{client: client, messageRepo: messageRepo, logger: logger}
}

func decodeSubmission(payloadJSON string, logger *zap.Logger, requestID int64) map[string]any {
	submission := map[string]any{}
	if payloadJSON == "" {
		return submission
	}
	if err := json.Unmarshal([]byte(payloadJSON), &submission); err != nil {
		logger.Error("Stored payload is invalid JSON",
			zap.Int64("request_id", requestID), zap.Error(err))
	}
	return submission
}

// PublishRequest posts the initial request message to the workflow's notify
// channel and stores the message reference for later updates.
func (n *Notifier) PublishRequest(
	ctx context.Context,
	def *workflow.Definition,
	request *models.Request,
	runtime workflow.LevelRuntime,
) {
	submission := decodeSubmission(request.PayloadJSON, n.logger, request.ID)
	message := BuildRequestMessage(def, submission, request.ID,
		workflow.FormatStatusText(runtime), runtime.Level, true)

	channel, ts, err := n.client.PostMessage(ctx, def.NotifyChannel, message.Text, message.Blocks)
	if err != nil {
		n.logger.Error("Failed to publish request message",
			zap.Int64("request_id", request.ID),
			zap.String("workflow_type", def.Type),
			zap.Error(err))
		return
	}

	ref := &models.MessageRef{
		RequestID: request.ID,
		ChannelID: channel,
		TS:        ts,
	}
	if err := n.messageRepo.Save(ctx, nil, ref); err != nil {
		n.logger.Error("Failed to persist message reference",
			zap.Int64("request_id", request.ID), zap.Error(err))
	}
}

// UpdateRequestMessage refreshes the channel message after a decision.
func (n *Notifier) UpdateRequestMessage(
	ctx context.Context,
	def *workflow.Definition,
	request *models.Request,
	result *workflow.DecisionResult,
	decidedBy string,
) {
	ref, err := n.messageRepo.GetByRequestID(ctx, nil, request.ID)
	if err != nil {
		n.logger.Error("Failed to load message reference",
			zap.Int64("request_id", request.ID), zap.Error(err))
		return
	}
	if ref == nil {
		n.logger.Warn("No message reference for request; skipping update",
			zap.Int64("request_id", request.ID))
		return
	}

	submission := decodeSubmission(request.PayloadJSON, n.logger, request.ID)
	message := BuildDecisionUpdate(def, submission, request.ID,
		result.StatusText, result.FinalDecision, decidedBy,
		result.ApproverLevel, result.IncludeActions)

	if err := n.client.UpdateMessage(ctx, ref.ChannelID, ref.TS, message.Text, message.Blocks); err != nil {
		n.logger.Error("Failed to update request message",
			zap.Int64("request_id", request.ID),
			zap.String("channel", ref.ChannelID),
			zap.Error(err))
	}
}
