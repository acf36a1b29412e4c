package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/approvalkit/slack-workflow-engine/internal/background"
	"github.com/approvalkit/slack-workflow-engine/internal/config"
	"github.com/approvalkit/slack-workflow-engine/internal/home"
	"github.com/approvalkit/slack-workflow-engine/internal/models"
	"github.com/approvalkit/slack-workflow-engine/internal/repository"
	"github.com/approvalkit/slack-workflow-engine/internal/slackkit"
	"github.com/approvalkit/slack-workflow-engine/internal/workflow"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

const rawBodyKey = "raw_body"

// asyncTimeout bounds background Slack calls kicked off by a handler.
const asyncTimeout = 30 * time.Second

// Handler terminates Slack webhooks: slash commands, interactive actions,
// and event callbacks. It authenticates and authorizes, then hands decisions
// to the workflow engine and fans the results back out to Slack.
type Handler struct {
	verifier *Verifier
	registry *workflow.Registry
	engine   *workflow.Engine
	notifier *slackkit.Notifier
	client   *slackkit.Client
	homePub  *home.Publisher
	executor *background.Executor
	history  *repository.HistoryRepository
	slackCfg config.SlackConfig
	logger   *zap.Logger
}

// NewHandler creates the webhook handler.
func NewHandler(
	verifier *Verifier,
	registry *workflow.Registry,
	engine *workflow.Engine,
	notifier *slackkit.Notifier,
	client *slackkit.Client,
	homePub *home.Publisher,
	executor *background.Executor,
	history *repository.HistoryRepository,
	slackCfg config.SlackConfig,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		verifier: verifier,
		registry: registry,
		engine:   engine,
		notifier: notifier,
		client:   client,
		homePub:  homePub,
		executor: executor,
		history:  history,
		slackCfg: slackCfg,
		logger:   logger,
	}
}

// Register mounts the Slack endpoints behind signature verification, plus the
// internal audit API.
func (h *Handler) Register(router gin.IRouter) {
	group := router.Group("/slack", h.verifySignature)
	group.POST("/commands", h.HandleCommand)
	group.POST("/interactions", h.HandleInteraction)
	group.POST("/events", h.HandleEvent)

	router.GET("/api/v1/requests/:id", h.HandleRequestAudit)
}

// verifySignature reads the raw body, validates the Slack signature, and
// stashes the body for the endpoint handlers.
func (h *Handler) verifySignature(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("Failed to read request body", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	timestamp := c.GetHeader(TimestampHeader)
	signature := c.GetHeader(SignatureHeader)
	if !h.verifier.Verify(timestamp, signature, body) {
		h.logger.Warn("Invalid Slack signature",
			zap.String("timestamp", timestamp),
			zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	c.Set(rawBodyKey, body)
	c.Next()
}

func rawBody(c *gin.Context) []byte {
	if body, ok := c.Get(rawBodyKey); ok {
		return body.([]byte)
	}
	return nil
}

func (h *Handler) traceLogger(c *gin.Context) *zap.Logger {
	return h.logger.With(zap.String("trace_id", uuid.NewString()))
}

func ephemeral(c *gin.Context, text string) {
	c.JSON(http.StatusOK, gin.H{"response_type": "ephemeral", "text": text})
}

// HandleCommand serves the /request slash command by opening the submission
// modal for the requested workflow type.
func (h *Handler) HandleCommand(c *gin.Context) {
	log := h.traceLogger(c)

	form, err := url.ParseQuery(string(rawBody(c)))
	if err != nil {
		ephemeral(c, "Unable to parse the command payload.")
		return
	}

	workflowType := strings.ToLower(strings.TrimSpace(form.Get("text")))
	if workflowType == "" {
		ephemeral(c, "Usage: /request <workflow-type>. Known types: "+strings.Join(h.registry.Types(), ", ")+".")
		return
	}

	def, err := h.registry.Get(workflowType)
	if err != nil {
		log.Warn("Unknown workflow type requested", zap.String("workflow_type", workflowType))
		ephemeral(c, "Unknown workflow type \""+workflowType+"\". Known types: "+strings.Join(h.registry.Types(), ", ")+".")
		return
	}

	triggerID := form.Get("trigger_id")
	if err := h.client.OpenView(c.Request.Context(), triggerID, slackkit.BuildRequestModal(def)); err != nil {
		log.Error("Failed to open request modal",
			zap.String("workflow_type", workflowType), zap.Error(err))
		ephemeral(c, "Could not open the request form. Please try again.")
		return
	}

	c.Status(http.StatusOK)
}

// HandleEvent serves the Events API: the URL verification handshake and
// app_home_opened refreshes.
func (h *Handler) HandleEvent(c *gin.Context) {
	body := rawBody(c)

	var envelope struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
		Event     struct {
			Type string `json:"type"`
			User string `json:"user"`
			Tab  string `json:"tab"`
		} `json:"event"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event payload"})
		return
	}

	switch envelope.Type {
	case "url_verification":
		c.JSON(http.StatusOK, gin.H{"challenge": envelope.Challenge})
	case "event_callback":
		if envelope.Event.Type == "app_home_opened" && envelope.Event.Tab != "messages" {
			userID := envelope.Event.User
			h.executor.Submit(func(ctx context.Context) {
				ctx, cancel := context.WithTimeout(ctx, asyncTimeout)
				defer cancel()
				h.homePub.PublishDebounced(ctx, userID, home.Filters{})
			})
		}
		c.Status(http.StatusOK)
	default:
		c.Status(http.StatusOK)
	}
}

// HandleInteraction serves interactive payloads: decision buttons, Home
// actions, and modal submissions.
func (h *Handler) HandleInteraction(c *gin.Context) {
	log := h.traceLogger(c)

	form, err := url.ParseQuery(string(rawBody(c)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed interaction payload"})
		return
	}

	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(form.Get("payload")), &callback); err != nil {
		log.Error("Failed to parse interaction callback", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed interaction payload"})
		return
	}

	switch callback.Type {
	case slack.InteractionTypeBlockActions:
		h.handleBlockActions(c, log, &callback)
	case slack.InteractionTypeViewSubmission:
		h.handleViewSubmission(c, log, &callback)
	default:
		c.Status(http.StatusOK)
	}
}

func (h *Handler) handleBlockActions(c *gin.Context, log *zap.Logger, callback *slack.InteractionCallback) {
	if len(callback.ActionCallback.BlockActions) == 0 {
		ephemeral(c, "Unable to process this action payload.")
		return
	}
	action := callback.ActionCallback.BlockActions[0]
	userID := callback.User.ID

	switch action.ActionID {
	case slackkit.ApproveActionID:
		h.applyFromAction(c, log, callback, action.Value, models.DecisionApproved, models.SourceChannel)
	case slackkit.RejectActionID:
		h.applyFromAction(c, log, callback, action.Value, models.DecisionRejected, models.SourceChannel)
	case slackkit.HomeApproveActionID:
		h.applyFromAction(c, log, callback, action.Value, models.DecisionApproved, models.SourceHome)
	case slackkit.HomeRejectActionID:
		h.openHomeDecisionModal(c, log, callback, action.Value)
	case slackkit.HomePrevActionID, slackkit.HomeNextActionID:
		offset, err := strconv.Atoi(action.Value)
		if err != nil {
			offset = 0
		}
		h.executor.Submit(func(ctx context.Context) {
			ctx, cancel := context.WithTimeout(ctx, asyncTimeout)
			defer cancel()
			h.homePub.Publish(ctx, userID, home.Filters{Offset: home.ClampOffset(offset)})
		})
		c.Status(http.StatusOK)
	case slackkit.HomeStatusFilterActionID:
		selection := action.SelectedOption.Value
		h.executor.Submit(func(ctx context.Context) {
			ctx, cancel := context.WithTimeout(ctx, asyncTimeout)
			defer cancel()
			h.homePub.Publish(ctx, userID, home.StatusFilter(selection))
		})
		c.Status(http.StatusOK)
	default:
		log.Warn("Unhandled block action", zap.String("action_id", action.ActionID))
		c.Status(http.StatusOK)
	}
}

func (h *Handler) openHomeDecisionModal(c *gin.Context, log *zap.Logger, callback *slack.InteractionCallback, value string) {
	actionCtx, err := slackkit.ParseActionContext(value)
	if err != nil {
		log.Warn("Invalid home action payload", zap.Error(err))
		c.Status(http.StatusOK)
		return
	}
	actionCtx.Decision = models.DecisionRejected

	view := slackkit.BuildDecisionModal(actionCtx, "Reject request")
	if err := h.client.OpenView(c.Request.Context(), callback.TriggerID, view); err != nil {
		log.Error("Failed to open decision modal", zap.Error(err))
	}
	c.Status(http.StatusOK)
}

func (h *Handler) applyFromAction(c *gin.Context, log *zap.Logger, callback *slack.InteractionCallback, value, decision, source string) {
	actionCtx, err := slackkit.ParseActionContext(value)
	if err != nil {
		log.Warn("Invalid action payload", zap.Error(err))
		ephemeral(c, "This action payload is invalid. Please retry from Slack.")
		return
	}

	outcome := h.applyDecision(c.Request.Context(), log, callback.User.ID, actionCtx, decision, "", "", source)
	ephemeral(c, outcome)
}

// applyDecision runs the authorization gate and the engine, and returns the
// user-facing outcome text. Message and Home refreshes are scheduled in the
// background; they never block the acknowledgement.
func (h *Handler) applyDecision(
	ctx context.Context,
	log *zap.Logger,
	userID string,
	actionCtx slackkit.ActionContext,
	decision, reason, attachmentURL, source string,
) string {
	log = log.With(
		zap.Int64("request_id", actionCtx.RequestID),
		zap.String("workflow_type", actionCtx.WorkflowType),
		zap.String("user_id", userID))

	if userID == "" {
		return "We could not identify the acting user."
	}
	if !h.slackCfg.IsApprover(userID) {
		log.Warn("Unauthorized decision attempt")
		return "You are not authorized to decide on this request."
	}

	def, err := h.registry.Get(actionCtx.WorkflowType)
	if err != nil {
		log.Error("Workflow definition unavailable", zap.Error(err))
		return "This workflow is not configured. Please contact an administrator."
	}

	request, err := h.engine.GetRequest(ctx, actionCtx.RequestID)
	if err != nil {
		log.Error("Failed to load request", zap.Error(err))
		return "Something went wrong. Please try again."
	}
	if request == nil {
		return "Request could not be found."
	}
	if request.Type != actionCtx.WorkflowType {
		log.Warn("Workflow type mismatch", zap.String("request_type", request.Type))
		return "Workflow type mismatch for this request."
	}
	if request.CreatedBy == userID {
		log.Info("Self-decision blocked")
		return "You cannot decide on your own request."
	}

	result, err := h.engine.ApplyDecision(ctx, def, workflow.DecisionInput{
		RequestID:     actionCtx.RequestID,
		ActingUser:    userID,
		Decision:      decision,
		Reason:        reason,
		AttachmentURL: attachmentURL,
		Source:        source,
	})
	switch {
	case errors.Is(err, workflow.ErrNotPending):
		return "This request has already been decided."
	case errors.Is(err, workflow.ErrNotWaitingOnUser):
		return "This request is not currently waiting on you."
	case errors.Is(err, workflow.ErrOptimisticLock):
		return "Request was updated concurrently. Please try again."
	case err != nil:
		log.Error("Failed to apply decision", zap.Error(err))
		return "Something went wrong. Please try again."
	}

	log.Info("Decision recorded",
		zap.String("decision", decision),
		zap.String("status", result.Status.String()))

	creator := request.CreatedBy
	h.executor.Submit(func(taskCtx context.Context) {
		taskCtx, cancel := context.WithTimeout(taskCtx, asyncTimeout)
		defer cancel()
		h.notifier.UpdateRequestMessage(taskCtx, def, request, result, userID)
		h.homePub.PublishDebounced(taskCtx, userID, home.Filters{})
		h.homePub.PublishDebounced(taskCtx, creator, home.Filters{})
	})

	if result.FinalDecision != "" {
		return "Request " + strings.ToLower(result.FinalDecision) + "."
	}
	return "Decision recorded. " + result.StatusText
}

func (h *Handler) handleViewSubmission(c *gin.Context, log *zap.Logger, callback *slack.InteractionCallback) {
	callbackID := callback.View.CallbackID

	switch {
	case strings.HasPrefix(callbackID, slackkit.SubmitCallbackPrefix):
		h.handleRequestSubmission(c, log, callback, strings.TrimPrefix(callbackID, slackkit.SubmitCallbackPrefix))
	case callbackID == slackkit.HomeDecisionCallback:
		h.handleHomeDecisionSubmission(c, log, callback)
	default:
		c.Status(http.StatusOK)
	}
}

func (h *Handler) handleRequestSubmission(c *gin.Context, log *zap.Logger, callback *slack.InteractionCallback, workflowType string) {
	userID := callback.User.ID
	log = log.With(zap.String("workflow_type", workflowType), zap.String("user_id", userID))

	def, err := h.registry.Get(workflowType)
	if err != nil {
		log.Error("Workflow definition unavailable on submission", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{
			"response_action": "errors",
			"errors":          gin.H{"": "This workflow is not configured. Please contact an administrator."},
		})
		return
	}

	submission, err := workflow.ParseSubmission(modalState(callback), def)
	if err != nil {
		var validation *workflow.ValidationError
		if errors.As(err, &validation) {
			c.JSON(http.StatusOK, gin.H{
				"response_action": "errors",
				"errors":          gin.H{validation.Field: validation.Message},
			})
			return
		}
		log.Error("Failed to parse submission", zap.Error(err))
		c.Status(http.StatusOK)
		return
	}

	request, err := h.engine.CreateRequest(c.Request.Context(), def, userID, submission)
	if errors.Is(err, workflow.ErrDuplicateRequest) {
		c.JSON(http.StatusOK, gin.H{
			"response_action": "errors",
			"errors":          gin.H{firstFieldName(def): "An identical request already exists."},
		})
		return
	}
	if err != nil {
		log.Error("Failed to create request", zap.Error(err))
		c.Status(http.StatusOK)
		return
	}

	h.executor.Submit(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, asyncTimeout)
		defer cancel()

		runtime, err := h.engine.RuntimeFor(ctx, def, request)
		if err != nil {
			log.Error("Failed to evaluate new request", zap.Error(err))
			return
		}
		h.notifier.PublishRequest(ctx, def, request, runtime)
		h.homePub.PublishDebounced(ctx, request.CreatedBy, home.Filters{})
	})

	c.Status(http.StatusOK)
}

func (h *Handler) handleHomeDecisionSubmission(c *gin.Context, log *zap.Logger, callback *slack.InteractionCallback) {
	actionCtx, err := slackkit.ParseActionContext(callback.View.PrivateMetadata)
	if err != nil || actionCtx.Decision == "" {
		log.Warn("Invalid home decision metadata", zap.Error(err))
		c.Status(http.StatusOK)
		return
	}

	reason := slackkit.DecisionModalReason(callback.View.State)
	if actionCtx.Decision == models.DecisionRejected && strings.TrimSpace(reason) == "" {
		c.JSON(http.StatusOK, gin.H{
			"response_action": "errors",
			"errors":          gin.H{slackkit.DecisionReasonBlockID: "Please provide a rejection reason."},
		})
		return
	}

	attachmentURL := strings.TrimSpace(slackkit.DecisionModalAttachmentURL(callback.View.State))
	if attachmentURL != "" && !validAttachmentURL(attachmentURL) {
		c.JSON(http.StatusOK, gin.H{
			"response_action": "errors",
			"errors":          gin.H{slackkit.DecisionAttachmentBlockID: "Attachment must be an http(s) URL."},
		})
		return
	}

	outcome := h.applyDecision(c.Request.Context(), log, callback.User.ID,
		actionCtx, actionCtx.Decision, reason, attachmentURL, models.SourceHome)

	log.Info("Home decision handled", zap.String("outcome", outcome))
	c.Status(http.StatusOK)
}

func validAttachmentURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// modalState converts slack-go view state into the engine's submission shape.
// Empty inputs become nil values so optional fields read as "not provided".
func modalState(callback *slack.InteractionCallback) map[string]map[string]workflow.ModalValue {
	state := make(map[string]map[string]workflow.ModalValue)
	if callback.View.State == nil {
		return state
	}
	for blockID, actions := range callback.View.State.Values {
		converted := make(map[string]workflow.ModalValue, len(actions))
		for actionID, action := range actions {
			var value *string
			if action.Value != "" {
				v := action.Value
				value = &v
			}
			converted[actionID] = workflow.ModalValue{Value: value}
		}
		state[blockID] = converted
	}
	return state
}

func firstFieldName(def *workflow.Definition) string {
	if len(def.Fields) > 0 {
		return def.Fields[0].Name
	}
	return ""
}

// HandleRequestAudit serves the internal audit API: one request with its full
// decision trail and status history. It is not a Slack surface and carries no
// signature; deploy it behind the operator network boundary.
func (h *Handler) HandleRequestAudit(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	ctx := c.Request.Context()
	request, err := h.engine.GetRequest(ctx, id)
	if err != nil {
		h.logger.Error("Failed to load request for audit", zap.Int64("request_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load request"})
		return
	}
	if request == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		return
	}

	decisions, err := h.engine.ListDecisions(ctx, id)
	if err != nil {
		h.logger.Error("Failed to load decisions for audit", zap.Int64("request_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load decisions"})
		return
	}

	transitions, err := h.history.ListByRequest(ctx, id)
	if err != nil {
		h.logger.Error("Failed to load status history for audit", zap.Int64("request_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load status history"})
		return
	}

	decisionRows := make([]gin.H, 0, len(decisions))
	for _, d := range decisions {
		decisionRows = append(decisionRows, gin.H{
			"level":          d.Level,
			"decision":       d.Decision,
			"decided_by":     d.DecidedBy,
			"decided_at":     d.DecidedAt,
			"reason":         d.Reason,
			"attachment_url": d.AttachmentURL,
			"source":         d.Source,
		})
	}

	historyRows := make([]gin.H, 0, len(transitions))
	for _, t := range transitions {
		historyRows = append(historyRows, gin.H{
			"previous_status": t.PreviousStatus,
			"new_status":      t.NewStatus,
			"decided_by":      t.DecidedBy,
			"created_at":      t.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"request": gin.H{
			"id":         request.ID,
			"type":       request.Type,
			"created_by": request.CreatedBy,
			"status":     request.Status,
			"created_at": request.CreatedAt,
			"updated_at": request.UpdatedAt,
			"decided_by": request.DecidedBy,
			"decided_at": request.DecidedAt,
			"version":    request.Version,
		},
		"decisions": decisionRows,
		"history":   historyRows,
	})
}
