package slackkit

import (
	"encoding/json"
	"fmt"
)

// Action and callback identifiers shared between the message builders and the
// webhook dispatcher.
const (
	ApproveActionID     = "workflow_approve"
	RejectActionID      = "workflow_reject"
	HomeApproveActionID = "home_approve"
	HomeRejectActionID  = "home_reject"
	HomePrevActionID    = "home_prev_page"
	HomeNextActionID    = "home_next_page"

	HomeStatusFilterActionID = "home_status_filter"

	SubmitCallbackPrefix = "workflow_submit:"
	HomeDecisionCallback = "home_decision"
)

// ActionContext is the compact payload carried in decision button values and
// modal private metadata. It identifies the request a decision targets.
type ActionContext struct {
	RequestID    int64  `json:"request_id"`
	WorkflowType string `json:"workflow_type"`
	Level        int    `json:"level,omitempty"`
	Decision     string `json:"decision,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}

// Encode renders the context as compact JSON for a button value.
func (a ActionContext) Encode() string {
	data, _ := json.Marshal(a)
	return string(data)
}

// ParseActionContext decodes a button value back into an ActionContext.
func ParseActionContext(value string) (ActionContext, error) {
	var ctx ActionContext
	if err := json.Unmarshal([]byte(value), &ctx); err != nil {
		return ActionContext{}, fmt.Errorf("malformed action payload: %w", err)
	}
	if ctx.RequestID <= 0 || ctx.WorkflowType == "" {
		return ActionContext{}, fmt.Errorf("action payload missing request id or workflow type")
	}
	return ctx, nil
}
