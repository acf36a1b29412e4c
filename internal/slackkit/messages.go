package slackkit

import (
	"fmt"
	"strings"

	"github.com/approvalkit/slack-workflow-engine/internal/workflow"
	"github.com/slack-go/slack"
)

const missingValue = "_Not provided_"

const decisionButtonsBlockID = "workflow_decision_buttons"

func formatFieldLine(label string, value any) string {
	if value == nil {
		return fmt.Sprintf("*%s:* %s", label, missingValue)
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return fmt.Sprintf("*%s:* %s", label, missingValue)
	}
	return fmt.Sprintf("*%s:* %v", label, value)
}

func fieldsSection(def *workflow.Definition, submission map[string]any) *slack.SectionBlock {
	lines := make([]string, 0, len(def.Fields))
	for _, field := range def.Fields {
		lines = append(lines, formatFieldLine(field.Label, submission[field.Name]))
	}
	if len(lines) == 0 {
		lines = append(lines, missingValue)
	}

	return slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, strings.Join(lines, "\n"), false, false),
		nil, nil)
}

func decisionButtons(requestID int64, workflowType string, level int) *slack.ActionBlock {
	payload := ActionContext{
		RequestID:    requestID,
		WorkflowType: workflowType,
		Level:        level,
	}.Encode()

	approve := slack.NewButtonBlockElement(ApproveActionID, payload,
		slack.NewTextBlockObject(slack.PlainTextType, "Approve", true, false))
	approve.Style = slack.StylePrimary

	reject := slack.NewButtonBlockElement(RejectActionID, payload,
		slack.NewTextBlockObject(slack.PlainTextType, "Reject", true, false))
	reject.Style = slack.StyleDanger
	reject.Confirm = slack.NewConfirmationBlockObject(
		slack.NewTextBlockObject(slack.PlainTextType, "Reject request", false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "Are you sure you want to reject this request?", false, false),
		slack.NewTextBlockObject(slack.PlainTextType, "Reject", false, false),
		slack.NewTextBlockObject(slack.PlainTextType, "Cancel", false, false),
	)

	return slack.NewActionBlock(decisionButtonsBlockID, approve, reject)
}

// RequestMessage is the rendered Slack message for a workflow request.
type RequestMessage struct {
	Text   string
	Blocks []slack.Block
}

// BuildRequestMessage renders the canonical channel message for a request:
// title, submitted fields, status line, and decision buttons while the
// request is still actionable.
func BuildRequestMessage(
	def *workflow.Definition,
	submission map[string]any,
	requestID int64,
	statusText string,
	approverLevel int,
	includeActions bool,
) RequestMessage {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, def.Title, true, false)),
		fieldsSection(def, submission),
	}

	if statusText != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, statusText, false, false),
			nil, nil))
	}

	blocks = append(blocks, slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("- Workflow: `%s` - Request ID: `%d`", def.Type, requestID), false, false)))

	if includeActions {
		blocks = append(blocks, decisionButtons(requestID, def.Type, approverLevel))
	}

	return RequestMessage{
		Text:   fmt.Sprintf("New %s request submitted.", def.Title),
		Blocks: blocks,
	}
}

var decisionEmoji = map[string]string{
	"APPROVED": ":white_check_mark:",
	"REJECTED": ":no_entry_sign:",
}

// BuildDecisionUpdate renders the message after a decision moved the request:
// the same body with the refreshed status line, plus a decision footer and no
// buttons once the request is terminal.
func BuildDecisionUpdate(
	def *workflow.Definition,
	submission map[string]any,
	requestID int64,
	statusText string,
	finalDecision string,
	decidedBy string,
	approverLevel int,
	includeActions bool,
) RequestMessage {
	message := BuildRequestMessage(def, submission, requestID, statusText, approverLevel, includeActions)

	if finalDecision != "" {
		emoji, ok := decisionEmoji[strings.ToUpper(finalDecision)]
		if !ok {
			emoji = ":information_source:"
		}
		label := strings.ToUpper(finalDecision[:1]) + strings.ToLower(finalDecision[1:])

		message.Blocks = append(message.Blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("%s %s by <@%s>", emoji, label, decidedBy), false, false)))
		message.Text = fmt.Sprintf("%s %s by <@%s>.", message.Text, label, decidedBy)
	}

	return message
}
