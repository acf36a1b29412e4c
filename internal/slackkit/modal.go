package slackkit

import (
	"fmt"

	"github.com/approvalkit/slack-workflow-engine/internal/models"
	"github.com/approvalkit/slack-workflow-engine/internal/workflow"
	"github.com/slack-go/slack"
)

// Slack caps modal titles at 24 characters and labels at 75.
const (
	maxTitleLength = 24
	maxLabelLength = 75
)

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}

func fieldInputBlock(field workflow.FieldDefinition) *slack.InputBlock {
	element := slack.NewPlainTextInputBlockElement(
		slack.NewTextBlockObject(slack.PlainTextType, "Enter a value", false, false),
		field.Name)
	if field.Type == workflow.FieldTypeTextarea {
		element.Multiline = true
	}

	block := slack.NewInputBlock(field.Name,
		slack.NewTextBlockObject(slack.PlainTextType, truncate(field.Label, maxLabelLength), true, false),
		nil, element)
	block.Optional = !field.Required
	return block
}

// BuildRequestModal renders the submission modal for a workflow definition.
// The field name doubles as block and action id so submissions map straight
// back onto the definition.
func BuildRequestModal(def *workflow.Definition) slack.ModalViewRequest {
	blocks := make([]slack.Block, 0, len(def.Fields))
	for _, field := range def.Fields {
		blocks = append(blocks, fieldInputBlock(field))
	}

	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: SubmitCallbackPrefix + def.Type,
		Title:      slack.NewTextBlockObject(slack.PlainTextType, truncate(def.Title, maxTitleLength), true, false),
		Submit:     slack.NewTextBlockObject(slack.PlainTextType, "Submit", true, false),
		Close:      slack.NewTextBlockObject(slack.PlainTextType, "Cancel", true, false),
		Blocks:     slack.Blocks{BlockSet: blocks},
	}
}

// Input identifiers used by the Home decision modal. The block ids are
// exported so submission validation errors can be keyed to their blocks.
const (
	DecisionReasonBlockID     = "decision_reason"
	DecisionAttachmentBlockID = "decision_attachment"

	reasonActionID     = "reason"
	attachmentActionID = "attachment_url"
)

// BuildDecisionModal renders the Home-tab decision confirmation modal. The
// action context, including the chosen decision, rides in private metadata.
// Rejections require a reason; the attachment URL is always optional.
func BuildDecisionModal(actionCtx ActionContext, title string) slack.ModalViewRequest {
	reason := slack.NewPlainTextInputBlockElement(
		slack.NewTextBlockObject(slack.PlainTextType, "Explain your decision", false, false),
		reasonActionID)
	reason.Multiline = true

	reasonBlock := slack.NewInputBlock(DecisionReasonBlockID,
		slack.NewTextBlockObject(slack.PlainTextType, "Reason", true, false),
		nil, reason)
	reasonBlock.Optional = actionCtx.Decision != models.DecisionRejected

	attachment := slack.NewPlainTextInputBlockElement(
		slack.NewTextBlockObject(slack.PlainTextType, "https://…", false, false),
		attachmentActionID)

	attachmentBlock := slack.NewInputBlock(DecisionAttachmentBlockID,
		slack.NewTextBlockObject(slack.PlainTextType, "Attachment URL", true, false),
		nil, attachment)
	attachmentBlock.Optional = true

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      HomeDecisionCallback,
		PrivateMetadata: actionCtx.Encode(),
		Title:           slack.NewTextBlockObject(slack.PlainTextType, truncate(title, maxTitleLength), true, false),
		Submit:          slack.NewTextBlockObject(slack.PlainTextType, "Confirm", true, false),
		Close:           slack.NewTextBlockObject(slack.PlainTextType, "Cancel", true, false),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType,
					fmt.Sprintf("Confirm your decision for request `%d`.", actionCtx.RequestID), false, false),
				nil, nil),
			reasonBlock,
			attachmentBlock,
		}},
	}
}

func modalStateValue(state *slack.ViewState, blockID, actionID string) string {
	if state == nil {
		return ""
	}
	if block, ok := state.Values[blockID]; ok {
		if value, ok := block[actionID]; ok {
			return value.Value
		}
	}
	return ""
}

// DecisionModalReason extracts the reason from a submitted Home decision
// modal.
func DecisionModalReason(state *slack.ViewState) string {
	return modalStateValue(state, DecisionReasonBlockID, reasonActionID)
}

// DecisionModalAttachmentURL extracts the optional attachment URL from a
// submitted Home decision modal.
func DecisionModalAttachmentURL(state *slack.ViewState) string {
	return modalStateValue(state, DecisionAttachmentBlockID, attachmentActionID)
}
