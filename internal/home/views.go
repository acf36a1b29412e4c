package home

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/approvalkit/slack-workflow-engine/internal/slackkit"
	"github.com/approvalkit/slack-workflow-engine/internal/workflow"
	"github.com/slack-go/slack"
)

func summaryLine(summary Summary) string {
	request := summary.Request

	statusLabel := request.Status
	if status, err := workflow.ParseStatus(request.Status); err == nil {
		statusLabel = status.Label()
	}

	line := fmt.Sprintf("*#%d* `%s` — %s · submitted by <@%s> on %s",
		request.ID, request.Type, statusLabel, request.CreatedBy,
		request.CreatedAt.Format("2006-01-02 15:04"))
	if request.DecidedBy != "" {
		line += fmt.Sprintf(" · decided by <@%s>", request.DecidedBy)
	}
	return line
}

func sectionHeader(text string) *slack.HeaderBlock {
	return slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, text, true, false))
}

func emptyHint(text string) *slack.ContextBlock {
	return slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType, text, false, false))
}

func approvalButtons(summary Summary) *slack.ActionBlock {
	request := summary.Request
	payload := slackkit.ActionContext{
		RequestID:    request.ID,
		WorkflowType: request.Type,
	}.Encode()

	approve := slack.NewButtonBlockElement(slackkit.HomeApproveActionID, payload,
		slack.NewTextBlockObject(slack.PlainTextType, "Approve", true, false))
	approve.Style = slack.StylePrimary

	reject := slack.NewButtonBlockElement(slackkit.HomeRejectActionID, payload,
		slack.NewTextBlockObject(slack.PlainTextType, "Reject", true, false))
	reject.Style = slack.StyleDanger

	return slack.NewActionBlock(fmt.Sprintf("home_decision_%d", request.ID), approve, reject)
}

var statusFilterOptions = []struct {
	value string
	label string
}{
	{StatusFilterAll, "All statuses"},
	{"PENDING", "Pending"},
	{"APPROVED", "Approved"},
	{"REJECTED", "Rejected"},
}

func statusFilterBlock(filters Filters) *slack.ActionBlock {
	options := make([]*slack.OptionBlockObject, 0, len(statusFilterOptions))
	var initial *slack.OptionBlockObject
	for _, opt := range statusFilterOptions {
		option := slack.NewOptionBlockObject(opt.value,
			slack.NewTextBlockObject(slack.PlainTextType, opt.label, true, false), nil)
		options = append(options, option)
		if opt.value == filters.StatusSelection() {
			initial = option
		}
	}

	selectElement := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic,
		slack.NewTextBlockObject(slack.PlainTextType, "Filter by status", true, false),
		slackkit.HomeStatusFilterActionID, options...)
	selectElement.InitialOption = initial

	return slack.NewActionBlock("home_filters", selectElement)
}

func activeFilterLabels(filters Filters) []string {
	var labels []string
	if len(filters.Statuses) > 0 {
		labels = append(labels, "Status: "+strings.Join(filters.Statuses, ", "))
	}
	if len(filters.WorkflowTypes) > 0 {
		labels = append(labels, "Type: "+strings.Join(filters.WorkflowTypes, ", "))
	}
	if filters.Query != "" {
		labels = append(labels, fmt.Sprintf("Search: %q", filters.Query))
	}
	if filters.StartAt != nil {
		labels = append(labels, "From: "+filters.StartAt.Format("2006-01-02"))
	}
	if filters.EndAt != nil {
		labels = append(labels, "To: "+filters.EndAt.Format("2006-01-02"))
	}
	if filters.SortBy != "" && filters.SortBy != "created_at" {
		labels = append(labels, "Sorted by: "+filters.SortBy+" "+filters.SortOrder)
	}
	return labels
}

func paginationBlock(blockID string, page Page) *slack.ActionBlock {
	var elements []slack.BlockElement

	// Paging buttons carry only the target offset.
	if page.HasPrevious {
		elements = append(elements, slack.NewButtonBlockElement(
			slackkit.HomePrevActionID, strconv.Itoa(max(page.Offset-page.Limit, 0)),
			slack.NewTextBlockObject(slack.PlainTextType, "Previous", true, false)))
	}
	if page.HasMore {
		elements = append(elements, slack.NewButtonBlockElement(
			slackkit.HomeNextActionID, strconv.Itoa(page.Offset+page.Limit),
			slack.NewTextBlockObject(slack.PlainTextType, "Next", true, false)))
	}

	if len(elements) == 0 {
		return nil
	}
	return slack.NewActionBlock(blockID, elements...)
}

// BuildView assembles the App Home tab for one user: their own submissions
// followed by requests awaiting approval, each page capped by the filters.
// The status filter control and a summary of the active filters sit above the
// request list.
func BuildView(myRequests, pendingApprovals Page, filters Filters) slack.HomeTabViewRequest {
	blocks := []slack.Block{
		sectionHeader("My Requests"),
		statusFilterBlock(filters),
	}

	if labels := activeFilterLabels(filters); len(labels) > 0 {
		blocks = append(blocks, slack.NewContextBlock("home_active_filters",
			slack.NewTextBlockObject(slack.MarkdownType, "Active filters: "+strings.Join(labels, " · "), false, false)))
	}

	if len(myRequests.Items) == 0 {
		blocks = append(blocks, emptyHint("You have not submitted any requests yet."))
	}
	for _, summary := range myRequests.Items {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, summaryLine(summary), false, false),
			nil, nil))
	}
	if pagination := paginationBlock("home_my_requests_paging", myRequests); pagination != nil {
		blocks = append(blocks, pagination)
	}

	blocks = append(blocks, slack.NewDividerBlock(), sectionHeader("Pending Approvals"))

	if len(pendingApprovals.Items) == 0 {
		blocks = append(blocks, emptyHint("Nothing is waiting for your approval."))
	}
	for _, summary := range pendingApprovals.Items {
		blocks = append(blocks,
			slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType, summaryLine(summary), false, false),
				nil, nil),
			approvalButtons(summary))
	}
	if pagination := paginationBlock("home_pending_paging", pendingApprovals); pagination != nil {
		blocks = append(blocks, pagination)
	}

	return slack.HomeTabViewRequest{
		Type:   slack.VTHomeTab,
		Blocks: slack.Blocks{BlockSet: blocks},
	}
}
