package workflow

import (
	"strings"
	"testing"
	"time"

	"github.com/approvalkit/slack-workflow-engine/internal/models"
)

func twoLevelDefinition() *Definition {
	return &Definition{
		Type:          "expense",
		Title:         "Expense Request",
		NotifyChannel: "C01TEST",
		Approvers: ApproverConfig{
			Strategy: StrategySequential,
			Levels: []ApproverLevel{
				{Members: []string{"U1", "U2"}, Quorum: 1},
				{Members: []string{"U3", "U4"}, Quorum: 2},
			},
		},
	}
}

func decisionAt(level int, user, decision string, at time.Time) models.ApprovalDecision {
	return models.ApprovalDecision{
		RequestID: 1,
		Level:     level,
		DecidedBy: user,
		Decision:  decision,
		DecidedAt: at,
	}
}

func TestEvaluate_EmptyLevel(t *testing.T) {
	def := twoLevelDefinition()

	runtime := Evaluate(def, Pending(1), nil)

	if runtime.Level != 1 {
		t.Errorf("Level = %d, want 1", runtime.Level)
	}
	if runtime.Quorum != 1 {
		t.Errorf("Quorum = %d, want 1", runtime.Quorum)
	}
	if runtime.Approvals != 0 || runtime.Rejections != 0 {
		t.Errorf("tally = %d/%d, want 0/0", runtime.Approvals, runtime.Rejections)
	}
	if len(runtime.WaitingOn) != 2 || runtime.WaitingOn[0] != "U1" || runtime.WaitingOn[1] != "U2" {
		t.Errorf("WaitingOn = %v, want [U1 U2]", runtime.WaitingOn)
	}
}

func TestEvaluate_TerminalStatus(t *testing.T) {
	def := twoLevelDefinition()

	runtime := Evaluate(def, Approved, nil)

	if runtime.Actionable() {
		t.Error("terminal status must not be actionable")
	}
	if len(runtime.WaitingOn) != 0 {
		t.Errorf("WaitingOn = %v, want empty", runtime.WaitingOn)
	}
}

func TestEvaluate_CountsLatestDecisionPerUser(t *testing.T) {
	def := twoLevelDefinition()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// U1 rejects, then corrects to approve. Only the latest vote counts.
	decisions := []models.ApprovalDecision{
		decisionAt(1, "U1", models.DecisionRejected, base),
		decisionAt(1, "U1", models.DecisionApproved, base.Add(time.Minute)),
	}

	runtime := Evaluate(def, Pending(1), decisions)

	if runtime.Approvals != 1 || runtime.Rejections != 0 {
		t.Errorf("tally = %d/%d, want 1 approval and 0 rejections", runtime.Approvals, runtime.Rejections)
	}
	if len(runtime.WaitingOn) != 1 || runtime.WaitingOn[0] != "U2" {
		t.Errorf("WaitingOn = %v, want [U2]", runtime.WaitingOn)
	}
}

func TestEvaluate_IgnoresOtherLevels(t *testing.T) {
	def := twoLevelDefinition()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	decisions := []models.ApprovalDecision{
		decisionAt(1, "U1", models.DecisionApproved, base),
		decisionAt(2, "U3", models.DecisionApproved, base),
	}

	runtime := Evaluate(def, Pending(2), decisions)

	if runtime.Approvals != 1 {
		t.Errorf("Approvals = %d, want 1", runtime.Approvals)
	}
	if len(runtime.WaitingOn) != 1 || runtime.WaitingOn[0] != "U4" {
		t.Errorf("WaitingOn = %v, want [U4]", runtime.WaitingOn)
	}
}

func TestEvaluate_UnanimousQuorumDefault(t *testing.T) {
	def := &Definition{
		Type:          "policy",
		Title:         "Policy Change",
		NotifyChannel: "C01TEST",
		Approvers: ApproverConfig{
			Levels: []ApproverLevel{{Members: []string{"U1", "U2", "U3"}}},
		},
	}

	runtime := Evaluate(def, Pending(1), nil)

	if runtime.Quorum != 3 {
		t.Errorf("Quorum = %d, want 3 (unanimous)", runtime.Quorum)
	}
}

func TestEvaluate_TieBreakerActivation(t *testing.T) {
	def := &Definition{
		Type:          "budget",
		Title:         "Budget",
		NotifyChannel: "C01TEST",
		Approvers: ApproverConfig{
			Levels: []ApproverLevel{
				{Members: []string{"U1", "U2"}, Quorum: 2, TieBreaker: "UTIE"},
			},
		},
	}
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	decisions := []models.ApprovalDecision{
		decisionAt(1, "U1", models.DecisionApproved, base),
		decisionAt(1, "U2", models.DecisionRejected, base.Add(time.Minute)),
	}

	runtime := Evaluate(def, Pending(1), decisions)

	if !runtime.AwaitingTieBreaker {
		t.Fatal("expected AwaitingTieBreaker after an even split")
	}
	if len(runtime.WaitingOn) != 1 || runtime.WaitingOn[0] != "UTIE" {
		t.Errorf("WaitingOn = %v, want [UTIE]", runtime.WaitingOn)
	}
	if !runtime.IsWaitingOn("UTIE") || runtime.IsWaitingOn("U1") {
		t.Error("only the tie-breaker should gate the level")
	}
}

func TestEvaluate_NoTieBreakWithoutEvenSplit(t *testing.T) {
	def := &Definition{
		Type:          "budget",
		Title:         "Budget",
		NotifyChannel: "C01TEST",
		Approvers: ApproverConfig{
			Levels: []ApproverLevel{
				{Members: []string{"U1", "U2", "U3"}, Quorum: 3, TieBreaker: "UTIE"},
			},
		},
	}
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	decisions := []models.ApprovalDecision{
		decisionAt(1, "U1", models.DecisionApproved, base),
		decisionAt(1, "U2", models.DecisionApproved, base.Add(time.Minute)),
		decisionAt(1, "U3", models.DecisionRejected, base.Add(2*time.Minute)),
	}

	runtime := Evaluate(def, Pending(1), decisions)

	if runtime.AwaitingTieBreaker {
		t.Error("a 2-1 split is not a tie")
	}
	if len(runtime.WaitingOn) != 0 {
		t.Errorf("WaitingOn = %v, want empty", runtime.WaitingOn)
	}
}

func TestEvaluate_TieBreakerAlreadyDecided(t *testing.T) {
	def := &Definition{
		Type:          "budget",
		Title:         "Budget",
		NotifyChannel: "C01TEST",
		Approvers: ApproverConfig{
			Levels: []ApproverLevel{
				{Members: []string{"U1", "U2"}, Quorum: 2, TieBreaker: "UTIE"},
			},
		},
	}
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	decisions := []models.ApprovalDecision{
		decisionAt(1, "U1", models.DecisionApproved, base),
		decisionAt(1, "U2", models.DecisionRejected, base.Add(time.Minute)),
		decisionAt(1, "UTIE", models.DecisionApproved, base.Add(2*time.Minute)),
	}

	runtime := Evaluate(def, Pending(1), decisions)

	if runtime.AwaitingTieBreaker {
		t.Error("a decided tie-breaker must not be awaited again")
	}
}

func TestFormatStatusText(t *testing.T) {
	def := twoLevelDefinition()

	pending := Evaluate(def, Pending(1), nil)
	text := FormatStatusText(pending)
	for _, fragment := range []string{"Pending L1", "Level 1/2", "0/1 approvals", "<@U1>", "<@U2>"} {
		if !strings.Contains(text, fragment) {
			t.Errorf("status text %q missing %q", text, fragment)
		}
	}

	approved := Evaluate(def, Approved, nil)
	if got := FormatStatusText(approved); got != "*Status:* Approved" {
		t.Errorf("FormatStatusText() = %q", got)
	}
}
