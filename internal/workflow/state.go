package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/approvalkit/slack-workflow-engine/internal/models"
)

// LevelRuntime is the live tally of the request's active approval level.
// It is derived on every evaluation and never persisted.
type LevelRuntime struct {
	Status      Status
	Level       int // 1-based; 0 when the status is terminal or out of range
	TotalLevels int
	Quorum      int
	Approvals   int
	Rejections  int

	// WaitingOn lists, in level-declared order, the members whose decision is
	// still required. When the tie-breaker is awaited it contains only the
	// tie-breaker id; that is the sole case where it holds a non-member.
	WaitingOn          []string
	AwaitingTieBreaker bool
	TieBreaker         string
}

// Actionable reports whether the runtime points at a decidable level.
func (r LevelRuntime) Actionable() bool {
	return r.Level > 0
}

// IsWaitingOn reports whether user currently gates the level.
func (r LevelRuntime) IsWaitingOn(user string) bool {
	for _, waiting := range r.WaitingOn {
		if waiting == user {
			return true
		}
	}
	return false
}

// latestDecisions collapses decisions to the most recent one per user for the
// given level. Overwrites keep the newest decided_at, so a corrected vote is
// counted exactly once.
func latestDecisions(decisions []models.ApprovalDecision, level int) map[string]models.ApprovalDecision {
	ordered := make([]models.ApprovalDecision, 0, len(decisions))
	for _, d := range decisions {
		if d.Level == level {
			ordered = append(ordered, d)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].DecidedAt.Before(ordered[j].DecidedAt)
	})

	latest := make(map[string]models.ApprovalDecision, len(ordered))
	for _, d := range ordered {
		latest[d.DecidedBy] = d
	}
	return latest
}

// Evaluate computes the live tally for the request's current level. It is a
// pure function of its inputs so it can serve both decision application and
// display rendering.
func Evaluate(def *Definition, status Status, decisions []models.ApprovalDecision) LevelRuntime {
	runtime := LevelRuntime{
		Status:      status,
		TotalLevels: def.TotalLevels(),
	}

	if !status.IsPending() {
		return runtime
	}
	levelDef := def.LevelAt(status.Level)
	if levelDef == nil {
		return runtime
	}

	latest := latestDecisions(decisions, status.Level)

	var waitingOn []string
	seen := make(map[string]bool, len(levelDef.Members))
	for _, member := range levelDef.Members {
		if seen[member] {
			continue
		}
		seen[member] = true
		if _, decided := latest[member]; !decided {
			waitingOn = append(waitingOn, member)
		}
	}

	approvals, rejections := 0, 0
	for _, decision := range latest {
		switch decision.Decision {
		case models.DecisionApproved:
			approvals++
		case models.DecisionRejected:
			rejections++
		}
	}

	runtime.Level = status.Level
	runtime.Quorum = levelDef.EffectiveQuorum()
	runtime.Approvals = approvals
	runtime.Rejections = rejections
	runtime.WaitingOn = waitingOn
	runtime.TieBreaker = levelDef.TieBreaker

	if len(waitingOn) == 0 && levelDef.TieBreaker != "" && approvals == rejections && approvals > 0 {
		if _, decided := latest[levelDef.TieBreaker]; !decided {
			runtime.AwaitingTieBreaker = true
			runtime.WaitingOn = []string{levelDef.TieBreaker}
		}
	}

	return runtime
}

// FormatStatusText renders the status line shown under a request message.
func FormatStatusText(runtime LevelRuntime) string {
	label := runtime.Status.Label()

	if !runtime.Actionable() {
		if len(runtime.WaitingOn) > 0 {
			return fmt.Sprintf("*Status:* %s · Waiting on %s.", label, mentionList(runtime.WaitingOn))
		}
		return fmt.Sprintf("*Status:* %s", label)
	}

	levelLabel := fmt.Sprintf("Level %d/%d", runtime.Level, max(runtime.TotalLevels, runtime.Level))
	progress := fmt.Sprintf("%d/%d approvals", runtime.Approvals, runtime.Quorum)

	var waitingLabel string
	switch {
	case runtime.AwaitingTieBreaker && runtime.TieBreaker != "":
		waitingLabel = fmt.Sprintf("Awaiting tie-breaker <@%s>", runtime.TieBreaker)
	case len(runtime.WaitingOn) > 0:
		waitingLabel = "Waiting on " + mentionList(runtime.WaitingOn)
	default:
		waitingLabel = "Waiting on next response"
	}

	return fmt.Sprintf("*Status:* %s (%s) · %s. %s.", label, levelLabel, progress, waitingLabel)
}

func mentionList(users []string) string {
	mentions := make([]string, len(users))
	for i, user := range users {
		mentions[i] = fmt.Sprintf("<@%s>", user)
	}
	return strings.Join(mentions, ", ")
}
