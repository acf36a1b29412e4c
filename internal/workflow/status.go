package workflow

import (
	"fmt"
	"strconv"
	"strings"
)

// StatusKind enumerates the request lifecycle states.
type StatusKind int

const (
	KindPending StatusKind = iota
	KindApproved
	KindRejected
)

// Status is the lifecycle state of a request. Pending statuses carry the
// 1-based index of the approval level currently being gated. The string
// encoding (PENDING_L{n}, APPROVED, REJECTED) exists only at the persistence
// and wire boundary; bare "PENDING" is accepted on read as level 1 for
// compatibility with rows written before levels existed.
type Status struct {
	Kind  StatusKind
	Level int
}

// Pending returns a pending status gating the given 1-based level.
func Pending(level int) Status {
	if level < 1 {
		level = 1
	}
	return Status{Kind: KindPending, Level: level}
}

var (
	// Approved is the terminal approved status.
	Approved = Status{Kind: KindApproved}
	// Rejected is the terminal rejected status.
	Rejected = Status{Kind: KindRejected}
)

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s.Kind == KindApproved || s.Kind == KindRejected
}

// IsPending reports whether the request still awaits a decision.
func (s Status) IsPending() bool {
	return s.Kind == KindPending
}

// String renders the persisted wire form of the status.
func (s Status) String() string {
	switch s.Kind {
	case KindApproved:
		return "APPROVED"
	case KindRejected:
		return "REJECTED"
	default:
		return fmt.Sprintf("PENDING_L%d", max(s.Level, 1))
	}
}

// Label renders a human-readable form ("Pending L2", "Approved").
func (s Status) Label() string {
	raw := strings.ReplaceAll(s.String(), "_", " ")
	words := strings.Fields(strings.ToLower(raw))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ParseStatus decodes a persisted status string. Unknown values are an error
// so a corrupted row never masquerades as a decidable request.
func ParseStatus(raw string) (Status, error) {
	switch {
	case raw == "APPROVED":
		return Approved, nil
	case raw == "REJECTED":
		return Rejected, nil
	case raw == "PENDING":
		return Pending(1), nil
	case strings.HasPrefix(raw, "PENDING_L"):
		level, err := strconv.Atoi(strings.TrimPrefix(raw, "PENDING_L"))
		if err != nil || level < 1 {
			return Status{}, fmt.Errorf("malformed pending status %q", raw)
		}
		return Pending(level), nil
	default:
		return Status{}, fmt.Errorf("unknown status %q", raw)
	}
}

// InitialStatus returns the status a freshly submitted request starts in.
func InitialStatus(def *Definition) Status {
	return Pending(1)
}
