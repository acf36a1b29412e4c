package workflow

import "fmt"

// Allowed form field types.
const (
	FieldTypeText     = "text"
	FieldTypeNumber   = "number"
	FieldTypeTextarea = "textarea"
)

// Approval strategies.
const (
	StrategySequential = "sequential"
	StrategyParallel   = "parallel"
)

// FieldDefinition describes a single form field shown in the request modal.
type FieldDefinition struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// ApproverLevel is one stage of the approval chain. Quorum 0 means unanimous
// (every member must approve). TieBreaker, when set, is consulted only when
// the level's votes split evenly with nobody left to vote.
type ApproverLevel struct {
	Members    []string `json:"members"`
	Quorum     int      `json:"quorum,omitempty"`
	TieBreaker string   `json:"tie_breaker,omitempty"`
}

// EffectiveQuorum resolves the configured quorum, defaulting to unanimity.
func (l ApproverLevel) EffectiveQuorum() int {
	if l.Quorum > 0 {
		return l.Quorum
	}
	return len(l.Members)
}

// ApproverConfig declares the ordered approval levels for a workflow.
type ApproverConfig struct {
	Strategy string          `json:"strategy"`
	Levels   []ApproverLevel `json:"levels"`
}

// Definition is an immutable workflow definition loaded from configuration.
type Definition struct {
	Type          string            `json:"type"`
	Title         string            `json:"title"`
	Fields        []FieldDefinition `json:"fields"`
	Approvers     ApproverConfig    `json:"approvers"`
	NotifyChannel string            `json:"notify_channel"`
}

// Validate checks the structural invariants of a definition. All violations
// wrap ErrDefinitionInvalid so callers can match on the class.
func (d *Definition) Validate() error {
	if d.Type == "" {
		return fmt.Errorf("%w: type is required", ErrDefinitionInvalid)
	}
	if d.Title == "" {
		return fmt.Errorf("%w: title is required", ErrDefinitionInvalid)
	}
	if d.NotifyChannel == "" {
		return fmt.Errorf("%w: notify_channel is required", ErrDefinitionInvalid)
	}

	for _, field := range d.Fields {
		if field.Name == "" || field.Label == "" {
			return fmt.Errorf("%w: field name and label are required", ErrDefinitionInvalid)
		}
		switch field.Type {
		case FieldTypeText, FieldTypeNumber, FieldTypeTextarea:
		default:
			return fmt.Errorf("%w: unsupported field type %q", ErrDefinitionInvalid, field.Type)
		}
	}

	switch d.Approvers.Strategy {
	case "", StrategySequential, StrategyParallel:
	default:
		return fmt.Errorf("%w: strategy must be sequential or parallel", ErrDefinitionInvalid)
	}

	if len(d.Approvers.Levels) == 0 {
		return fmt.Errorf("%w: at least one approval level is required", ErrDefinitionInvalid)
	}

	for i, level := range d.Approvers.Levels {
		if len(level.Members) == 0 {
			return fmt.Errorf("%w: level %d has no members", ErrDefinitionInvalid, i+1)
		}
		seen := make(map[string]bool, len(level.Members))
		for _, member := range level.Members {
			if member == "" {
				return fmt.Errorf("%w: level %d has an empty member id", ErrDefinitionInvalid, i+1)
			}
			if seen[member] {
				return fmt.Errorf("%w: level %d lists member %s twice", ErrDefinitionInvalid, i+1, member)
			}
			seen[member] = true
		}
		if level.Quorum < 0 || level.Quorum > len(level.Members) {
			return fmt.Errorf("%w: level %d quorum %d out of range [1,%d]",
				ErrDefinitionInvalid, i+1, level.Quorum, len(level.Members))
		}
	}

	return nil
}

// LevelAt returns the 1-based approval level, or nil when out of range.
func (d *Definition) LevelAt(level int) *ApproverLevel {
	if level < 1 || level > len(d.Approvers.Levels) {
		return nil
	}
	return &d.Approvers.Levels[level-1]
}

// TotalLevels returns the number of configured approval levels.
func (d *Definition) TotalLevels() int {
	return len(d.Approvers.Levels)
}
