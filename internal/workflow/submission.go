package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Submission is a canonicalized modal submission keyed by field name.
type Submission map[string]any

// ValidationError reports a single invalid submission field, keyed so the
// modal can attach the message to the offending block.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ParseSubmission normalizes Slack modal state values against a definition.
// The modal builder uses the field name as both block_id and action_id, but
// mismatched action ids fall back to the first value in the block.
func ParseSubmission(stateValues map[string]map[string]ModalValue, def *Definition) (Submission, error) {
	submission := make(Submission, len(def.Fields))

	for _, field := range def.Fields {
		blockState := stateValues[field.Name]

		var raw *string
		if value, ok := blockState[field.Name]; ok {
			raw = value.Value
		} else {
			for _, value := range blockState {
				raw = value.Value
				break
			}
		}

		normalized := normalizeFieldValue(raw, field)
		if field.Required && isBlank(normalized) {
			return nil, &ValidationError{
				Field:   field.Name,
				Message: fmt.Sprintf("Field %q is required.", field.Label),
			}
		}
		submission[field.Name] = normalized
	}

	return submission, nil
}

// ModalValue is a single field value from Slack modal view state.
type ModalValue struct {
	Value *string `json:"value"`
}

func normalizeFieldValue(raw *string, field FieldDefinition) any {
	if raw == nil {
		return nil
	}
	if field.Type == FieldTypeNumber {
		if parsed, err := strconv.ParseFloat(*raw, 64); err == nil {
			return parsed
		}
		// Non-numeric input is kept verbatim; validation happens upstream.
		return *raw
	}
	return strings.TrimSpace(*raw)
}

func isBlank(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// CanonicalJSON renders a submission with sorted keys and no insignificant
// whitespace so identical payloads always fingerprint identically.
func CanonicalJSON(submission Submission) (string, error) {
	keys := make([]string, 0, len(submission))
	for key := range submission {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return "", err
		}
		encodedValue, err := json.Marshal(submission[key])
		if err != nil {
			return "", err
		}
		b.Write(encodedKey)
		b.WriteByte(':')
		b.Write(encodedValue)
	}
	b.WriteByte('}')
	return b.String(), nil
}

// RequestKey derives the deterministic uniqueness fingerprint for a
// submission. Two identical submissions by the same user for the same
// workflow collide on this key and are rejected as duplicates.
func RequestKey(workflowType, createdBy, canonicalPayload string) string {
	sum := sha256.Sum256([]byte(workflowType + "|" + createdBy + "|" + canonicalPayload))
	return hex.EncodeToString(sum[:])
}
