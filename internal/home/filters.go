package home

import (
	"strings"
	"time"

	"github.com/approvalkit/slack-workflow-engine/internal/repository"
)

// Bounds applied to Home pagination.
const (
	DefaultPageSize = 10
	MinPageSize     = 1
	MaxPageSize     = 50
)

var validSortFields = map[string]bool{
	"created_at": true,
	"status":     true,
	"type":       true,
}

var validSortOrders = map[string]bool{
	"asc":  true,
	"desc": true,
}

// Filters is the validated filter/sort/pagination state of a Home surface.
type Filters struct {
	WorkflowTypes []string
	Statuses      []string
	StartAt       *time.Time
	EndAt         *time.Time
	SortBy        string
	SortOrder     string
	Query         string
	Limit         int
	Offset        int
}

// RawFilters is the unvalidated filter input collected from Home controls.
type RawFilters struct {
	WorkflowTypes []string
	Statuses      []string
	StartAt       string
	EndAt         string
	SortBy        string
	SortOrder     string
	Query         string
	Limit         int
	Offset        int
}

// ClampLimit forces a page size into [MinPageSize, MaxPageSize].
func ClampLimit(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return max(MinPageSize, min(MaxPageSize, value))
}

// ClampOffset forces an offset to be non-negative.
func ClampOffset(value int) int {
	return max(0, value)
}

// ValidateSortField returns the candidate sort field or the default.
func ValidateSortField(value string) string {
	candidate := strings.ToLower(strings.TrimSpace(value))
	if validSortFields[candidate] {
		return candidate
	}
	return "created_at"
}

// ValidateSortOrder returns the candidate sort order or the given default.
func ValidateSortOrder(value, fallback string) string {
	candidate := strings.ToLower(strings.TrimSpace(value))
	if validSortOrders[candidate] {
		return candidate
	}
	return fallback
}

func cleanList(values []string) []string {
	var cleaned []string
	for _, value := range values {
		if item := strings.TrimSpace(value); item != "" {
			cleaned = append(cleaned, item)
		}
	}
	return cleaned
}

func parseTimestamp(value string) *time.Time {
	text := strings.TrimSpace(value)
	if text == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, text); err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}
	return nil
}

// Status selections offered by the Home filter control.
const StatusFilterAll = "ALL"

// StatusFilter converts a Home status selection into normalized filter state.
// Unknown selections fall back to the unfiltered view.
func StatusFilter(selection string) Filters {
	raw := RawFilters{}
	switch strings.ToUpper(strings.TrimSpace(selection)) {
	case "PENDING":
		raw.Statuses = []string{"PENDING"}
	case "APPROVED":
		raw.Statuses = []string{"APPROVED"}
	case "REJECTED":
		raw.Statuses = []string{"REJECTED"}
	}
	return Normalize(raw)
}

// StatusSelection reports which Home status option matches the filter state.
func (f Filters) StatusSelection() string {
	if len(f.Statuses) == 1 {
		return strings.ToUpper(f.Statuses[0])
	}
	return StatusFilterAll
}

// Normalize validates raw filter input, clamping everything to safe ranges.
// Invalid values fall back to defaults rather than erroring; Home filter
// state comes from UI controls and should never hard-fail a render.
func Normalize(raw RawFilters) Filters {
	return Filters{
		WorkflowTypes: cleanList(raw.WorkflowTypes),
		Statuses:      cleanList(raw.Statuses),
		StartAt:       parseTimestamp(raw.StartAt),
		EndAt:         parseTimestamp(raw.EndAt),
		SortBy:        ValidateSortField(raw.SortBy),
		SortOrder:     ValidateSortOrder(raw.SortOrder, "desc"),
		Query:         strings.TrimSpace(raw.Query),
		Limit:         ClampLimit(raw.Limit, DefaultPageSize),
		Offset:        ClampOffset(raw.Offset),
	}
}

func (f Filters) toListFilter() repository.ListFilter {
	return repository.ListFilter{
		WorkflowTypes: f.WorkflowTypes,
		Statuses:      f.Statuses,
		StartAt:       f.StartAt,
		EndAt:         f.EndAt,
		SortBy:        f.SortBy,
		SortOrder:     f.SortOrder,
		Query:         f.Query,
		Limit:         f.Limit + 1, // fetch one extra row to detect another page
		Offset:        f.Offset,
	}
}
