package home

import (
	"testing"
	"time"
)

func TestNormalize_Defaults(t *testing.T) {
	filters := Normalize(RawFilters{})

	if filters.SortBy != "created_at" {
		t.Errorf("SortBy = %q, want created_at", filters.SortBy)
	}
	if filters.SortOrder != "desc" {
		t.Errorf("SortOrder = %q, want desc", filters.SortOrder)
	}
	if filters.Limit != DefaultPageSize {
		t.Errorf("Limit = %d, want %d", filters.Limit, DefaultPageSize)
	}
	if filters.Offset != 0 {
		t.Errorf("Offset = %d, want 0", filters.Offset)
	}
}

func TestNormalize_ClampsAndValidates(t *testing.T) {
	filters := Normalize(RawFilters{
		SortBy:    "payload_json; DROP TABLE requests",
		SortOrder: "sideways",
		Limit:     500,
		Offset:    -3,
		Statuses:  []string{" PENDING ", ""},
		Query:     "  travel  ",
	})

	if filters.SortBy != "created_at" {
		t.Errorf("invalid sort field not replaced: %q", filters.SortBy)
	}
	if filters.SortOrder != "desc" {
		t.Errorf("invalid sort order not replaced: %q", filters.SortOrder)
	}
	if filters.Limit != MaxPageSize {
		t.Errorf("Limit = %d, want clamp to %d", filters.Limit, MaxPageSize)
	}
	if filters.Offset != 0 {
		t.Errorf("Offset = %d, want clamp to 0", filters.Offset)
	}
	if len(filters.Statuses) != 1 || filters.Statuses[0] != "PENDING" {
		t.Errorf("Statuses = %v, want trimmed [PENDING]", filters.Statuses)
	}
	if filters.Query != "travel" {
		t.Errorf("Query = %q, want trimmed", filters.Query)
	}
}

func TestNormalize_Timestamps(t *testing.T) {
	filters := Normalize(RawFilters{
		StartAt: "2026-03-01",
		EndAt:   "2026-03-02T10:00:00Z",
	})

	if filters.StartAt == nil || !filters.StartAt.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartAt = %v", filters.StartAt)
	}
	if filters.EndAt == nil || !filters.EndAt.Equal(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("EndAt = %v", filters.EndAt)
	}

	invalid := Normalize(RawFilters{StartAt: "yesterday"})
	if invalid.StartAt != nil {
		t.Errorf("unparseable timestamp must be dropped, got %v", invalid.StartAt)
	}
}

func TestStatusFilter(t *testing.T) {
	tests := []struct {
		selection string
		statuses  []string
	}{
		{StatusFilterAll, nil},
		{"", nil},
		{"pending", []string{"PENDING"}},
		{"APPROVED", []string{"APPROVED"}},
		{" rejected ", []string{"REJECTED"}},
		{"garbage", nil},
	}

	for _, tt := range tests {
		filters := StatusFilter(tt.selection)
		if len(filters.Statuses) != len(tt.statuses) {
			t.Errorf("StatusFilter(%q).Statuses = %v, want %v", tt.selection, filters.Statuses, tt.statuses)
			continue
		}
		for i := range tt.statuses {
			if filters.Statuses[i] != tt.statuses[i] {
				t.Errorf("StatusFilter(%q).Statuses = %v, want %v", tt.selection, filters.Statuses, tt.statuses)
			}
		}
		if filters.Limit != DefaultPageSize {
			t.Errorf("StatusFilter(%q).Limit = %d, want normalized default", tt.selection, filters.Limit)
		}
	}
}

func TestFilters_StatusSelection(t *testing.T) {
	if got := (Filters{}).StatusSelection(); got != StatusFilterAll {
		t.Errorf("empty filter StatusSelection() = %q, want %q", got, StatusFilterAll)
	}
	if got := (Filters{Statuses: []string{"pending"}}).StatusSelection(); got != "PENDING" {
		t.Errorf("StatusSelection() = %q, want PENDING", got)
	}
	if got := (Filters{Statuses: []string{"APPROVED", "REJECTED"}}).StatusSelection(); got != StatusFilterAll {
		t.Errorf("multi-status StatusSelection() = %q, want %q", got, StatusFilterAll)
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		value, fallback, expected int
	}{
		{0, DefaultPageSize, DefaultPageSize},
		{5, DefaultPageSize, 5},
		{-1, DefaultPageSize, MinPageSize},
		{999, DefaultPageSize, MaxPageSize},
	}

	for _, tt := range tests {
		if got := ClampLimit(tt.value, tt.fallback); got != tt.expected {
			t.Errorf("ClampLimit(%d, %d) = %d, want %d", tt.value, tt.fallback, got, tt.expected)
		}
	}
}
