package workflow

import "testing"

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{Pending(1), "PENDING_L1"},
		{Pending(3), "PENDING_L3"},
		{Approved, "APPROVED"},
		{Rejected, "REJECTED"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expected {
			t.Errorf("Status.String() = %v, want %v", got, tt.expected)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		expected bool
	}{
		{Pending(1), false},
		{Pending(2), false},
		{Approved, true},
		{Rejected, true},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.expected {
				t.Errorf("Status.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected Status
		wantErr  bool
	}{
		{"approved", "APPROVED", Approved, false},
		{"rejected", "REJECTED", Rejected, false},
		{"legacy pending maps to level 1", "PENDING", Pending(1), false},
		{"pending level 1", "PENDING_L1", Pending(1), false},
		{"pending level 4", "PENDING_L4", Pending(4), false},
		{"unknown status", "CANCELLED", Status{}, true},
		{"empty status", "", Status{}, true},
		{"malformed level", "PENDING_Labc", Status{}, true},
		{"zero level", "PENDING_L0", Status{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatus(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatus(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.expected {
				t.Errorf("ParseStatus(%q) = %v, want %v", tt.raw, got, tt.expected)
			}
		})
	}
}

func TestStatus_Label(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{Pending(2), "Pending L2"},
		{Approved, "Approved"},
		{Rejected, "Rejected"},
	}

	for _, tt := range tests {
		if got := tt.status.Label(); got != tt.expected {
			t.Errorf("Status.Label() = %v, want %v", got, tt.expected)
		}
	}
}

func TestStatus_RoundTrip(t *testing.T) {
	for _, status := range []Status{Pending(1), Pending(2), Pending(9), Approved, Rejected} {
		parsed, err := ParseStatus(status.String())
		if err != nil {
			t.Fatalf("ParseStatus(%q) returned error: %v", status.String(), err)
		}
		if parsed != status {
			t.Errorf("round trip of %v produced %v", status, parsed)
		}
	}
}
