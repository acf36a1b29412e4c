package home

import (
	"testing"
	"time"
)

func TestDebouncer_WindowBlocksRepeats(t *testing.T) {
	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	d := NewDebouncer(5*time.Second, func() time.Time { return current })

	if !d.ShouldPublish("U1") {
		t.Fatal("first publish must proceed")
	}
	if d.ShouldPublish("U1") {
		t.Error("publish inside the window must be blocked")
	}

	current = current.Add(6 * time.Second)
	if !d.ShouldPublish("U1") {
		t.Error("publish after the window must proceed")
	}
}

func TestDebouncer_UsersAreIndependent(t *testing.T) {
	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	d := NewDebouncer(5*time.Second, func() time.Time { return current })

	if !d.ShouldPublish("U1") {
		t.Fatal("first publish must proceed")
	}
	if !d.ShouldPublish("U2") {
		t.Error("another user must not be affected by U1's window")
	}
}

func TestDebouncer_EmptyUserNeverBlocked(t *testing.T) {
	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	d := NewDebouncer(5*time.Second, func() time.Time { return current })

	for i := 0; i < 3; i++ {
		if !d.ShouldPublish("") {
			t.Fatal("empty user id must never be debounced")
		}
	}
}

func TestDebouncer_Clear(t *testing.T) {
	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	d := NewDebouncer(5*time.Second, func() time.Time { return current })

	d.ShouldPublish("U1")
	d.Clear("U1")
	if !d.ShouldPublish("U1") {
		t.Error("cleared user must publish immediately")
	}

	d.ShouldPublish("U2")
	d.Clear("")
	if !d.ShouldPublish("U1") || !d.ShouldPublish("U2") {
		t.Error("clearing all users must reset every window")
	}
}
