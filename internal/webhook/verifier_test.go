package webhook

import (
	"fmt"
	"testing"
	"time"
)

func fixedVerifier(secret string, now time.Time) *Verifier {
	v := NewVerifier(secret)
	v.now = func() time.Time { return now }
	return v
}

func TestVerifier_Verify(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	v := fixedVerifier("test-secret", now)

	body := []byte("payload=%7B%22type%22%3A%22block_actions%22%7D")
	timestamp := fmt.Sprintf("%d", now.Unix())
	signature := v.ComputeSignature(timestamp, body)

	if !v.Verify(timestamp, signature, body) {
		t.Error("valid signature rejected")
	}
}

func TestVerifier_RejectsTamperedBody(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	v := fixedVerifier("test-secret", now)

	timestamp := fmt.Sprintf("%d", now.Unix())
	signature := v.ComputeSignature(timestamp, []byte("original"))

	if v.Verify(timestamp, signature, []byte("tampered")) {
		t.Error("tampered body accepted")
	}
}

func TestVerifier_RejectsWrongSecret(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	signer := fixedVerifier("attacker-secret", now)
	v := fixedVerifier("test-secret", now)

	body := []byte("payload")
	timestamp := fmt.Sprintf("%d", now.Unix())
	signature := signer.ComputeSignature(timestamp, body)

	if v.Verify(timestamp, signature, body) {
		t.Error("signature from a different secret accepted")
	}
}

func TestVerifier_RejectsStaleTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	v := fixedVerifier("test-secret", now)

	body := []byte("payload")
	stale := fmt.Sprintf("%d", now.Add(-6*time.Minute).Unix())
	signature := v.ComputeSignature(stale, body)

	if v.Verify(stale, signature, body) {
		t.Error("replayed request outside the tolerance window accepted")
	}
}

func TestVerifier_AcceptsSlightDrift(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	v := fixedVerifier("test-secret", now)

	body := []byte("payload")
	drifted := fmt.Sprintf("%d", now.Add(-2*time.Minute).Unix())
	signature := v.ComputeSignature(drifted, body)

	if !v.Verify(drifted, signature, body) {
		t.Error("request within the tolerance window rejected")
	}
}

func TestVerifier_RejectsMissingOrMalformedHeaders(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	v := fixedVerifier("test-secret", now)
	body := []byte("payload")

	if v.Verify("", "v0=abc", body) {
		t.Error("empty timestamp accepted")
	}
	if v.Verify(fmt.Sprintf("%d", now.Unix()), "", body) {
		t.Error("empty signature accepted")
	}
	if v.Verify("not-a-number", "v0=abc", body) {
		t.Error("non-numeric timestamp accepted")
	}
}
