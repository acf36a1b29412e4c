package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Slack request signing headers.
const (
	SignatureHeader = "X-Slack-Signature"
	TimestampHeader = "X-Slack-Request-Timestamp"

	signatureVersion = "v0"
	defaultTolerance = 5 * time.Minute
)

// Verifier validates Slack request signatures, guarding against forgery and
// replay.
type Verifier struct {
	signingSecret string
	tolerance     time.Duration
	now           func() time.Time
}

// NewVerifier creates a verifier for the given signing secret.
func NewVerifier(signingSecret string) *Verifier {
	return &Verifier{
		signingSecret: signingSecret,
		tolerance:     defaultTolerance,
		now:           time.Now,
	}
}

// ComputeSignature returns the Slack-compatible signature for a payload.
func (v *Verifier) ComputeSignature(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(v.signingSecret))
	fmt.Fprintf(mac, "%s:%s:", signatureVersion, timestamp)
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the signature and rejects stale timestamps.
func (v *Verifier) Verify(timestamp, signature string, body []byte) bool {
	if timestamp == "" || signature == "" {
		return false
	}

	requestTS, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}

	drift := v.now().Unix() - requestTS
	if drift < 0 {
		drift = -drift
	}
	if time.Duration(drift)*time.Second > v.tolerance {
		return false
	}

	expected := v.ComputeSignature(timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
