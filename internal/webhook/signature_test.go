package webhook

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	stripewebhook "github.com/stripe/stripe-go/v76/webhook"
)

const testSecret = "whsec_test"

func testVerifier() *Verifier {
	return NewVerifier(testSecret, 5*time.Minute)
}

func sign(secret string, payload []byte, at time.Time) string {
	return stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	}).Header
}

func completedPayload(sessionID string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":%q,"amount_total":2500,"currency":"usd","payment_status":"paid","metadata":{"teamId":"dallasStars"}}}}`, sessionID))
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	v := testVerifier()
	payload := completedPayload("cs_1")

	ev, err := v.Verify(payload, sign(testSecret, payload, time.Now()))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ev.ID != "evt_1" || ev.Type != EventCheckoutCompleted {
		t.Fatalf("expected evt_1 %s, got %s %s", EventCheckoutCompleted, ev.ID, ev.Type)
	}
}

func TestVerifyIgnoresAPIVersion(t *testing.T) {
	v := testVerifier()
	payload := []byte(`{"id":"evt_9","type":"checkout.session.completed","api_version":"1999-01-01","data":{"object":{"id":"cs_9"}}}`)

	if _, err := v.Verify(payload, sign(testSecret, payload, time.Now())); err != nil {
		t.Fatalf("expected an old api_version to verify, got %v", err)
	}
}

func TestVerifyAcceptsAnyMatchingV1(t *testing.T) {
	v := testVerifier()
	payload := completedPayload("cs_1")
	now := time.Now()
	_, sig, _ := strings.Cut(sign(testSecret, payload, now), ",v1=")
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s", now.Unix(), strings.Repeat("ab", 32), sig)

	if _, err := v.Verify(payload, header); err != nil {
		t.Fatalf("expected rotated signature list to verify, got %v", err)
	}
}

func TestVerifyRejections(t *testing.T) {
	v := testVerifier()
	payload := completedPayload("cs_1")
	now := time.Now()
	valid := sign(testSecret, payload, now)

	tests := []struct {
		name    string
		verify  *Verifier
		payload []byte
		header  string
		want    error
		reason  string
	}{
		{name: "missing header", verify: v, payload: payload, header: "", want: ErrMissingSignature, reason: "missing_signature"},
		{name: "blank header", verify: v, payload: payload, header: "   ", want: ErrMissingSignature, reason: "missing_signature"},
		{name: "not key value", verify: v, payload: payload, header: "garbage", want: ErrMalformedSignature, reason: "malformed_signature"},
		{name: "bad timestamp", verify: v, payload: payload, header: "t=soon,v1=abcd", want: ErrMalformedSignature, reason: "malformed_signature"},
		{name: "no v1", verify: v, payload: payload, header: fmt.Sprintf("t=%d", now.Unix()), want: ErrSignatureMismatch, reason: "signature_mismatch"},
		{name: "tampered body", verify: v, payload: completedPayload("cs_2"), header: valid, want: ErrSignatureMismatch, reason: "signature_mismatch"},
		{name: "wrong secret", verify: v, payload: payload, header: sign("whsec_other", payload, now), want: ErrSignatureMismatch, reason: "signature_mismatch"},
		{name: "stale", verify: v, payload: payload, header: sign(testSecret, payload, now.Add(-10*time.Minute)), want: ErrStaleSignature, reason: "stale"},
		{name: "unconfigured", verify: NewVerifier("", 0), payload: payload, header: valid, want: ErrSecretUnconfigured, reason: "secret_unconfigured"},
		{name: "signed garbage", verify: v, payload: []byte("not json"), header: sign(testSecret, []byte("not json"), now), want: ErrMalformedPayload, reason: "malformed_payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.verify.Verify(tt.payload, tt.header)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var verr *VerificationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *VerificationError, got %T", err)
			}
			if verr.Reason() != tt.reason {
				t.Fatalf("expected reason %q, got %q", tt.reason, verr.Reason())
			}
			if verr.Misconfigured() != (tt.want == ErrSecretUnconfigured) {
				t.Fatalf("unexpected Misconfigured() = %v", verr.Misconfigured())
			}
		})
	}
}
