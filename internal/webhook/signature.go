// Package webhook verifies and decodes payment-provider settlement
// notifications. Signature checking is the provider SDK's; this package maps
// its failures onto stable reasons and decodes the event it accepted.
package webhook

import (
	"errors"
	"fmt"
	"strings"
	"time"

	stripewebhook "github.com/stripe/stripe-go/v76/webhook"
)

// SignatureHeader is the request header that carries the signature.
const SignatureHeader = "Stripe-Signature"

// DefaultTolerance is how old a signature timestamp may be before it is
// rejected as a replay.
const DefaultTolerance = 5 * time.Minute

var (
	ErrSecretUnconfigured = errors.New("webhook secret is not configured")
	ErrMissingSignature   = errors.New("signature header is missing")
	ErrMalformedSignature = errors.New("signature header is malformed")
	ErrSignatureMismatch  = errors.New("no signature matches the payload")
	ErrStaleSignature     = errors.New("signature timestamp is older than the tolerance window")
	ErrMalformedPayload   = errors.New("payload is not a valid event")
)

// VerificationError is returned for every rejected notification.
type VerificationError struct {
	Err error
}

func (e *VerificationError) Error() string { return "webhook verification failed: " + e.Err.Error() }
func (e *VerificationError) Unwrap() error { return e.Err }

// Misconfigured reports whether the failure blocks all processing rather than
// pointing at a bad request.
func (e *VerificationError) Misconfigured() bool { return errors.Is(e.Err, ErrSecretUnconfigured) }

// Reason is a stable short code for logs and metrics.
func (e *VerificationError) Reason() string {
	switch {
	case errors.Is(e.Err, ErrSecretUnconfigured):
		return "secret_unconfigured"
	case errors.Is(e.Err, ErrMissingSignature):
		return "missing_signature"
	case errors.Is(e.Err, ErrMalformedSignature):
		return "malformed_signature"
	case errors.Is(e.Err, ErrStaleSignature):
		return "stale"
	case errors.Is(e.Err, ErrMalformedPayload):
		return "malformed_payload"
	default:
		return "signature_mismatch"
	}
}

type Verifier struct {
	secret    string
	tolerance time.Duration
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance}
}

// Configured reports whether a shared secret is set.
func (v *Verifier) Configured() bool { return v != nil && v.secret != "" }

// Verify checks header against the exact bytes of payload and decodes the
// event. payload must not have been re-serialized. The event's api_version is
// not compared, so a dashboard version bump does not reject deliveries.
func (v *Verifier) Verify(payload []byte, header string) (Event, error) {
	if !v.Configured() {
		return Event{}, &VerificationError{Err: ErrSecretUnconfigured}
	}
	header = strings.TrimSpace(header)
	if err := stripewebhook.ValidatePayloadWithTolerance(payload, header, v.secret, v.tolerance); err != nil {
		return Event{}, &VerificationError{Err: classify(err)}
	}

	ev, err := DecodeEvent(payload)
	if err != nil {
		return Event{}, &VerificationError{Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}
	}
	return ev, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, stripewebhook.ErrNotSigned):
		return fmt.Errorf("%w: %w", ErrMissingSignature, err)
	case errors.Is(err, stripewebhook.ErrInvalidHeader):
		return fmt.Errorf("%w: %w", ErrMalformedSignature, err)
	case errors.Is(err, stripewebhook.ErrTooOld):
		return fmt.Errorf("%w: %w", ErrStaleSignature, err)
	default:
		return fmt.Errorf("%w: %w", ErrSignatureMismatch, err)
	}
}
