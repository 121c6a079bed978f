package services

import (
	"context"
	"errors"
	"testing"
	"time"

	stripewebhook "github.com/stripe/stripe-go/v76/webhook"

	"github.com/baharkarakas/charity-faceoff/internal/models"
	repo "github.com/baharkarakas/charity-faceoff/internal/repository"
	"github.com/baharkarakas/charity-faceoff/internal/webhook"
)

const testWebhookSecret = "whsec_test"

type reconcileFixture struct {
	repos  repo.Repositories
	ledger *spyLedger
	rc     *Reconciler
	pub    *recordingPublisher
}

func newReconcileFixture(t *testing.T, secret string) *reconcileFixture {
	t.Helper()
	repos := newTestRepos(t)
	seedTeam(t, repos.Ledger, "X", 25750)
	seedTeam(t, repos.Ledger, "Y", 100)

	spy := &spyLedger{Ledger: repos.Ledger}
	pub := &recordingPublisher{}
	rc := NewReconciler(
		webhook.NewVerifier(secret, webhook.DefaultTolerance),
		NewSettlementService(spy, pub),
		repos.WebhookEvents,
		repos.Issues,
		inlineSubmitter{},
		ReconcileOptions{Currency: "usd"},
	)
	return &reconcileFixture{repos: repos, ledger: spy, rc: rc, pub: pub}
}

func signPayload(secret string, payload []byte) string {
	return stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	}).Header
}

func (f *reconcileFixture) deliver(t *testing.T, payload []byte) (ReconcileResult, error) {
	t.Helper()
	sig := signPayload(testWebhookSecret, payload)
	return f.rc.Handle(context.Background(), payload, sig)
}

func TestHandleAppliesAndDeduplicates(t *testing.T) {
	f := newReconcileFixture(t, testWebhookSecret)
	payload := sessionEvent(t, "evt_1", "cs_1", "X", 2500, sessionOpts{})

	res, err := f.deliver(t, payload)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Outcome != models.OutcomeApplied || res.Amount != 25 || res.TeamID != "X" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Applied == nil || res.Applied.NewTotal != 25775 {
		t.Fatalf("expected new total 25775, got %+v", res.Applied)
	}

	res, err = f.deliver(t, payload)
	if err != nil {
		t.Fatalf("redeliver: %v", err)
	}
	if res.Outcome != models.OutcomeAlreadyProcessed {
		t.Fatalf("expected already_processed, got %s", res.Outcome)
	}
	if got := teamTotal(t, f.repos.Ledger, "X"); got != 25775 {
		t.Fatalf("expected 25775, got %d", got)
	}
	if n := donationCount(t, f.repos.Ledger, "X"); n != 1 {
		t.Fatalf("expected 1 donation, got %d", n)
	}

	events, err := f.repos.WebhookEvents.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list receipts: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 receipts, got %d", len(events))
	}
}

func TestHandleSettlesAfterCallerCancels(t *testing.T) {
	f := newReconcileFixture(t, testWebhookSecret)
	payload := sessionEvent(t, "evt_c", "cs_c", "X", 2500, sessionOpts{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := f.rc.Handle(ctx, payload, signPayload(testWebhookSecret, payload))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Outcome != models.OutcomeApplied {
		t.Fatalf("expected applied, got %s (%s)", res.Outcome, res.Reason)
	}
	if got := teamTotal(t, f.repos.Ledger, "X"); got != 25775 {
		t.Fatalf("expected 25775, got %d", got)
	}
	issues, err := f.repos.Issues.ListOpen(context.Background(), 10)
	if err != nil {
		t.Fatalf("list issues: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}

func TestHandleRejectsWithoutTouchingLedger(t *testing.T) {
	f := newReconcileFixture(t, testWebhookSecret)
	payload := sessionEvent(t, "evt_1", "cs_1", "X", 2500, sessionOpts{})
	sig := signPayload(testWebhookSecret, payload)
	tampered := sessionEvent(t, "evt_1", "cs_1", "X", 250000, sessionOpts{})

	for name, tc := range map[string]struct {
		payload []byte
		sig     string
	}{
		"tampered":  {tampered, sig},
		"missing":   {payload, ""},
		"wrong key": {payload, signPayload("whsec_other", payload)},
	} {
		res, err := f.rc.Handle(context.Background(), tc.payload, tc.sig)
		var verr *webhook.VerificationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected VerificationError, got %v", name, err)
		}
		if verr.Misconfigured() {
			t.Fatalf("%s: did not expect misconfiguration", name)
		}
		if res.Outcome != models.OutcomeRejected {
			t.Fatalf("%s: expected rejected, got %s", name, res.Outcome)
		}
	}
	if n := f.ledger.calls.Load(); n != 0 {
		t.Fatalf("expected no ledger access, got %d calls", n)
	}
	if got := teamTotal(t, f.repos.Ledger, "X"); got != 25750 {
		t.Fatalf("expected 25750, got %d", got)
	}
}

func TestHandleMissingSecretIsMisconfiguration(t *testing.T) {
	f := newReconcileFixture(t, "")
	payload := sessionEvent(t, "evt_1", "cs_1", "X", 2500, sessionOpts{})

	_, err := f.deliver(t, payload)
	var verr *webhook.VerificationError
	if !errors.As(err, &verr) || !verr.Misconfigured() {
		t.Fatalf("expected misconfiguration, got %v", err)
	}
	if n := f.ledger.calls.Load(); n != 0 {
		t.Fatalf("expected no ledger access, got %d calls", n)
	}
}

func TestHandleUnknownTeamFailsAndRecordsIssue(t *testing.T) {
	f := newReconcileFixture(t, testWebhookSecret)

	res, err := f.deliver(t, sessionEvent(t, "evt_z", "cs_z", "teamZZZ", 2500, sessionOpts{}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Outcome != models.OutcomeFailed || res.Reason != "team_not_found" {
		t.Fatalf("expected failed/team_not_found, got %+v", res)
	}
	issues, err := f.repos.Issues.ListOpen(context.Background(), 10)
	if err != nil {
		t.Fatalf("list issues: %v", err)
	}
	if len(issues) != 1 || issues[0].SessionID != "cs_z" || issues[0].TeamID != "teamZZZ" {
		t.Fatalf("unexpected issues %+v", issues)
	}
	if got := teamTotal(t, f.repos.Ledger, "X"); got != 25750 {
		t.Fatalf("expected X untouched, got %d", got)
	}
}

func TestHandleMissingTeamMetadata(t *testing.T) {
	f := newReconcileFixture(t, testWebhookSecret)
	res, err := f.deliver(t, sessionEvent(t, "evt_n", "cs_n", "", 2500, sessionOpts{}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Outcome != models.OutcomeFailed || res.Reason != "team_not_found" {
		t.Fatalf("expected failed/team_not_found, got %+v", res)
	}
}

func TestHandleInvalidAmounts(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		opts   sessionOpts
	}{
		{name: "fractional units", amount: 2550},
		{name: "zero", amount: 0},
		{name: "currency mismatch", amount: 2500, opts: sessionOpts{currency: "eur"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReconcileFixture(t, testWebhookSecret)
			res, err := f.deliver(t, sessionEvent(t, "evt_a", "cs_a", "Y", tt.amount, tt.opts))
			if err != nil {
				t.Fatalf("handle: %v", err)
			}
			if res.Outcome != models.OutcomeFailed || res.Reason != "invalid_amount" {
				t.Fatalf("expected failed/invalid_amount, got %+v", res)
			}
			if got := teamTotal(t, f.repos.Ledger, "Y"); got != 100 {
				t.Fatalf("expected Y untouched, got %d", got)
			}
		})
	}
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	f := newReconcileFixture(t, testWebhookSecret)

	res, err := f.deliver(t, sessionEvent(t, "evt_e", "cs_e", "X", 2500, sessionOpts{eventType: "checkout.session.expired"}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Outcome != models.OutcomeIgnored {
		t.Fatalf("expected ignored, got %s", res.Outcome)
	}

	res, err = f.deliver(t, sessionEvent(t, "evt_u", "cs_u", "X", 2500, sessionOpts{paymentStatus: "unpaid"}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Outcome != models.OutcomeIgnored || res.Reason != "payment_not_captured" {
		t.Fatalf("expected ignored/payment_not_captured, got %+v", res)
	}
	if n := f.ledger.calls.Load(); n != 0 {
		t.Fatalf("expected no ledger access for ignored events, got %d", n)
	}
}

func TestHandleAsyncPaymentSucceeded(t *testing.T) {
	f := newReconcileFixture(t, testWebhookSecret)

	// The completed event arrives unpaid, then the async success settles it.
	if res, _ := f.deliver(t, sessionEvent(t, "evt_c", "cs_async", "Y", 1000, sessionOpts{paymentStatus: "unpaid"})); res.Outcome != models.OutcomeIgnored {
		t.Fatalf("expected ignored, got %s", res.Outcome)
	}
	res, err := f.deliver(t, sessionEvent(t, "evt_s", "cs_async", "Y", 1000, sessionOpts{eventType: webhook.EventCheckoutAsyncPaymentSucceeded}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Outcome != models.OutcomeApplied {
		t.Fatalf("expected applied, got %+v", res)
	}
	if got := teamTotal(t, f.repos.Ledger, "Y"); got != 110 {
		t.Fatalf("expected 110, got %d", got)
	}
}

func TestHandleMalformedSession(t *testing.T) {
	f := newReconcileFixture(t, testWebhookSecret)
	payload := []byte(`{"id":"evt_m","type":"checkout.session.completed","data":{"object":{"amount_total":2500}}}`)

	res, err := f.deliver(t, payload)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Outcome != models.OutcomeFailed || res.Reason != "malformed_session" {
		t.Fatalf("expected failed/malformed_session, got %+v", res)
	}
}

// stuckLedger never finishes a unit until the caller gives up.
type stuckLedger struct {
	repo.Ledger
}

func (stuckLedger) WithTx(ctx context.Context, _ func(repo.LedgerTx) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestHandleApplyTimeoutIsFailed(t *testing.T) {
	repos := newTestRepos(t)
	seedTeam(t, repos.Ledger, "X", 10)
	rc := NewReconciler(
		webhook.NewVerifier(testWebhookSecret, 0),
		NewSettlementService(stuckLedger{repos.Ledger}, nil),
		repos.WebhookEvents,
		repos.Issues,
		inlineSubmitter{},
		ReconcileOptions{Currency: "usd", ApplyTimeout: 50 * time.Millisecond},
	)
	payload := sessionEvent(t, "evt_t", "cs_t", "X", 500, sessionOpts{})

	res, err := rc.Handle(context.Background(), payload, signPayload(testWebhookSecret, payload))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Outcome != models.OutcomeFailed || res.Reason != "store_error" {
		t.Fatalf("expected failed/store_error, got %+v", res)
	}
	issues, _ := repos.Issues.ListOpen(context.Background(), 10)
	if len(issues) != 1 {
		t.Fatalf("expected the timeout to be recorded, got %d issues", len(issues))
	}
	if got := teamTotal(t, repos.Ledger, "X"); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
}
