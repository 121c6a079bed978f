package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/baharkarakas/charity-faceoff/internal/metrics"
	"github.com/baharkarakas/charity-faceoff/internal/models"
	repo "github.com/baharkarakas/charity-faceoff/internal/repository"
	"github.com/baharkarakas/charity-faceoff/internal/webhook"
)

var errMalformedSession = errors.New("checkout session object is malformed")

// Submitter runs best-effort work asynchronously.
type Submitter interface {
	TrySubmit(func()) bool
}

type ReconcileOptions struct {
	Currency        string
	PrecheckTimeout time.Duration
	ApplyTimeout    time.Duration
	SideTimeout     time.Duration
}

// ReconcileResult is what the endpoint reports back to the provider.
type ReconcileResult struct {
	Outcome   models.Outcome      `json:"outcome"`
	EventID   string              `json:"event_id,omitempty"`
	EventType string              `json:"event_type,omitempty"`
	SessionID string              `json:"session_id,omitempty"`
	TeamID    string              `json:"team_id,omitempty"`
	Amount    int64               `json:"amount,omitempty"`
	Applied   *models.ApplyResult `json:"applied,omitempty"`
	Reason    string              `json:"reason,omitempty"`
}

// Reconciler drives one inbound notification through
// verify -> extract -> pre-check -> apply.
type Reconciler struct {
	verifier    *webhook.Verifier
	settlements *SettlementService
	events      repo.WebhookEvents
	issues      repo.Issues
	side        Submitter
	opts        ReconcileOptions
	now         func() time.Time
}

func NewReconciler(v *webhook.Verifier, s *SettlementService, events repo.WebhookEvents, issues repo.Issues, side Submitter, opts ReconcileOptions) *Reconciler {
	if opts.PrecheckTimeout <= 0 {
		opts.PrecheckTimeout = time.Second
	}
	if opts.ApplyTimeout <= 0 {
		opts.ApplyTimeout = 5 * time.Second
	}
	if opts.SideTimeout <= 0 {
		opts.SideTimeout = 3 * time.Second
	}
	opts.Currency = strings.ToLower(strings.TrimSpace(opts.Currency))
	return &Reconciler{verifier: v, settlements: s, events: events, issues: issues, side: side, opts: opts, now: time.Now}
}

// Handle returns an error only when the notification is rejected (a
// *webhook.VerificationError); the ledger is not touched in that case. Every
// other outcome, including FAILED, is reported in the result with a nil error
// so the provider stops retrying.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, signature string) (ReconcileResult, error) {
	ctx, span := tracer.Start(ctx, "settlement.reconcile")
	defer span.End()

	ev, err := r.verifier.Verify(payload, signature)
	if err != nil {
		var verr *webhook.VerificationError
		reason := "unknown"
		if errors.As(err, &verr) {
			reason = verr.Reason()
		}
		metrics.VerificationFailures.WithLabelValues(reason).Inc()
		metrics.NotificationsTotal.WithLabelValues(string(models.OutcomeRejected)).Inc()
		slog.WarnContext(ctx, "settlement notification rejected", "reason", reason)
		return ReconcileResult{Outcome: models.OutcomeRejected, Reason: reason}, err
	}

	// A verified notification is settled even if the caller goes away or the
	// server starts draining; ApplyTimeout and PrecheckTimeout bound it instead.
	ctx = context.WithoutCancel(ctx)

	res := ReconcileResult{EventID: ev.ID, EventType: ev.Type}
	span.SetAttributes(attribute.String("event.id", ev.ID), attribute.String("event.type", ev.Type))
	defer func() {
		metrics.NotificationsTotal.WithLabelValues(string(res.Outcome)).Inc()
		r.recordReceipt(ctx, ev, res)
	}()

	if !ev.Settles() {
		res.Outcome, res.Reason = models.OutcomeIgnored, "unhandled_event_type"
		slog.InfoContext(ctx, "ignoring event", "event_id", ev.ID, "event_type", ev.Type)
		return res, nil
	}

	session, err := ev.CheckoutSession()
	if err != nil {
		r.fail(ctx, &res, models.Settlement{EventID: ev.ID}, fmt.Errorf("%w: %v", errMalformedSession, err))
		return res, nil
	}
	res.SessionID = session.ID
	if ev.Type == webhook.EventCheckoutCompleted && !session.Paid() {
		res.Outcome, res.Reason = models.OutcomeIgnored, "payment_not_captured"
		slog.InfoContext(ctx, "checkout completed without captured payment",
			"event_id", ev.ID, "session_id", session.ID, "payment_status", session.PaymentStatus)
		return res, nil
	}

	st := r.settlementFrom(ctx, ev, session)
	res.TeamID, res.Amount = st.TeamID, st.Amount
	span.SetAttributes(attribute.String("settlement.session_id", st.SessionID))

	if r.precheck(ctx, st.SessionID) {
		res.Outcome = models.OutcomeAlreadyProcessed
		slog.InfoContext(ctx, "settlement already processed",
			"event_id", ev.ID, "session_id", st.SessionID, "team_id", st.TeamID)
		return res, nil
	}

	applyCtx, cancel := context.WithTimeout(ctx, r.opts.ApplyTimeout)
	applied, err := r.settlements.Apply(applyCtx, st)
	cancel()
	if err != nil {
		r.fail(ctx, &res, st, err)
		return res, nil
	}
	if applied.AlreadyProcessed {
		res.Outcome = models.OutcomeAlreadyProcessed
		slog.InfoContext(ctx, "settlement already processed",
			"event_id", ev.ID, "session_id", st.SessionID, "team_id", st.TeamID)
		return res, nil
	}

	res.Outcome = models.OutcomeApplied
	res.Applied = &applied
	slog.InfoContext(ctx, "settlement applied",
		"event_id", ev.ID, "session_id", st.SessionID, "team_id", st.TeamID,
		"amount", st.Amount, "previous_total", applied.PreviousTotal, "new_total", applied.NewTotal)
	return res, nil
}

// settlementFrom derives the credit from the captured amount only. An amount
// that cannot be credited is carried as zero so Apply reports InvalidAmount.
func (r *Reconciler) settlementFrom(ctx context.Context, ev webhook.Event, s webhook.CheckoutSession) models.Settlement {
	st := models.Settlement{
		SessionID:  s.ID,
		EventID:    ev.ID,
		TeamID:     s.TeamID(),
		PayerEmail: s.PayerEmail(),
	}
	units, ok := s.WholeUnits()
	if !ok {
		slog.WarnContext(ctx, "captured amount is not a whole positive unit amount",
			"session_id", s.ID, "amount_total", s.AmountTotal)
		return st
	}
	if r.opts.Currency != "" && !strings.EqualFold(s.Currency, r.opts.Currency) {
		slog.WarnContext(ctx, "captured currency does not match ledger currency",
			"session_id", s.ID, "currency", s.Currency, "want", r.opts.Currency)
		return st
	}
	st.Amount = units
	return st
}

func (r *Reconciler) precheck(ctx context.Context, sessionID string) bool {
	ctx, cancel := context.WithTimeout(ctx, r.opts.PrecheckTimeout)
	defer cancel()
	return r.settlements.HasBeenProcessed(ctx, sessionID)
}

// fail marks the result FAILED and records an issue for manual follow-up. The
// provider still receives a success acknowledgement.
func (r *Reconciler) fail(ctx context.Context, res *ReconcileResult, st models.Settlement, cause error) {
	reason := failureReason(cause)
	res.Outcome, res.Reason = models.OutcomeFailed, reason
	metrics.ReconciliationFailures.WithLabelValues(reason).Inc()
	trace.SpanFromContext(ctx).RecordError(cause)

	slog.ErrorContext(ctx, "settlement acknowledged but not applied",
		"alert", true, "reason", reason, "err", cause,
		"event_id", st.EventID, "session_id", st.SessionID, "team_id", st.TeamID, "amount", st.Amount)

	issue := models.ReconciliationIssue{
		ID:        uuid.NewString(),
		SessionID: st.SessionID,
		EventID:   st.EventID,
		TeamID:    st.TeamID,
		Amount:    st.Amount,
		Reason:    reason,
		Detail:    cause.Error(),
		Status:    models.IssueOpen,
		CreatedAt: r.now().UTC(),
	}
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.SideTimeout)
	defer cancel()
	if err := r.issues.Create(ictx, issue); err != nil {
		slog.ErrorContext(ctx, "could not record reconciliation issue",
			"alert", true, "err", err, "session_id", st.SessionID, "event_id", st.EventID)
	}
}

func (r *Reconciler) recordReceipt(ctx context.Context, ev webhook.Event, res ReconcileResult) {
	receipt := models.WebhookEvent{
		ID:         uuid.NewString(),
		EventID:    ev.ID,
		EventType:  ev.Type,
		SessionID:  res.SessionID,
		Livemode:   ev.Livemode,
		Outcome:    res.Outcome,
		ReceivedAt: r.now().UTC(),
	}
	base := context.WithoutCancel(ctx)
	queued := r.side.TrySubmit(func() {
		ctx, cancel := context.WithTimeout(base, r.opts.SideTimeout)
		defer cancel()
		if err := r.events.Create(ctx, receipt); err != nil {
			slog.Warn("could not record webhook receipt", "event_id", receipt.EventID, "err", err)
		}
	})
	if !queued {
		slog.WarnContext(ctx, "webhook receipt dropped, worker queue full", "event_id", receipt.EventID)
	}
}
