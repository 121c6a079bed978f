package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/baharkarakas/charity-faceoff/internal/metrics"
	"github.com/baharkarakas/charity-faceoff/internal/models"
	repo "github.com/baharkarakas/charity-faceoff/internal/repository"
)

var tracer = otel.Tracer("github.com/baharkarakas/charity-faceoff/internal/services")

// TotalsPublisher receives every committed total so readers can be pushed the
// new value.
type TotalsPublisher interface {
	Publish(t models.TeamTotal)
}

type nopPublisher struct{}

func (nopPublisher) Publish(models.TeamTotal) {}

// errAlreadyApplied aborts the unit when the marker is found inside it.
var errAlreadyApplied = errors.New("settlement already applied")

// SettlementService owns the only write path to team totals from payments.
type SettlementService struct {
	ledger repo.Ledger
	pub    TotalsPublisher
	now    func() time.Time
}

func NewSettlementService(ledger repo.Ledger, pub TotalsPublisher) *SettlementService {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &SettlementService{ledger: ledger, pub: pub, now: time.Now}
}

// HasBeenProcessed is the cheap pre-check. A read failure reports false so the
// caller continues to Apply, which re-checks inside its transaction.
func (s *SettlementService) HasBeenProcessed(ctx context.Context, sessionID string) bool {
	ok, err := s.ledger.IsProcessed(ctx, sessionID)
	if err != nil {
		slog.WarnContext(ctx, "idempotency pre-check failed, deferring to transactional check",
			"session_id", sessionID, "err", err)
		return false
	}
	return ok
}

// Apply credits st.Amount to st.TeamID exactly once per st.SessionID. The
// marker check, team read, total update, donation record and marker write
// happen in one ledger unit. A settlement that was already applied returns
// a result with AlreadyProcessed set and a nil error.
func (s *SettlementService) Apply(ctx context.Context, st models.Settlement) (models.ApplyResult, error) {
	ctx, span := tracer.Start(ctx, "settlement.apply", trace.WithAttributes(
		attribute.String("settlement.session_id", st.SessionID),
		attribute.String("settlement.team_id", st.TeamID),
		attribute.Int64("settlement.amount", st.Amount),
	))
	defer span.End()

	start := time.Now()
	defer func() { metrics.ApplyDuration.Observe(time.Since(start).Seconds()) }()

	var (
		res     models.ApplyResult
		updated models.Team
	)
	err := s.ledger.WithTx(ctx, func(tx repo.LedgerTx) error {
		res = models.ApplyResult{}

		if _, err := tx.GetProcessed(ctx, st.SessionID); err == nil {
			return errAlreadyApplied
		} else if !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("read processed marker: %w", err)
		}

		team, err := tx.GetTeamForUpdate(ctx, st.TeamID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrTeamNotFound
		}
		if err != nil {
			return fmt.Errorf("read team: %w", err)
		}

		if st.Amount <= 0 {
			return ErrInvalidAmount
		}
		newTotal := team.DonationTotal + st.Amount
		if newTotal < team.DonationTotal {
			return ErrInvalidAmount
		}

		now := s.now().UTC()
		if err := tx.SetTeamTotal(ctx, team.ID, newTotal, now); err != nil {
			return fmt.Errorf("update team total: %w", err)
		}
		if err := tx.InsertDonation(ctx, models.DonationRecord{
			ID:         uuid.NewString(),
			TeamID:     team.ID,
			Amount:     st.Amount,
			SessionID:  st.SessionID,
			PayerEmail: st.PayerEmail,
			CreatedAt:  now,
		}); err != nil {
			return fmt.Errorf("insert donation: %w", err)
		}
		if err := tx.InsertProcessed(ctx, models.ProcessedNotification{
			SessionID:   st.SessionID,
			EventID:     st.EventID,
			TeamID:      team.ID,
			Amount:      st.Amount,
			ProcessedAt: now,
		}); err != nil {
			return fmt.Errorf("insert processed marker: %w", err)
		}

		res.PreviousTotal = team.DonationTotal
		res.NewTotal = newTotal
		updated = team
		updated.DonationTotal = newTotal
		updated.LastUpdatedAt = now
		return nil
	})

	switch {
	case errors.Is(err, errAlreadyApplied), errors.Is(err, repo.ErrDuplicateKey):
		span.SetAttributes(attribute.Bool("settlement.already_processed", true))
		return models.ApplyResult{AlreadyProcessed: true}, nil
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.ApplyResult{}, err
	}

	metrics.DonatedAmount.WithLabelValues(updated.ID).Add(float64(st.Amount))
	s.pub.Publish(updated.Total())
	return res, nil
}
