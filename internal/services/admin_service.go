package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/baharkarakas/charity-faceoff/internal/models"
	repo "github.com/baharkarakas/charity-faceoff/internal/repository"
)

// AdminService holds operator tooling. Total overrides go through the same
// ledger unit discipline as settlements and leave an audit row.
type AdminService struct {
	ledger repo.Ledger
	issues repo.Issues
	audit  repo.AuditLogs
	pub    TotalsPublisher
	now    func() time.Time
}

func NewAdminService(ledger repo.Ledger, issues repo.Issues, audit repo.AuditLogs, pub TotalsPublisher) *AdminService {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &AdminService{ledger: ledger, issues: issues, audit: audit, pub: pub, now: time.Now}
}

// AdjustTotal increments the team total by amount, or sets it to amount. A
// set may not lower the current total.
func (s *AdminService) AdjustTotal(ctx context.Context, teamID string, amount int64, increment bool, actor string) (models.TotalChange, error) {
	var (
		change  models.TotalChange
		updated models.Team
	)
	err := s.ledger.WithTx(ctx, func(tx repo.LedgerTx) error {
		team, err := tx.GetTeamForUpdate(ctx, teamID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrTeamNotFound
		}
		if err != nil {
			return fmt.Errorf("read team: %w", err)
		}

		action := "total_set"
		newTotal := amount
		if increment {
			if amount <= 0 {
				return ErrInvalidAmount
			}
			action = "total_increment"
			newTotal = team.DonationTotal + amount
			if newTotal < team.DonationTotal {
				return ErrInvalidAmount
			}
		} else if amount < team.DonationTotal {
			return ErrTotalDecrease
		}

		now := s.now().UTC()
		if err := tx.SetTeamTotal(ctx, team.ID, newTotal, now); err != nil {
			return fmt.Errorf("update team total: %w", err)
		}
		entityID := team.ID
		if err := tx.InsertAudit(ctx, models.AuditLog{
			ID:         uuid.NewString(),
			EntityType: "team",
			EntityID:   &entityID,
			Action:     action,
			Details: map[string]any{
				"previous_total": team.DonationTotal,
				"new_total":      newTotal,
				"amount":         amount,
				"actor":          actor,
			},
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("insert audit log: %w", err)
		}

		change = models.TotalChange{PreviousTotal: team.DonationTotal, NewTotal: newTotal}
		updated = team
		updated.DonationTotal = newTotal
		updated.LastUpdatedAt = now
		return nil
	})
	if err != nil {
		return models.TotalChange{}, err
	}

	slog.InfoContext(ctx, "team total overridden", "team_id", teamID, "increment", increment,
		"previous_total", change.PreviousTotal, "new_total", change.NewTotal, "actor", actor)
	s.pub.Publish(updated.Total())
	return change, nil
}

func (s *AdminService) Donations(ctx context.Context, teamID string, limit, offset int) ([]models.DonationRecord, error) {
	if _, err := s.ledger.GetTeam(ctx, teamID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return s.ledger.ListDonations(ctx, teamID, limit, offset)
}

func (s *AdminService) TeamAudit(ctx context.Context, teamID string, limit int) ([]models.AuditLog, error) {
	return s.audit.ListByEntity(ctx, "team", teamID, limit)
}

func (s *AdminService) OpenIssues(ctx context.Context, limit int) ([]models.ReconciliationIssue, error) {
	return s.issues.ListOpen(ctx, limit)
}

func (s *AdminService) ResolveIssue(ctx context.Context, id string) error {
	err := s.issues.Resolve(ctx, id, s.now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return ErrIssueNotFound
	}
	return err
}
