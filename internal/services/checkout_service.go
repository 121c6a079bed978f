package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/baharkarakas/charity-faceoff/internal/payments"
	repo "github.com/baharkarakas/charity-faceoff/internal/repository"
)

// MaxCheckoutAmount is the largest single pledge in whole currency units. It
// sits under the provider's per-charge ceiling and keeps the minor-unit
// conversion far from overflow.
const MaxCheckoutAmount = 999_999

type CheckoutService struct {
	ledger   repo.Ledger
	provider payments.Provider
	baseURL  string
	currency string
}

func NewCheckoutService(ledger repo.Ledger, provider payments.Provider, baseURL, currency string) *CheckoutService {
	return &CheckoutService{
		ledger:   ledger,
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		currency: strings.ToLower(currency),
	}
}

// Create validates the pledge and opens a provider session. Nothing is written
// to the ledger; money is only credited by a settlement notification. The
// payer sees the team's stored charity name; charityName from the form is
// only compared against it.
func (s *CheckoutService) Create(ctx context.Context, teamID, charityName string, amount int64) (payments.Session, error) {
	if amount <= 0 || amount > MaxCheckoutAmount {
		return payments.Session{}, ErrInvalidAmount
	}
	team, err := s.ledger.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return payments.Session{}, ErrTeamNotFound
		}
		return payments.Session{}, fmt.Errorf("load team: %w", err)
	}
	charity := team.CharityName
	if charity == "" {
		charity = team.Name
	}
	if given := strings.TrimSpace(charityName); given != "" && !strings.EqualFold(given, charity) {
		slog.WarnContext(ctx, "checkout charity name differs from roster, using roster",
			"team_id", teamID, "given", given, "charity", charity)
	}
	if s.provider == nil {
		return payments.Session{}, &MisconfigurationError{Missing: []string{"STRIPE_SECRET_KEY"}}
	}

	success := s.baseURL + "/?donation=success&team=" + url.QueryEscape(teamID) + "&session_id={CHECKOUT_SESSION_ID}"
	return s.provider.CreateSession(ctx, payments.SessionRequest{
		TeamID:      teamID,
		CharityName: charity,
		Amount:      amount,
		Currency:    s.currency,
		SuccessURL:  success,
		CancelURL:   s.baseURL + "/",
	})
}
