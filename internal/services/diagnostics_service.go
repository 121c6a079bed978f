package services

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/baharkarakas/charity-faceoff/internal/models"
	repo "github.com/baharkarakas/charity-faceoff/internal/repository"
)

// SecretStatus describes a configured secret without revealing it.
type SecretStatus struct {
	Present     bool `json:"present"`
	PrefixValid bool `json:"prefix_valid"`
	Length      int  `json:"length"`
}

func secretStatus(value, prefix string) SecretStatus {
	return SecretStatus{
		Present:     value != "",
		PrefixValid: strings.HasPrefix(value, prefix),
		Length:      len(value),
	}
}

type DiagnosticsReport struct {
	GeneratedAt     time.Time                      `json:"generated_at"`
	StripeKey       SecretStatus                   `json:"stripe_secret_key"`
	WebhookSecret   SecretStatus                   `json:"webhook_secret"`
	StoreOK         bool                           `json:"store_ok"`
	StoreError      string                         `json:"store_error,omitempty"`
	RecentEvents    []models.WebhookEvent          `json:"recent_events"`
	RecentProcessed []models.ProcessedNotification `json:"recent_processed"`
	OpenIssues      []models.ReconciliationIssue   `json:"open_issues"`
}

type DiagnosticsService struct {
	repos         repo.Repositories
	stripeKey     string
	webhookSecret string
}

func NewDiagnosticsService(repos repo.Repositories, stripeKey, webhookSecret string) *DiagnosticsService {
	return &DiagnosticsService{repos: repos, stripeKey: stripeKey, webhookSecret: webhookSecret}
}

// Report gathers operator-facing state. A failing store shows up in the
// report instead of failing the call.
func (s *DiagnosticsService) Report(ctx context.Context, limit int) DiagnosticsReport {
	rep := DiagnosticsReport{
		GeneratedAt:   time.Now().UTC(),
		StripeKey:     secretStatus(s.stripeKey, "sk_"),
		WebhookSecret: secretStatus(s.webhookSecret, "whsec_"),
		StoreOK:       true,
	}
	if err := s.repos.Ledger.Ping(ctx); err != nil {
		rep.StoreOK, rep.StoreError = false, err.Error()
		return rep
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rep.RecentEvents, err = s.repos.WebhookEvents.ListRecent(gctx, limit)
		return err
	})
	g.Go(func() (err error) {
		rep.RecentProcessed, err = s.repos.Ledger.ListProcessed(gctx, limit)
		return err
	})
	g.Go(func() (err error) {
		rep.OpenIssues, err = s.repos.Issues.ListOpen(gctx, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		rep.StoreOK, rep.StoreError = false, err.Error()
	}
	return rep
}
