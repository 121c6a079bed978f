package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/baharkarakas/charity-faceoff/internal/db"
	"github.com/baharkarakas/charity-faceoff/internal/models"
	repo "github.com/baharkarakas/charity-faceoff/internal/repository"
	"github.com/baharkarakas/charity-faceoff/internal/repository/sqlite"
)

func newTestRepos(t *testing.T) repo.Repositories {
	t.Helper()
	sqlDB, err := db.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlite.NewRepositories(sqlDB)
}

func seedTeam(t *testing.T, l repo.Ledger, id string, total int64) {
	t.Helper()
	if err := l.EnsureTeam(context.Background(), models.Team{ID: id, Name: id, CharityName: id + " charity", DonationTotal: total}); err != nil {
		t.Fatalf("seed team %s: %v", id, err)
	}
}

func teamTotal(t *testing.T, l repo.Ledger, id string) int64 {
	t.Helper()
	team, err := l.GetTeam(context.Background(), id)
	if err != nil {
		t.Fatalf("get team %s: %v", id, err)
	}
	return team.DonationTotal
}

func donationCount(t *testing.T, l repo.Ledger, id string) int {
	t.Helper()
	ds, err := l.ListDonations(context.Background(), id, 1000, 0)
	if err != nil {
		t.Fatalf("list donations %s: %v", id, err)
	}
	return len(ds)
}

// spyLedger counts every ledger access.
type spyLedger struct {
	repo.Ledger
	calls atomic.Int64
}

func (s *spyLedger) WithTx(ctx context.Context, fn func(repo.LedgerTx) error) error {
	s.calls.Add(1)
	return s.Ledger.WithTx(ctx, fn)
}

func (s *spyLedger) IsProcessed(ctx context.Context, sessionID string) (bool, error) {
	s.calls.Add(1)
	return s.Ledger.IsProcessed(ctx, sessionID)
}

// flakyLedger fails the idempotency pre-check.
type flakyLedger struct {
	repo.Ledger
}

func (flakyLedger) IsProcessed(context.Context, string) (bool, error) {
	return false, context.DeadlineExceeded
}

type recordingPublisher struct {
	mu  sync.Mutex
	got []models.TeamTotal
}

func (p *recordingPublisher) Publish(t models.TeamTotal) {
	p.mu.Lock()
	p.got = append(p.got, t)
	p.mu.Unlock()
}

func (p *recordingPublisher) published() []models.TeamTotal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.TeamTotal(nil), p.got...)
}

type inlineSubmitter struct{}

func (inlineSubmitter) TrySubmit(f func()) bool {
	f()
	return true
}

type sessionOpts struct {
	eventType     string
	currency      string
	paymentStatus string
}

func sessionEvent(t *testing.T, eventID, sessionID, teamID string, amountTotal int64, o sessionOpts) []byte {
	t.Helper()
	if o.eventType == "" {
		o.eventType = "checkout.session.completed"
	}
	if o.currency == "" {
		o.currency = "usd"
	}
	if o.paymentStatus == "" {
		o.paymentStatus = "paid"
	}
	metadata := map[string]string{}
	if teamID != "" {
		metadata["teamId"] = teamID
	}
	b, err := json.Marshal(map[string]any{
		"id":       eventID,
		"type":     o.eventType,
		"livemode": false,
		"data": map[string]any{
			"object": map[string]any{
				"id":               sessionID,
				"amount_total":     amountTotal,
				"currency":         o.currency,
				"payment_status":   o.paymentStatus,
				"metadata":         metadata,
				"customer_details": map[string]any{"email": "fan@example.com"},
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return b
}
