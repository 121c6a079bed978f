package repository

import (
	"context"
	"errors"
	"time"

	"github.com/baharkarakas/charity-faceoff/internal/models"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// LedgerTx is the ledger as seen from inside one atomic unit. Nothing written
// through it is visible to other readers until the unit commits.
type LedgerTx interface {
	GetProcessed(ctx context.Context, sessionID string) (models.ProcessedNotification, error)
	// GetTeamForUpdate reads the team and holds it against concurrent writers
	// until the unit ends.
	GetTeamForUpdate(ctx context.Context, teamID string) (models.Team, error)
	SetTeamTotal(ctx context.Context, teamID string, total int64, at time.Time) error
	InsertDonation(ctx context.Context, d models.DonationRecord) error
	InsertProcessed(ctx context.Context, p models.ProcessedNotification) error
	InsertAudit(ctx context.Context, l models.AuditLog) error
}

// Ledger is the durable store for team totals, donation records and processed
// notification markers. Totals change only through WithTx.
type Ledger interface {
	// WithTx runs fn as one all-or-nothing unit. fn may be invoked more than
	// once when the backend has to re-run a conflicting unit, so it must not
	// keep state across invocations.
	WithTx(ctx context.Context, fn func(LedgerTx) error) error

	IsProcessed(ctx context.Context, sessionID string) (bool, error)
	GetTeam(ctx context.Context, teamID string) (models.Team, error)
	ListTeams(ctx context.Context) ([]models.Team, error)
	// EnsureTeam inserts the team when absent and leaves an existing row alone.
	EnsureTeam(ctx context.Context, t models.Team) error
	ListDonations(ctx context.Context, teamID string, limit, offset int) ([]models.DonationRecord, error)
	ListProcessed(ctx context.Context, limit int) ([]models.ProcessedNotification, error)
	Ping(ctx context.Context) error
}

type WebhookEvents interface {
	Create(ctx context.Context, e models.WebhookEvent) error
	ListRecent(ctx context.Context, limit int) ([]models.WebhookEvent, error)
}

type Issues interface {
	Create(ctx context.Context, i models.ReconciliationIssue) error
	ListOpen(ctx context.Context, limit int) ([]models.ReconciliationIssue, error)
	Resolve(ctx context.Context, id string, at time.Time) error
}

type AuditLogs interface {
	ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]models.AuditLog, error)
}

// Repositories bundles one backend's stores.
type Repositories struct {
	Ledger        Ledger
	WebhookEvents WebhookEvents
	Issues        Issues
	AuditLogs     AuditLogs
}
