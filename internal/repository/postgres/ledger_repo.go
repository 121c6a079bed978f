package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/baharkarakas/charity-faceoff/internal/models"
	repo "github.com/baharkarakas/charity-faceoff/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TotalsChannel is the LISTEN/NOTIFY channel that carries the id of every team
// whose total changed.
const TotalsChannel = "team_totals"

const defaultTxAttempts = 5

type ledgerRepo struct {
	pool        *pgxpool.Pool
	maxAttempts int
}

// WithTx runs fn in one transaction. The team row lock taken by
// GetTeamForUpdate serializes writers per team, and under read committed the
// waiter then sees the committed total instead of failing. The marker and
// donation keys catch a concurrent duplicate. Deadlocks and serialization
// failures roll back completely, so the unit is re-run from the start.
func (r *ledgerRepo) WithTx(ctx context.Context, fn func(repo.LedgerTx) error) error {
	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err = r.runOnce(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		}
	}
	return fmt.Errorf("ledger transaction gave up after %d attempts: %w", r.maxAttempts, err)
}

func (r *ledgerRepo) runOnce(ctx context.Context, fn func(repo.LedgerTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	if err := fn(&ledgerTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *ledgerRepo) IsProcessed(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM processed_notifications WHERE session_id=$1)`, sessionID,
	).Scan(&exists)
	return exists, err
}

func (r *ledgerRepo) GetTeam(ctx context.Context, teamID string) (models.Team, error) {
	var t models.Team
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, charity_name, donation_total, last_updated_at
		   FROM teams
		  WHERE id=$1`,
		teamID,
	).Scan(&t.ID, &t.Name, &t.CharityName, &t.DonationTotal, &t.LastUpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Team{}, repo.ErrNotFound
	}
	return t, err
}

func (r *ledgerRepo) ListTeams(ctx context.Context) ([]models.Team, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, charity_name, donation_total, last_updated_at
		   FROM teams
		  ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Team, error) {
		var t models.Team
		err := row.Scan(&t.ID, &t.Name, &t.CharityName, &t.DonationTotal, &t.LastUpdatedAt)
		return t, err
	})
}

func (r *ledgerRepo) EnsureTeam(ctx context.Context, t models.Team) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO teams(id, name, charity_name, donation_total, last_updated_at)
		 VALUES($1, $2, $3, $4, now())
		 ON CONFLICT (id) DO NOTHING`,
		t.ID, t.Name, t.CharityName, t.DonationTotal,
	)
	return err
}

func (r *ledgerRepo) ListDonations(ctx context.Context, teamID string, limit, offset int) ([]models.DonationRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, team_id, amount, session_id, payer_email, created_at
		   FROM donations
		  WHERE team_id=$1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		teamID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DonationRecord, error) {
		var d models.DonationRecord
		err := row.Scan(&d.ID, &d.TeamID, &d.Amount, &d.SessionID, &d.PayerEmail, &d.CreatedAt)
		return d, err
	})
}

func (r *ledgerRepo) ListProcessed(ctx context.Context, limit int) ([]models.ProcessedNotification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, event_id, team_id, amount, processed_at
		   FROM processed_notifications
		  ORDER BY processed_at DESC
		  LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ProcessedNotification, error) {
		var p models.ProcessedNotification
		err := row.Scan(&p.SessionID, &p.EventID, &p.TeamID, &p.Amount, &p.ProcessedAt)
		return p, err
	})
}

func (r *ledgerRepo) Ping(ctx context.Context) error { return r.pool.Ping(ctx) }

type ledgerTx struct{ tx pgx.Tx }

func (t *ledgerTx) GetProcessed(ctx context.Context, sessionID string) (models.ProcessedNotification, error) {
	var p models.ProcessedNotification
	err := t.tx.QueryRow(ctx,
		`SELECT session_id, event_id, team_id, amount, processed_at
		   FROM processed_notifications
		  WHERE session_id=$1`,
		sessionID,
	).Scan(&p.SessionID, &p.EventID, &p.TeamID, &p.Amount, &p.ProcessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ProcessedNotification{}, repo.ErrNotFound
	}
	return p, err
}

func (t *ledgerTx) GetTeamForUpdate(ctx context.Context, teamID string) (models.Team, error) {
	var team models.Team
	err := t.tx.QueryRow(ctx,
		`SELECT id, name, charity_name, donation_total, last_updated_at
		   FROM teams
		  WHERE id=$1
		  FOR UPDATE`,
		teamID,
	).Scan(&team.ID, &team.Name, &team.CharityName, &team.DonationTotal, &team.LastUpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Team{}, repo.ErrNotFound
	}
	return team, err
}

// SetTeamTotal also queues a notification on TotalsChannel; postgres delivers
// it only if the transaction commits.
func (t *ledgerTx) SetTeamTotal(ctx context.Context, teamID string, total int64, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE teams
		    SET donation_total = $2,
		        last_updated_at = $3
		  WHERE id = $1`,
		teamID, total, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	_, err = t.tx.Exec(ctx, `SELECT pg_notify($1, $2)`, TotalsChannel, teamID)
	return err
}

func (t *ledgerTx) InsertDonation(ctx context.Context, d models.DonationRecord) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO donations(id, team_id, amount, session_id, payer_email, created_at)
		 VALUES($1, $2, $3, $4, $5, $6)`,
		d.ID, d.TeamID, d.Amount, d.SessionID, d.PayerEmail, d.CreatedAt,
	)
	if isUniqueViolation(err) {
		return repo.ErrDuplicateKey
	}
	return err
}

func (t *ledgerTx) InsertProcessed(ctx context.Context, p models.ProcessedNotification) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO processed_notifications(session_id, event_id, team_id, amount, processed_at)
		 VALUES($1, $2, $3, $4, $5)`,
		p.SessionID, p.EventID, p.TeamID, p.Amount, p.ProcessedAt,
	)
	if isUniqueViolation(err) {
		return repo.ErrDuplicateKey
	}
	return err
}

func (t *ledgerTx) InsertAudit(ctx context.Context, l models.AuditLog) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO audit_logs(id, entity_type, entity_id, action, details, created_at)
		 VALUES($1, $2, $3, $4, $5, $6)`,
		l.ID, l.EntityType, l.EntityID, l.Action, l.Details, l.CreatedAt,
	)
	return err
}
