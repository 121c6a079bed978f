package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/baharkarakas/charity-faceoff/internal/models"
	repo "github.com/baharkarakas/charity-faceoff/internal/repository"
)

type ledgerRepo struct{ db *sql.DB }

// WithTx relies on the handle opening every transaction with BEGIN IMMEDIATE,
// which takes the write lock up front.
func (r *ledgerRepo) WithTx(ctx context.Context, fn func(repo.LedgerTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&ledgerTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *ledgerRepo) IsProcessed(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM processed_notifications WHERE session_id = ?)`, sessionID,
	).Scan(&exists)
	return exists, err
}

func (r *ledgerRepo) GetTeam(ctx context.Context, teamID string) (models.Team, error) {
	return scanTeam(r.db.QueryRowContext(ctx,
		`SELECT id, name, charity_name, donation_total, last_updated_at
		   FROM teams
		  WHERE id = ?`,
		teamID,
	))
}

func (r *ledgerRepo) ListTeams(ctx context.Context) ([]models.Team, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, charity_name, donation_total, last_updated_at
		   FROM teams
		  ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *ledgerRepo) EnsureTeam(ctx context.Context, t models.Team) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO teams(id, name, charity_name, donation_total, last_updated_at)
		 VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		t.ID, t.Name, t.CharityName, t.DonationTotal, toMillis(time.Now()),
	)
	return err
}

func (r *ledgerRepo) ListDonations(ctx context.Context, teamID string, limit, offset int) ([]models.DonationRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, team_id, amount, session_id, payer_email, created_at
		   FROM donations
		  WHERE team_id = ?
		  ORDER BY created_at DESC, id
		  LIMIT ? OFFSET ?`,
		teamID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DonationRecord
	for rows.Next() {
		var d models.DonationRecord
		var email sql.NullString
		var createdAt int64
		if err := rows.Scan(&d.ID, &d.TeamID, &d.Amount, &d.SessionID, &email, &createdAt); err != nil {
			return nil, err
		}
		if email.Valid {
			d.PayerEmail = &email.String
		}
		d.CreatedAt = fromMillis(createdAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *ledgerRepo) ListProcessed(ctx context.Context, limit int) ([]models.ProcessedNotification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, event_id, team_id, amount, processed_at
		   FROM processed_notifications
		  ORDER BY processed_at DESC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ProcessedNotification
	for rows.Next() {
		p, err := scanProcessed(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ledgerRepo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTeam(row rowScanner) (models.Team, error) {
	var t models.Team
	var updatedAt int64
	err := row.Scan(&t.ID, &t.Name, &t.CharityName, &t.DonationTotal, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Team{}, repo.ErrNotFound
	}
	if err != nil {
		return models.Team{}, err
	}
	t.LastUpdatedAt = fromMillis(updatedAt)
	return t, nil
}

func scanProcessed(row rowScanner) (models.ProcessedNotification, error) {
	var p models.ProcessedNotification
	var processedAt int64
	err := row.Scan(&p.SessionID, &p.EventID, &p.TeamID, &p.Amount, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProcessedNotification{}, repo.ErrNotFound
	}
	if err != nil {
		return models.ProcessedNotification{}, err
	}
	p.ProcessedAt = fromMillis(processedAt)
	return p, nil
}

type ledgerTx struct{ tx *sql.Tx }

func (t *ledgerTx) GetProcessed(ctx context.Context, sessionID string) (models.ProcessedNotification, error) {
	return scanProcessed(t.tx.QueryRowContext(ctx,
		`SELECT session_id, event_id, team_id, amount, processed_at
		   FROM processed_notifications
		  WHERE session_id = ?`,
		sessionID,
	))
}

// GetTeamForUpdate needs no row lock: the transaction already holds the
// database write lock.
func (t *ledgerTx) GetTeamForUpdate(ctx context.Context, teamID string) (models.Team, error) {
	return scanTeam(t.tx.QueryRowContext(ctx,
		`SELECT id, name, charity_name, donation_total, last_updated_at
		   FROM teams
		  WHERE id = ?`,
		teamID,
	))
}

func (t *ledgerTx) SetTeamTotal(ctx context.Context, teamID string, total int64, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE teams
		    SET donation_total = ?,
		        last_updated_at = ?
		  WHERE id = ?`,
		total, toMillis(at), teamID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (t *ledgerTx) InsertDonation(ctx context.Context, d models.DonationRecord) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO donations(id, team_id, amount, session_id, payer_email, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		d.ID, d.TeamID, d.Amount, d.SessionID, d.PayerEmail, toMillis(d.CreatedAt),
	)
	if isUniqueViolation(err) {
		return repo.ErrDuplicateKey
	}
	return err
}

func (t *ledgerTx) InsertProcessed(ctx context.Context, p models.ProcessedNotification) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO processed_notifications(session_id, event_id, team_id, amount, processed_at)
		 VALUES(?, ?, ?, ?, ?)`,
		p.SessionID, p.EventID, p.TeamID, p.Amount, toMillis(p.ProcessedAt),
	)
	if isUniqueViolation(err) {
		return repo.ErrDuplicateKey
	}
	return err
}

func (t *ledgerTx) InsertAudit(ctx context.Context, l models.AuditLog) error {
	var details []byte
	if l.Details != nil {
		b, err := json.Marshal(l.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		details = b
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO audit_logs(id, entity_type, entity_id, action, details, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		l.ID, l.EntityType, l.EntityID, l.Action, details, toMillis(l.CreatedAt),
	)
	return err
}
