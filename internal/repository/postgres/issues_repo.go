package postgres

import (
	"context"
	"time"

	"github.com/baharkarakas/charity-faceoff/internal/models"
	repo "github.com/baharkarakas/charity-faceoff/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type issuesRepo struct{ pool *pgxpool.Pool }

func (r *issuesRepo) Create(ctx context.Context, i models.ReconciliationIssue) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO reconciliation_issues(id, session_id, event_id, team_id, amount, reason, detail, status, created_at)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		i.ID, i.SessionID, i.EventID, i.TeamID, i.Amount, i.Reason, i.Detail, i.Status, i.CreatedAt,
	)
	return err
}

func (r *issuesRepo) ListOpen(ctx context.Context, limit int) ([]models.ReconciliationIssue, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, event_id, team_id, amount, reason, detail, status, created_at, resolved_at
		   FROM reconciliation_issues
		  WHERE status = $1
		  ORDER BY created_at DESC
		  LIMIT $2`,
		models.IssueOpen, limit,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ReconciliationIssue, error) {
		var i models.ReconciliationIssue
		err := row.Scan(&i.ID, &i.SessionID, &i.EventID, &i.TeamID, &i.Amount, &i.Reason, &i.Detail, &i.Status, &i.CreatedAt, &i.ResolvedAt)
		return i, err
	})
}

func (r *issuesRepo) Resolve(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE reconciliation_issues
		    SET status = $2, resolved_at = $3
		  WHERE id = $1 AND status = $4`,
		id, models.IssueResolved, at, models.IssueOpen,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}
