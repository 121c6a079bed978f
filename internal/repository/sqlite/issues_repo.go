package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/baharkarakas/charity-faceoff/internal/models"
	repo "github.com/baharkarakas/charity-faceoff/internal/repository"
)

type issuesRepo struct{ db *sql.DB }

func (r *issuesRepo) Create(ctx context.Context, i models.ReconciliationIssue) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reconciliation_issues(id, session_id, event_id, team_id, amount, reason, detail, status, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.SessionID, i.EventID, i.TeamID, i.Amount, i.Reason, i.Detail, string(i.Status), toMillis(i.CreatedAt),
	)
	return err
}

func (r *issuesRepo) ListOpen(ctx context.Context, limit int) ([]models.ReconciliationIssue, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, event_id, team_id, amount, reason, detail, status, created_at, resolved_at
		   FROM reconciliation_issues
		  WHERE status = ?
		  ORDER BY created_at DESC
		  LIMIT ?`,
		string(models.IssueOpen), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ReconciliationIssue
	for rows.Next() {
		var i models.ReconciliationIssue
		var status string
		var createdAt int64
		var resolvedAt sql.NullInt64
		if err := rows.Scan(&i.ID, &i.SessionID, &i.EventID, &i.TeamID, &i.Amount, &i.Reason, &i.Detail, &status, &createdAt, &resolvedAt); err != nil {
			return nil, err
		}
		i.Status = models.IssueStatus(status)
		i.CreatedAt = fromMillis(createdAt)
		if resolvedAt.Valid {
			at := fromMillis(resolvedAt.Int64)
			i.ResolvedAt = &at
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *issuesRepo) Resolve(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reconciliation_issues
		    SET status = ?, resolved_at = ?
		  WHERE id = ? AND status = ?`,
		string(models.IssueResolved), toMillis(at), id, string(models.IssueOpen),
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
