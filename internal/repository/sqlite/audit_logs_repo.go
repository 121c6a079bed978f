package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/baharkarakas/charity-faceoff/internal/models"
)

type auditLogsRepo struct{ db *sql.DB }

func (r *auditLogsRepo) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]models.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, entity_type, entity_id, action, details, created_at
		   FROM audit_logs
		  WHERE entity_type = ? AND entity_id = ?
		  ORDER BY created_at DESC
		  LIMIT ?`,
		entityType, entityID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		var id sql.NullString
		var details []byte
		var createdAt int64
		if err := rows.Scan(&l.ID, &l.EntityType, &id, &l.Action, &details, &createdAt); err != nil {
			return nil, err
		}
		if id.Valid {
			l.EntityID = &id.String
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &l.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		l.CreatedAt = fromMillis(createdAt)
		out = append(out, l)
	}
	return out, rows.Err()
}
