package sqlite

import (
	"context"
	"database/sql"

	"github.com/baharkarakas/charity-faceoff/internal/models"
)

type webhookEventsRepo struct{ db *sql.DB }

func (r *webhookEventsRepo) Create(ctx context.Context, e models.WebhookEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO webhook_events(id, event_id, event_type, session_id, livemode, outcome, received_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.EventID, e.EventType, e.SessionID, e.Livemode, string(e.Outcome), toMillis(e.ReceivedAt),
	)
	return err
}

func (r *webhookEventsRepo) ListRecent(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, event_type, session_id, livemode, outcome, received_at
		   FROM webhook_events
		  ORDER BY received_at DESC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.WebhookEvent
	for rows.Next() {
		var e models.WebhookEvent
		var outcome string
		var receivedAt int64
		if err := rows.Scan(&e.ID, &e.EventID, &e.EventType, &e.SessionID, &e.Livemode, &outcome, &receivedAt); err != nil {
			return nil, err
		}
		e.Outcome = models.Outcome(outcome)
		e.ReceivedAt = fromMillis(receivedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
