package postgres

import (
	"context"

	"github.com/baharkarakas/charity-faceoff/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type webhookEventsRepo struct{ pool *pgxpool.Pool }

func (r *webhookEventsRepo) Create(ctx context.Context, e models.WebhookEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO webhook_events(id, event_id, event_type, session_id, livemode, outcome, received_at)
		 VALUES($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.EventID, e.EventType, e.SessionID, e.Livemode, e.Outcome, e.ReceivedAt,
	)
	return err
}

func (r *webhookEventsRepo) ListRecent(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, event_id, event_type, session_id, livemode, outcome, received_at
		   FROM webhook_events
		  ORDER BY received_at DESC
		  LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.WebhookEvent, error) {
		var e models.WebhookEvent
		err := row.Scan(&e.ID, &e.EventID, &e.EventType, &e.SessionID, &e.Livemode, &e.Outcome, &e.ReceivedAt)
		return e, err
	})
}
