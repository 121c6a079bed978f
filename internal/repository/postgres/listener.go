package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ListenTotals holds a dedicated connection LISTENing on TotalsChannel and
// calls onChange with the team id of every committed total change, including
// changes committed by other replicas. It reconnects until ctx ends.
func ListenTotals(ctx context.Context, pool *pgxpool.Pool, onChange func(ctx context.Context, teamID string)) {
	backoff := time.Second
	for ctx.Err() == nil {
		err := listenOnce(ctx, pool, onChange)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("totals listener disconnected", "err", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func listenOnce(ctx context.Context, pool *pgxpool.Pool, onChange func(ctx context.Context, teamID string)) error {
	pooled, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	// A LISTENing session must not go back to the pool.
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+TotalsChannel); err != nil {
		return err
	}
	slog.Info("totals listener attached", "channel", TotalsChannel)
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		onChange(ctx, n.Payload)
	}
}
