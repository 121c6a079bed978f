package postgres

import (
	repo "github.com/baharkarakas/charity-faceoff/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewRepositories(pool *pgxpool.Pool) repo.Repositories {
	return repo.Repositories{
		Ledger:        &ledgerRepo{pool: pool, maxAttempts: defaultTxAttempts},
		WebhookEvents: &webhookEventsRepo{pool},
		Issues:        &issuesRepo{pool},
		AuditLogs:     &auditLogsRepo{pool},
	}
}
