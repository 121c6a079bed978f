// Package sqlite provides the embedded, single-node ledger backend.
package sqlite

import (
	"database/sql"
	"time"

	repo "github.com/baharkarakas/charity-faceoff/internal/repository"
)

func NewRepositories(sqlDB *sql.DB) repo.Repositories {
	return repo.Repositories{
		Ledger:        &ledgerRepo{db: sqlDB},
		WebhookEvents: &webhookEventsRepo{db: sqlDB},
		Issues:        &issuesRepo{db: sqlDB},
		AuditLogs:     &auditLogsRepo{db: sqlDB},
	}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
