package models

import "time"

type IssueStatus string

const (
	IssueOpen     IssueStatus = "open"
	IssueResolved IssueStatus = "resolved"
)

// ReconciliationIssue records a notification that was acknowledged to the
// provider but could not be applied.
type ReconciliationIssue struct {
	ID         string      `json:"id"`
	SessionID  string      `json:"session_id"`
	EventID    string      `json:"event_id"`
	TeamID     string      `json:"team_id"`
	Amount     int64       `json:"amount"`
	Reason     string      `json:"reason"`
	Detail     string      `json:"detail"`
	Status     IssueStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	ResolvedAt *time.Time  `json:"resolved_at,omitempty"`
}
