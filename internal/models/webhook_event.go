package models

import "time"

type Outcome string

const (
	OutcomeApplied          Outcome = "applied"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeIgnored          Outcome = "ignored"
	OutcomeFailed           Outcome = "failed"
	OutcomeRejected         Outcome = "rejected"
)

// WebhookEvent is the receipt log entry written for every verified event.
type WebhookEvent struct {
	ID         string    `json:"id"`
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	SessionID  string    `json:"session_id,omitempty"`
	Livemode   bool      `json:"livemode"`
	Outcome    Outcome   `json:"outcome"`
	ReceivedAt time.Time `json:"received_at"`
}
