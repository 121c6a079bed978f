package models

import "time"

type DonationRecord struct {
	ID         string    `json:"id"`
	TeamID     string    `json:"team_id"`
	Amount     int64     `json:"amount"`
	SessionID  string    `json:"session_id"`
	PayerEmail *string   `json:"payer_email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProcessedNotification marks a session id as applied. Its presence is the only
// source of truth for "already applied".
type ProcessedNotification struct {
	SessionID   string    `json:"session_id"`
	EventID     string    `json:"event_id"`
	TeamID      string    `json:"team_id"`
	Amount      int64     `json:"amount"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Settlement is a verified, decoded payment completion ready to be applied.
type Settlement struct {
	SessionID  string
	EventID    string
	TeamID     string
	Amount     int64
	PayerEmail *string
}

// ApplyResult reports an applied settlement. When AlreadyProcessed is set the
// ledger was left untouched and the totals are zero.
type ApplyResult struct {
	TotalChange
	AlreadyProcessed bool `json:"already_processed"`
}
