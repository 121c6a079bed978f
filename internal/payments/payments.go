// Package payments creates hosted checkout sessions with the payment
// provider.
package payments

import "context"

// SessionRequest describes one donation checkout. Amount is in whole
// currency units.
type SessionRequest struct {
	TeamID      string
	CharityName string
	Amount      int64
	Currency    string
	SuccessURL  string
	CancelURL   string
}

// Session is the opaque handle the payer is redirected with.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}
