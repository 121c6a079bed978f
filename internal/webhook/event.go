package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	EventCheckoutCompleted             = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

// MetadataTeamID is the checkout-session metadata key naming the team.
const MetadataTeamID = "teamId"

// Event is the provider's event envelope. Data.Object is kept raw and decoded
// on demand, since its shape depends on Type.
type Event struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Livemode bool   `json:"livemode"`
	Created  int64  `json:"created"`
	Data     struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CheckoutSession holds the fields of a checkout session the ledger relies on.
// AmountTotal is the captured amount in minor units.
type CheckoutSession struct {
	ID              string            `json:"id"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	PaymentStatus   string            `json:"payment_status"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails *struct {
		Email *string `json:"email"`
	} `json:"customer_details"`
}

func DecodeEvent(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, err
	}
	if strings.TrimSpace(ev.ID) == "" || strings.TrimSpace(ev.Type) == "" {
		return Event{}, errors.New("event id and type are required")
	}
	return ev, nil
}

// Settles reports whether the event type can carry captured money.
func (e Event) Settles() bool {
	return e.Type == EventCheckoutCompleted || e.Type == EventCheckoutAsyncPaymentSucceeded
}

func (e Event) CheckoutSession() (CheckoutSession, error) {
	var s CheckoutSession
	if len(e.Data.Object) == 0 {
		return CheckoutSession{}, errors.New("event has no data object")
	}
	if err := json.Unmarshal(e.Data.Object, &s); err != nil {
		return CheckoutSession{}, fmt.Errorf("decode checkout session: %w", err)
	}
	if strings.TrimSpace(s.ID) == "" {
		return CheckoutSession{}, errors.New("checkout session id is missing")
	}
	return s, nil
}

// Paid reports whether the session's funds were captured. A completed
// session paid by a delayed method is not paid until the async success
// event arrives.
func (s CheckoutSession) Paid() bool {
	return s.PaymentStatus == "paid"
}

func (s CheckoutSession) TeamID() string {
	return strings.TrimSpace(s.Metadata[MetadataTeamID])
}

func (s CheckoutSession) PayerEmail() *string {
	if s.CustomerDetails == nil || s.CustomerDetails.Email == nil || *s.CustomerDetails.Email == "" {
		return nil
	}
	return s.CustomerDetails.Email
}

// WholeUnits converts the captured amount to whole currency units. ok is false
// when the captured amount is not a positive whole number of units.
func (s CheckoutSession) WholeUnits() (units int64, ok bool) {
	if s.AmountTotal <= 0 || s.AmountTotal%100 != 0 {
		return 0, false
	}
	return s.AmountTotal / 100, true
}
