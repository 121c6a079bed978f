package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	stripewebhook "github.com/stripe/stripe-go/v76/webhook"

	"github.com/baharkarakas/charity-faceoff/internal/webhook"
)

type simulateOpts struct {
	url       string
	secret    string
	team      string
	amount    int64
	currency  string
	session   string
	eventType string
	unpaid    bool
}

// simulateCmd delivers a signed checkout notification, exactly as the
// provider would, so a test donation goes through the normal settlement path.
func simulateCmd() *cobra.Command {
	var o simulateOpts
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Send a signed test settlement notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.secret == "" {
				return fmt.Errorf("--secret (or STRIPE_WEBHOOK_SECRET) is required")
			}
			payload, err := buildCheckoutEvent(o)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			status, body, err := deliver(ctx, o.url, o.secret, payload, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", status, body)
			return nil
		},
	}
	cmd.Flags().StringVar(&o.url, "url", "http://localhost:8080/webhooks/stripe", "Notification endpoint")
	cmd.Flags().StringVar(&o.secret, "secret", envOr("STRIPE_WEBHOOK_SECRET", ""), "Webhook signing secret")
	cmd.Flags().StringVar(&o.team, "team", "dallasStars", "Team id placed in session metadata")
	cmd.Flags().Int64Var(&o.amount, "amount", 25, "Donation in whole currency units")
	cmd.Flags().StringVar(&o.currency, "currency", "usd", "Session currency")
	cmd.Flags().StringVar(&o.session, "session", "", "Checkout session id (random when empty; reuse one to test redelivery)")
	cmd.Flags().StringVar(&o.eventType, "event-type", webhook.EventCheckoutCompleted, "Event type")
	cmd.Flags().BoolVar(&o.unpaid, "unpaid", false, "Mark the session as not yet paid")
	return cmd
}

func buildCheckoutEvent(o simulateOpts) ([]byte, error) {
	session := o.session
	if session == "" {
		session = "cs_test_" + uuid.NewString()
	}
	status := "paid"
	if o.unpaid {
		status = "unpaid"
	}
	return json.Marshal(map[string]any{
		"id":       "evt_test_" + uuid.NewString(),
		"type":     o.eventType,
		"livemode": false,
		"created":  time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":             session,
				"amount_total":   o.amount * 100,
				"currency":       o.currency,
				"payment_status": status,
				"metadata":       map[string]string{webhook.MetadataTeamID: o.team},
			},
		},
	})
}

func deliver(ctx context.Context, url, secret string, payload []byte, at time.Time) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	})
	req.Header.Set(webhook.SignatureHeader, signed.Header)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("deliver: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, string(bytes.TrimSpace(body)), nil
}
