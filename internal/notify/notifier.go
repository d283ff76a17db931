// Package notify delivers donation settlement events to an external
// webhook. Delivery is best effort: verification outcomes are already
// persisted before any notification is attempted.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pendergraft/donationwatch/internal/storage"
)

// Event names carried in the webhook payload.
const (
	EventDonationVerified = "donation_verified"
	EventDonationFailed   = "donation_failed"
)

// Payload is the JSON body posted to the webhook.
type Payload struct {
	Event              string  `json:"event"`
	DonationID         string  `json:"donationId"`
	ProjectID          string  `json:"projectId"`
	ProjectSlug        string  `json:"projectSlug,omitempty"`
	TxHash             string  `json:"txHash"`
	NetworkID          int     `json:"networkId"`
	FromAddress        string  `json:"fromAddress"`
	ToAddress          string  `json:"toAddress"`
	Amount             float64 `json:"amount"`
	Currency           string  `json:"currency"`
	ValueUsd           float64 `json:"valueUsd"`
	ValueEth           float64 `json:"valueEth"`
	Status             string  `json:"status"`
	VerifyErrorMessage string  `json:"verifyErrorMessage,omitempty"`
	Speedup            bool    `json:"speedup"`
	OccurredAt         string  `json:"occurredAt"`
}

// Webhook posts settlement events to a configured URL.
type Webhook struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhook creates a webhook notifier. An empty URL yields a notifier
// that drops every event.
func NewWebhook(url string, timeout time.Duration, logger *slog.Logger) *Webhook {
	return &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// DonationSettled posts the terminal state of a donation.
func (w *Webhook) DonationSettled(ctx context.Context, d *storage.Donation, project *storage.Project) error {
	if w.url == "" {
		return nil
	}

	event := EventDonationVerified
	if d.Status == storage.DonationStatusFailed {
		event = EventDonationFailed
	}
	payload := Payload{
		Event:              event,
		DonationID:         d.ID,
		ProjectID:          d.ProjectID,
		TxHash:             d.TxHash,
		NetworkID:          d.NetworkID,
		FromAddress:        d.FromAddress,
		ToAddress:          d.ToAddress,
		Amount:             d.Amount,
		Currency:           d.Currency,
		ValueUsd:           d.ValueUsd,
		ValueEth:           d.ValueEth,
		Status:             d.Status,
		VerifyErrorMessage: d.VerifyErrorMessage,
		Speedup:            d.Speedup,
		OccurredAt:         time.Now().UTC().Format(time.RFC3339),
	}
	if project != nil {
		payload.ProjectSlug = project.Slug
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.logger.Warn("notification delivery failed",
			"donationId", d.ID,
			"event", event,
			"error", err,
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		w.logger.Warn("notification rejected",
			"donationId", d.ID,
			"event", event,
			"status", resp.StatusCode,
		)
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
