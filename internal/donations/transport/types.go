// Package transport provides HTTP request/response types for the donations domain.
package transport

import (
	"github.com/pendergraft/donationwatch/internal/donations/domain"
	"github.com/pendergraft/donationwatch/internal/storage"
)

// CreateRequest is the HTTP request body for recording a donation claim.
type CreateRequest struct {
	ProjectID   string  `json:"projectId"`
	UserID      string  `json:"userId,omitempty"`
	TxHash      string  `json:"txHash"`
	NetworkID   int     `json:"networkId"`
	FromAddress string  `json:"fromAddress"`
	ToAddress   string  `json:"toAddress"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Nonce       *uint64 `json:"nonce,omitempty"`
	ValueUsd    float64 `json:"valueUsd,omitempty"`
	ValueEth    float64 `json:"valueEth,omitempty"`
}

// ToDomain converts CreateRequest to domain.CreateRequest.
func (r CreateRequest) ToDomain() domain.CreateRequest {
	return domain.CreateRequest{
		ProjectID:   r.ProjectID,
		UserID:      r.UserID,
		TxHash:      r.TxHash,
		NetworkID:   r.NetworkID,
		FromAddress: r.FromAddress,
		ToAddress:   r.ToAddress,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Nonce:       r.Nonce,
		ValueUsd:    r.ValueUsd,
		ValueEth:    r.ValueEth,
	}
}

// DonationResponse is the JSON rendering of a donation record.
type DonationResponse struct {
	ID                 string   `json:"id"`
	ProjectID          string   `json:"projectId"`
	UserID             string   `json:"userId,omitempty"`
	Status             string   `json:"status"`
	TxHash             string   `json:"txHash"`
	NetworkID          int      `json:"networkId"`
	FromAddress        string   `json:"fromAddress"`
	ToAddress          string   `json:"toAddress"`
	Amount             float64  `json:"amount"`
	Currency           string   `json:"currency"`
	Nonce              *uint64  `json:"nonce,omitempty"`
	ValueUsd           float64  `json:"valueUsd"`
	ValueEth           float64  `json:"valueEth"`
	PriceUsd           *float64 `json:"priceUsd,omitempty"`
	PriceEth           *float64 `json:"priceEth,omitempty"`
	Speedup            bool     `json:"speedup"`
	VerifyErrorMessage string   `json:"verifyErrorMessage,omitempty"`
	CreatedAt          string   `json:"createdAt"`
	VerifiedAt         string   `json:"verifiedAt,omitempty"`
}

// FromDonation converts a storage record into its JSON rendering.
func FromDonation(d *storage.Donation) DonationResponse {
	return DonationResponse{
		ID:                 d.ID,
		ProjectID:          d.ProjectID,
		UserID:             d.UserID,
		Status:             d.Status,
		TxHash:             d.TxHash,
		NetworkID:          d.NetworkID,
		FromAddress:        d.FromAddress,
		ToAddress:          d.ToAddress,
		Amount:             d.Amount,
		Currency:           d.Currency,
		Nonce:              d.Nonce,
		ValueUsd:           d.ValueUsd,
		ValueEth:           d.ValueEth,
		PriceUsd:           d.PriceUsd,
		PriceEth:           d.PriceEth,
		Speedup:            d.Speedup,
		VerifyErrorMessage: d.VerifyErrorMessage,
		CreatedAt:          d.CreatedAt,
		VerifiedAt:         d.VerifiedAt,
	}
}
