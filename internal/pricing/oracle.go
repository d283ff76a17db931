// Package pricing repairs donation valuations from a historic price oracle.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HistoricPrice is the oracle's quote at the time a transaction was mined.
type HistoricPrice struct {
	EthPriceInUsd   float64 `json:"ethPriceInUsd"`
	AssetPriceInUsd float64 `json:"assetPriceInUsd"`
	AssetPriceInEth float64 `json:"assetPriceInEth"`
}

// Oracle answers historic price queries keyed by transaction hash.
type Oracle interface {
	HistoricPrice(ctx context.Context, txHash string, networkID int) (*HistoricPrice, error)
}

// HTTPOracle queries a price oracle service over HTTP.
type HTTPOracle struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPOracle creates an oracle client for the given base URL.
func NewHTTPOracle(baseURL string, timeout time.Duration) *HTTPOracle {
	return &HTTPOracle{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// HistoricPrice fetches the quote for the block in which txHash was mined.
func (o *HTTPOracle) HistoricPrice(ctx context.Context, txHash string, networkID int) (*HistoricPrice, error) {
	u := fmt.Sprintf("%s/prices/historic?txHash=%s&network=%d",
		o.baseURL, url.QueryEscape(txHash), networkID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating oracle request: %w", err)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying price oracle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price oracle returned status %d", resp.StatusCode)
	}

	var price HistoricPrice
	if err := json.NewDecoder(resp.Body).Decode(&price); err != nil {
		return nil, fmt.Errorf("decoding oracle response: %w", err)
	}
	return &price, nil
}
