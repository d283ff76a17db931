// Package client provides a Go client for the Donationwatch API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client is a Donationwatch API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a new Donationwatch client
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Donation is a donation record as returned by the API
type Donation struct {
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

// Project is a fundraising project as returned by the API
type Project struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	WalletAddress string `json:"walletAddress"`
	Verified      bool   `json:"verified"`
	CreatedAt     string `json:"createdAt"`
}

// DonationRequest is the request for recording a donation claim
type DonationRequest struct {
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

// ProjectRequest is the request for registering a project
type ProjectRequest struct {
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	WalletAddress string `json:"walletAddress"`
}

// DonationList is the response for listing a project's donations
type DonationList struct {
	Data  []Donation `json:"data"`
	Count int        `json:"count"`
}

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CreateDonation records a donor claim. The donation starts out pending and
// is verified asynchronously; poll GetDonation for the outcome.
func (c *Client) CreateDonation(ctx context.Context, req DonationRequest) (*Donation, error) {
	var resp Donation
	if err := c.post(ctx, "/api/v1/donations", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetDonation gets a donation by id
func (c *Client) GetDonation(ctx context.Context, id string) (*Donation, error) {
	var resp Donation
	if err := c.get(ctx, "/api/v1/donations/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListProjectDonations lists all donations for a project
func (c *Client) ListProjectDonations(ctx context.Context, slug string) (*DonationList, error) {
	var resp DonationList
	path := fmt.Sprintf("/api/v1/projects/%s/donations", url.PathEscape(slug))
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateProject registers a project
func (c *Client) CreateProject(ctx context.Context, req ProjectRequest) (*Project, error) {
	var resp Project
	if err := c.post(ctx, "/api/v1/projects", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetProject gets a project by slug
func (c *Client) GetProject(ctx context.Context, slug string) (*Project, error) {
	var resp Project
	if err := c.get(ctx, "/api/v1/projects/"+url.PathEscape(slug), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}

func (c *Client) parseError(resp *http.Response) error {
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return &errResp.Error
}
