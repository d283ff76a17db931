package evm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pendergraft/donationwatch/internal/chains"
)

// Client talks to one network's JSON-RPC endpoint and, when configured, its
// etherscan/blockscout style account API. All calls share one token-bucket
// limiter so hash lookups and nonce chases count against the same quota.
type Client struct {
	httpClient *http.Client
	rpcURL     string
	scanURL    string
	scanKey    string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a client for a network. The timeout bounds every request
// so a hung provider cannot occupy a verification slot indefinitely.
func NewClient(network chains.NetworkConfig, timeout time.Duration, logger *slog.Logger) *Client {
	rps := network.RequestsPerSecond
	if rps <= 0 {
		rps = 5 // etherscan free plan
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		rpcURL:     network.RPCEndpoint,
		scanURL:    network.ScanAPIEndpoint,
		scanKey:    network.ScanAPIKey,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
	}
}

// RPCTransaction is the wire shape of eth_getTransactionByHash.
type RPCTransaction struct {
	Hash        string  `json:"hash"`
	Nonce       string  `json:"nonce"`
	BlockNumber *string `json:"blockNumber"` // nil while pending
	From        string  `json:"from"`
	To          string  `json:"to"`
	Value       string  `json:"value"`
	Input       string  `json:"input"`
}

// Mined reports whether the transaction has been included in a block.
func (t *RPCTransaction) Mined() bool {
	return t.BlockNumber != nil && *t.BlockNumber != ""
}

// ScanTransaction is one row of an account API txlist response. The account
// APIs use decimal strings where JSON-RPC uses hex.
type ScanTransaction struct {
	Hash        string `json:"hash"`
	Nonce       string `json:"nonce"`
	BlockNumber string `json:"blockNumber"`
	TimeStamp   string `json:"timeStamp"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	Input       string `json:"input"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("encoding rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("calling %s: unexpected status %d", method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("calling %s: %w", method, rpcResp.Error)
	}
	if result != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decoding %s result: %w", method, err)
		}
	}
	return nil
}

// TransactionByHash looks up a transaction. A nil result with nil error
// means the network does not know the hash.
func (c *Client) TransactionByHash(ctx context.Context, hash string) (*RPCTransaction, error) {
	var tx *RPCTransaction
	if err := c.call(ctx, "eth_getTransactionByHash", []any{hash}, &tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// TransactionCount returns the number of mined transactions sent from an
// address, which equals the next unused nonce.
func (c *Client) TransactionCount(ctx context.Context, address string) (uint64, error) {
	var countHex string
	if err := c.call(ctx, "eth_getTransactionCount", []any{address, "latest"}, &countHex); err != nil {
		return 0, err
	}
	return parseHexUint(countHex)
}

// BlockTimestamp returns the timestamp of a block given its hex number.
func (c *Client) BlockTimestamp(ctx context.Context, blockNumberHex string) (time.Time, error) {
	var block struct {
		Timestamp string `json:"timestamp"`
	}
	if err := c.call(ctx, "eth_getBlockByNumber", []any{blockNumberHex, false}, &block); err != nil {
		return time.Time{}, err
	}
	ts, err := parseHexUint(block.Timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing block timestamp: %w", err)
	}
	return time.Unix(int64(ts), 0).UTC(), nil
}

// ListAccountTransactions returns an address's mined transactions, most
// recent first, from the account API. Used only for the speedup chase.
func (c *Client) ListAccountTransactions(ctx context.Context, address string) ([]ScanTransaction, error) {
	if c.scanURL == "" {
		return nil, fmt.Errorf("no account API configured for this network")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("module", "account")
	q.Set("action", "txlist")
	q.Set("address", address)
	q.Set("sort", "desc")
	if c.scanKey != "" {
		q.Set("apikey", c.scanKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.scanURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building txlist request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling account API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("account API returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading account API response: %w", err)
	}

	var scanResp struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &scanResp); err != nil {
		return nil, fmt.Errorf("decoding account API response: %w", err)
	}
	// Status "0" with "No transactions found" is an empty list, not an error
	if scanResp.Status != "1" && !strings.Contains(scanResp.Message, "No transactions") {
		return nil, fmt.Errorf("account API error: %s", scanResp.Message)
	}

	var txs []ScanTransaction
	if err := json.Unmarshal(scanResp.Result, &txs); err != nil {
		return nil, fmt.Errorf("decoding txlist result: %w", err)
	}
	return txs, nil
}

func parseHexUint(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0, fmt.Errorf("empty hex quantity")
	}
	return strconv.ParseUint(s, 16, 64)
}
