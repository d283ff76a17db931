//go:build e2e

package e2e

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/donationwatch/internal/chains"
	"github.com/pendergraft/donationwatch/internal/chains/evm"
	"github.com/pendergraft/donationwatch/internal/config"
	"github.com/pendergraft/donationwatch/internal/server"
	"github.com/pendergraft/donationwatch/internal/storage"
	verificationDomain "github.com/pendergraft/donationwatch/internal/verification/domain"
	"github.com/pendergraft/donationwatch/pkg/client"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const givContract = "0x900db999074d9277c5da2a43f252d74366230da0"

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
	Chain             *chainStub
	ChainServer       *httptest.Server
	Registry          *chains.Registry
	TestServer        *httptest.Server
	Store             storage.Store
}

// setupPostgresE starts a Postgres container and returns the connection string
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("donationwatch"),
		postgres.WithUsername("donationwatch"),
		postgres.WithPassword("donationwatch"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return postgresContainer, connString, nil
}

// chainStub is an in-process stand-in for a network's JSON-RPC endpoint and
// its etherscan style account API. Tests seed it with mined transactions.
type chainStub struct {
	mu    sync.Mutex
	mined map[string]map[string]any
}

func newChainStub() *chainStub {
	return &chainStub{mined: make(map[string]map[string]any)}
}

// AddMinedNativeTx seeds a mined plain value transfer.
func (c *chainStub) AddMinedNativeTx(hash, from, to, valueHex string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mined[hash] = map[string]any{
		"hash":        hash,
		"nonce":       "0x1",
		"blockNumber": "0x100",
		"from":        from,
		"to":          to,
		"value":       valueHex,
		"input":       "0x",
	}
}

func (c *chainStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// No speedup chases in this suite
			json.NewEncoder(w).Encode(map[string]any{
				"status": "0", "message": "No transactions found", "result": []any{},
			})
			return
		}

		var req struct {
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var result any
		switch req.Method {
		case "eth_getTransactionByHash":
			hash, _ := req.Params[0].(string)
			c.mu.Lock()
			if tx, ok := c.mined[hash]; ok {
				result = tx
			}
			c.mu.Unlock()
		case "eth_getTransactionCount":
			result = "0x0"
		case "eth_getBlockByNumber":
			result = map[string]any{"timestamp": "0x61000000"}
		}
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": 1, "result": result})
	})
}

// buildRegistryE wires a mainnet resolver against the chain stub.
func buildRegistryE(rpcURL string) *chains.Registry {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	network := chains.NetworkConfig{
		ID:                chains.NetworkMainnet,
		Name:              "mainnet",
		NativeSymbol:      "ETH",
		RPCEndpoint:       rpcURL,
		ScanAPIEndpoint:   rpcURL,
		RequestsPerSecond: 1000,
	}
	tokens := evm.NewTokenRegistry([]evm.Token{
		{Symbol: "GIV", NetworkID: chains.NetworkMainnet, Address: givContract, Decimals: 18},
	})
	registry := chains.NewRegistry()
	registry.Register(evm.NewResolver(network, evm.NewClient(network, 10*time.Second, logger), tokens, logger))
	return registry
}

// startServerE starts the donationwatch server in-process
func startServerE(connString string, registry *chains.Registry) (*httptest.Server, storage.Store, error) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Storage: config.StorageConfig{
			Type: "postgres",
			Postgres: config.PostgresConfig{
				URL: connString,
			},
		},
		Auth:      config.AuthConfig{Type: "api-key"},
		Logging:   config.LoggingConfig{Level: "debug", Format: "text"},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Proxy:     config.ProxyConfig{TrustProxy: false},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create store: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	srv := server.New(cfg, store, registry, logger)
	testServer := httptest.NewServer(srv.Handler())

	return testServer, store, nil
}

// newClient creates a new API client for the test server
func newClient(testServer *httptest.Server, apiKey string) *client.Client {
	return client.New(testServer.URL, apiKey)
}

// newVerifier builds an in-process verification service against the shared
// store and chain stub, without the scheduler in between.
func newVerifier(store storage.Store, registry *chains.Registry) verificationDomain.Service {
	return verificationDomain.NewService(store, store, registry, nil)
}

// createTestAPIKey creates a test API key using the store directly
func createTestAPIKey(t *testing.T, store storage.Store, name string) string {
	key, err := store.CreateAPIKey(context.Background(), name)
	require.NoError(t, err, "Failed to create API key")
	return key
}

// uniqueSlug generates a slug that will not collide across tests sharing one
// database.
func uniqueSlug(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.New().String()[:8])
}

// randomTxHash generates a well-formed random transaction hash
func randomTxHash() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return "0x" + hex.EncodeToString(b)
}

// randomAddress generates a well-formed random address
func randomAddress() string {
	b := make([]byte, 20)
	_, _ = rand.Read(b)
	return "0x" + hex.EncodeToString(b)
}

// projectRequest builds a well-formed project registration request
func projectRequest(slug string) client.ProjectRequest {
	return client.ProjectRequest{
		Title:         "Test Project " + slug,
		Slug:          slug,
		WalletAddress: randomAddress(),
	}
}

// registerProject creates a project through the API
func registerProject(t *testing.T, c *client.Client, slug string) *client.Project {
	t.Helper()
	p, err := c.CreateProject(context.Background(), projectRequest(slug))
	require.NoError(t, err, "Failed to create project")
	return p
}

// assertHTTPError asserts that an error is an APIError with the expected code
func assertHTTPError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	apiErr, ok := err.(*client.APIError)
	require.True(t, ok, "Error should be an APIError")
	require.Equal(t, expectedCode, apiErr.Code, "Error code mismatch")
}
