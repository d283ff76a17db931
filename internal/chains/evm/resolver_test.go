package evm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/donationwatch/internal/chains"
)

const (
	senderAddr    = "0x5ac583feb2b1f288c0a51d6cdca2e8c814bfe93b"
	projectAddr   = "0x10a84b835c5df26f2a380b3e00bcc84a66cd2d34"
	givContract   = "0x900db999074d9277c5da2a43f252d74366230da0"
	claimedHash   = "0x1111111111111111111111111111111111111111111111111111111111111111"
	replacedHash  = "0x2222222222222222222222222222222222222222222222222222222222222222"
	oneEthHex     = "0xde0b6b3a7640000"  // 1e18
	tenTokensWord = "0000000000000000000000000000000000000000000000008ac7230489e80000" // 1e19
)

// transfer(projectAddr, 10e18)
const transferInput = transferMethodID +
	"00000000000000000000000010a84b835c5df26f2a380b3e00bcc84a66cd2d34" +
	tenTokensWord

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeChain serves both the JSON-RPC endpoint (POST) and the account API
// (GET) from one httptest server.
type fakeChain struct {
	// txByHash maps hash -> RPC transaction object (nil entry = pending
	// handling is done via the object itself)
	txByHash map[string]map[string]any
	txCount  string
	txList   []map[string]any
}

func (f *fakeChain) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Account API
			result := f.txList
			status := "1"
			message := "OK"
			if len(result) == 0 {
				status = "0"
				message = "No transactions found"
				result = []map[string]any{}
			}
			json.NewEncoder(w).Encode(map[string]any{
				"status": status, "message": message, "result": result,
			})
			return
		}

		var req struct {
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result any
		switch req.Method {
		case "eth_getTransactionByHash":
			hash, _ := req.Params[0].(string)
			if tx, ok := f.txByHash[hash]; ok {
				result = tx
			} else {
				result = nil
			}
		case "eth_getTransactionCount":
			result = f.txCount
		case "eth_getBlockByNumber":
			result = map[string]any{"timestamp": "0x61000000"}
		default:
			t.Fatalf("unexpected rpc method %s", req.Method)
		}
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": 1, "result": result})
	})
}

func newTestResolver(t *testing.T, chain *fakeChain) (*Resolver, *httptest.Server) {
	srv := httptest.NewServer(chain.handler(t))
	t.Cleanup(srv.Close)

	network := chains.NetworkConfig{
		ID:                chains.NetworkMainnet,
		Name:              "mainnet",
		NativeSymbol:      "ETH",
		RPCEndpoint:       srv.URL,
		ScanAPIEndpoint:   srv.URL,
		RequestsPerSecond: 1000,
	}
	tokens := NewTokenRegistry([]Token{
		{Symbol: "GIV", NetworkID: chains.NetworkMainnet, Address: givContract, Decimals: 18},
	})
	client := NewClient(network, 5*time.Second, testLogger())
	return NewResolver(network, client, tokens, testLogger()), srv
}

func minedNativeTx() map[string]any {
	return map[string]any{
		"hash":        claimedHash,
		"nonce":       "0x5",
		"blockNumber": "0xabc123",
		"from":        senderAddr,
		"to":          projectAddr,
		"value":       oneEthHex,
		"input":       "0x",
	}
}

func nativeInquiry() chains.TransactionInquiry {
	return chains.TransactionInquiry{
		TxHash:      claimedHash,
		NetworkID:   chains.NetworkMainnet,
		Symbol:      "ETH",
		FromAddress: senderAddr,
		ToAddress:   projectAddr,
		Amount:      1,
	}
}

func TestResolve_MinedNativeTransfer(t *testing.T) {
	r, _ := newTestResolver(t, &fakeChain{
		txByHash: map[string]map[string]any{claimedHash: minedNativeTx()},
	})

	fact, err := r.Resolve(context.Background(), nativeInquiry())
	require.NoError(t, err)
	assert.Equal(t, claimedHash, fact.Hash)
	assert.Equal(t, senderAddr, fact.From)
	assert.Equal(t, projectAddr, fact.To)
	assert.InDelta(t, 1.0, fact.Amount, 1e-12)
	assert.Equal(t, "ETH", fact.Currency)
	assert.Equal(t, uint64(5), fact.Nonce)
	assert.False(t, fact.Speedup)
	assert.False(t, fact.Timestamp.IsZero())
}

func TestResolve_UnknownHashWithoutNonce(t *testing.T) {
	r, _ := newTestResolver(t, &fakeChain{})

	_, err := r.Resolve(context.Background(), nativeInquiry())
	f, ok := chains.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, chains.FailTransactionNotFound, f.Kind)
	assert.True(t, f.Kind.Terminal())
}

func TestResolve_KnownButPendingTransaction(t *testing.T) {
	tx := minedNativeTx()
	tx["blockNumber"] = nil
	r, _ := newTestResolver(t, &fakeChain{
		txByHash: map[string]map[string]any{claimedHash: tx},
	})

	_, err := r.Resolve(context.Background(), nativeInquiry())
	f, ok := chains.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, chains.FailNonceNotMined, f.Kind)
	assert.False(t, f.Kind.Terminal())
}

func TestResolve_TokenTransfer(t *testing.T) {
	tx := minedNativeTx()
	tx["to"] = givContract
	tx["value"] = "0x0"
	tx["input"] = transferInput
	r, _ := newTestResolver(t, &fakeChain{
		txByHash: map[string]map[string]any{claimedHash: tx},
	})

	inq := nativeInquiry()
	inq.Symbol = "GIV"
	inq.Amount = 10

	fact, err := r.Resolve(context.Background(), inq)
	require.NoError(t, err)
	assert.Equal(t, senderAddr, fact.From)
	// The real recipient comes from the call data, not tx.to
	assert.Equal(t, projectAddr, fact.To)
	assert.InDelta(t, 10.0, fact.Amount, 1e-12)
	assert.Equal(t, "GIV", fact.Currency)
}

func TestResolve_TokenContractConflict(t *testing.T) {
	// Claimed GIV but the transaction targets some other contract.
	tx := minedNativeTx()
	tx["to"] = "0x000000000000000000000000000000000000dead"
	tx["input"] = transferInput
	r, _ := newTestResolver(t, &fakeChain{
		txByHash: map[string]map[string]any{claimedHash: tx},
	})

	inq := nativeInquiry()
	inq.Symbol = "GIV"

	_, err := r.Resolve(context.Background(), inq)
	f, ok := chains.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, chains.FailContractConflictsWithCurrency, f.Kind)
}

func TestResolve_UnregisteredTokenConflict(t *testing.T) {
	tx := minedNativeTx()
	r, _ := newTestResolver(t, &fakeChain{
		txByHash: map[string]map[string]any{claimedHash: tx},
	})

	inq := nativeInquiry()
	inq.Symbol = "WBTC"

	_, err := r.Resolve(context.Background(), inq)
	f, ok := chains.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, chains.FailContractConflictsWithCurrency, f.Kind)
}

func TestResolve_NonTransferInputConflict(t *testing.T) {
	tx := minedNativeTx()
	tx["to"] = givContract
	tx["input"] = "0x095ea7b3" // approve selector
	r, _ := newTestResolver(t, &fakeChain{
		txByHash: map[string]map[string]any{claimedHash: tx},
	})

	inq := nativeInquiry()
	inq.Symbol = "GIV"

	_, err := r.Resolve(context.Background(), inq)
	f, ok := chains.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, chains.FailContractConflictsWithCurrency, f.Kind)
}

func TestResolve_SpeedupReplacement(t *testing.T) {
	nonce := uint64(5)
	r, _ := newTestResolver(t, &fakeChain{
		txCount: "0xa", // account has mined past nonce 5
		txList: []map[string]any{
			{
				"hash":        replacedHash,
				"nonce":       "5",
				"blockNumber": "14000000",
				"timeStamp":   "1630000000",
				"from":        senderAddr,
				"to":          projectAddr,
				"value":       "2000000000000000000",
				"input":       "0x",
			},
		},
	})

	inq := nativeInquiry()
	inq.Nonce = &nonce

	fact, err := r.Resolve(context.Background(), inq)
	require.NoError(t, err)
	assert.True(t, fact.Speedup)
	assert.Equal(t, replacedHash, fact.Hash)
	assert.InDelta(t, 2.0, fact.Amount, 1e-12)
	assert.Equal(t, uint64(5), fact.Nonce)
}

func TestResolve_NonceNotMinedYet(t *testing.T) {
	nonce := uint64(5)
	r, _ := newTestResolver(t, &fakeChain{txCount: "0x5"})

	inq := nativeInquiry()
	inq.Nonce = &nonce

	_, err := r.Resolve(context.Background(), inq)
	f, ok := chains.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, chains.FailNonceNotMined, f.Kind)
}

func TestResolve_NoReplacementFound(t *testing.T) {
	nonce := uint64(5)
	r, _ := newTestResolver(t, &fakeChain{
		txCount: "0xa",
		txList: []map[string]any{
			{
				"hash": replacedHash, "nonce": "7", "blockNumber": "14000000",
				"timeStamp": "1630000000", "from": senderAddr, "to": projectAddr,
				"value": "1", "input": "0x",
			},
		},
	})

	inq := nativeInquiry()
	inq.Nonce = &nonce

	_, err := r.Resolve(context.Background(), inq)
	f, ok := chains.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, chains.FailTransactionNotFound, f.Kind)
}

func TestDecodeTransferInput(t *testing.T) {
	recipient, value, ok := decodeTransferInput(transferInput)
	require.True(t, ok)
	assert.Equal(t, projectAddr, recipient)
	assert.Equal(t, "10000000000000000000", value.String())

	_, _, ok = decodeTransferInput("0x")
	assert.False(t, ok)

	_, _, ok = decodeTransferInput(transferMethodID + "abcd")
	assert.False(t, ok)
}

func TestScaleAmount(t *testing.T) {
	v, err := hexToBig(oneEthHex)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, scaleAmount(v, 18), 1e-12)
}
