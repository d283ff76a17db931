// Package evm resolves donation claims against EVM-compatible networks
// (Ethereum mainnet, test networks, Gnosis/xDai).
package evm

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/pendergraft/donationwatch/internal/chains"
)

// transfer(address,uint256) selector
const transferMethodID = "0xa9059cbb"

// Resolver implements chains.Resolver for one EVM network.
type Resolver struct {
	network chains.NetworkConfig
	client  *Client
	tokens  *TokenRegistry
	logger  *slog.Logger
}

// NewResolver creates a resolver for a network.
func NewResolver(network chains.NetworkConfig, client *Client, tokens *TokenRegistry, logger *slog.Logger) *Resolver {
	return &Resolver{
		network: network,
		client:  client,
		tokens:  tokens,
		logger:  logger.With("network", network.Name),
	}
}

// NetworkID returns the network's chain id.
func (r *Resolver) NetworkID() int { return r.network.ID }

// Name returns the network's display name.
func (r *Resolver) Name() string { return r.network.Name }

// Resolve looks up the claimed hash, decoding token-transfer semantics for
// non-native assets. When the hash is unknown and a nonce was claimed, it
// chases a fee-bump replacement: the most recent mined transaction from the
// sender with the same nonce. Infrastructure errors (timeouts, provider
// hiccups) are returned untyped and treated as transient by the caller.
func (r *Resolver) Resolve(ctx context.Context, inquiry chains.TransactionInquiry) (*chains.TransactionFact, error) {
	tx, err := r.client.TransactionByHash(ctx, inquiry.TxHash)
	if err != nil {
		return nil, err
	}

	if tx != nil {
		if !tx.Mined() {
			return nil, chains.NewFailure(chains.FailNonceNotMined, "transaction %s is known but not mined", inquiry.TxHash)
		}
		return r.factFromRPC(ctx, tx, inquiry)
	}

	if inquiry.Nonce == nil {
		return nil, chains.NewFailure(chains.FailTransactionNotFound, "transaction %s was not found", inquiry.TxHash)
	}
	return r.chaseReplacement(ctx, inquiry)
}

// chaseReplacement looks for a mined transaction from the claimed sender
// carrying the claimed nonce. If the account has not mined past that nonce
// yet, the original may still confirm; that is retryable, not terminal.
func (r *Resolver) chaseReplacement(ctx context.Context, inquiry chains.TransactionInquiry) (*chains.TransactionFact, error) {
	nonce := *inquiry.Nonce

	count, err := r.client.TransactionCount(ctx, inquiry.FromAddress)
	if err != nil {
		return nil, err
	}
	if count <= nonce {
		return nil, chains.NewFailure(chains.FailNonceNotMined,
			"account %s has mined %d transactions, nonce %d is not mined yet", inquiry.FromAddress, count, nonce)
	}

	txs, err := r.client.ListAccountTransactions(ctx, inquiry.FromAddress)
	if err != nil {
		return nil, err
	}
	for _, st := range txs {
		n, err := strconv.ParseUint(st.Nonce, 10, 64)
		if err != nil || n != nonce {
			continue
		}
		if !sameAddress(st.From, inquiry.FromAddress) {
			continue
		}
		fact, err := r.factFromScan(st, inquiry)
		if err != nil {
			return nil, err
		}
		fact.Speedup = true
		r.logger.Info("found replacement transaction",
			"claimedHash", inquiry.TxHash,
			"minedHash", fact.Hash,
			"nonce", nonce,
		)
		return fact, nil
	}

	return nil, chains.NewFailure(chains.FailTransactionNotFound,
		"no mined transaction with nonce %d from %s", nonce, inquiry.FromAddress)
}

// factFromRPC builds a fact from a mined JSON-RPC transaction.
func (r *Resolver) factFromRPC(ctx context.Context, tx *RPCTransaction, inquiry chains.TransactionInquiry) (*chains.TransactionFact, error) {
	nonce, err := parseHexUint(tx.Nonce)
	if err != nil {
		return nil, fmt.Errorf("parsing transaction nonce: %w", err)
	}

	timestamp, err := r.client.BlockTimestamp(ctx, *tx.BlockNumber)
	if err != nil {
		return nil, err
	}

	fact := &chains.TransactionFact{
		Hash:      tx.Hash,
		Nonce:     nonce,
		Timestamp: timestamp,
	}

	if r.isNative(inquiry.Symbol) {
		value, err := hexToBig(tx.Value)
		if err != nil {
			return nil, fmt.Errorf("parsing transaction value: %w", err)
		}
		fact.From = tx.From
		fact.To = tx.To
		fact.Amount = scaleAmount(value, 18)
		fact.Currency = r.network.NativeSymbol
		return fact, nil
	}

	return r.fillTokenTransfer(fact, tx.From, tx.To, tx.Input, inquiry)
}

// factFromScan builds a fact from an account API row (the chase path).
func (r *Resolver) factFromScan(st ScanTransaction, inquiry chains.TransactionInquiry) (*chains.TransactionFact, error) {
	nonce, err := strconv.ParseUint(st.Nonce, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing txlist nonce: %w", err)
	}
	ts, err := strconv.ParseInt(st.TimeStamp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing txlist timestamp: %w", err)
	}

	fact := &chains.TransactionFact{
		Hash:      st.Hash,
		Nonce:     nonce,
		Timestamp: time.Unix(ts, 0).UTC(),
	}

	if r.isNative(inquiry.Symbol) {
		value, ok := new(big.Int).SetString(st.Value, 10)
		if !ok {
			return nil, fmt.Errorf("parsing txlist value %q", st.Value)
		}
		fact.From = st.From
		fact.To = st.To
		fact.Amount = scaleAmount(value, 18)
		fact.Currency = r.network.NativeSymbol
		return fact, nil
	}

	return r.fillTokenTransfer(fact, st.From, st.To, st.Input, inquiry)
}

// fillTokenTransfer decodes ERC-20 transfer semantics. The transaction's
// recipient is the token contract; the real recipient and amount live in
// the call data. Anything that is not a transfer of the claimed token is a
// contract/currency conflict, on the direct and the chase path alike.
func (r *Resolver) fillTokenTransfer(fact *chains.TransactionFact, txFrom, txTo, input string, inquiry chains.TransactionInquiry) (*chains.TransactionFact, error) {
	token, ok := r.tokens.Lookup(inquiry.Symbol, r.network.ID)
	if !ok {
		return nil, chains.NewFailure(chains.FailContractConflictsWithCurrency,
			"token %s is not registered on %s", inquiry.Symbol, r.network.Name)
	}
	if !sameAddress(txTo, token.Address) {
		return nil, chains.NewFailure(chains.FailContractConflictsWithCurrency,
			"transaction %s targets %s, not the %s contract %s", fact.Hash, txTo, token.Symbol, token.Address)
	}

	recipient, value, ok := decodeTransferInput(input)
	if !ok {
		return nil, chains.NewFailure(chains.FailContractConflictsWithCurrency,
			"transaction %s is not an ERC-20 transfer", fact.Hash)
	}

	fact.From = txFrom
	fact.To = recipient
	fact.Amount = scaleAmount(value, token.Decimals)
	fact.Currency = token.Symbol
	return fact, nil
}

func (r *Resolver) isNative(symbol string) bool {
	return strings.EqualFold(symbol, r.network.NativeSymbol)
}

// decodeTransferInput decodes transfer(address,uint256) call data: a 4-byte
// selector followed by two 32-byte words.
func decodeTransferInput(input string) (recipient string, value *big.Int, ok bool) {
	input = strings.ToLower(input)
	if !strings.HasPrefix(input, transferMethodID) {
		return "", nil, false
	}
	words := input[len(transferMethodID):]
	if len(words) != 128 {
		return "", nil, false
	}
	// Address is right-aligned in the first word
	recipient = "0x" + words[24:64]
	value, ok = new(big.Int).SetString(words[64:], 16)
	if !ok {
		return "", nil, false
	}
	return recipient, value, true
}

func hexToBig(s string) (*big.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return nil, fmt.Errorf("empty hex quantity")
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	return v, nil
}

// scaleAmount converts a raw integer amount to a float in whole-asset units.
func scaleAmount(value *big.Int, decimals int) float64 {
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	amount, _ := new(big.Float).Quo(new(big.Float).SetInt(value), scale).Float64()
	return amount
}

func sameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
