// Package chains provides the network transaction resolver interfaces and
// implementations for the blockchains donations can arrive on.
package chains

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Well-known network IDs
const (
	NetworkMainnet = 1
	NetworkRopsten = 3
	NetworkXDai    = 100
)

// FailKind is a closed set of resolver failure classifications. The judge
// switches on the kind, never on message text.
type FailKind string

const (
	// FailTransactionNotFound means the hash is unknown to the network and,
	// when a nonce was supplied, no mined replacement was found either.
	FailTransactionNotFound FailKind = "TRANSACTION_NOT_FOUND"

	// FailNonceNotMined means the sender's account has not yet mined a
	// transaction with the claimed nonce. Retryable.
	FailNonceNotMined FailKind = "TRANSACTION_WITH_THIS_NONCE_IS_NOT_MINED_ALREADY"

	// FailContractConflictsWithCurrency means the mined transaction exists
	// but is not a transfer of the claimed asset or token contract.
	FailContractConflictsWithCurrency FailKind = "TRANSACTION_SMART_CONTRACT_CONFLICTS_WITH_CURRENCY"

	// FailInvalidNetworkID means no resolver is registered for the network.
	FailInvalidNetworkID FailKind = "INVALID_NETWORK_ID"
)

// Terminal reports whether the failure should fail the donation permanently.
// An unmined nonce just means the chain is behind the claim; the next scan
// retries it.
func (k FailKind) Terminal() bool {
	return k != FailNonceNotMined
}

// Failure is a typed resolver failure carrying its classification.
type Failure struct {
	Kind   FailKind
	Detail string
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

// NewFailure creates a Failure with an optional formatted detail.
func NewFailure(kind FailKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// AsFailure extracts a typed Failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// TransactionInquiry carries the donor-claimed fields a resolver checks
// against chain data.
type TransactionInquiry struct {
	TxHash      string
	NetworkID   int
	Symbol      string
	FromAddress string
	ToAddress   string
	Amount      float64
	// Nonce, when known, lets the resolver chase fee-bump replacements of
	// an unmined transaction.
	Nonce *uint64
}

// TransactionFact is what the chain actually recorded. Produced fresh per
// verification attempt, used once and discarded.
type TransactionFact struct {
	Hash      string
	Amount    float64
	Currency  string
	From      string
	To        string
	Nonce     uint64
	Speedup   bool
	Timestamp time.Time
}

// Resolver converts a transaction inquiry into chain facts or a typed
// Failure. Implementations are purely query-based.
type Resolver interface {
	NetworkID() int
	Name() string
	Resolve(ctx context.Context, inquiry TransactionInquiry) (*TransactionFact, error)
}

// Registry holds the resolver for each supported network
type Registry struct {
	resolvers map[int]Resolver
}

// NewRegistry creates an empty resolver registry
func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[int]Resolver)}
}

// Register adds a resolver to the registry
func (r *Registry) Register(res Resolver) {
	r.resolvers[res.NetworkID()] = res
}

// Get retrieves the resolver for a network id
func (r *Registry) Get(networkID int) (Resolver, bool) {
	res, ok := r.resolvers[networkID]
	return res, ok
}

// List returns all registered resolvers
func (r *Registry) List() []Resolver {
	resolvers := make([]Resolver, 0, len(r.resolvers))
	for _, res := range r.resolvers {
		resolvers = append(resolvers, res)
	}
	return resolvers
}

// Resolve dispatches an inquiry to the network's resolver. An unsupported
// network id is a terminal Failure, not an infrastructure error.
func (r *Registry) Resolve(ctx context.Context, inquiry TransactionInquiry) (*TransactionFact, error) {
	res, ok := r.resolvers[inquiry.NetworkID]
	if !ok {
		return nil, NewFailure(FailInvalidNetworkID, "network %d is not supported", inquiry.NetworkID)
	}
	return res.Resolve(ctx, inquiry)
}
