package domain

// CreateRequest carries a donor's claim about an on-chain payment. Nothing
// in it is trusted: the verification job checks every field against chain
// data before the donation counts.
type CreateRequest struct {
	ProjectID   string
	UserID      string
	TxHash      string
	NetworkID   int
	FromAddress string
	ToAddress   string
	Amount      float64
	Currency    string
	// Nonce is the sender's account nonce for the claimed transaction, if
	// the donor's wallet reported it. It enables fee-bump replacement
	// detection during verification.
	Nonce *uint64
	// ValueUsd/ValueEth are the claimed valuation at donation time. Zero
	// values are repaired later by the price backfill.
	ValueUsd float64
	ValueEth float64
}
