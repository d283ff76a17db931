// Package domain implements the verification decision logic for
// donor-claimed donations.
package domain

// Machine-readable reasons stored on failed donations. These are part of the
// API surface; downstream consumers match on them.
const (
	MsgToAddressNotProjectWallet = "TO_ADDRESS_OF_DONATION_SHOULD_BE_PROJECT_WALLET_ADDRESS"
	MsgFromAddressMismatch       = "TRANSACTION_FROM_ADDRESS_IS_DIFFERENT_FROM_SENT_FROM_ADDRESS"
	MsgToAddressMismatch         = "TRANSACTION_TO_ADDRESS_IS_DIFFERENT_FROM_SENT_TO_ADDRESS"
)

// Outcome is the result class of one verification attempt.
type Outcome string

const (
	// OutcomeVerified marks the donation verified, with possibly corrected
	// amount and valuation.
	OutcomeVerified Outcome = "verified"
	// OutcomeFailed marks the donation permanently failed with a
	// machine-readable reason.
	OutcomeFailed Outcome = "failed"
	// OutcomeNoChange leaves the donation pending; the next scan retries.
	OutcomeNoChange Outcome = "no_change"
)

// Decision is the judged outcome of one verification attempt. For
// OutcomeVerified the claim fields carry the corrected values to persist;
// for OutcomeFailed only Reason is meaningful.
type Decision struct {
	Outcome Outcome
	// Reason is the machine-readable failure message for OutcomeFailed.
	Reason string

	// Corrected claim fields, populated for OutcomeVerified.
	Amount   float64
	Currency string
	ValueUsd float64
	ValueEth float64
	// Speedup is true when the donation was settled by a fee-bump
	// replacement of the claimed transaction.
	Speedup bool
	// MinedTxHash is the hash of the transaction that actually settled the
	// donation. It differs from the claim only on speedup.
	MinedTxHash string
}
