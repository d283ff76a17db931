package domain

import (
	"strings"

	"github.com/pendergraft/donationwatch/internal/chains"
	"github.com/pendergraft/donationwatch/internal/storage"
)

// Precheck rejects donations whose destination is not the project's
// registered wallet. It runs before any chain lookup so a misdirected claim
// never costs an RPC round trip. Returns nil when the destination is fine.
func Precheck(d *storage.Donation, projectWalletAddress string) *Decision {
	if !sameAddress(d.ToAddress, projectWalletAddress) {
		return &Decision{Outcome: OutcomeFailed, Reason: MsgToAddressNotProjectWallet}
	}
	return nil
}

// Judge turns the resolver outcome for a donation into a Decision. It is a
// pure function: no IO, no clock, no store access.
//
// A typed terminal failure fails the donation with the failure kind as the
// stored reason. A non-mined nonce, or any untyped error (network trouble,
// timeouts, malformed responses), leaves the donation untouched for the next
// scan. A resolved fact is checked against the claimed endpoints and, on
// match, the claim is corrected to what the chain actually recorded.
func Judge(d *storage.Donation, fact *chains.TransactionFact, resolveErr error) Decision {
	if resolveErr != nil {
		if f, ok := chains.AsFailure(resolveErr); ok && f.Kind.Terminal() {
			return Decision{Outcome: OutcomeFailed, Reason: string(f.Kind)}
		}
		return Decision{Outcome: OutcomeNoChange}
	}

	if !sameAddress(fact.From, d.FromAddress) {
		return Decision{Outcome: OutcomeFailed, Reason: MsgFromAddressMismatch}
	}
	if !sameAddress(fact.To, d.ToAddress) {
		return Decision{Outcome: OutcomeFailed, Reason: MsgToAddressMismatch}
	}

	dec := Decision{
		Outcome:     OutcomeVerified,
		Amount:      d.Amount,
		Currency:    d.Currency,
		ValueUsd:    d.ValueUsd,
		ValueEth:    d.ValueEth,
		Speedup:     fact.Speedup,
		MinedTxHash: fact.Hash,
	}

	// When the chain disagrees with the claim, the chain wins. The stored
	// valuation was computed from the claimed amount, so rescale it
	// proportionally instead of fetching a fresh quote.
	if fact.Amount != d.Amount {
		if d.Amount > 0 {
			ratio := fact.Amount / d.Amount
			dec.ValueUsd = d.ValueUsd * ratio
			dec.ValueEth = d.ValueEth * ratio
		}
		dec.Amount = fact.Amount
	}
	if !strings.EqualFold(fact.Currency, d.Currency) {
		dec.Currency = fact.Currency
	}
	return dec
}

func sameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
