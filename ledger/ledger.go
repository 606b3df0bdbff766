// Package ledger holds the primitives shared by the claim-code registry and
// the escrow marketplace: party identities, monetary amounts, the funds
// collaborator, ledger heights, and the structured error taxonomy.
//
// Everything here is deliberately small. The registry and marketplace own
// their own state; ledger only names the vocabulary they exchange.
package ledger

// Identity is an authenticated party on the ledger. The core never
// authenticates callers itself: whoever invokes an operation supplies the
// Identity an upstream layer vouched for.
//
// The zero value ("") means "nobody" and doubles as the sentinel returned by
// registry queries for unregistered commitment hashes.
type Identity string

// Nobody is the unset Identity sentinel.
const Nobody Identity = ""

// Defined reports whether the identity names an actual party.
func (i Identity) Defined() bool { return i != Nobody }

// CeilDiv returns ceil(a/b) for a >= 0, b > 0. Stake-ratio checks use ceiling
// division so fractional boundaries never under-collateralize a listing.
func CeilDiv(a, b int64) int64 {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
