package market

import (
	"encoding/json"

	"github.com/ipfs/go-cid"

	"xdao.co/claimvault/ledger"
	"xdao.co/claimvault/state"
)

// Listing is the per-commitment marketplace state. A listing exists only
// between ListCard and whichever of RemoveCard or VerifyCard ends it.
type Listing struct {
	Seller ledger.Identity `json:"seller"`
	Price  int64           `json:"price"`
	Stake  int64           `json:"stake"`

	// FaceValue caps the price. It snapshots the registry's redeemable
	// balance at listing time, or the seller's declaration when the hash is
	// not yet registered.
	FaceValue int64 `json:"faceValue"`

	// PendingBuyer is the outstanding, unaccepted buy request. A later
	// request overwrites an earlier one; acceptance clears it.
	PendingBuyer ledger.Identity `json:"pendingBuyer,omitempty"`

	// Buyer is set by AcceptBuyRequest and never changes afterwards.
	Buyer ledger.Identity `json:"buyer,omitempty"`

	// AcceptedAtBlock is the ledger height at acceptance; it gates the
	// seller-side verification cooldown.
	AcceptedAtBlock uint64 `json:"acceptedAtBlock,omitempty"`

	// Escrowed is the total held for this listing: the seller's stake, plus
	// the buyer's price once a request is accepted.
	Escrowed int64 `json:"escrowed"`
}

// Accepted reports whether a buy request has been accepted, i.e. escrow holds
// both legs and only settlement can end the listing.
func (l *Listing) Accepted() bool { return l.Buyer.Defined() }

func (m *Marketplace) loadListing(op string, hash cid.Cid) (*Listing, error) {
	if !hash.Defined() {
		return nil, ledger.NewError(ledger.CodeNotFound, op, "undefined commitment hash")
	}
	b, err := m.store.Get(hash)
	if err != nil {
		if state.IsNotFound(err) {
			return nil, ledger.NewError(ledger.CodeNotFound, op, "no listing for this commitment hash")
		}
		return nil, ledger.WrapError(ledger.CodeInternal, op, "listing load failed", err)
	}
	var l Listing
	if err := json.Unmarshal(b, &l); err != nil {
		return nil, ledger.WrapError(ledger.CodeInternal, op, "listing decode failed", err)
	}
	return &l, nil
}

func (m *Marketplace) saveListing(op string, hash cid.Cid, l *Listing) error {
	b, err := json.Marshal(l)
	if err != nil {
		return ledger.WrapError(ledger.CodeInternal, op, "listing encode failed", err)
	}
	if err := m.store.Put(hash, b); err != nil {
		return ledger.WrapError(ledger.CodeInternal, op, "listing store failed", err)
	}
	return nil
}
