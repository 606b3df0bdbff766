package market

import (
	"github.com/ipfs/go-cid"

	"xdao.co/claimvault/ledger"
)

// Event is the observable output of a successful mutating operation. Events
// are returned to the caller rather than broadcast, so tests (and any outer
// indexing layer) assert on them without a live subscriber. Each operation
// emits exactly one event, and never on failure.
type Event interface {
	Name() string
}

// Listed is emitted by ListCard.
type Listed struct {
	Seller ledger.Identity `json:"seller"`
	Price  int64           `json:"price"`
}

func (Listed) Name() string { return "Listed" }

// PriceUpdate is emitted by UpdatePrice.
type PriceUpdate struct {
	Seller   ledger.Identity `json:"seller"`
	NewPrice int64           `json:"newPrice"`
}

func (PriceUpdate) Name() string { return "PriceUpdate" }

// BuyRequest is emitted by SendBuyRequest.
type BuyRequest struct {
	Buyer ledger.Identity `json:"buyer"`
	Hash  cid.Cid         `json:"hash"`
}

func (BuyRequest) Name() string { return "BuyRequest" }

// Sale is emitted by AcceptBuyRequest once the buyer's funds are escrowed and
// custody of the sealed secret has moved to them.
type Sale struct {
	Seller ledger.Identity `json:"seller"`
	Buyer  ledger.Identity `json:"buyer"`
	Price  int64           `json:"price"`
}

func (Sale) Name() string { return "Sale" }

// Delist is emitted by RemoveCard.
type Delist struct {
	Seller ledger.Identity `json:"seller"`
}

func (Delist) Name() string { return "Delist" }

// Verified is emitted by VerifyCard on settlement. EffectivePrice is the
// signed price after the asserted balance difference; when the difference is
// negative the reported value exceeds the listing price even though the
// escrow never pays out more than it holds.
type Verified struct {
	Seller         ledger.Identity `json:"seller"`
	Buyer          ledger.Identity `json:"buyer"`
	EffectivePrice int64           `json:"effectivePrice"`
	Hash           cid.Cid         `json:"hash"`
	Accepted       bool            `json:"accepted"`
}

func (Verified) Name() string { return "Verified" }
