package marketrpc

import "xdao.co/claimvault/ledger"

// Wire messages are JSON documents carried inside protobuf BytesValue
// wrappers. JSON keeps int64 amounts exact and spares the repo a codegen
// toolchain; the service contract lives in grpc.go.

// RegisterRequest mints a claim-code commitment into the registry.
type RegisterRequest struct {
	Issuer       ledger.Identity `json:"issuer"`
	Hash         string          `json:"hash"`
	Balance      int64           `json:"balance"`
	SealedSecret []byte          `json:"sealedSecret,omitempty"`
}

type RegisterResponse struct{}

// DiscloseRequest asks for the sealed secret behind a commitment. Only the
// current holder may ask.
type DiscloseRequest struct {
	Caller ledger.Identity `json:"caller"`
	Hash   string          `json:"hash"`
}

type DiscloseResponse struct {
	SealedSecret []byte `json:"sealedSecret,omitempty"`
}

type GetCardRequest struct {
	Hash string `json:"hash"`
}

// GetCardResponse projects the registry record. Unregistered hashes answer
// with the zero value and Registered=false rather than an error.
type GetCardResponse struct {
	Registered     bool            `json:"registered"`
	Disclosed      bool            `json:"disclosed"`
	Balance        int64           `json:"balance"`
	OriginalIssuer ledger.Identity `json:"originalIssuer,omitempty"`
	Holder         ledger.Identity `json:"holder,omitempty"`
}

type ListCardRequest struct {
	Seller  ledger.Identity `json:"seller"`
	Hash    string          `json:"hash"`
	Price   int64           `json:"price"`
	Balance int64           `json:"balance"`
	Stake   int64           `json:"stake"`
}

type ListCardResponse struct {
	Seller ledger.Identity `json:"seller"`
	Price  int64           `json:"price"`
}

type UpdatePriceRequest struct {
	Seller          ledger.Identity `json:"seller"`
	Hash            string          `json:"hash"`
	NewPrice        int64           `json:"newPrice"`
	AdditionalStake int64           `json:"additionalStake"`
}

type UpdatePriceResponse struct {
	Seller   ledger.Identity `json:"seller"`
	NewPrice int64           `json:"newPrice"`
}

type BuyRequest struct {
	Buyer ledger.Identity `json:"buyer"`
	Hash  string          `json:"hash"`
}

type BuyResponse struct {
	Buyer ledger.Identity `json:"buyer"`
	Hash  string          `json:"hash"`
}

type AcceptRequest struct {
	Seller ledger.Identity `json:"seller"`
	Hash   string          `json:"hash"`

	// ResealedSecret is the claim code re-encrypted for the pending buyer.
	// The registry stores it verbatim when custody moves.
	ResealedSecret []byte `json:"resealedSecret,omitempty"`
}

type AcceptResponse struct {
	Seller ledger.Identity `json:"seller"`
	Buyer  ledger.Identity `json:"buyer"`
	Price  int64           `json:"price"`
}

type RemoveRequest struct {
	Seller ledger.Identity `json:"seller"`
	Hash   string          `json:"hash"`
}

type RemoveResponse struct {
	Seller ledger.Identity `json:"seller"`
}

type VerifyRequest struct {
	Caller ledger.Identity `json:"caller"`
	Hash   string          `json:"hash"`

	// Accepted is the verifier's verdict on the claim code. BalanceDifference
	// is the asserted gap between listed and actual redeemable balance;
	// positive means the card was worth less than listed.
	Accepted          bool  `json:"accepted"`
	BalanceDifference int64 `json:"balanceDifference"`
}

type VerifyResponse struct {
	Seller         ledger.Identity `json:"seller"`
	Buyer          ledger.Identity `json:"buyer"`
	EffectivePrice int64           `json:"effectivePrice"`
	Accepted       bool            `json:"accepted"`
}

type GetListingRequest struct {
	Hash string `json:"hash"`
}

type GetListingResponse struct {
	Seller          ledger.Identity `json:"seller"`
	Price           int64           `json:"price"`
	Stake           int64           `json:"stake"`
	FaceValue       int64           `json:"faceValue"`
	PendingBuyer    ledger.Identity `json:"pendingBuyer,omitempty"`
	Buyer           ledger.Identity `json:"buyer,omitempty"`
	AcceptedAtBlock uint64          `json:"acceptedAtBlock,omitempty"`
}

// DepositRequest credits an account from the daemon's faucet. Only honored
// when the daemon runs with the faucet enabled.
type DepositRequest struct {
	Account ledger.Identity `json:"account"`
	Amount  int64           `json:"amount"`
}

type DepositResponse struct {
	Balance int64 `json:"balance"`
}

type BalanceRequest struct {
	Account ledger.Identity `json:"account"`
}

type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

type HeightRequest struct{}

type HeightResponse struct {
	Height uint64 `json:"height"`
}
