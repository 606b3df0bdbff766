// Package market implements the EscrowMarketplace: listing, staking, bidding,
// settlement and dispute resolution for claim-code commitments.
//
// Per commitment hash the state machine is
//
//	Unlisted -> Listed -> RequestPending -> Accepted -> Settled(removed)
//
// with seller withdrawal collapsing the pre-accept states back to Unlisted.
// Every operation is all-or-nothing: validation happens before the first
// effect, funds move as debit/credit pairs against the marketplace's escrow
// identity, and a failure leaves state byte-for-byte unchanged. Operations
// on the same hash are serialized; a nested re-entry is rejected outright.
package market

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/claimvault/ledger"
	"xdao.co/claimvault/registry"
	"xdao.co/claimvault/state"
)

// DefaultDisputeCooldown is the height delta a seller must wait after
// acceptance before self-certifying settlement. 25 blocks approximates five
// minutes at 12-second block production; the buyer never waits.
const DefaultDisputeCooldown uint64 = 25

// DefaultEscrowAccount holds escrowed funds and slashed stakes when the
// configuration does not name one.
const DefaultEscrowAccount ledger.Identity = "claimvault:escrow"

// Config wires the marketplace's collaborators. Store, Registry, Funds and
// Chain are required.
type Config struct {
	Store    state.Store
	Registry *registry.Registry
	Funds    ledger.Funds
	Chain    ledger.HeightSource

	// EscrowAccount is the marketplace's own funds identity. It is also the
	// identity the registry must see as an approved custody-transfer
	// operator; New arranges the approval.
	EscrowAccount ledger.Identity

	// Cooldown overrides DefaultDisputeCooldown when non-zero.
	Cooldown uint64
}

// Marketplace owns Listings in an injected state.Store and moves funds
// through the ledger.Funds collaborator.
type Marketplace struct {
	store    state.Store
	registry *registry.Registry
	funds    ledger.Funds
	chain    ledger.HeightSource
	account  ledger.Identity
	cooldown uint64

	mu     sync.Mutex
	busy   map[cid.Cid]bool
	halted map[cid.Cid]string
}

// New constructs a Marketplace and approves its escrow identity as a registry
// custody-transfer operator.
func New(cfg Config) (*Marketplace, error) {
	if cfg.Store == nil || cfg.Registry == nil || cfg.Funds == nil || cfg.Chain == nil {
		return nil, errors.New("market: Store, Registry, Funds and Chain are required")
	}
	account := cfg.EscrowAccount
	if !account.Defined() {
		account = DefaultEscrowAccount
	}
	cooldown := cfg.Cooldown
	if cooldown == 0 {
		cooldown = DefaultDisputeCooldown
	}
	cfg.Registry.ApproveOperator(account)
	return &Marketplace{
		store:    cfg.Store,
		registry: cfg.Registry,
		funds:    cfg.Funds,
		chain:    cfg.Chain,
		account:  account,
		cooldown: cooldown,
		busy:     make(map[cid.Cid]bool),
		halted:   make(map[cid.Cid]string),
	}, nil
}

// EscrowAccount returns the identity escrowed funds are held under.
func (m *Marketplace) EscrowAccount() ledger.Identity { return m.account }

// Cooldown returns the seller-side verification cooldown in blocks.
func (m *Marketplace) Cooldown() uint64 { return m.cooldown }

// begin takes the transition slot for a hash. It rejects hashes quarantined
// by an earlier invariant violation, and rejects nested invocation for a hash
// whose transition is still in flight.
func (m *Marketplace) begin(op string, hash cid.Cid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reason, ok := m.halted[hash]; ok {
		return ledger.NewError(ledger.CodeHalted, op, "commitment hash halted: "+reason)
	}
	if m.busy[hash] {
		return ledger.NewError(ledger.CodeReentrancy, op, "nested transition for this commitment hash")
	}
	m.busy[hash] = true
	return nil
}

func (m *Marketplace) end(hash cid.Cid) {
	m.mu.Lock()
	delete(m.busy, hash)
	m.mu.Unlock()
}

// halt quarantines a hash after an internal invariant violation. Escrow for
// it is frozen in place; every later operation fails with CodeHalted.
func (m *Marketplace) halt(op string, hash cid.Cid, msg string, cause error) error {
	m.mu.Lock()
	m.halted[hash] = msg
	m.mu.Unlock()
	return ledger.WrapError(ledger.CodeInternal, op, msg, cause)
}

// ListCard creates the listing for a commitment hash, escrowing the seller's
// stake. The hash must be either unregistered, or registered with the caller
// as current holder and the secret not yet disclosed to a non-issuing party.
func (m *Marketplace) ListCard(caller ledger.Identity, hash cid.Cid, price, redeemableBalance, stake int64) (*Listed, error) {
	const op = "market.ListCard"
	if !caller.Defined() {
		return nil, ledger.NewError(ledger.CodeUnauthorized, op, "unset caller identity")
	}
	if !hash.Defined() {
		return nil, ledger.NewError(ledger.CodeInvalidCommitment, op, "undefined commitment hash")
	}
	if err := m.begin(op, hash); err != nil {
		return nil, err
	}
	defer m.end(hash)

	if price <= 0 {
		return nil, ledger.NewError(ledger.CodeInvalidPrice, op, "price must be positive")
	}
	info, err := m.registry.Query(hash)
	if err != nil {
		return nil, err
	}
	faceValue := redeemableBalance
	if info.Registered {
		faceValue = info.RedeemableBalance
	}
	if price > faceValue {
		return nil, ledger.NewError(ledger.CodeInvalidPrice, op,
			fmt.Sprintf("price %d exceeds redeemable balance %d", price, faceValue))
	}
	if required := ledger.CeilDiv(price, 3); stake < required {
		return nil, &ledger.Error{
			Code:    ledger.CodeInsufficientStake,
			Op:      op,
			Message: fmt.Sprintf("stake %d below required %d", stake, required),
			Amount:  required - stake,
		}
	}
	if info.Registered && m.registry.Holder(hash) != caller {
		return nil, ledger.NewError(ledger.CodeAlreadyMinted, op, "claim code already minted to another holder")
	}
	if info.Disclosed {
		return nil, ledger.NewError(ledger.CodeAlreadyApplied, op, "claim code already disclosed; cannot be resold")
	}
	if m.store.Has(hash) {
		return nil, ledger.NewError(ledger.CodeAlreadyListed, op, "listing already exists for this commitment hash")
	}

	if err := m.funds.Debit(caller, stake); err != nil {
		return nil, err
	}
	if err := m.funds.Credit(m.account, stake); err != nil {
		return nil, m.halt(op, hash, "stake credit to escrow failed", err)
	}
	listing := &Listing{
		Seller:    caller,
		Price:     price,
		Stake:     stake,
		FaceValue: faceValue,
		Escrowed:  stake,
	}
	if err := m.saveListing(op, hash, listing); err != nil {
		// No listing was written; return the stake and surface the failure.
		if derr := m.funds.Debit(m.account, stake); derr != nil {
			return nil, m.halt(op, hash, "stake rollback failed", derr)
		}
		if cerr := m.funds.Credit(caller, stake); cerr != nil {
			return nil, m.halt(op, hash, "stake rollback failed", cerr)
		}
		return nil, err
	}
	return &Listed{Seller: caller, Price: price}, nil
}

// UpdatePrice changes the asking price, topping up the escrowed stake when
// the new price demands more collateral. Refused once a sale is in flight.
func (m *Marketplace) UpdatePrice(caller ledger.Identity, hash cid.Cid, newPrice, additionalStake int64) (*PriceUpdate, error) {
	const op = "market.UpdatePrice"
	if err := m.begin(op, hash); err != nil {
		return nil, err
	}
	defer m.end(hash)

	listing, err := m.loadListing(op, hash)
	if err != nil {
		return nil, err
	}
	if caller != listing.Seller {
		return nil, ledger.NewError(ledger.CodeNotSeller, op, "only the seller may update the price")
	}
	if listing.Accepted() {
		return nil, ledger.NewError(ledger.CodeSaleInProgress, op, "sale accepted; price is locked until settlement")
	}
	if newPrice <= 0 {
		return nil, ledger.NewError(ledger.CodeInvalidPrice, op, "price must be positive")
	}
	if additionalStake < 0 {
		return nil, ledger.NewError(ledger.CodeInsufficientStake, op, "additional stake must be non-negative")
	}
	faceValue := listing.FaceValue
	if info, qerr := m.registry.Query(hash); qerr == nil && info.Registered {
		faceValue = info.RedeemableBalance
	}
	if newPrice > faceValue {
		return nil, ledger.NewError(ledger.CodeInvalidPrice, op,
			fmt.Sprintf("price %d exceeds redeemable balance %d", newPrice, faceValue))
	}
	required := ledger.CeilDiv(newPrice, 3)
	if listing.Stake+additionalStake < required {
		shortfall := required - listing.Stake - additionalStake
		return nil, &ledger.Error{
			Code:    ledger.CodeInsufficientStake,
			Op:      op,
			Message: fmt.Sprintf("stake short by %d for price %d", shortfall, newPrice),
			Amount:  shortfall,
		}
	}

	if additionalStake > 0 {
		if err := m.funds.Debit(caller, additionalStake); err != nil {
			return nil, err
		}
		if err := m.funds.Credit(m.account, additionalStake); err != nil {
			return nil, m.halt(op, hash, "stake credit to escrow failed", err)
		}
	}
	listing.Price = newPrice
	listing.Stake += additionalStake
	listing.Escrowed += additionalStake
	if err := m.saveListing(op, hash, listing); err != nil {
		if additionalStake > 0 {
			if derr := m.funds.Debit(m.account, additionalStake); derr != nil {
				return nil, m.halt(op, hash, "stake rollback failed", derr)
			}
			if cerr := m.funds.Credit(caller, additionalStake); cerr != nil {
				return nil, m.halt(op, hash, "stake rollback failed", cerr)
			}
		}
		return nil, err
	}
	return &PriceUpdate{Seller: caller, NewPrice: newPrice}, nil
}

// SendBuyRequest records the caller as the pending buyer. It is an intent
// signal only: no funds move and no payment provisioning is checked. A later
// request overwrites an earlier unaccepted one.
func (m *Marketplace) SendBuyRequest(caller ledger.Identity, hash cid.Cid) (*BuyRequest, error) {
	const op = "market.SendBuyRequest"
	if !caller.Defined() {
		return nil, ledger.NewError(ledger.CodeUnauthorized, op, "unset caller identity")
	}
	if err := m.begin(op, hash); err != nil {
		return nil, err
	}
	defer m.end(hash)

	listing, err := m.loadListing(op, hash)
	if err != nil {
		return nil, err
	}
	if caller == listing.Seller {
		return nil, ledger.NewError(ledger.CodeSelfTrade, op, "seller cannot buy their own listing")
	}
	if listing.Accepted() {
		return nil, ledger.NewError(ledger.CodeSaleInProgress, op, "sale already accepted")
	}

	listing.PendingBuyer = caller
	if err := m.saveListing(op, hash, listing); err != nil {
		return nil, err
	}
	return &BuyRequest{Buyer: caller, Hash: hash}, nil
}

// AcceptBuyRequest escrows the pending buyer's payment and hands custody of
// the sealed secret (re-encrypted for the buyer off-chain) to them. From this
// point only settlement ends the listing.
func (m *Marketplace) AcceptBuyRequest(caller ledger.Identity, resealedSecret []byte, hash cid.Cid) (*Sale, error) {
	const op = "market.AcceptBuyRequest"
	if err := m.begin(op, hash); err != nil {
		return nil, err
	}
	defer m.end(hash)

	listing, err := m.loadListing(op, hash)
	if err != nil {
		return nil, err
	}
	if caller != listing.Seller {
		return nil, ledger.NewError(ledger.CodeNotSeller, op, "only the seller may accept a buy request")
	}
	if listing.Accepted() {
		return nil, ledger.NewError(ledger.CodeSaleInProgress, op, "sale already accepted")
	}
	if !listing.PendingBuyer.Defined() {
		return nil, ledger.NewError(ledger.CodeNoPendingRequest, op, "no outstanding buy request")
	}
	info, err := m.registry.Query(hash)
	if err != nil {
		return nil, err
	}
	if !info.Registered {
		return nil, ledger.NewError(ledger.CodeNotFound, op,
			"commitment hash not registered; nothing to hand over")
	}

	buyer := listing.PendingBuyer
	if err := m.funds.Debit(buyer, listing.Price); err != nil {
		return nil, err
	}
	if err := m.funds.Credit(m.account, listing.Price); err != nil {
		return nil, m.halt(op, hash, "price credit to escrow failed", err)
	}
	price := listing.Price
	listing.Buyer = buyer
	listing.PendingBuyer = ledger.Nobody
	listing.AcceptedAtBlock = m.chain.Height()
	listing.Escrowed += price
	if err := m.saveListing(op, hash, listing); err != nil {
		if derr := m.funds.Debit(m.account, price); derr != nil {
			return nil, m.halt(op, hash, "price rollback failed", derr)
		}
		if cerr := m.funds.Credit(buyer, price); cerr != nil {
			return nil, m.halt(op, hash, "price rollback failed", cerr)
		}
		return nil, err
	}

	// All internal state is committed; the custody transfer is the outward
	// effect and runs last. It was pre-validated, so a failure here is an
	// invariant violation that freezes the hash rather than half-unwinding
	// an accepted sale.
	if err := m.registry.TransferCustody(hash, m.account, buyer, resealedSecret); err != nil {
		return nil, m.halt(op, hash, "custody transfer failed after escrow", err)
	}
	return &Sale{Seller: listing.Seller, Buyer: buyer, Price: listing.Price}, nil
}

// RemoveCard withdraws a listing and refunds the escrowed stake. Withdrawal
// is a pre-acceptance right: once a buy request has been accepted, only
// settlement ends the escrowed state.
func (m *Marketplace) RemoveCard(caller ledger.Identity, hash cid.Cid) (*Delist, error) {
	const op = "market.RemoveCard"
	if err := m.begin(op, hash); err != nil {
		return nil, err
	}
	defer m.end(hash)

	listing, err := m.loadListing(op, hash)
	if err != nil {
		return nil, err
	}
	if caller != listing.Seller {
		return nil, ledger.NewError(ledger.CodeNotSeller, op, "only the seller may remove the listing")
	}
	if listing.Accepted() {
		return nil, ledger.NewError(ledger.CodeSaleInProgress, op, "sale accepted; settle via VerifyCard")
	}

	if err := m.store.Delete(hash); err != nil {
		return nil, m.halt(op, hash, "listing delete failed", err)
	}
	if err := m.funds.Debit(m.account, listing.Stake); err != nil {
		return nil, m.halt(op, hash, "escrow does not cover the staked amount", err)
	}
	if err := m.funds.Credit(caller, listing.Stake); err != nil {
		return nil, m.halt(op, hash, "stake refund failed", err)
	}
	return &Delist{Seller: caller}, nil
}

// VerifyCard settles an accepted sale from on-chain facts: the secret must
// have been disclosed, the verifier must be a party to the trade, and a
// seller self-certification must wait out the dispute cooldown. The asserted
// balanceDifference shifts the payout: the seller collects the effective
// price, the buyer is refunded the shortfall, and the stake covering the
// shortfall is forfeited before the remainder returns to the seller. The
// listing is removed whatever the outcome.
func (m *Marketplace) VerifyCard(caller ledger.Identity, accepted bool, hash cid.Cid, balanceDifference int64) (*Verified, error) {
	const op = "market.VerifyCard"
	if err := m.begin(op, hash); err != nil {
		return nil, err
	}
	defer m.end(hash)

	listing, err := m.loadListing(op, hash)
	if err != nil {
		return nil, err
	}
	if !m.registry.IsDisclosed(hash) {
		return nil, ledger.NewError(ledger.CodeNotApplied, op, "claim code has not been disclosed to the buyer")
	}
	if !listing.Accepted() {
		return nil, ledger.NewError(ledger.CodeNotApplied, op, "no accepted sale to settle")
	}
	if caller != listing.Buyer && caller != listing.Seller {
		return nil, ledger.NewError(ledger.CodeUnauthorized, op, "only buyer or seller may verify")
	}
	if caller == listing.Seller {
		if elapsed := m.chain.Height() - listing.AcceptedAtBlock; elapsed < m.cooldown {
			return nil, ledger.NewError(ledger.CodeCooldownNotElapsed, op,
				fmt.Sprintf("seller must wait %d blocks, %d elapsed", m.cooldown, elapsed))
		}
	}

	effectivePrice := listing.Price - balanceDifference
	if effectivePrice <= 0 {
		return nil, ledger.NewError(ledger.CodeImpossibleBalance, op,
			fmt.Sprintf("asserted shortfall %d consumes the whole price %d", balanceDifference, listing.Price))
	}

	// Fund movement clamps the shortfall at zero: a surplus report cannot
	// draw more out of escrow than was put in.
	shortfall := balanceDifference
	if shortfall < 0 {
		shortfall = 0
	}
	slash := shortfall
	if slash > listing.Stake {
		slash = listing.Stake
	}
	sellerPayout := listing.Price - shortfall + (listing.Stake - slash)
	buyerRefund := shortfall
	// The slashed portion stays in the escrow account as forfeit; nothing is
	// minted or burned.

	if err := m.store.Delete(hash); err != nil {
		return nil, m.halt(op, hash, "listing delete failed", err)
	}
	if err := m.funds.Debit(m.account, sellerPayout+buyerRefund); err != nil {
		return nil, m.halt(op, hash, "escrow does not cover the settlement", err)
	}
	if err := m.funds.Credit(listing.Seller, sellerPayout); err != nil {
		return nil, m.halt(op, hash, "seller payout failed", err)
	}
	if buyerRefund > 0 {
		if err := m.funds.Credit(listing.Buyer, buyerRefund); err != nil {
			return nil, m.halt(op, hash, "buyer refund failed", err)
		}
	}
	return &Verified{
		Seller:         listing.Seller,
		Buyer:          listing.Buyer,
		EffectivePrice: effectivePrice,
		Hash:           hash,
		Accepted:       accepted,
	}, nil
}

// GetListing returns the listing for a hash, or CodeNotFound once it has been
// removed or settled.
func (m *Marketplace) GetListing(hash cid.Cid) (Listing, error) {
	const op = "market.GetListing"
	listing, err := m.loadListing(op, hash)
	if err != nil {
		return Listing{}, err
	}
	return *listing, nil
}

// GetSeller returns the listing's seller, or CodeNotFound.
func (m *Marketplace) GetSeller(hash cid.Cid) (ledger.Identity, error) {
	listing, err := m.loadListing("market.GetSeller", hash)
	if err != nil {
		return ledger.Nobody, err
	}
	return listing.Seller, nil
}

// GetBuyer returns the accepted buyer, ledger.Nobody before acceptance, or
// CodeNotFound when no listing exists.
func (m *Marketplace) GetBuyer(hash cid.Cid) (ledger.Identity, error) {
	listing, err := m.loadListing("market.GetBuyer", hash)
	if err != nil {
		return ledger.Nobody, err
	}
	return listing.Buyer, nil
}
