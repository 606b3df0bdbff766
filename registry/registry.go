// Package registry implements the ClaimCodeRegistry: commit-reveal custody of
// sealed claim-code secrets, keyed by commitment hash.
//
// The registry never sees a plaintext secret. It stores the sealed payload,
// tracks who currently holds disclosure rights, and remembers whether the
// secret has been exposed to anyone other than the party that first
// registered it, the one fact that decides whether a claim code is still
// resalable.
package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/claimvault/ledger"
	"xdao.co/claimvault/state"
)

// CardRecord is the per-commitment state. Records are created once and never
// deleted; custody transfers and disclosures mutate them in place.
type CardRecord struct {
	OriginalIssuer    ledger.Identity `json:"originalIssuer"`
	CurrentHolder     ledger.Identity `json:"currentHolder"`
	RedeemableBalance int64           `json:"redeemableBalance"`
	SealedSecret      []byte          `json:"sealedSecret"`
	Disclosed         bool            `json:"disclosed"`
}

// CardInfo is the read-only projection served to the marketplace and other
// queriers. For unregistered hashes it is the zero value with
// Registered=false; absence is a sentinel here, not a failure.
type CardInfo struct {
	Registered        bool
	Disclosed         bool
	RedeemableBalance int64
	OriginalIssuer    ledger.Identity
}

// Registry owns CardRecords in an injected state.Store.
type Registry struct {
	mu        sync.Mutex
	store     state.Store
	operators map[ledger.Identity]bool
}

// New constructs a Registry over the given record store.
func New(store state.Store) *Registry {
	return &Registry{store: store, operators: make(map[ledger.Identity]bool)}
}

// ApproveOperator authorizes an identity to transfer custody on behalf of the
// current holder. This is the seam the escrow marketplace integrates through:
// accepting a buy request re-targets the sealed secret at the buyer without
// the holder issuing the transfer itself.
func (r *Registry) ApproveOperator(op ledger.Identity) {
	if !op.Defined() {
		return
	}
	r.mu.Lock()
	r.operators[op] = true
	r.mu.Unlock()
}

// Register creates the CardRecord for a commitment hash. A hash registers
// exactly once; the issuer starts as its own holder with nothing disclosed.
func (r *Registry) Register(hash cid.Cid, issuer ledger.Identity, redeemableBalance int64, sealedSecret []byte) error {
	const op = "registry.Register"
	if !hash.Defined() {
		return ledger.NewError(ledger.CodeInvalidCommitment, op, "undefined commitment hash")
	}
	if !issuer.Defined() {
		return ledger.NewError(ledger.CodeInternal, op, "unset issuer identity")
	}
	if redeemableBalance <= 0 {
		return ledger.NewError(ledger.CodeInvalidBalance, op,
			fmt.Sprintf("redeemable balance must be positive, got %d", redeemableBalance))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store.Has(hash) {
		return ledger.NewError(ledger.CodeDuplicateCommitment, op, "commitment hash already registered")
	}
	rec := &CardRecord{
		OriginalIssuer:    issuer,
		CurrentHolder:     issuer,
		RedeemableBalance: redeemableBalance,
		SealedSecret:      sealedSecret,
	}
	return r.save(op, hash, rec)
}

// TransferCustody hands disclosure rights to newHolder and replaces the
// sealed payload with one re-encrypted for them. Only the current holder or
// an approved operator may transfer. Disclosure state is per-holder and
// resets for the new holder context, resealed payload or not.
func (r *Registry) TransferCustody(hash cid.Cid, caller, newHolder ledger.Identity, resealedSecret []byte) error {
	const op = "registry.TransferCustody"
	if !newHolder.Defined() {
		return ledger.NewError(ledger.CodeInternal, op, "unset new holder identity")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.load(op, hash)
	if err != nil {
		return err
	}
	if caller != rec.CurrentHolder && !r.operators[caller] {
		return ledger.NewError(ledger.CodeNotHolder, op, "caller does not hold this card")
	}

	rec.CurrentHolder = newHolder
	rec.SealedSecret = resealedSecret
	rec.Disclosed = false
	return r.save(op, hash, rec)
}

// Disclose returns the sealed payload to the current holder. Pulling the
// secret marks the record disclosed only when the holder is not the original
// issuer: an issuer peeking at their own unsold card must not poison a later
// resale.
func (r *Registry) Disclose(hash cid.Cid, caller ledger.Identity) ([]byte, error) {
	const op = "registry.Disclose"

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.load(op, hash)
	if err != nil {
		return nil, err
	}
	if caller != rec.CurrentHolder {
		return nil, ledger.NewError(ledger.CodeNotHolder, op, "caller does not hold this card")
	}

	rec.Disclosed = caller != rec.OriginalIssuer
	if err := r.save(op, hash, rec); err != nil {
		return nil, err
	}
	return rec.SealedSecret, nil
}

// Query is the pure read the marketplace gates listings on. It never mutates
// state; unregistered hashes come back as the zero CardInfo.
func (r *Registry) Query(hash cid.Cid) (CardInfo, error) {
	const op = "registry.Query"
	if !hash.Defined() {
		return CardInfo{}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.load(op, hash)
	if err != nil {
		if ledger.IsCode(err, ledger.CodeNotFound) {
			return CardInfo{}, nil
		}
		return CardInfo{}, err
	}
	return CardInfo{
		Registered:        true,
		Disclosed:         rec.Disclosed,
		RedeemableBalance: rec.RedeemableBalance,
		OriginalIssuer:    rec.OriginalIssuer,
	}, nil
}

// WasRegistered reports whether a commitment hash has ever been registered.
func (r *Registry) WasRegistered(hash cid.Cid) bool {
	info, err := r.Query(hash)
	return err == nil && info.Registered
}

// IsDisclosed reports whether the secret was exposed to a non-issuing holder.
func (r *Registry) IsDisclosed(hash cid.Cid) bool {
	info, err := r.Query(hash)
	return err == nil && info.Disclosed
}

// Balance returns the declared redeemable balance, or 0 when unregistered.
func (r *Registry) Balance(hash cid.Cid) int64 {
	info, err := r.Query(hash)
	if err != nil {
		return 0
	}
	return info.RedeemableBalance
}

// OriginalIssuer returns the registering identity, or ledger.Nobody when the
// hash has never been registered.
func (r *Registry) OriginalIssuer(hash cid.Cid) ledger.Identity {
	info, err := r.Query(hash)
	if err != nil {
		return ledger.Nobody
	}
	return info.OriginalIssuer
}

// Holder returns the identity currently entitled to disclosure, or
// ledger.Nobody when the hash has never been registered.
func (r *Registry) Holder(hash cid.Cid) ledger.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.load("registry.Holder", hash)
	if err != nil {
		return ledger.Nobody
	}
	return rec.CurrentHolder
}

func (r *Registry) load(op string, hash cid.Cid) (*CardRecord, error) {
	if !hash.Defined() {
		return nil, ledger.NewError(ledger.CodeNotFound, op, "undefined commitment hash")
	}
	b, err := r.store.Get(hash)
	if err != nil {
		if state.IsNotFound(err) {
			return nil, ledger.NewError(ledger.CodeNotFound, op, "commitment hash not registered")
		}
		return nil, ledger.WrapError(ledger.CodeInternal, op, "record load failed", err)
	}
	var rec CardRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, ledger.WrapError(ledger.CodeInternal, op, "record decode failed", err)
	}
	return &rec, nil
}

func (r *Registry) save(op string, hash cid.Cid, rec *CardRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return ledger.WrapError(ledger.CodeInternal, op, "record encode failed", err)
	}
	if err := r.store.Put(hash, b); err != nil {
		return ledger.WrapError(ledger.CodeInternal, op, "record store failed", err)
	}
	return nil
}
