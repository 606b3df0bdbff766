package ledger

import (
	"fmt"
	"sync"
)

// Funds is the fungible-value balance collaborator. The marketplace never
// mints or burns: every transfer it performs is a Debit/Credit pair summing
// to zero, with its own escrow identity as the counterparty.
type Funds interface {
	// Debit removes amount from id's balance. Fails with
	// CodeInsufficientFunds when the balance cannot cover it.
	Debit(id Identity, amount int64) error

	// Credit adds amount to id's balance.
	Credit(id Identity, amount int64) error

	// BalanceOf returns id's current balance. Unknown identities hold zero.
	BalanceOf(id Identity) int64
}

// MemoryBook is an in-process Funds implementation. Credit against a fresh
// identity acts as the issuance faucet; once issued, value only moves via
// Debit/Credit pairs, so Total is conserved by every marketplace operation.
type MemoryBook struct {
	mu       sync.Mutex
	balances map[Identity]int64
}

// NewMemoryBook returns an empty balance book.
func NewMemoryBook() *MemoryBook {
	return &MemoryBook{balances: make(map[Identity]int64)}
}

func (b *MemoryBook) Debit(id Identity, amount int64) error {
	const op = "ledger.Debit"
	if !id.Defined() {
		return NewError(CodeInternal, op, "debit against unset identity")
	}
	if amount < 0 {
		return NewError(CodeInternal, op, fmt.Sprintf("negative amount %d", amount))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balances[id] < amount {
		return &Error{
			Code:    CodeInsufficientFunds,
			Op:      op,
			Message: fmt.Sprintf("%s holds %d, needs %d", id, b.balances[id], amount),
			Amount:  amount - b.balances[id],
		}
	}
	b.balances[id] -= amount
	return nil
}

func (b *MemoryBook) Credit(id Identity, amount int64) error {
	const op = "ledger.Credit"
	if !id.Defined() {
		return NewError(CodeInternal, op, "credit against unset identity")
	}
	if amount < 0 {
		return NewError(CodeInternal, op, fmt.Sprintf("negative amount %d", amount))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[id] += amount
	return nil
}

func (b *MemoryBook) BalanceOf(id Identity) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[id]
}

// Total returns the sum of all balances. Conservation tests pin this across
// whole marketplace lifecycles.
func (b *MemoryBook) Total() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var sum int64
	for _, v := range b.balances {
		sum += v
	}
	return sum
}
