// Package runtime provides a deterministic, single-threaded stand-in
// for the host ledger: fixed accounts, a rent model, and run-to-completion
// instruction execution with all-or-nothing commit semantics.
package runtime

import (
	"bytes"
	"crypto/ed25519"

	"github.com/code-payments/escrow-program/pkg/solana/system"
)

// Account is the persisted state at one address: a lamport balance, the
// program that controls mutation, and a fixed-size data region.
type Account struct {
	Lamports uint64
	Owner    ed25519.PublicKey
	Data     []byte
}

func newUnallocatedAccount() *Account {
	return &Account{
		Owner: system.ProgramKey,
	}
}

// IsAllocated reports whether the account exists from the perspective
// of a program: unallocated addresses read as zero-lamport, zero-data,
// system-owned accounts.
func (a *Account) IsAllocated() bool {
	return a.Lamports > 0 || len(a.Data) > 0 || !bytes.Equal(a.Owner, system.ProgramKey)
}

func (a *Account) Clone() *Account {
	clone := &Account{
		Lamports: a.Lamports,
		Owner:    make(ed25519.PublicKey, len(a.Owner)),
		Data:     make([]byte, len(a.Data)),
	}
	copy(clone.Owner, a.Owner)
	copy(clone.Data, a.Data)
	return clone
}
