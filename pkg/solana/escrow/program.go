// Package escrow implements a two-party conditional asset exchange: a
// maker deposits an amount of one mint into a derived-address vault and
// names the exact amount of another mint required to take the trade.
// The record is consumed destructively by exactly one of Take (the
// trade completes) or Refund (the maker reclaims the deposit).
package escrow

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58/base58"

	"github.com/code-payments/escrow-program/pkg/solana"
	"github.com/code-payments/escrow-program/pkg/solana/runtime"
)

var (
	PROGRAM_ADDRESS = mustBase58Decode("4u63hjeCvs3snBkABkHjvtPnAk7k21WYSBWF1P85DFrg")
	PROGRAM_ID      = ed25519.PublicKey(PROGRAM_ADDRESS)
)

type Command byte

const (
	CommandMake Command = iota
	CommandTake
	CommandRefund
)

const (
	// Deposit or receive amount of zero
	ErrInvalidAmount solana.CustomError = iota + 0x1770
)

// Register installs the escrow program on a ledger.
func Register(l *runtime.Ledger) {
	l.Register(PROGRAM_ID, NewProcessor())
}

func mustBase58Decode(value string) []byte {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}
