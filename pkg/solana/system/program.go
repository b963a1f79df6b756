package system

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/code-payments/escrow-program/pkg/solana"
)

type Command uint32

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs
const (
	CommandCreateAccount Command = iota
	CommandAssign
	CommandTransfer
)

const (
	CreateAccountDataSize = 4 + 8 + 8 + 32
	AssignDataSize        = 4 + 32
	TransferDataSize      = 4 + 8
)

// CreateAccount allocates a new account at the given address, funds it
// with lamports from the funder, reserves size bytes of zeroed data,
// and assigns the controlling program.
//
// Both the funder and the new address must authorize the allocation;
// for derived addresses the latter is satisfied with a seed proof.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L72
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE, SIGNER] New account
	data := make([]byte, CreateAccountDataSize)
	binary.LittleEndian.PutUint32(data, uint32(CommandCreateAccount))
	binary.LittleEndian.PutUint64(data[4:], lamports)
	binary.LittleEndian.PutUint64(data[4+8:], size)
	copy(data[4+2*8:], owner)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

// Assign reassigns the controlling program of an account.
func Assign(address, owner ed25519.PublicKey) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Assigned account
	data := make([]byte, AssignDataSize)
	binary.LittleEndian.PutUint32(data, uint32(CommandAssign))
	copy(data[4:], owner)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(address, true),
	)
}

// Transfer moves lamports between system-owned accounts.
func Transfer(source, dest ed25519.PublicKey, lamports uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE] Recipient account
	data := make([]byte, TransferDataSize)
	binary.LittleEndian.PutUint32(data, uint32(CommandTransfer))
	binary.LittleEndian.PutUint64(data[4:], lamports)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(source, true),
		solana.NewAccountMeta(dest, false),
	)
}
