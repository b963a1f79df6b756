package runtime

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/code-payments/escrow-program/pkg/solana"
	"github.com/code-payments/escrow-program/pkg/solana/system"
)

// systemProcessor implements the builtin system program: account
// allocation, owner assignment, and lamport transfers.
type systemProcessor struct{}

func (p systemProcessor) Execute(ctx *InstructionContext) error {
	data := ctx.Data()
	if len(data) < 4 {
		return solana.ErrInvalidInstructionData
	}

	switch system.Command(binary.LittleEndian.Uint32(data)) {
	case system.CommandCreateAccount:
		return p.createAccount(ctx, data)
	case system.CommandAssign:
		return p.assign(ctx, data)
	case system.CommandTransfer:
		return p.transfer(ctx, data)
	default:
		return solana.ErrInvalidInstructionData
	}
}

func (p systemProcessor) createAccount(ctx *InstructionContext, data []byte) error {
	if len(data) != system.CreateAccountDataSize {
		return solana.ErrInvalidInstructionData
	}

	lamports := binary.LittleEndian.Uint64(data[4:])
	size := binary.LittleEndian.Uint64(data[4+8:])
	owner := ed25519.PublicKey(data[4+2*8:])

	funder, err := ctx.Account(0)
	if err != nil {
		return err
	}
	target, err := ctx.Account(1)
	if err != nil {
		return err
	}

	if !funder.IsSigner() || !target.IsSigner() {
		return solana.ErrMissingSigner
	}
	if target.IsAllocated() {
		return solana.ErrAccountAlreadyInUse
	}
	if funder.Lamports() < lamports {
		return solana.ErrInsufficientFunds
	}

	if err := funder.SetLamports(funder.Lamports() - lamports); err != nil {
		return err
	}
	if err := target.SetLamports(lamports); err != nil {
		return err
	}
	if err := target.SetData(make([]byte, size)); err != nil {
		return err
	}
	return target.SetOwner(owner)
}

func (p systemProcessor) assign(ctx *InstructionContext, data []byte) error {
	if len(data) != system.AssignDataSize {
		return solana.ErrInvalidInstructionData
	}

	target, err := ctx.Account(0)
	if err != nil {
		return err
	}
	if !target.IsSigner() {
		return solana.ErrMissingSigner
	}
	return target.SetOwner(ed25519.PublicKey(data[4:]))
}

func (p systemProcessor) transfer(ctx *InstructionContext, data []byte) error {
	if len(data) != system.TransferDataSize {
		return solana.ErrInvalidInstructionData
	}

	lamports := binary.LittleEndian.Uint64(data[4:])

	source, err := ctx.Account(0)
	if err != nil {
		return err
	}
	dest, err := ctx.Account(1)
	if err != nil {
		return err
	}

	if !source.IsSigner() {
		return solana.ErrMissingSigner
	}
	if source.Lamports() < lamports {
		return solana.ErrInsufficientFunds
	}

	if err := source.SetLamports(source.Lamports() - lamports); err != nil {
		return err
	}
	return dest.SetLamports(dest.Lamports() + lamports)
}
