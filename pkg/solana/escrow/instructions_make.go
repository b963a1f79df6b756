package escrow

import (
	"crypto/ed25519"

	"github.com/code-payments/escrow-program/pkg/solana"
	"github.com/code-payments/escrow-program/pkg/solana/binary"
	"github.com/code-payments/escrow-program/pkg/solana/system"
	"github.com/code-payments/escrow-program/pkg/solana/token"
)

const MakeInstructionArgsSize = (8 + // seed
	8 + // receive_amount
	8) // deposit_amount

type MakeInstructionArgs struct {
	Seed          uint64
	ReceiveAmount uint64
	DepositAmount uint64
}

type MakeInstructionAccounts struct {
	Maker              ed25519.PublicKey
	Escrow             ed25519.PublicKey
	MintA              ed25519.PublicKey
	MintB              ed25519.PublicKey
	MakerTokenAccountA ed25519.PublicKey
	Vault              ed25519.PublicKey
	TokenProgram       ed25519.PublicKey
}

func NewMakeInstruction(
	accounts *MakeInstructionAccounts,
	args *MakeInstructionArgs,
) solana.Instruction {
	var offset int

	data := make([]byte, 1+MakeInstructionArgsSize)
	binary.PutUint8(data, uint8(CommandMake), &offset)
	binary.PutUint64(data[offset:], args.Seed, &offset)
	binary.PutUint64(data[offset:], args.ReceiveAmount, &offset)
	binary.PutUint64(data[offset:], args.DepositAmount, &offset)

	return solana.NewInstruction(
		PROGRAM_ID,
		data,
		solana.NewAccountMeta(accounts.Maker, true),
		solana.NewAccountMeta(accounts.Escrow, false),
		solana.NewReadonlyAccountMeta(accounts.MintA, false),
		solana.NewReadonlyAccountMeta(accounts.MintB, false),
		solana.NewAccountMeta(accounts.MakerTokenAccountA, false),
		solana.NewAccountMeta(accounts.Vault, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
		solana.NewReadonlyAccountMeta(accounts.TokenProgram, false),
		solana.NewReadonlyAccountMeta(token.AssociatedTokenAccountProgramKey, false),
	)
}
