package escrow

import (
	"crypto/ed25519"

	"github.com/code-payments/escrow-program/pkg/solana"
	"github.com/code-payments/escrow-program/pkg/solana/system"
	"github.com/code-payments/escrow-program/pkg/solana/token"
)

type TakeInstructionAccounts struct {
	Taker              ed25519.PublicKey
	Maker              ed25519.PublicKey
	Escrow             ed25519.PublicKey
	MintA              ed25519.PublicKey
	MintB              ed25519.PublicKey
	Vault              ed25519.PublicKey
	TakerTokenAccountA ed25519.PublicKey
	TakerTokenAccountB ed25519.PublicKey
	MakerTokenAccountB ed25519.PublicKey
	TokenProgram       ed25519.PublicKey
}

// NewTakeInstruction accepts the trade exactly as the maker defined it.
// All parameters are recovered from the persisted record, so the
// payload carries the discriminant only.
func NewTakeInstruction(accounts *TakeInstructionAccounts) solana.Instruction {
	return solana.NewInstruction(
		PROGRAM_ID,
		[]byte{byte(CommandTake)},
		solana.NewAccountMeta(accounts.Taker, true),
		solana.NewAccountMeta(accounts.Maker, false),
		solana.NewAccountMeta(accounts.Escrow, false),
		solana.NewReadonlyAccountMeta(accounts.MintA, false),
		solana.NewReadonlyAccountMeta(accounts.MintB, false),
		solana.NewAccountMeta(accounts.Vault, false),
		solana.NewAccountMeta(accounts.TakerTokenAccountA, false),
		solana.NewAccountMeta(accounts.TakerTokenAccountB, false),
		solana.NewAccountMeta(accounts.MakerTokenAccountB, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
		solana.NewReadonlyAccountMeta(accounts.TokenProgram, false),
		solana.NewReadonlyAccountMeta(token.AssociatedTokenAccountProgramKey, false),
	)
}
