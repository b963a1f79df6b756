package escrow

import (
	"crypto/ed25519"

	"github.com/code-payments/escrow-program/pkg/solana"
	"github.com/code-payments/escrow-program/pkg/solana/system"
	"github.com/code-payments/escrow-program/pkg/solana/token"
)

type RefundInstructionAccounts struct {
	Maker              ed25519.PublicKey
	Escrow             ed25519.PublicKey
	MintA              ed25519.PublicKey
	Vault              ed25519.PublicKey
	MakerTokenAccountA ed25519.PublicKey
	TokenProgram       ed25519.PublicKey
}

// NewRefundInstruction reclaims the deposit. Only the stored maker may
// execute it.
func NewRefundInstruction(accounts *RefundInstructionAccounts) solana.Instruction {
	return solana.NewInstruction(
		PROGRAM_ID,
		[]byte{byte(CommandRefund)},
		solana.NewAccountMeta(accounts.Maker, true),
		solana.NewAccountMeta(accounts.Escrow, false),
		solana.NewReadonlyAccountMeta(accounts.MintA, false),
		solana.NewAccountMeta(accounts.Vault, false),
		solana.NewAccountMeta(accounts.MakerTokenAccountA, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
		solana.NewReadonlyAccountMeta(accounts.TokenProgram, false),
		solana.NewReadonlyAccountMeta(token.AssociatedTokenAccountProgramKey, false),
	)
}
