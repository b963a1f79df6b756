package escrow

import (
	"bytes"
	"crypto/ed25519"

	"github.com/code-payments/escrow-program/pkg/solana"
	"github.com/code-payments/escrow-program/pkg/solana/runtime"
	"github.com/code-payments/escrow-program/pkg/solana/system"
	"github.com/code-payments/escrow-program/pkg/solana/token"
)

// Shared precondition checks run before any handler body touches state.
// Every failure aborts the instruction; the runtime rolls back whatever
// was done so far.

func checkSigner(account *runtime.BorrowedAccount) error {
	if !account.IsSigner() {
		return solana.ErrMissingSigner
	}
	return nil
}

// checkProgramAccount verifies a record account is live and controlled
// by this program. A closed record reads as unallocated, which is the
// missing-account condition rather than an ownership failure.
func checkProgramAccount(account *runtime.BorrowedAccount) error {
	if !account.IsAllocated() {
		return solana.ErrMissingAccount
	}
	if !bytes.Equal(account.Owner(), PROGRAM_ID) {
		return solana.ErrInvalidAccountOwner
	}
	return nil
}

// checkMint verifies an account is a mint under one of the two
// supported token program variants.
func checkMint(account *runtime.BorrowedAccount) error {
	if !token.IsSupportedProgram(account.Owner()) {
		return solana.ErrInvalidAccountOwner
	}
	if account.DataLen() != token.MintSize {
		return solana.ErrInvalidAccountData
	}
	return nil
}

func checkTokenProgram(account *runtime.BorrowedAccount) error {
	if !token.IsSupportedProgram(account.Key()) {
		return solana.ErrIncorrectProgram
	}
	return nil
}

// checkAssociatedTokenAccount verifies an existing token account is
// owned by the token program and sits at the canonical associated
// address for (wallet, mint). The address binding is the anti-spoofing
// check: a caller cannot substitute an arbitrary token account.
func checkAssociatedTokenAccount(account *runtime.BorrowedAccount, wallet, mint, tokenProgram ed25519.PublicKey) error {
	if !bytes.Equal(account.Owner(), tokenProgram) {
		return solana.ErrInvalidAccountOwner
	}
	return checkAssociatedTokenAddress(account, wallet, mint, tokenProgram)
}

func checkAssociatedTokenAddress(account *runtime.BorrowedAccount, wallet, mint, tokenProgram ed25519.PublicKey) error {
	expected, err := token.GetAssociatedAccountForProgram(wallet, mint, tokenProgram)
	if err != nil {
		return err
	}
	if !bytes.Equal(expected, account.Key()) {
		return solana.ErrInvalidSeeds
	}
	return nil
}

// initAssociatedTokenAccountIfNeeded creates the associated token
// account when it does not exist yet, paying rent from payer. Already
// initialized accounts are validated and left alone.
func initAssociatedTokenAccountIfNeeded(
	ctx *runtime.InstructionContext,
	account *runtime.BorrowedAccount,
	payer ed25519.PublicKey,
	wallet ed25519.PublicKey,
	mint ed25519.PublicKey,
	tokenProgram ed25519.PublicKey,
) error {
	if account.Lamports() > 0 {
		return checkAssociatedTokenAccount(account, wallet, mint, tokenProgram)
	}

	if err := checkAssociatedTokenAddress(account, wallet, mint, tokenProgram); err != nil {
		return err
	}

	return ctx.Invoke(solana.NewInstruction(
		token.AssociatedTokenAccountProgramKey,
		[]byte{},
		solana.NewAccountMeta(payer, true),
		solana.NewAccountMeta(account.Key(), false),
		solana.NewReadonlyAccountMeta(wallet, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
		solana.NewReadonlyAccountMeta(tokenProgram, false),
	))
}

// newTransferInstruction builds a token transfer against the provided
// token program variant.
func newTransferInstruction(tokenProgram, source, dest, authority ed25519.PublicKey, amount uint64) solana.Instruction {
	ins := token.Transfer(source, dest, authority, amount)
	ins.Program = tokenProgram
	return ins
}

func newCloseAccountInstruction(tokenProgram, account, dest, owner ed25519.PublicKey) solana.Instruction {
	ins := token.CloseAccount(account, dest, owner)
	ins.Program = tokenProgram
	return ins
}

// closeProgramAccount transfers the record's entire balance to the
// recipient, zeroes its data, and reassigns ownership away from this
// program, completing deallocation at commit.
func closeProgramAccount(account, destination *runtime.BorrowedAccount) error {
	if err := checkProgramAccount(account); err != nil {
		return err
	}

	if err := destination.SetLamports(destination.Lamports() + account.Lamports()); err != nil {
		return err
	}
	if err := account.SetLamports(0); err != nil {
		return err
	}
	if err := account.SetData(nil); err != nil {
		return err
	}
	return account.SetOwner(system.ProgramKey)
}
