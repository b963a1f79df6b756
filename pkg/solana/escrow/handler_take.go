package escrow

import (
	"bytes"

	"github.com/mr-tron/base58/base58"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/escrow-program/pkg/solana"
	"github.com/code-payments/escrow-program/pkg/solana/runtime"
	"github.com/code-payments/escrow-program/pkg/solana/token"
)

type takeAccounts struct {
	taker              *runtime.BorrowedAccount
	maker              *runtime.BorrowedAccount
	escrow             *runtime.BorrowedAccount
	mintA              *runtime.BorrowedAccount
	mintB              *runtime.BorrowedAccount
	vault              *runtime.BorrowedAccount
	takerTokenAccountA *runtime.BorrowedAccount
	takerTokenAccountB *runtime.BorrowedAccount
	makerTokenAccountB *runtime.BorrowedAccount
	tokenProgram       *runtime.BorrowedAccount
}

func getTakeAccounts(ctx *runtime.InstructionContext) (*takeAccounts, error) {
	if ctx.NumAccounts() < 12 {
		return nil, solana.ErrInvalidInstructionData
	}

	var accounts takeAccounts
	var err error

	if accounts.taker, err = ctx.Account(0); err != nil {
		return nil, err
	}
	if accounts.maker, err = ctx.Account(1); err != nil {
		return nil, err
	}
	if accounts.escrow, err = ctx.Account(2); err != nil {
		return nil, err
	}
	if accounts.mintA, err = ctx.Account(3); err != nil {
		return nil, err
	}
	if accounts.mintB, err = ctx.Account(4); err != nil {
		return nil, err
	}
	if accounts.vault, err = ctx.Account(5); err != nil {
		return nil, err
	}
	if accounts.takerTokenAccountA, err = ctx.Account(6); err != nil {
		return nil, err
	}
	if accounts.takerTokenAccountB, err = ctx.Account(7); err != nil {
		return nil, err
	}
	if accounts.makerTokenAccountB, err = ctx.Account(8); err != nil {
		return nil, err
	}
	if accounts.tokenProgram, err = ctx.Account(10); err != nil {
		return nil, err
	}

	if err := checkSigner(accounts.taker); err != nil {
		return nil, err
	}
	if err := checkProgramAccount(accounts.escrow); err != nil {
		return nil, err
	}
	if err := checkTokenProgram(accounts.tokenProgram); err != nil {
		return nil, err
	}
	if err := checkMint(accounts.mintA); err != nil {
		return nil, err
	}
	if err := checkMint(accounts.mintB); err != nil {
		return nil, err
	}

	return &accounts, nil
}

func (p *Processor) processTake(ctx *runtime.InstructionContext) error {
	accounts, err := getTakeAccounts(ctx)
	if err != nil {
		return err
	}

	var state EscrowAccount
	if err := state.Unmarshal(accounts.escrow.Data()); err != nil {
		return err
	}

	if !bytes.Equal(state.Maker, accounts.maker.Key()) {
		return solana.ErrInvalidAccountOwner
	}
	if !bytes.Equal(state.MintA, accounts.mintA.Key()) {
		return solana.ErrInvalidAccountData
	}
	if !bytes.Equal(state.MintB, accounts.mintB.Key()) {
		return solana.ErrInvalidAccountData
	}

	// Re-derive the record address from the stored seed and bump. An
	// account at any other address cannot act as this escrow, no
	// matter its contents.
	signerSeeds := getSignerSeeds(state.Maker, state.Seed, state.Bump)
	derived, err := solana.CreateProgramAddress(PROGRAM_ID, signerSeeds...)
	if err != nil || !bytes.Equal(derived, accounts.escrow.Key()) {
		return solana.ErrInvalidAccountOwner
	}

	tokenProgram := accounts.tokenProgram.Key()

	if err := checkAssociatedTokenAccount(accounts.vault, accounts.escrow.Key(), accounts.mintA.Key(), tokenProgram); err != nil {
		return err
	}
	if err := checkAssociatedTokenAccount(accounts.takerTokenAccountB, accounts.taker.Key(), accounts.mintB.Key(), tokenProgram); err != nil {
		return err
	}

	err = initAssociatedTokenAccountIfNeeded(
		ctx,
		accounts.takerTokenAccountA,
		accounts.taker.Key(),
		accounts.taker.Key(),
		accounts.mintA.Key(),
		tokenProgram,
	)
	if err != nil {
		return err
	}
	err = initAssociatedTokenAccountIfNeeded(
		ctx,
		accounts.makerTokenAccountB,
		accounts.taker.Key(),
		accounts.maker.Key(),
		accounts.mintB.Key(),
		tokenProgram,
	)
	if err != nil {
		return err
	}

	var vaultState token.Account
	if !vaultState.Unmarshal(accounts.vault.Data()) {
		return solana.ErrInvalidAccountData
	}

	// The exchange and the teardown ride the same instruction: either
	// every step below commits, or none do.

	err = ctx.Invoke(newTransferInstruction(
		tokenProgram,
		accounts.takerTokenAccountB.Key(),
		accounts.makerTokenAccountB.Key(),
		accounts.taker.Key(),
		state.ReceiveAmount,
	))
	if err != nil {
		return err
	}

	err = ctx.InvokeSigned(
		newTransferInstruction(
			tokenProgram,
			accounts.vault.Key(),
			accounts.takerTokenAccountA.Key(),
			accounts.escrow.Key(),
			vaultState.Amount,
		),
		signerSeeds,
	)
	if err != nil {
		return err
	}

	err = ctx.InvokeSigned(
		newCloseAccountInstruction(
			tokenProgram,
			accounts.vault.Key(),
			accounts.maker.Key(),
			accounts.escrow.Key(),
		),
		signerSeeds,
	)
	if err != nil {
		return err
	}

	if err := closeProgramAccount(accounts.escrow, accounts.maker); err != nil {
		return err
	}

	p.log.WithFields(logrus.Fields{
		"taker":  base58.Encode(accounts.taker.Key()),
		"escrow": base58.Encode(accounts.escrow.Key()),
	}).Trace("escrow taken")

	return nil
}
