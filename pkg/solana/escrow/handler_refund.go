package escrow

import (
	"bytes"

	"github.com/mr-tron/base58/base58"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/escrow-program/pkg/solana"
	"github.com/code-payments/escrow-program/pkg/solana/runtime"
	"github.com/code-payments/escrow-program/pkg/solana/token"
)

type refundAccounts struct {
	maker              *runtime.BorrowedAccount
	escrow             *runtime.BorrowedAccount
	mintA              *runtime.BorrowedAccount
	vault              *runtime.BorrowedAccount
	makerTokenAccountA *runtime.BorrowedAccount
	tokenProgram       *runtime.BorrowedAccount
}

func getRefundAccounts(ctx *runtime.InstructionContext) (*refundAccounts, error) {
	if ctx.NumAccounts() < 8 {
		return nil, solana.ErrInvalidInstructionData
	}

	var accounts refundAccounts
	var err error

	if accounts.maker, err = ctx.Account(0); err != nil {
		return nil, err
	}
	if accounts.escrow, err = ctx.Account(1); err != nil {
		return nil, err
	}
	if accounts.mintA, err = ctx.Account(2); err != nil {
		return nil, err
	}
	if accounts.vault, err = ctx.Account(3); err != nil {
		return nil, err
	}
	if accounts.makerTokenAccountA, err = ctx.Account(4); err != nil {
		return nil, err
	}
	if accounts.tokenProgram, err = ctx.Account(6); err != nil {
		return nil, err
	}

	if err := checkSigner(accounts.maker); err != nil {
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

	return &accounts, nil
}

func (p *Processor) processRefund(ctx *runtime.InstructionContext) error {
	accounts, err := getRefundAccounts(ctx)
	if err != nil {
		return err
	}

	var state EscrowAccount
	if err := state.Unmarshal(accounts.escrow.Data()); err != nil {
		return err
	}

	// Only the party that opened the trade may reclaim it.
	if !bytes.Equal(state.Maker, accounts.maker.Key()) {
		return solana.ErrInvalidAccountOwner
	}
	if !bytes.Equal(state.MintA, accounts.mintA.Key()) {
		return solana.ErrInvalidAccountData
	}

	signerSeeds := getSignerSeeds(state.Maker, state.Seed, state.Bump)
	derived, err := solana.CreateProgramAddress(PROGRAM_ID, signerSeeds...)
	if err != nil || !bytes.Equal(derived, accounts.escrow.Key()) {
		return solana.ErrInvalidAccountOwner
	}

	tokenProgram := accounts.tokenProgram.Key()

	if err := checkAssociatedTokenAccount(accounts.vault, accounts.escrow.Key(), accounts.mintA.Key(), tokenProgram); err != nil {
		return err
	}

	err = initAssociatedTokenAccountIfNeeded(
		ctx,
		accounts.makerTokenAccountA,
		accounts.maker.Key(),
		accounts.maker.Key(),
		accounts.mintA.Key(),
		tokenProgram,
	)
	if err != nil {
		return err
	}

	var vaultState token.Account
	if !vaultState.Unmarshal(accounts.vault.Data()) {
		return solana.ErrInvalidAccountData
	}

	err = ctx.InvokeSigned(
		newTransferInstruction(
			tokenProgram,
			accounts.vault.Key(),
			accounts.makerTokenAccountA.Key(),
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
		"maker":  base58.Encode(accounts.maker.Key()),
		"escrow": base58.Encode(accounts.escrow.Key()),
	}).Trace("escrow refunded")

	return nil
}
