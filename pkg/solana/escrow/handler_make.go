package escrow

import (
	"bytes"

	"github.com/mr-tron/base58/base58"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/escrow-program/pkg/solana"
	"github.com/code-payments/escrow-program/pkg/solana/binary"
	"github.com/code-payments/escrow-program/pkg/solana/runtime"
	"github.com/code-payments/escrow-program/pkg/solana/system"
)

type makeAccounts struct {
	maker              *runtime.BorrowedAccount
	escrow             *runtime.BorrowedAccount
	mintA              *runtime.BorrowedAccount
	mintB              *runtime.BorrowedAccount
	makerTokenAccountA *runtime.BorrowedAccount
	vault              *runtime.BorrowedAccount
	tokenProgram       *runtime.BorrowedAccount
}

func getMakeAccounts(ctx *runtime.InstructionContext) (*makeAccounts, error) {
	if ctx.NumAccounts() < 9 {
		return nil, solana.ErrInvalidInstructionData
	}

	var accounts makeAccounts
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
	if accounts.mintB, err = ctx.Account(3); err != nil {
		return nil, err
	}
	if accounts.makerTokenAccountA, err = ctx.Account(4); err != nil {
		return nil, err
	}
	if accounts.vault, err = ctx.Account(5); err != nil {
		return nil, err
	}
	if accounts.tokenProgram, err = ctx.Account(7); err != nil {
		return nil, err
	}

	if err := checkSigner(accounts.maker); err != nil {
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

func (p *Processor) processMake(ctx *runtime.InstructionContext, data []byte) error {
	if len(data) != MakeInstructionArgsSize {
		return solana.ErrInvalidInstructionData
	}

	var offset int
	var seed, receiveAmount, depositAmount uint64
	binary.GetUint64(data, &seed, &offset)
	binary.GetUint64(data[offset:], &receiveAmount, &offset)
	binary.GetUint64(data[offset:], &depositAmount, &offset)

	if receiveAmount == 0 || depositAmount == 0 {
		return ErrInvalidAmount
	}

	accounts, err := getMakeAccounts(ctx)
	if err != nil {
		return err
	}

	if bytes.Equal(accounts.mintA.Key(), accounts.mintB.Key()) {
		return solana.ErrInvalidAccountData
	}

	derived, bump, err := GetEscrowStateAddress(&GetEscrowStateAddressArgs{
		Maker: accounts.maker.Key(),
		Seed:  seed,
	})
	if err != nil {
		return err
	}
	if !bytes.Equal(derived, accounts.escrow.Key()) {
		return solana.ErrInvalidSeeds
	}

	tokenProgram := accounts.tokenProgram.Key()

	if err := checkAssociatedTokenAccount(accounts.makerTokenAccountA, accounts.maker.Key(), accounts.mintA.Key(), tokenProgram); err != nil {
		return err
	}

	// Allocate the record at its derived address. An existing record
	// for the same (maker, seed) surfaces here as an allocation
	// collision.
	err = ctx.InvokeSigned(
		system.CreateAccount(
			accounts.maker.Key(),
			accounts.escrow.Key(),
			PROGRAM_ID,
			ctx.MinimumBalance(EscrowAccountSize),
			EscrowAccountSize,
		),
		getSignerSeeds(accounts.maker.Key(), seed, bump),
	)
	if err != nil {
		return err
	}

	err = initAssociatedTokenAccountIfNeeded(
		ctx,
		accounts.vault,
		accounts.maker.Key(),
		accounts.escrow.Key(),
		accounts.mintA.Key(),
		tokenProgram,
	)
	if err != nil {
		return err
	}

	err = ctx.Invoke(newTransferInstruction(
		tokenProgram,
		accounts.makerTokenAccountA.Key(),
		accounts.vault.Key(),
		accounts.maker.Key(),
		depositAmount,
	))
	if err != nil {
		return err
	}

	state := EscrowAccount{
		Maker:         accounts.maker.Key(),
		MintA:         accounts.mintA.Key(),
		MintB:         accounts.mintB.Key(),
		ReceiveAmount: receiveAmount,
		Seed:          seed,
		Bump:          bump,
	}
	if err := accounts.escrow.SetData(state.Marshal()); err != nil {
		return err
	}

	p.log.WithFields(logrus.Fields{
		"maker":  base58.Encode(accounts.maker.Key()),
		"escrow": base58.Encode(accounts.escrow.Key()),
	}).Trace("opened escrow")

	return nil
}
