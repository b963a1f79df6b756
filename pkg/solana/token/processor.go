package token

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/code-payments/escrow-program/pkg/solana"
	"github.com/code-payments/escrow-program/pkg/solana/runtime"
	"github.com/code-payments/escrow-program/pkg/solana/system"
)

// Processor implements the token sub-ledger for one program variant.
// Balance bookkeeping only; every check failure aborts the instruction
// and the runtime discards all partial effects.
type Processor struct {
	program ed25519.PublicKey
}

func NewProcessor(program ed25519.PublicKey) *Processor {
	return &Processor{program: program}
}

// RegisterBuiltins installs both token program variants and the
// associated token account program on a ledger.
func RegisterBuiltins(l *runtime.Ledger) {
	l.Register(ProgramKey, NewProcessor(ProgramKey))
	l.Register(Program2022Key, NewProcessor(Program2022Key))
	l.Register(AssociatedTokenAccountProgramKey, AssociatedAccountProcessor{})
}

func (p *Processor) Execute(ctx *runtime.InstructionContext) error {
	data := ctx.Data()
	if len(data) == 0 {
		return solana.ErrInvalidInstructionData
	}

	switch Command(data[0]) {
	case CommandInitializeMint:
		return p.initializeMint(ctx, data)
	case CommandInitializeAccount:
		return p.initializeAccount(ctx)
	case CommandTransfer:
		return p.transfer(ctx, data)
	case CommandMintTo:
		return p.mintTo(ctx, data)
	case CommandCloseAccount:
		return p.closeAccount(ctx)
	default:
		return solana.ErrInvalidInstructionData
	}
}

func (p *Processor) initializeMint(ctx *runtime.InstructionContext, data []byte) error {
	if len(data) < 1+1+ed25519.PublicKeySize+1 {
		return solana.ErrInvalidInstructionData
	}

	account, err := ctx.Account(0)
	if err != nil {
		return err
	}
	if !bytes.Equal(account.Owner(), p.program) {
		return solana.ErrInvalidAccountOwner
	}
	if account.DataLen() != MintSize {
		return solana.ErrInvalidAccountData
	}

	var mint Mint
	if mint.Unmarshal(account.Data()) && mint.IsInitialized {
		return ErrorAlreadyInUse
	}

	mint = Mint{
		MintAuthority: data[2 : 2+ed25519.PublicKeySize],
		Decimals:      data[1],
		IsInitialized: true,
	}
	return account.SetData(mint.Marshal())
}

func (p *Processor) initializeAccount(ctx *runtime.InstructionContext) error {
	account, err := ctx.Account(0)
	if err != nil {
		return err
	}
	mintAccount, err := ctx.Account(1)
	if err != nil {
		return err
	}
	owner, err := ctx.Account(2)
	if err != nil {
		return err
	}

	if !bytes.Equal(account.Owner(), p.program) {
		return solana.ErrInvalidAccountOwner
	}
	if account.DataLen() != AccountSize {
		return solana.ErrInvalidAccountData
	}

	var existing Account
	if existing.Unmarshal(account.Data()) && existing.State != AccountStateUninitialized {
		return ErrorAlreadyInUse
	}

	if _, err := p.loadMint(mintAccount); err != nil {
		return err
	}

	tokenAccount := Account{
		Mint:  mintAccount.Key(),
		Owner: owner.Key(),
		State: AccountStateInitialized,
	}
	return account.SetData(tokenAccount.Marshal())
}

func (p *Processor) transfer(ctx *runtime.InstructionContext, data []byte) error {
	if len(data) != 1+8 {
		return solana.ErrInvalidInstructionData
	}
	amount := binary.LittleEndian.Uint64(data[1:])

	source, err := ctx.Account(0)
	if err != nil {
		return err
	}
	dest, err := ctx.Account(1)
	if err != nil {
		return err
	}
	authority, err := ctx.Account(2)
	if err != nil {
		return err
	}

	sourceState, err := p.loadAccount(source)
	if err != nil {
		return err
	}
	destState, err := p.loadAccount(dest)
	if err != nil {
		return err
	}

	if !bytes.Equal(sourceState.Mint, destState.Mint) {
		return solana.ErrInvalidAccountData
	}
	if !bytes.Equal(sourceState.Owner, authority.Key()) {
		return solana.ErrInvalidAccountOwner
	}
	if !authority.IsSigner() {
		return solana.ErrMissingSigner
	}
	if sourceState.Amount < amount {
		return solana.ErrInsufficientFunds
	}

	// A self-transfer is validated like any other transfer but moves
	// nothing; writing both staged copies back would double-count.
	if bytes.Equal(source.Key(), dest.Key()) {
		return nil
	}

	sourceState.Amount -= amount
	destState.Amount += amount

	if err := source.SetData(sourceState.Marshal()); err != nil {
		return err
	}
	return dest.SetData(destState.Marshal())
}

func (p *Processor) mintTo(ctx *runtime.InstructionContext, data []byte) error {
	if len(data) != 1+8 {
		return solana.ErrInvalidInstructionData
	}
	amount := binary.LittleEndian.Uint64(data[1:])

	mintAccount, err := ctx.Account(0)
	if err != nil {
		return err
	}
	dest, err := ctx.Account(1)
	if err != nil {
		return err
	}
	authority, err := ctx.Account(2)
	if err != nil {
		return err
	}

	mint, err := p.loadMint(mintAccount)
	if err != nil {
		return err
	}
	destState, err := p.loadAccount(dest)
	if err != nil {
		return err
	}

	if !bytes.Equal(destState.Mint, mintAccount.Key()) {
		return solana.ErrInvalidAccountData
	}
	if !bytes.Equal(mint.MintAuthority, authority.Key()) {
		return solana.ErrInvalidAccountOwner
	}
	if !authority.IsSigner() {
		return solana.ErrMissingSigner
	}

	mint.Supply += amount
	destState.Amount += amount

	if err := mintAccount.SetData(mint.Marshal()); err != nil {
		return err
	}
	return dest.SetData(destState.Marshal())
}

func (p *Processor) closeAccount(ctx *runtime.InstructionContext) error {
	account, err := ctx.Account(0)
	if err != nil {
		return err
	}
	dest, err := ctx.Account(1)
	if err != nil {
		return err
	}
	authority, err := ctx.Account(2)
	if err != nil {
		return err
	}

	// Closing into itself would zero the lamports being returned.
	if bytes.Equal(account.Key(), dest.Key()) {
		return solana.ErrInvalidAccountData
	}

	state, err := p.loadAccount(account)
	if err != nil {
		return err
	}

	if state.Amount != 0 {
		return ErrorNonNativeHasBalance
	}

	closeAuthority := state.Owner
	if len(state.CloseAuthority) > 0 {
		closeAuthority = state.CloseAuthority
	}
	if !bytes.Equal(closeAuthority, authority.Key()) {
		return solana.ErrInvalidAccountOwner
	}
	if !authority.IsSigner() {
		return solana.ErrMissingSigner
	}

	if err := dest.SetLamports(dest.Lamports() + account.Lamports()); err != nil {
		return err
	}
	if err := account.SetLamports(0); err != nil {
		return err
	}
	return account.SetData(nil)
}

func (p *Processor) loadMint(account *runtime.BorrowedAccount) (*Mint, error) {
	if !bytes.Equal(account.Owner(), p.program) {
		return nil, solana.ErrInvalidAccountOwner
	}

	var mint Mint
	if !mint.Unmarshal(account.Data()) {
		return nil, solana.ErrInvalidAccountData
	}
	if !mint.IsInitialized {
		return nil, ErrorUninitializedState
	}
	return &mint, nil
}

func (p *Processor) loadAccount(account *runtime.BorrowedAccount) (*Account, error) {
	if !bytes.Equal(account.Owner(), p.program) {
		return nil, solana.ErrInvalidAccountOwner
	}

	var state Account
	if !state.Unmarshal(account.Data()) {
		return nil, solana.ErrInvalidAccountData
	}
	if state.State == AccountStateUninitialized {
		return nil, ErrorUninitializedState
	}
	return &state, nil
}

// AssociatedAccountProcessor implements the associated token account
// program: deterministic token account creation at the derived
// (wallet, token program, mint) address.
type AssociatedAccountProcessor struct{}

func (AssociatedAccountProcessor) Execute(ctx *runtime.InstructionContext) error {
	if len(ctx.Data()) > 1 {
		return solana.ErrInvalidInstructionData
	}

	payer, err := ctx.Account(0)
	if err != nil {
		return err
	}
	target, err := ctx.Account(1)
	if err != nil {
		return err
	}
	wallet, err := ctx.Account(2)
	if err != nil {
		return err
	}
	mint, err := ctx.Account(3)
	if err != nil {
		return err
	}
	tokenProgram, err := ctx.Account(5)
	if err != nil {
		return err
	}

	if !payer.IsSigner() {
		return solana.ErrMissingSigner
	}
	if !IsSupportedProgram(tokenProgram.Key()) {
		return solana.ErrInvalidAccountOwner
	}

	expected, bump, err := solana.FindProgramAddressAndBump(
		AssociatedTokenAccountProgramKey,
		wallet.Key(),
		tokenProgram.Key(),
		mint.Key(),
	)
	if err != nil {
		return err
	}
	if !bytes.Equal(expected, target.Key()) {
		return solana.ErrInvalidSeeds
	}

	create := system.CreateAccount(
		payer.Key(),
		target.Key(),
		tokenProgram.Key(),
		ctx.MinimumBalance(AccountSize),
		AccountSize,
	)
	err = ctx.InvokeSigned(create, [][]byte{
		wallet.Key(),
		tokenProgram.Key(),
		mint.Key(),
		{bump},
	})
	if err != nil {
		return err
	}

	initialize := solana.NewInstruction(
		tokenProgram.Key(),
		[]byte{byte(CommandInitializeAccount)},
		solana.NewAccountMeta(target.Key(), false),
		solana.NewReadonlyAccountMeta(mint.Key(), false),
		solana.NewReadonlyAccountMeta(wallet.Key(), false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	)
	return ctx.Invoke(initialize)
}
