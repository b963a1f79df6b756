package escrow

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/escrow-program/pkg/solana"
	"github.com/code-payments/escrow-program/pkg/solana/runtime"
	"github.com/code-payments/escrow-program/pkg/solana/system"
	"github.com/code-payments/escrow-program/pkg/solana/token"
	"github.com/code-payments/escrow-program/pkg/testutil"
)

const (
	testSeed          = uint64(1)
	testReceiveAmount = uint64(1000)
	testDepositAmount = uint64(500)

	initialMakerBalanceA = uint64(2000)
	initialTakerBalanceB = uint64(5000)
)

type testEnv struct {
	ledger    *runtime.Ledger
	authority ed25519.PublicKey
	maker     ed25519.PublicKey
	taker     ed25519.PublicKey
	mintA     ed25519.PublicKey
	mintB     ed25519.PublicKey

	makerTokenAccountA ed25519.PublicKey
	makerTokenAccountB ed25519.PublicKey
	takerTokenAccountA ed25519.PublicKey
	takerTokenAccountB ed25519.PublicKey
}

func generateKey(t *testing.T) ed25519.PublicKey {
	return testutil.GenerateSolanaKeys(t, 1)[0]
}

// setup funds maker and taker wallets, initializes both mints, and
// opens funded token accounts on the sides each party starts with:
// the maker holds mint A, the taker holds mint B. The counterparty
// accounts are derived but intentionally left uncreated.
func setup(t *testing.T) *testEnv {
	ledger := runtime.NewLedger()
	token.RegisterBuiltins(ledger)
	Register(ledger)

	env := &testEnv{
		ledger:    ledger,
		authority: generateKey(t),
		maker:     generateKey(t),
		taker:     generateKey(t),
		mintA:     generateKey(t),
		mintB:     generateKey(t),
	}

	ledger.CreateFunded(env.authority, 100_000_000_000)
	ledger.CreateFunded(env.maker, 10_000_000_000)
	ledger.CreateFunded(env.taker, 10_000_000_000)

	env.createMint(t, env.mintA)
	env.createMint(t, env.mintB)

	env.makerTokenAccountA = env.createFundedTokenAccount(t, env.maker, env.mintA, initialMakerBalanceA)
	env.takerTokenAccountB = env.createFundedTokenAccount(t, env.taker, env.mintB, initialTakerBalanceB)

	var err error
	env.makerTokenAccountB, err = token.GetAssociatedAccount(env.maker, env.mintB)
	require.NoError(t, err)
	env.takerTokenAccountA, err = token.GetAssociatedAccount(env.taker, env.mintA)
	require.NoError(t, err)

	return env
}

func (env *testEnv) createMint(t *testing.T, mint ed25519.PublicKey) {
	create := system.CreateAccount(
		env.authority,
		mint,
		token.ProgramKey,
		env.ledger.Rent().MinimumBalance(token.MintSize),
		token.MintSize,
	)
	require.NoError(t, env.ledger.Execute(create, env.authority, mint))
	require.NoError(t, env.ledger.Execute(token.InitializeMint(mint, env.authority, 6)))
}

func (env *testEnv) createFundedTokenAccount(t *testing.T, wallet, mint ed25519.PublicKey, amount uint64) ed25519.PublicKey {
	create, address, err := token.CreateAssociatedTokenAccount(env.authority, wallet, mint)
	require.NoError(t, err)
	require.NoError(t, env.ledger.Execute(create, env.authority))

	if amount > 0 {
		require.NoError(t, env.ledger.Execute(
			token.MintTo(mint, address, env.authority, amount),
			env.authority,
		))
	}
	return address
}

func (env *testEnv) deriveEscrow(t *testing.T, seed uint64) (escrow, vault ed25519.PublicKey) {
	escrow, _, err := GetEscrowStateAddress(&GetEscrowStateAddressArgs{
		Maker: env.maker,
		Seed:  seed,
	})
	require.NoError(t, err)

	vault, err = GetVaultAddress(&GetVaultAddressArgs{
		Escrow:       escrow,
		MintA:        env.mintA,
		TokenProgram: token.ProgramKey,
	})
	require.NoError(t, err)

	return escrow, vault
}

func (env *testEnv) newMakeInstruction(escrow, vault ed25519.PublicKey, args *MakeInstructionArgs) solana.Instruction {
	return NewMakeInstruction(
		&MakeInstructionAccounts{
			Maker:              env.maker,
			Escrow:             escrow,
			MintA:              env.mintA,
			MintB:              env.mintB,
			MakerTokenAccountA: env.makerTokenAccountA,
			Vault:              vault,
			TokenProgram:       token.ProgramKey,
		},
		args,
	)
}

func (env *testEnv) make(t *testing.T, seed uint64) (escrow, vault ed25519.PublicKey) {
	escrow, vault = env.deriveEscrow(t, seed)
	ins := env.newMakeInstruction(escrow, vault, &MakeInstructionArgs{
		Seed:          seed,
		ReceiveAmount: testReceiveAmount,
		DepositAmount: testDepositAmount,
	})
	require.NoError(t, env.ledger.Execute(ins, env.maker))
	return escrow, vault
}

func (env *testEnv) newTakeInstruction(escrow, vault ed25519.PublicKey) solana.Instruction {
	return NewTakeInstruction(&TakeInstructionAccounts{
		Taker:              env.taker,
		Maker:              env.maker,
		Escrow:             escrow,
		MintA:              env.mintA,
		MintB:              env.mintB,
		Vault:              vault,
		TakerTokenAccountA: env.takerTokenAccountA,
		TakerTokenAccountB: env.takerTokenAccountB,
		MakerTokenAccountB: env.makerTokenAccountB,
		TokenProgram:       token.ProgramKey,
	})
}

func (env *testEnv) newRefundInstruction(escrow, vault ed25519.PublicKey) solana.Instruction {
	return NewRefundInstruction(&RefundInstructionAccounts{
		Maker:              env.maker,
		Escrow:             escrow,
		MintA:              env.mintA,
		Vault:              vault,
		MakerTokenAccountA: env.makerTokenAccountA,
		TokenProgram:       token.ProgramKey,
	})
}

func (env *testEnv) tokenBalance(t *testing.T, address ed25519.PublicKey) uint64 {
	raw, ok := env.ledger.GetAccount(address)
	require.True(t, ok)

	var account token.Account
	require.True(t, account.Unmarshal(raw.Data))
	return account.Amount
}

func (env *testEnv) lamports(t *testing.T, address ed25519.PublicKey) uint64 {
	raw, ok := env.ledger.GetAccount(address)
	require.True(t, ok)
	return raw.Lamports
}

func TestEscrow_Make(t *testing.T) {
	env := setup(t)

	escrow, vault := env.make(t, testSeed)

	record, ok := env.ledger.GetAccount(escrow)
	require.True(t, ok)
	assert.EqualValues(t, PROGRAM_ID, record.Owner)

	var state EscrowAccount
	require.NoError(t, state.Unmarshal(record.Data))
	assert.EqualValues(t, env.maker, state.Maker)
	assert.EqualValues(t, env.mintA, state.MintA)
	assert.EqualValues(t, env.mintB, state.MintB)
	assert.Equal(t, testReceiveAmount, state.ReceiveAmount)
	assert.Equal(t, testSeed, state.Seed)

	assert.Equal(t, testDepositAmount, env.tokenBalance(t, vault))
	assert.Equal(t, initialMakerBalanceA-testDepositAmount, env.tokenBalance(t, env.makerTokenAccountA))
}

func TestEscrow_Make_InvalidAmount(t *testing.T) {
	env := setup(t)

	escrow, vault := env.deriveEscrow(t, testSeed)

	for _, args := range []*MakeInstructionArgs{
		{Seed: testSeed, ReceiveAmount: 0, DepositAmount: testDepositAmount},
		{Seed: testSeed, ReceiveAmount: testReceiveAmount, DepositAmount: 0},
	} {
		err := env.ledger.Execute(env.newMakeInstruction(escrow, vault, args), env.maker)
		assert.Equal(t, ErrInvalidAmount, err)
	}

	_, ok := env.ledger.GetAccount(escrow)
	assert.False(t, ok)
	assert.Equal(t, initialMakerBalanceA, env.tokenBalance(t, env.makerTokenAccountA))
}

func TestEscrow_Make_SameMint(t *testing.T) {
	env := setup(t)

	env.mintB = env.mintA
	escrow, vault := env.deriveEscrow(t, testSeed)

	err := env.ledger.Execute(env.newMakeInstruction(escrow, vault, &MakeInstructionArgs{
		Seed:          testSeed,
		ReceiveAmount: testReceiveAmount,
		DepositAmount: testDepositAmount,
	}), env.maker)
	assert.Equal(t, solana.ErrInvalidAccountData, err)
}

func TestEscrow_Make_DuplicateSeed(t *testing.T) {
	env := setup(t)

	escrow, vault := env.make(t, testSeed)

	before, ok := env.ledger.GetAccount(escrow)
	require.True(t, ok)

	err := env.ledger.Execute(env.newMakeInstruction(escrow, vault, &MakeInstructionArgs{
		Seed:          testSeed,
		ReceiveAmount: 1,
		DepositAmount: 1,
	}), env.maker)
	assert.Equal(t, solana.ErrAccountAlreadyInUse, err)

	// The live record is untouched by the collision.
	after, ok := env.ledger.GetAccount(escrow)
	require.True(t, ok)
	assert.Equal(t, before.Data, after.Data)
	assert.Equal(t, testDepositAmount, env.tokenBalance(t, vault))
}

func TestEscrow_Make_InsufficientDeposit(t *testing.T) {
	env := setup(t)

	escrow, vault := env.deriveEscrow(t, testSeed)

	err := env.ledger.Execute(env.newMakeInstruction(escrow, vault, &MakeInstructionArgs{
		Seed:          testSeed,
		ReceiveAmount: testReceiveAmount,
		DepositAmount: initialMakerBalanceA + 1,
	}), env.maker)
	assert.Equal(t, solana.ErrInsufficientFunds, err)

	// The record and vault allocations from earlier in the
	// instruction are rolled back with the failed transfer.
	_, ok := env.ledger.GetAccount(escrow)
	assert.False(t, ok)
	_, ok = env.ledger.GetAccount(vault)
	assert.False(t, ok)
	assert.Equal(t, initialMakerBalanceA, env.tokenBalance(t, env.makerTokenAccountA))
}

func TestEscrow_Take(t *testing.T) {
	env := setup(t)

	makerLamportsBefore := env.lamports(t, env.maker)
	escrow, vault := env.make(t, testSeed)

	require.NoError(t, env.ledger.Execute(env.newTakeInstruction(escrow, vault), env.taker))

	// Both sides settle: the taker's payment reaches the maker, the
	// full vault balance reaches the taker.
	assert.Equal(t, testReceiveAmount, env.tokenBalance(t, env.makerTokenAccountB))
	assert.Equal(t, initialTakerBalanceB-testReceiveAmount, env.tokenBalance(t, env.takerTokenAccountB))
	assert.Equal(t, testDepositAmount, env.tokenBalance(t, env.takerTokenAccountA))
	assert.Equal(t, initialMakerBalanceA-testDepositAmount, env.tokenBalance(t, env.makerTokenAccountA))

	// The record and vault are gone, and their rent lamports are back
	// with the maker.
	_, ok := env.ledger.GetAccount(escrow)
	assert.False(t, ok)
	_, ok = env.ledger.GetAccount(vault)
	assert.False(t, ok)
	assert.Equal(t, makerLamportsBefore, env.lamports(t, env.maker))

	// The record is consumed: neither transition fires twice.
	err := env.ledger.Execute(env.newTakeInstruction(escrow, vault), env.taker)
	assert.Equal(t, solana.ErrMissingAccount, err)
	err = env.ledger.Execute(env.newRefundInstruction(escrow, vault), env.maker)
	assert.Equal(t, solana.ErrMissingAccount, err)
}

func TestEscrow_Take_BySelf(t *testing.T) {
	env := setup(t)

	// The maker takes their own trade: payment and receipt collapse
	// onto the same token account, and balances must be conserved.
	env.taker = env.maker
	env.takerTokenAccountB = env.createFundedTokenAccount(t, env.maker, env.mintB, initialTakerBalanceB)
	env.makerTokenAccountB = env.takerTokenAccountB
	env.takerTokenAccountA = env.makerTokenAccountA

	makerLamportsBefore := env.lamports(t, env.maker)
	escrow, vault := env.make(t, testSeed)

	require.NoError(t, env.ledger.Execute(env.newTakeInstruction(escrow, vault), env.maker))

	// Nothing is created or destroyed: the deposit comes home and the
	// self-payment of mint B nets to zero.
	assert.Equal(t, initialMakerBalanceA, env.tokenBalance(t, env.makerTokenAccountA))
	assert.Equal(t, initialTakerBalanceB, env.tokenBalance(t, env.makerTokenAccountB))
	assert.Equal(t, makerLamportsBefore, env.lamports(t, env.maker))

	_, ok := env.ledger.GetAccount(escrow)
	assert.False(t, ok)
	_, ok = env.ledger.GetAccount(vault)
	assert.False(t, ok)
}

func TestEscrow_Take_WrongMaker(t *testing.T) {
	env := setup(t)

	escrow, vault := env.make(t, testSeed)

	ins := env.newTakeInstruction(escrow, vault)
	ins.Accounts[1] = solana.NewAccountMeta(generateKey(t), false)
	err := env.ledger.Execute(ins, env.taker)
	assert.Equal(t, solana.ErrInvalidAccountOwner, err)

	// The escrow is still open.
	_, ok := env.ledger.GetAccount(escrow)
	assert.True(t, ok)
	assert.Equal(t, testDepositAmount, env.tokenBalance(t, vault))
}

func TestEscrow_Take_InsufficientFunds(t *testing.T) {
	env := setup(t)

	escrow, vault := env.make(t, testSeed)

	// Drain the taker below the asking price.
	drain := env.createFundedTokenAccount(t, env.authority, env.mintB, 0)
	require.NoError(t, env.ledger.Execute(
		token.Transfer(env.takerTokenAccountB, drain, env.taker, initialTakerBalanceB-testReceiveAmount+1),
		env.taker,
	))

	err := env.ledger.Execute(env.newTakeInstruction(escrow, vault), env.taker)
	assert.Equal(t, solana.ErrInsufficientFunds, err)

	_, ok := env.ledger.GetAccount(escrow)
	assert.True(t, ok)
	assert.Equal(t, testDepositAmount, env.tokenBalance(t, vault))
}

func TestEscrow_SpoofedVault(t *testing.T) {
	env := setup(t)

	escrow, vault := env.make(t, testSeed)

	// A valid token account that is not the derived custody account
	// cannot stand in for the vault on either closing path.
	err := env.ledger.Execute(env.newTakeInstruction(escrow, env.makerTokenAccountA), env.taker)
	assert.Equal(t, solana.ErrInvalidSeeds, err)

	err = env.ledger.Execute(env.newRefundInstruction(escrow, env.makerTokenAccountA), env.maker)
	assert.Equal(t, solana.ErrInvalidSeeds, err)

	_, ok := env.ledger.GetAccount(escrow)
	assert.True(t, ok)
	assert.Equal(t, testDepositAmount, env.tokenBalance(t, vault))
}

func TestEscrow_Make_InvalidMint(t *testing.T) {
	env := setup(t)

	escrow, vault := env.deriveEscrow(t, testSeed)
	args := &MakeInstructionArgs{
		Seed:          testSeed,
		ReceiveAmount: testReceiveAmount,
		DepositAmount: testDepositAmount,
	}

	// A system-owned account is not a mint.
	ins := env.newMakeInstruction(escrow, vault, args)
	ins.Accounts[2] = solana.NewReadonlyAccountMeta(env.taker, false)
	err := env.ledger.Execute(ins, env.maker)
	assert.Equal(t, solana.ErrInvalidAccountOwner, err)

	// A token account is owned by the right program but is not
	// mint-sized.
	ins = env.newMakeInstruction(escrow, vault, args)
	ins.Accounts[3] = solana.NewReadonlyAccountMeta(env.makerTokenAccountA, false)
	err = env.ledger.Execute(ins, env.maker)
	assert.Equal(t, solana.ErrInvalidAccountData, err)

	_, ok := env.ledger.GetAccount(escrow)
	assert.False(t, ok)
	assert.Equal(t, initialMakerBalanceA, env.tokenBalance(t, env.makerTokenAccountA))
}

func TestEscrow_Refund(t *testing.T) {
	env := setup(t)

	makerLamportsBefore := env.lamports(t, env.maker)
	escrow, vault := env.make(t, testSeed)

	require.NoError(t, env.ledger.Execute(env.newRefundInstruction(escrow, vault), env.maker))

	// The maker is made whole, in tokens and in rent lamports.
	assert.Equal(t, initialMakerBalanceA, env.tokenBalance(t, env.makerTokenAccountA))
	assert.Equal(t, makerLamportsBefore, env.lamports(t, env.maker))

	_, ok := env.ledger.GetAccount(escrow)
	assert.False(t, ok)
	_, ok = env.ledger.GetAccount(vault)
	assert.False(t, ok)
}

func TestEscrow_Refund_NonMaker(t *testing.T) {
	env := setup(t)

	escrow, vault := env.make(t, testSeed)

	intruder := generateKey(t)
	env.ledger.CreateFunded(intruder, 1_000_000_000)

	ins := env.newRefundInstruction(escrow, vault)
	ins.Accounts[0] = solana.NewAccountMeta(intruder, true)
	err := env.ledger.Execute(ins, intruder)
	assert.Equal(t, solana.ErrInvalidAccountOwner, err)

	// The escrow remains open and fully funded.
	record, ok := env.ledger.GetAccount(escrow)
	require.True(t, ok)

	var state EscrowAccount
	require.NoError(t, state.Unmarshal(record.Data))
	assert.EqualValues(t, env.maker, state.Maker)
	assert.Equal(t, testDepositAmount, env.tokenBalance(t, vault))
}

func TestEscrow_SeedReuseAfterClose(t *testing.T) {
	env := setup(t)

	escrow, vault := env.make(t, testSeed)
	require.NoError(t, env.ledger.Execute(env.newRefundInstruction(escrow, vault), env.maker))

	// Once the record is closed, the same (maker, seed) pair can open
	// a fresh trade at the same derived address.
	reopened, _ := env.make(t, testSeed)
	assert.EqualValues(t, escrow, reopened)
	assert.Equal(t, testDepositAmount, env.tokenBalance(t, vault))
}

func TestEscrow_UnknownCommand(t *testing.T) {
	env := setup(t)

	for _, data := range [][]byte{nil, {0xff}} {
		ins := solana.NewInstruction(PROGRAM_ID, data, solana.NewAccountMeta(env.maker, true))
		err := env.ledger.Execute(ins, env.maker)
		assert.Equal(t, solana.ErrInvalidInstructionData, err)
	}
}

func TestEscrow_FullScenario(t *testing.T) {
	env := setup(t)

	// Maker offers 500 of mint A for 1000 of mint B, then the taker
	// accepts. End state: swapped balances and no escrow accounts.
	escrow, vault := env.make(t, testSeed)
	require.NoError(t, env.ledger.Execute(env.newTakeInstruction(escrow, vault), env.taker))

	assert.Equal(t, initialMakerBalanceA-testDepositAmount, env.tokenBalance(t, env.makerTokenAccountA))
	assert.Equal(t, testReceiveAmount, env.tokenBalance(t, env.makerTokenAccountB))
	assert.Equal(t, testDepositAmount, env.tokenBalance(t, env.takerTokenAccountA))
	assert.Equal(t, initialTakerBalanceB-testReceiveAmount, env.tokenBalance(t, env.takerTokenAccountB))

	_, ok := env.ledger.GetAccount(escrow)
	assert.False(t, ok)
	_, ok = env.ledger.GetAccount(vault)
	assert.False(t, ok)
}
