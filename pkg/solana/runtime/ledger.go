package runtime

import (
	"crypto/ed25519"
	"sync"

	"github.com/mr-tron/base58/base58"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/escrow-program/pkg/solana"
	"github.com/code-payments/escrow-program/pkg/solana/system"
)

// Processor executes a single instruction for one program.
type Processor interface {
	Execute(ctx *InstructionContext) error
}

// Ledger holds all account state and executes instructions one at a
// time. Each Execute call is a single atomic unit of work: either every
// account mutation it performs commits, or the referenced accounts are
// restored exactly as they were. Concurrent submissions serialize on
// the ledger lock and observe each other's commit order.
type Ledger struct {
	log *logrus.Entry

	mu         sync.Mutex
	rent       Rent
	accounts   map[string]*Account
	processors map[string]Processor
}

// NewLedger creates a ledger with default rent parameters and the
// system program registered.
func NewLedger() *Ledger {
	l := &Ledger{
		log:        logrus.StandardLogger().WithField("type", "solana/runtime/ledger"),
		rent:       DefaultRent(),
		accounts:   make(map[string]*Account),
		processors: make(map[string]Processor),
	}
	l.processors[string(system.ProgramKey)] = systemProcessor{}
	return l
}

// Register installs the processor for a program address.
func (l *Ledger) Register(program ed25519.PublicKey, p Processor) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.processors[string(program)] = p
}

func (l *Ledger) Rent() Rent {
	return l.rent
}

// CreateFunded allocates a plain system-owned account, e.g. a party's
// fee-paying wallet.
func (l *Ledger) CreateFunded(address ed25519.PublicKey, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	account := newUnallocatedAccount()
	account.Lamports = lamports
	l.accounts[string(address)] = account
}

// GetAccount returns a copy of the account at the given address, or
// false if no live account exists there.
func (l *Ledger) GetAccount(address ed25519.PublicKey) (*Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	account, ok := l.accounts[string(address)]
	if !ok || !account.IsAllocated() {
		return nil, false
	}
	return account.Clone(), true
}

// Execute runs one instruction to completion. The signer list is the
// set of transaction signatures the host has already verified; every
// account flagged IsSigner must appear in it. On any error the
// instruction's effects are rolled back in full.
func (l *Ledger) Execute(ins solana.Instruction, signers ...ed25519.PublicKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	log := l.log.WithField("program", base58.Encode(ins.Program))

	signerSet := make(map[string]struct{})
	for _, signer := range signers {
		signerSet[string(signer)] = struct{}{}
	}
	for _, meta := range ins.Accounts {
		if _, ok := signerSet[string(meta.PublicKey)]; meta.IsSigner && !ok {
			log.WithField("account", base58.Encode(meta.PublicKey)).Debug("signature missing")
			return solana.ErrMissingSigner
		}
	}

	tx := &transaction{
		ledger:   l,
		signers:  signerSet,
		writable: make(map[string]bool),
	}
	tx.observe(ins.Program)
	// Sysvars and the system program are ambiently visible.
	tx.observe(system.ProgramKey)
	tx.observe(system.RentSysVar)
	for _, meta := range ins.Accounts {
		tx.observe(meta.PublicKey)
		if meta.IsWritable {
			tx.writable[string(meta.PublicKey)] = true
		}
	}

	snapshot := make(map[string]*Account)
	for key := range tx.keys {
		if account, ok := l.accounts[key]; ok {
			snapshot[key] = account.Clone()
		} else {
			snapshot[key] = nil
		}
	}

	ctx, err := tx.newContext(ins, signerSet, 1)
	if err == nil {
		err = ctx.process()
	}

	if err != nil {
		for key, account := range snapshot {
			if account == nil {
				delete(l.accounts, key)
			} else {
				l.accounts[key] = account
			}
		}
		log.WithError(err).Debug("instruction aborted")
		return err
	}

	// Zero-lamport accounts are reclaimed at commit; a later allocation
	// at the same address starts from scratch.
	for key := range tx.keys {
		if account, ok := l.accounts[key]; ok && account.Lamports == 0 {
			delete(l.accounts, key)
		}
	}

	log.Trace("instruction committed")
	return nil
}

func (l *Ledger) borrow(key string) *Account {
	account, ok := l.accounts[key]
	if !ok {
		account = newUnallocatedAccount()
		l.accounts[key] = account
	}
	return account
}

// transaction tracks the account set and privileges of one Execute
// call. Inner (cross-program) instructions may only reference accounts
// the outer instruction declared, and may not escalate writability.
type transaction struct {
	ledger   *Ledger
	signers  map[string]struct{}
	writable map[string]bool
	keys     map[string]struct{}
}

func (tx *transaction) observe(key ed25519.PublicKey) {
	if tx.keys == nil {
		tx.keys = make(map[string]struct{})
	}
	tx.keys[string(key)] = struct{}{}
}

func (tx *transaction) contains(key ed25519.PublicKey) bool {
	_, ok := tx.keys[string(key)]
	return ok
}

func (tx *transaction) newContext(ins solana.Instruction, signers map[string]struct{}, depth int) (*InstructionContext, error) {
	ctx := &InstructionContext{
		tx:      tx,
		program: ins.Program,
		data:    ins.Data,
		depth:   depth,
	}

	for _, meta := range ins.Accounts {
		key := string(meta.PublicKey)

		_, isSigner := signers[key]
		if meta.IsSigner && !isSigner {
			return nil, solana.ErrMissingSigner
		}
		if meta.IsWritable && !tx.writable[key] {
			return nil, solana.ErrInvalidArgument
		}

		ctx.accounts = append(ctx.accounts, &BorrowedAccount{
			ctx:        ctx,
			key:        meta.PublicKey,
			account:    tx.ledger.borrow(key),
			isSigner:   meta.IsSigner && isSigner,
			isWritable: meta.IsWritable,
		})
	}

	return ctx, nil
}
