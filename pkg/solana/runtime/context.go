package runtime

import (
	"crypto/ed25519"

	"github.com/code-payments/escrow-program/pkg/solana"
)

const maxInvokeDepth = 4

// InstructionContext is the execution context handed to a processor:
// the invoked program, its data payload, and the positional account
// handles with their granted capabilities.
type InstructionContext struct {
	tx       *transaction
	program  ed25519.PublicKey
	data     []byte
	accounts []*BorrowedAccount
	depth    int
}

func (c *InstructionContext) Program() ed25519.PublicKey {
	return c.program
}

func (c *InstructionContext) Data() []byte {
	return c.data
}

func (c *InstructionContext) NumAccounts() int {
	return len(c.accounts)
}

// Account returns the handle at the given position of the instruction's
// account list.
func (c *InstructionContext) Account(index int) (*BorrowedAccount, error) {
	if index >= len(c.accounts) {
		return nil, solana.ErrInvalidInstructionData
	}
	return c.accounts[index], nil
}

// MinimumBalance exposes the host rent model to processors.
func (c *InstructionContext) MinimumBalance(dataLen int) uint64 {
	return c.tx.ledger.rent.MinimumBalance(dataLen)
}

// Invoke executes an inner instruction. The caller's signer privileges
// propagate to the inner account list.
func (c *InstructionContext) Invoke(ins solana.Instruction) error {
	return c.InvokeSigned(ins)
}

// InvokeSigned executes an inner instruction with additional
// seed-derived authority proofs. Each seed tuple must re-derive, under
// the calling program, an address referenced by the inner instruction;
// that address is treated as having signed the inner instruction only.
func (c *InstructionContext) InvokeSigned(ins solana.Instruction, seedGroups ...[][]byte) error {
	if c.depth >= maxInvokeDepth {
		return solana.ErrInvalidArgument
	}

	signers := make(map[string]struct{})
	for _, account := range c.accounts {
		if account.isSigner {
			signers[string(account.key)] = struct{}{}
		}
	}
	for _, seeds := range seedGroups {
		derived, err := solana.CreateProgramAddress(c.program, seeds...)
		if err != nil {
			return solana.ErrInvalidSeeds
		}
		signers[string(derived)] = struct{}{}
	}

	if !c.tx.contains(ins.Program) {
		return solana.ErrMissingAccount
	}
	for _, meta := range ins.Accounts {
		if !c.tx.contains(meta.PublicKey) {
			return solana.ErrMissingAccount
		}
	}

	inner, err := c.tx.newContext(ins, signers, c.depth+1)
	if err != nil {
		return err
	}
	return inner.process()
}

func (c *InstructionContext) process() error {
	processor, ok := c.tx.ledger.processors[string(c.program)]
	if !ok {
		return solana.ErrIncorrectProgram
	}
	return processor.Execute(c)
}

// BorrowedAccount is an account handle scoped to one instruction. Reads
// are always permitted; mutation requires the writable capability, and
// debits, data writes, and owner changes additionally require the
// executing program to own the account.
type BorrowedAccount struct {
	ctx        *InstructionContext
	key        ed25519.PublicKey
	account    *Account
	isSigner   bool
	isWritable bool
}

func (b *BorrowedAccount) Key() ed25519.PublicKey {
	return b.key
}

func (b *BorrowedAccount) Owner() ed25519.PublicKey {
	return b.account.Owner
}

func (b *BorrowedAccount) Lamports() uint64 {
	return b.account.Lamports
}

// Data returns a copy of the account data; mutations go through SetData.
func (b *BorrowedAccount) Data() []byte {
	data := make([]byte, len(b.account.Data))
	copy(data, b.account.Data)
	return data
}

func (b *BorrowedAccount) DataLen() int {
	return len(b.account.Data)
}

func (b *BorrowedAccount) IsSigner() bool {
	return b.isSigner
}

func (b *BorrowedAccount) IsWritable() bool {
	return b.isWritable
}

func (b *BorrowedAccount) IsAllocated() bool {
	return b.account.IsAllocated()
}

func (b *BorrowedAccount) ownedByProgram() bool {
	return string(b.account.Owner) == string(b.ctx.program)
}

func (b *BorrowedAccount) SetLamports(lamports uint64) error {
	if !b.isWritable {
		return solana.ErrInvalidArgument
	}
	if lamports < b.account.Lamports && !b.ownedByProgram() {
		return solana.ErrInvalidAccountOwner
	}
	b.account.Lamports = lamports
	return nil
}

func (b *BorrowedAccount) SetData(data []byte) error {
	if !b.isWritable {
		return solana.ErrInvalidArgument
	}
	if !b.ownedByProgram() {
		return solana.ErrInvalidAccountOwner
	}
	b.account.Data = make([]byte, len(data))
	copy(b.account.Data, data)
	return nil
}

func (b *BorrowedAccount) SetOwner(owner ed25519.PublicKey) error {
	if !b.isWritable {
		return solana.ErrInvalidArgument
	}
	if !b.ownedByProgram() {
		return solana.ErrInvalidAccountOwner
	}
	b.account.Owner = make(ed25519.PublicKey, len(owner))
	copy(b.account.Owner, owner)
	return nil
}
