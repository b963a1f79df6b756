package solana

import (
	"fmt"

	"github.com/pkg/errors"
)

// Instruction error taxonomy. Every failure surfaced by a program or by
// the runtime maps onto exactly one of these values; the instruction
// that produced it is rolled back in full, so callers never observe
// partial effects alongside an error.
//
// The set mirrors the upstream InstructionError kinds this codebase
// actually produces.
//
// Reference: https://github.com/solana-labs/solana/blob/4e2754341514cd181ae3f373cc2548bd22e918b8/sdk/program/src/instruction.rs#L23
var (
	// ErrInvalidInstructionData indicates the instruction payload was
	// missing, undersized, or otherwise unparseable.
	ErrInvalidInstructionData = errors.New("invalid instruction data")

	// ErrInvalidAccountData indicates an account's contents are
	// malformed or mismatched for the operation (e.g. wrong mint).
	ErrInvalidAccountData = errors.New("invalid account data")

	// ErrInvalidAccountOwner indicates an account is not owned by the
	// expected program or authority, including derived-address
	// mismatches.
	ErrInvalidAccountOwner = errors.New("invalid account owner")

	// ErrInsufficientFunds indicates a balance too low for the
	// requested transfer or allocation.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountAlreadyInUse indicates an allocation collision: the
	// target address already holds a live account.
	ErrAccountAlreadyInUse = errors.New("account already in use")

	// ErrMissingSigner indicates a required signature (or seed proof)
	// was not presented.
	ErrMissingSigner = errors.New("missing required signature")

	// ErrMissingAccount indicates a referenced account does not exist,
	// e.g. a record that has already been closed.
	ErrMissingAccount = errors.New("missing account")

	// ErrInvalidSeeds indicates a seed tuple did not derive the
	// supplied address.
	ErrInvalidSeeds = errors.New("invalid seeds")

	// ErrInvalidArgument indicates a violation of the declared account
	// capabilities, e.g. writing through a readonly handle.
	ErrInvalidArgument = errors.New("invalid argument")

	ErrIncorrectProgram     = errors.New("incorrect program")
	ErrIncorrectInstruction = errors.New("incorrect instruction")
)

// CustomError is a numerical error defined by a non-system program.
type CustomError uint32

func (c CustomError) Error() string {
	return fmt.Sprintf("custom program error: %#x", uint32(c))
}
