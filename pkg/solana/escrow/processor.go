package escrow

import (
	"github.com/sirupsen/logrus"

	"github.com/code-payments/escrow-program/pkg/solana"
	"github.com/code-payments/escrow-program/pkg/solana/runtime"
)

// Processor is the program entrypoint. The first payload byte selects
// the state transition; everything after it is handler-specific.
type Processor struct {
	log *logrus.Entry
}

func NewProcessor() *Processor {
	return &Processor{
		log: logrus.StandardLogger().WithField("type", "solana/escrow/processor"),
	}
}

func (p *Processor) Execute(ctx *runtime.InstructionContext) error {
	data := ctx.Data()
	if len(data) == 0 {
		return solana.ErrInvalidInstructionData
	}

	switch Command(data[0]) {
	case CommandMake:
		return p.processMake(ctx, data[1:])
	case CommandTake:
		return p.processTake(ctx)
	case CommandRefund:
		return p.processRefund(ctx)
	default:
		return solana.ErrInvalidInstructionData
	}
}
