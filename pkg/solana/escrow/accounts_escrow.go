package escrow

import (
	"bytes"
	"crypto/ed25519"
	"strconv"

	"github.com/mr-tron/base58/base58"

	"github.com/code-payments/escrow-program/pkg/solana"
	"github.com/code-payments/escrow-program/pkg/solana/binary"
)

// EscrowAccount is the persisted description of one pending trade. The
// layout is fixed width with no padding: discriminator, then the fields
// in declaration order, integers little-endian.
type EscrowAccount struct {
	Maker ed25519.PublicKey
	MintA ed25519.PublicKey
	MintB ed25519.PublicKey

	ReceiveAmount uint64
	Seed          uint64
	Bump          uint8
}

const EscrowAccountSize = (8 + // discriminator
	32 + // maker
	32 + // mint_a
	32 + // mint_b
	8 + // receive_amount
	8 + // seed
	1) // bump

var escrowAccountDiscriminator = []byte{31, 213, 123, 187, 186, 22, 218, 155}

func (obj *EscrowAccount) String() string {
	var maker, mintA, mintB string

	if obj.Maker != nil {
		maker = base58.Encode(obj.Maker)
	}
	if obj.MintA != nil {
		mintA = base58.Encode(obj.MintA)
	}
	if obj.MintB != nil {
		mintB = base58.Encode(obj.MintB)
	}

	return "EscrowAccount {" +
		"  maker='" + maker + "'" +
		", mint_a='" + mintA + "'" +
		", mint_b='" + mintB + "'" +
		", receive_amount='" + strconv.FormatUint(obj.ReceiveAmount, 10) + "'" +
		", seed='" + strconv.FormatUint(obj.Seed, 10) + "'" +
		", bump='" + strconv.Itoa(int(obj.Bump)) + "'" +
		"}"
}

func (obj *EscrowAccount) Marshal() []byte {
	data := make([]byte, EscrowAccountSize)

	var offset int
	binary.PutDiscriminator(data, escrowAccountDiscriminator, &offset)
	binary.PutKey32(data[offset:], obj.Maker, &offset)
	binary.PutKey32(data[offset:], obj.MintA, &offset)
	binary.PutKey32(data[offset:], obj.MintB, &offset)
	binary.PutUint64(data[offset:], obj.ReceiveAmount, &offset)
	binary.PutUint64(data[offset:], obj.Seed, &offset)
	binary.PutUint8(data[offset:], obj.Bump, &offset)

	return data
}

func (obj *EscrowAccount) Unmarshal(data []byte) error {
	if len(data) != EscrowAccountSize {
		return solana.ErrInvalidAccountData
	}

	var offset int
	var discriminator []byte

	binary.GetDiscriminator(data, &discriminator, &offset)
	if !bytes.Equal(discriminator, escrowAccountDiscriminator) {
		return solana.ErrInvalidAccountData
	}

	binary.GetKey32(data[offset:], &obj.Maker, &offset)
	binary.GetKey32(data[offset:], &obj.MintA, &offset)
	binary.GetKey32(data[offset:], &obj.MintB, &offset)
	binary.GetUint64(data[offset:], &obj.ReceiveAmount, &offset)
	binary.GetUint64(data[offset:], &obj.Seed, &offset)
	binary.GetUint8(data[offset:], &obj.Bump, &offset)

	return nil
}
