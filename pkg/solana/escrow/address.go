package escrow

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/code-payments/escrow-program/pkg/solana"
	"github.com/code-payments/escrow-program/pkg/solana/token"
)

var escrowStatePrefix = []byte("escrow")

type GetEscrowStateAddressArgs struct {
	Maker ed25519.PublicKey
	Seed  uint64
}

// GetEscrowStateAddress derives the record address for a (maker, seed)
// pair. At most one live record can exist at the derived address; once
// closed, the same pair derives the same address for a fresh trade.
func GetEscrowStateAddress(args *GetEscrowStateAddressArgs) (ed25519.PublicKey, uint8, error) {
	seedBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(seedBytes, args.Seed)

	return solana.FindProgramAddressAndBump(
		PROGRAM_ID,
		escrowStatePrefix,
		args.Maker,
		seedBytes,
	)
}

type GetVaultAddressArgs struct {
	Escrow       ed25519.PublicKey
	MintA        ed25519.PublicKey
	TokenProgram ed25519.PublicKey
}

// GetVaultAddress returns the custody account address: the escrow
// record's associated token account for the offered mint. Its authority
// is the derived record address, so only this program can move the
// balance out.
func GetVaultAddress(args *GetVaultAddressArgs) (ed25519.PublicKey, error) {
	return token.GetAssociatedAccountForProgram(args.Escrow, args.MintA, args.TokenProgram)
}

// getSignerSeeds returns the seed tuple proving authority over the
// record address (and thereby the vault) without a private key.
func getSignerSeeds(maker ed25519.PublicKey, seed uint64, bump uint8) [][]byte {
	seedBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(seedBytes, seed)

	return [][]byte{
		escrowStatePrefix,
		maker,
		seedBytes,
		{bump},
	}
}
