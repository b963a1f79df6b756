package runtime

// Rent models the host's storage pricing. Accounts funded to at least
// MinimumBalance for their data size are exempt from collection; the
// ledger only deals in exempt accounts.
//
// Reference: https://github.com/solana-labs/solana/blob/master/sdk/program/src/rent.rs
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  uint64
}

const accountStorageOverhead = 128

// DefaultRent returns the rent parameters used by mainnet.
func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: 3480,
		ExemptionThreshold:  2,
	}
}

// MinimumBalance returns the smallest balance exempting an account of
// the given data size from rent collection.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	return (accountStorageOverhead + uint64(dataLen)) * r.LamportsPerByteYear * r.ExemptionThreshold
}
