package escrow

import (
	"encoding/binary"

	"escrow-lab/internal/anchor"
	"escrow-lab/internal/solana"
)

// EscrowSeed prefixes every escrow address derivation.
const EscrowSeed = "escrow"

// EscrowSize is the escrow account length: discriminator, seed, three keys,
// receive amount and bump.
const EscrowSize = anchor.DiscriminatorSize + 8 + 3*32 + 8 + 1

const escrowAccountName = "Escrow"

// Escrow is the on-chain state of an open offer.
type Escrow struct {
	Seed    uint64
	Maker   solana.PublicKey
	MintA   solana.PublicKey
	MintB   solana.PublicKey
	Receive uint64
	Bump    uint8
}

// Pack encodes the account with its discriminator.
func (e *Escrow) Pack() ([]byte, error) {
	return anchor.EncodeAccount(escrowAccountName, e)
}

// UnpackEscrow decodes escrow account data.
func UnpackEscrow(data []byte) (*Escrow, error) {
	var e Escrow
	if err := anchor.DecodeAccount(data, escrowAccountName, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// SignerSeeds are the seeds, bump included, the program signs with for the
// escrow address.
func (e *Escrow) SignerSeeds() [][]byte {
	return append(escrowSeeds(e.Maker, e.Seed), []byte{e.Bump})
}

func escrowSeeds(maker solana.PublicKey, seed uint64) [][]byte {
	le := make([]byte, 8)
	binary.LittleEndian.PutUint64(le, seed)
	return [][]byte{[]byte(EscrowSeed), maker.Bytes(), le}
}

// FindEscrowAddress derives the escrow address of maker and seed under
// ProgramID.
func FindEscrowAddress(maker solana.PublicKey, seed uint64) (solana.PublicKey, uint8, error) {
	return FindEscrowAddressFor(ProgramID, maker, seed)
}

// FindEscrowAddressFor derives the escrow address under programID.
func FindEscrowAddressFor(programID, maker solana.PublicKey, seed uint64) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(escrowSeeds(maker, seed), programID)
}

// FindVaultAddress returns the associated token account of escrow for mintA.
func FindVaultAddress(escrow, mintA solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(escrow, mintA)
	return addr, err
}
