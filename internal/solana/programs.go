package solana

import "fmt"

// Well-known program addresses.
var (
	SystemProgramID          = MustPublicKey("11111111111111111111111111111111")
	TokenProgramID           = MustPublicKey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = MustPublicKey("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	NativeLoaderID           = MustPublicKey("NativeLoader1111111111111111111111111111111")
	SysvarRentID             = MustPublicKey("SysvarRent111111111111111111111111111111111")
)

// FindAssociatedTokenAddress returns the canonical token account of wallet for mint.
func FindAssociatedTokenAddress(wallet, mint PublicKey) (PublicKey, uint8, error) {
	addr, bump, err := FindProgramAddress(
		[][]byte{wallet[:], TokenProgramID[:], mint[:]},
		AssociatedTokenProgramID,
	)
	if err != nil {
		return PublicKey{}, 0, fmt.Errorf("associated token address: %w", err)
	}
	return addr, bump, nil
}

// MustAssociatedTokenAddress is FindAssociatedTokenAddress without the bump; it
// panics on derivation failure, which cannot happen for 32-byte inputs in practice.
func MustAssociatedTokenAddress(wallet, mint PublicKey) PublicKey {
	addr, _, err := FindAssociatedTokenAddress(wallet, mint)
	if err != nil {
		panic(err)
	}
	return addr
}
