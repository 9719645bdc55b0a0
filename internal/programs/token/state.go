package token

import (
	"encoding/binary"

	"escrow-lab/internal/solana"
	"escrow-lab/internal/vm"
)

// Packed sizes of token program accounts.
const (
	MintSize    = 82
	AccountSize = 165
)

// AccountState is the lifecycle state of a token account.
type AccountState uint8

const (
	AccountUninitialized AccountState = iota
	AccountInitialized
	AccountFrozen
)

// Mint describes a token type.
type Mint struct {
	MintAuthority   *solana.PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *solana.PublicKey
}

// Account holds a balance of one mint for one owner.
type Account struct {
	Mint            solana.PublicKey
	Owner           solana.PublicKey
	Amount          uint64
	Delegate        *solana.PublicKey
	State           AccountState
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  *solana.PublicKey
}

// IsFrozen reports whether transfers out of and into the account are blocked.
func (a *Account) IsFrozen() bool { return a.State == AccountFrozen }

// UnpackMint decodes an initialized mint.
func UnpackMint(data []byte) (*Mint, error) {
	m, err := unpackMintUnchecked(data)
	if err != nil {
		return nil, err
	}
	if !m.IsInitialized {
		return nil, vm.ErrUninitializedAccount
	}
	return m, nil
}

func unpackMintUnchecked(data []byte) (*Mint, error) {
	if len(data) != MintSize {
		return nil, vm.ErrInvalidAccountData
	}
	m := &Mint{
		Supply:        binary.LittleEndian.Uint64(data[36:44]),
		Decimals:      data[44],
		IsInitialized: data[45] == 1,
	}
	var err error
	if m.MintAuthority, err = readOptionKey(data[0:36]); err != nil {
		return nil, err
	}
	if m.FreezeAuthority, err = readOptionKey(data[46:82]); err != nil {
		return nil, err
	}
	if data[45] > 1 {
		return nil, vm.ErrInvalidAccountData
	}
	return m, nil
}

// Pack encodes the mint into its 82-byte layout.
func (m *Mint) Pack() []byte {
	data := make([]byte, MintSize)
	writeOptionKey(data[0:36], m.MintAuthority)
	binary.LittleEndian.PutUint64(data[36:44], m.Supply)
	data[44] = m.Decimals
	if m.IsInitialized {
		data[45] = 1
	}
	writeOptionKey(data[46:82], m.FreezeAuthority)
	return data
}

// UnpackAccount decodes an initialized token account.
func UnpackAccount(data []byte) (*Account, error) {
	a, err := unpackAccountUnchecked(data)
	if err != nil {
		return nil, err
	}
	if a.State == AccountUninitialized {
		return nil, vm.ErrUninitializedAccount
	}
	return a, nil
}

func unpackAccountUnchecked(data []byte) (*Account, error) {
	if len(data) != AccountSize {
		return nil, vm.ErrInvalidAccountData
	}
	a := &Account{
		Amount:          binary.LittleEndian.Uint64(data[64:72]),
		State:           AccountState(data[108]),
		DelegatedAmount: binary.LittleEndian.Uint64(data[121:129]),
	}
	copy(a.Mint[:], data[0:32])
	copy(a.Owner[:], data[32:64])
	if a.State > AccountFrozen {
		return nil, vm.ErrInvalidAccountData
	}
	var err error
	if a.Delegate, err = readOptionKey(data[72:108]); err != nil {
		return nil, err
	}
	switch binary.LittleEndian.Uint32(data[109:113]) {
	case 0:
	case 1:
		v := binary.LittleEndian.Uint64(data[113:121])
		a.IsNative = &v
	default:
		return nil, vm.ErrInvalidAccountData
	}
	if a.CloseAuthority, err = readOptionKey(data[129:165]); err != nil {
		return nil, err
	}
	return a, nil
}

// Pack encodes the account into its 165-byte layout.
func (a *Account) Pack() []byte {
	data := make([]byte, AccountSize)
	copy(data[0:32], a.Mint[:])
	copy(data[32:64], a.Owner[:])
	binary.LittleEndian.PutUint64(data[64:72], a.Amount)
	writeOptionKey(data[72:108], a.Delegate)
	data[108] = byte(a.State)
	if a.IsNative != nil {
		binary.LittleEndian.PutUint32(data[109:113], 1)
		binary.LittleEndian.PutUint64(data[113:121], *a.IsNative)
	}
	binary.LittleEndian.PutUint64(data[121:129], a.DelegatedAmount)
	writeOptionKey(data[129:165], a.CloseAuthority)
	return data
}

// readOptionKey decodes a COption<Pubkey>: u32 tag then 32 bytes.
func readOptionKey(b []byte) (*solana.PublicKey, error) {
	switch binary.LittleEndian.Uint32(b[0:4]) {
	case 0:
		return nil, nil
	case 1:
		var pk solana.PublicKey
		copy(pk[:], b[4:36])
		return &pk, nil
	default:
		return nil, vm.ErrInvalidAccountData
	}
}

func writeOptionKey(b []byte, pk *solana.PublicKey) {
	if pk == nil {
		return
	}
	binary.LittleEndian.PutUint32(b[0:4], 1)
	copy(b[4:36], pk[:])
}

// IsInitializedAccount reports whether data holds an initialized token account.
func IsInitializedAccount(data []byte) bool {
	return len(data) == AccountSize && data[108] != byte(AccountUninitialized)
}
