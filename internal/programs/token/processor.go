// Package token implements the SPL token program subset the escrow flows
// need, byte-compatible with the on-chain account layouts.
package token

import (
	"encoding/binary"
	"math/bits"

	"escrow-lab/internal/solana"
	"escrow-lab/internal/vm"
)

// Instruction tags.
const (
	InstructionInitializeMint     uint8 = 0
	InstructionInitializeAccount  uint8 = 1
	InstructionTransfer           uint8 = 3
	InstructionMintTo             uint8 = 7
	InstructionBurn               uint8 = 8
	InstructionCloseAccount       uint8 = 9
	InstructionFreezeAccount      uint8 = 10
	InstructionThawAccount        uint8 = 11
	InstructionTransferChecked    uint8 = 12
	InstructionInitializeAccount3 uint8 = 18
	InstructionInitializeMint2    uint8 = 20
)

var instructionNames = map[uint8]string{
	InstructionInitializeMint:     "InitializeMint",
	InstructionInitializeAccount:  "InitializeAccount",
	InstructionTransfer:           "Transfer",
	InstructionMintTo:             "MintTo",
	InstructionBurn:               "Burn",
	InstructionCloseAccount:       "CloseAccount",
	InstructionFreezeAccount:      "FreezeAccount",
	InstructionThawAccount:        "ThawAccount",
	InstructionTransferChecked:    "TransferChecked",
	InstructionInitializeAccount3: "InitializeAccount3",
	InstructionInitializeMint2:    "InitializeMint2",
}

var computeUnits = map[uint8]uint64{
	InstructionInitializeMint:     2920,
	InstructionInitializeAccount:  4527,
	InstructionTransfer:           4645,
	InstructionMintTo:             4538,
	InstructionBurn:               4753,
	InstructionCloseAccount:       2916,
	InstructionFreezeAccount:      4265,
	InstructionThawAccount:        4267,
	InstructionTransferChecked:    6200,
	InstructionInitializeAccount3: 4241,
	InstructionInitializeMint2:    2827,
}

// Program is the token program.
type Program struct{}

var (
	_ vm.Program       = Program{}
	_ vm.ComputeCoster = Program{}
)

func (Program) ID() solana.PublicKey { return solana.TokenProgramID }
func (Program) Name() string         { return "spl_token" }

// ComputeUnits returns the base cost of the instruction.
func (Program) ComputeUnits(data []byte) uint64 {
	if len(data) > 0 {
		if cu, ok := computeUnits[data[0]]; ok {
			return cu
		}
	}
	return vm.DefaultComputeUnits
}

// Process dispatches on the u8 instruction tag.
func (Program) Process(ctx vm.Context, data []byte) error {
	if len(data) == 0 {
		return vm.ErrInvalidInstructionData
	}
	tag, body := data[0], data[1:]
	name, ok := instructionNames[tag]
	if !ok {
		return vm.ErrInvalidInstructionData
	}
	ctx.Log("Instruction: %s", name)

	switch tag {
	case InstructionInitializeMint, InstructionInitializeMint2:
		decimals, authority, freeze, err := decodeInitializeMint(body)
		if err != nil {
			return err
		}
		return initializeMint(ctx, decimals, authority, freeze)
	case InstructionInitializeAccount:
		owner, err := ctx.Account(2)
		if err != nil {
			return err
		}
		return initializeAccount(ctx, owner.Key)
	case InstructionInitializeAccount3:
		if len(body) != 32 {
			return vm.ErrInvalidInstructionData
		}
		owner, _ := solana.PublicKeyFromBytes(body)
		return initializeAccount(ctx, owner)
	case InstructionTransfer:
		amount, err := decodeAmount(body, false)
		if err != nil {
			return err
		}
		return transfer(ctx, amount, nil)
	case InstructionTransferChecked:
		amount, err := decodeAmount(body, true)
		if err != nil {
			return err
		}
		decimals := body[8]
		return transfer(ctx, amount, &decimals)
	case InstructionMintTo:
		amount, err := decodeAmount(body, false)
		if err != nil {
			return err
		}
		return mintTo(ctx, amount)
	case InstructionBurn:
		amount, err := decodeAmount(body, false)
		if err != nil {
			return err
		}
		return burn(ctx, amount)
	case InstructionCloseAccount:
		return closeAccount(ctx)
	case InstructionFreezeAccount:
		return setFrozen(ctx, true)
	case InstructionThawAccount:
		return setFrozen(ctx, false)
	}
	return vm.ErrInvalidInstructionData
}

func decodeAmount(body []byte, checked bool) (uint64, error) {
	want := 8
	if checked {
		want = 9
	}
	if len(body) != want {
		return 0, vm.ErrInvalidInstructionData
	}
	return binary.LittleEndian.Uint64(body[:8]), nil
}

func decodeInitializeMint(body []byte) (uint8, solana.PublicKey, *solana.PublicKey, error) {
	if len(body) < 1+32+1 {
		return 0, solana.PublicKey{}, nil, vm.ErrInvalidInstructionData
	}
	decimals := body[0]
	authority, _ := solana.PublicKeyFromBytes(body[1:33])
	switch body[33] {
	case 0:
		return decimals, authority, nil, nil
	case 1:
		if len(body) != 1+32+1+32 {
			return 0, solana.PublicKey{}, nil, vm.ErrInvalidInstructionData
		}
		freeze, _ := solana.PublicKeyFromBytes(body[34:66])
		return decimals, authority, &freeze, nil
	default:
		return 0, solana.PublicKey{}, nil, vm.ErrInvalidInstructionData
	}
}

// checkOwned rejects accounts not owned by the token program.
func checkOwned(acct *vm.AccountInfo) error {
	if !acct.IsOwnedBy(solana.TokenProgramID) {
		return vm.ErrIncorrectProgramID
	}
	return nil
}

func loadMint(acct *vm.AccountInfo) (*Mint, error) {
	if err := checkOwned(acct); err != nil {
		return nil, err
	}
	return UnpackMint(acct.Data)
}

func loadAccount(acct *vm.AccountInfo) (*Account, error) {
	if err := checkOwned(acct); err != nil {
		return nil, err
	}
	return UnpackAccount(acct.Data)
}

// validateOwner checks that authority signed and matches expected.
func validateOwner(ctx vm.Context, expected solana.PublicKey, authority *vm.AccountInfo) error {
	if authority.Key != expected {
		return fail(ctx, ErrOwnerMismatch)
	}
	if !authority.IsSigner {
		return vm.ErrMissingRequiredSignature
	}
	return nil
}

func initializeMint(ctx vm.Context, decimals uint8, authority solana.PublicKey, freeze *solana.PublicKey) error {
	mintInfo, err := ctx.Account(0)
	if err != nil {
		return err
	}
	if err := checkOwned(mintInfo); err != nil {
		return err
	}
	mint, err := unpackMintUnchecked(mintInfo.Data)
	if err != nil {
		return err
	}
	if mint.IsInitialized {
		return fail(ctx, ErrAlreadyInUse)
	}
	if !ctx.Rent().IsExempt(mintInfo.Lamports, len(mintInfo.Data)) {
		return fail(ctx, ErrNotRentExempt)
	}
	mint.MintAuthority = &authority
	mint.Decimals = decimals
	mint.IsInitialized = true
	mint.FreezeAuthority = freeze
	copy(mintInfo.Data, mint.Pack())
	return nil
}

func initializeAccount(ctx vm.Context, owner solana.PublicKey) error {
	acctInfo, err := ctx.Account(0)
	if err != nil {
		return err
	}
	mintInfo, err := ctx.Account(1)
	if err != nil {
		return err
	}
	if err := checkOwned(acctInfo); err != nil {
		return err
	}
	acct, err := unpackAccountUnchecked(acctInfo.Data)
	if err != nil {
		return err
	}
	if acct.State != AccountUninitialized {
		return fail(ctx, ErrAlreadyInUse)
	}
	if !ctx.Rent().IsExempt(acctInfo.Lamports, len(acctInfo.Data)) {
		return fail(ctx, ErrNotRentExempt)
	}
	if !mintInfo.IsOwnedBy(solana.TokenProgramID) {
		return fail(ctx, ErrInvalidMint)
	}
	if _, err := UnpackMint(mintInfo.Data); err != nil {
		return fail(ctx, ErrInvalidMint)
	}

	acct.Mint = mintInfo.Key
	acct.Owner = owner
	acct.Amount = 0
	acct.Delegate = nil
	acct.DelegatedAmount = 0
	acct.State = AccountInitialized
	copy(acctInfo.Data, acct.Pack())
	return nil
}

// transfer moves tokens between accounts. decimals is set for TransferChecked,
// whose account list carries the mint at index 1.
func transfer(ctx vm.Context, amount uint64, decimals *uint8) error {
	idx := 0
	next := func() (*vm.AccountInfo, error) {
		ai, err := ctx.Account(idx)
		idx++
		return ai, err
	}

	srcInfo, err := next()
	if err != nil {
		return err
	}
	var mintInfo *vm.AccountInfo
	if decimals != nil {
		if mintInfo, err = next(); err != nil {
			return err
		}
	}
	dstInfo, err := next()
	if err != nil {
		return err
	}
	authority, err := next()
	if err != nil {
		return err
	}

	src, err := loadAccount(srcInfo)
	if err != nil {
		return err
	}
	dst, err := loadAccount(dstInfo)
	if err != nil {
		return err
	}
	if src.IsFrozen() || dst.IsFrozen() {
		return fail(ctx, ErrAccountFrozen)
	}
	if src.Amount < amount {
		return fail(ctx, ErrInsufficientFunds)
	}
	if src.Mint != dst.Mint {
		return fail(ctx, ErrMintMismatch)
	}
	if mintInfo != nil {
		if mintInfo.Key != src.Mint {
			return fail(ctx, ErrMintMismatch)
		}
		mint, err := loadMint(mintInfo)
		if err != nil {
			return err
		}
		if mint.Decimals != *decimals {
			return fail(ctx, ErrMintDecimalsMismatch)
		}
	}
	if err := validateOwner(ctx, src.Owner, authority); err != nil {
		return err
	}

	if srcInfo.Key == dstInfo.Key {
		return nil
	}
	sum, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return fail(ctx, ErrOverflow)
	}
	src.Amount -= amount
	dst.Amount = sum
	copy(srcInfo.Data, src.Pack())
	copy(dstInfo.Data, dst.Pack())
	return nil
}

func mintTo(ctx vm.Context, amount uint64) error {
	mintInfo, err := ctx.Account(0)
	if err != nil {
		return err
	}
	dstInfo, err := ctx.Account(1)
	if err != nil {
		return err
	}
	authority, err := ctx.Account(2)
	if err != nil {
		return err
	}

	dst, err := loadAccount(dstInfo)
	if err != nil {
		return err
	}
	if dst.IsFrozen() {
		return fail(ctx, ErrAccountFrozen)
	}
	if dst.Mint != mintInfo.Key {
		return fail(ctx, ErrMintMismatch)
	}
	mint, err := loadMint(mintInfo)
	if err != nil {
		return err
	}
	if mint.MintAuthority == nil {
		return fail(ctx, ErrFixedSupply)
	}
	if err := validateOwner(ctx, *mint.MintAuthority, authority); err != nil {
		return err
	}

	supply, carry := bits.Add64(mint.Supply, amount, 0)
	if carry != 0 {
		return fail(ctx, ErrOverflow)
	}
	balance, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return fail(ctx, ErrOverflow)
	}
	mint.Supply = supply
	dst.Amount = balance
	copy(mintInfo.Data, mint.Pack())
	copy(dstInfo.Data, dst.Pack())
	return nil
}

func burn(ctx vm.Context, amount uint64) error {
	srcInfo, err := ctx.Account(0)
	if err != nil {
		return err
	}
	mintInfo, err := ctx.Account(1)
	if err != nil {
		return err
	}
	authority, err := ctx.Account(2)
	if err != nil {
		return err
	}

	src, err := loadAccount(srcInfo)
	if err != nil {
		return err
	}
	if src.IsFrozen() {
		return fail(ctx, ErrAccountFrozen)
	}
	if src.Mint != mintInfo.Key {
		return fail(ctx, ErrMintMismatch)
	}
	mint, err := loadMint(mintInfo)
	if err != nil {
		return err
	}
	if src.Amount < amount {
		return fail(ctx, ErrInsufficientFunds)
	}
	if err := validateOwner(ctx, src.Owner, authority); err != nil {
		return err
	}

	src.Amount -= amount
	mint.Supply -= amount
	copy(srcInfo.Data, src.Pack())
	copy(mintInfo.Data, mint.Pack())
	return nil
}

func closeAccount(ctx vm.Context) error {
	srcInfo, err := ctx.Account(0)
	if err != nil {
		return err
	}
	dstInfo, err := ctx.Account(1)
	if err != nil {
		return err
	}
	authority, err := ctx.Account(2)
	if err != nil {
		return err
	}
	if srcInfo.Key == dstInfo.Key {
		return vm.ErrInvalidAccountData
	}

	src, err := loadAccount(srcInfo)
	if err != nil {
		return err
	}
	if src.IsNative == nil && src.Amount != 0 {
		return fail(ctx, ErrNonNativeHasBalance)
	}
	expected := src.Owner
	if src.CloseAuthority != nil {
		expected = *src.CloseAuthority
	}
	if src.IsFrozen() {
		return fail(ctx, ErrAccountFrozen)
	}
	if err := validateOwner(ctx, expected, authority); err != nil {
		return err
	}

	if err := vm.MoveLamports(srcInfo, dstInfo, srcInfo.Lamports); err != nil {
		return fail(ctx, ErrOverflow)
	}
	srcInfo.Data = nil
	srcInfo.Owner = solana.SystemProgramID
	return nil
}

func setFrozen(ctx vm.Context, freeze bool) error {
	acctInfo, err := ctx.Account(0)
	if err != nil {
		return err
	}
	mintInfo, err := ctx.Account(1)
	if err != nil {
		return err
	}
	authority, err := ctx.Account(2)
	if err != nil {
		return err
	}

	acct, err := loadAccount(acctInfo)
	if err != nil {
		return err
	}
	if acct.IsFrozen() == freeze {
		return fail(ctx, ErrInvalidState)
	}
	if acct.Mint != mintInfo.Key {
		return fail(ctx, ErrMintMismatch)
	}
	mint, err := loadMint(mintInfo)
	if err != nil {
		return err
	}
	if mint.FreezeAuthority == nil {
		return fail(ctx, ErrMintCannotFreeze)
	}
	if err := validateOwner(ctx, *mint.FreezeAuthority, authority); err != nil {
		return err
	}

	if freeze {
		acct.State = AccountFrozen
	} else {
		acct.State = AccountInitialized
	}
	copy(acctInfo.Data, acct.Pack())
	return nil
}
