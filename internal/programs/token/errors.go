package token

import "escrow-lab/internal/vm"

// Token program error codes.
const (
	ErrNotRentExempt        = vm.CustomError(0)
	ErrInsufficientFunds    = vm.CustomError(1)
	ErrInvalidMint          = vm.CustomError(2)
	ErrMintMismatch         = vm.CustomError(3)
	ErrOwnerMismatch        = vm.CustomError(4)
	ErrFixedSupply          = vm.CustomError(5)
	ErrAlreadyInUse         = vm.CustomError(6)
	ErrUninitializedState   = vm.CustomError(9)
	ErrNonNativeHasBalance  = vm.CustomError(11)
	ErrInvalidState         = vm.CustomError(13)
	ErrOverflow             = vm.CustomError(14)
	ErrMintCannotFreeze     = vm.CustomError(16)
	ErrAccountFrozen        = vm.CustomError(17)
	ErrMintDecimalsMismatch = vm.CustomError(18)
)

var errorMessages = map[vm.CustomError]string{
	ErrNotRentExempt:        "Lamport balance below rent-exempt threshold",
	ErrInsufficientFunds:    "Insufficient funds",
	ErrInvalidMint:          "Invalid Mint",
	ErrMintMismatch:         "Account not associated with this Mint",
	ErrOwnerMismatch:        "Owner does not match",
	ErrFixedSupply:          "Fixed supply",
	ErrAlreadyInUse:         "Already in use",
	ErrUninitializedState:   "State is uninitialized",
	ErrNonNativeHasBalance:  "Non-native account can only be closed if its balance is zero",
	ErrInvalidState:         "State is invalid for requested operation",
	ErrOverflow:             "Operation overflowed",
	ErrMintCannotFreeze:     "This token mint cannot freeze accounts",
	ErrAccountFrozen:        "Account is frozen",
	ErrMintDecimalsMismatch: "The provided decimals value different from the Mint decimals",
}

// fail logs the SPL error message and returns the code.
func fail(ctx vm.Context, code vm.CustomError) error {
	if msg, ok := errorMessages[code]; ok {
		ctx.Log("Error: %s", msg)
	}
	return code
}
