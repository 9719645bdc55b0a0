package escrow

import "escrow-lab/internal/anchor"

// Program error codes.
var (
	ErrInvalidAmount = anchor.NewError(6000, "InvalidAmount", "Amount must be greater than zero")
	ErrSameMint      = anchor.NewError(6001, "SameMint", "Mint A and mint B must be different")
)
