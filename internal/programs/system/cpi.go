package system

import (
	"escrow-lab/internal/solana"
	"escrow-lab/internal/vm"
)

// CreatePDAAccount funds, allocates and assigns a program-derived account
// from inside a calling program. A prefunded address is topped up to the rent
// minimum instead of failing CreateAccount.
func CreatePDAAccount(ctx vm.Context, payer, target *vm.AccountInfo, space int, owner solana.PublicKey, seeds [][]byte) error {
	required := ctx.Rent().MinimumBalance(space)
	if target.Lamports == 0 {
		return ctx.InvokeSigned(CreateAccount(payer.Key, target.Key, required, uint64(space), owner), seeds)
	}

	if target.Lamports < required {
		if err := ctx.Invoke(Transfer(payer.Key, target.Key, required-target.Lamports)); err != nil {
			return err
		}
	}
	if err := ctx.InvokeSigned(Allocate(target.Key, uint64(space)), seeds); err != nil {
		return err
	}
	return ctx.InvokeSigned(Assign(target.Key, owner), seeds)
}
