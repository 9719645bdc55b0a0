package anchor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escrow-lab/internal/solana"
	"escrow-lab/internal/vm"
)

// logContext records logs; everything else is unused by these tests.
type logContext struct {
	vm.Context
	logs []string
}

func (c *logContext) Log(format string, args ...interface{}) {
	c.logs = append(c.logs, "Program log: "+fmt.Sprintf(format, args...))
}

func (c *logContext) LogData(data ...[]byte) {
	for _, d := range data {
		c.logs = append(c.logs, ProgramDataPrefix+base64.StdEncoding.EncodeToString(d))
	}
}

type sample struct {
	Seed    uint64
	Owner   solana.PublicKey
	Receive uint64
	Bump    uint8
}

func (sample) EventName() string { return "Sample" }

type sampleArgs struct {
	Seed   uint64
	Amount uint64
}

func (a sampleArgs) Data() ([]byte, error) { return EncodeInstruction("deposit", a) }

type sampleAccounts struct {
	Payer solana.PublicKey
	Vault solana.PublicKey
}

func (a sampleAccounts) ToAccountMetas() []solana.AccountMeta {
	return []solana.AccountMeta{solana.WritableSigner(a.Payer), solana.Writable(a.Vault)}
}

func TestDiscriminators(t *testing.T) {
	tests := []struct {
		got  Discriminator
		want string
	}{
		{InstructionDiscriminator("make"), "8ae3e84ddfa660c5"},
		{InstructionDiscriminator("take"), "95e23468068ee627"},
		{InstructionDiscriminator("refund"), "0260b7fb3fd02e2e"},
		{AccountDiscriminator("Escrow"), "1fd57bbbba16da9b"},
		{EventDiscriminator("EscrowMade"), "2de14a8192393d62"},
	}
	for _, tt := range tests {
		if tt.got.String() != tt.want {
			t.Errorf("discriminator = %s, want %s", tt.got, tt.want)
		}
	}

	d := InstructionDiscriminator("make")
	if !d.Matches([]byte{138, 227, 232, 77, 223, 166, 96, 197, 1}) {
		t.Error("Matches should accept data with the discriminator prefix")
	}
	if d.Matches(d[:7]) {
		t.Error("Matches should reject short data")
	}
}

func TestEncodeInstruction(t *testing.T) {
	data, err := EncodeInstruction("make", sampleArgs{Seed: 42, Amount: 7})
	require.NoError(t, err)
	require.Len(t, data, 8+16)
	assert.Equal(t, InstructionDiscriminator("make").Bytes(), data[:8])
	assert.Equal(t, []byte{42, 0, 0, 0, 0, 0, 0, 0}, data[8:16])
	assert.Equal(t, []byte{7, 0, 0, 0, 0, 0, 0, 0}, data[16:])

	bare, err := EncodeInstruction("take", nil)
	require.NoError(t, err)
	assert.Equal(t, InstructionDiscriminator("take").Bytes(), bare)
}

func TestEncodeDecodeAccount(t *testing.T) {
	in := sample{Seed: 9, Owner: solana.NewKeypair().PublicKey(), Receive: 500, Bump: 254}

	data, err := EncodeAccount("Sample", &in)
	require.NoError(t, err)
	assert.Len(t, data, 8+8+32+8+1)

	var out sample
	require.NoError(t, DecodeAccount(data, "Sample", &out))
	assert.Equal(t, in, out)

	assert.ErrorIs(t, DecodeAccount(data, "Other", &out), ErrAccountDiscriminatorMismatch)
	assert.ErrorIs(t, DecodeAccount(data[:4], "Sample", &out), ErrAccountDiscriminatorNotFound)
}

func TestLoadAccount(t *testing.T) {
	program := solana.NewKeypair().PublicKey()
	data, err := EncodeAccount("Sample", sample{Seed: 1})
	require.NoError(t, err)

	info := &vm.AccountInfo{Account: &vm.Account{Lamports: 1, Data: data, Owner: program}}
	var out sample
	require.NoError(t, LoadAccount(info, program, "Sample", "sample", &out))
	assert.Equal(t, uint64(1), out.Seed)

	err = LoadAccount(info, solana.TokenProgramID, "Sample", "sample", &out)
	assert.ErrorIs(t, err, ErrAccountOwnedByWrongProgram)
	var ae *Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "sample", ae.Account)

	empty := &vm.AccountInfo{Account: &vm.Account{Owner: solana.SystemProgramID}}
	assert.ErrorIs(t, LoadAccount(empty, program, "Sample", "sample", &out), ErrAccountNotInitialized)
}

func TestEmitAndDecodeEvent(t *testing.T) {
	ctx := &logContext{}
	ev := sample{Seed: 3, Owner: solana.NewKeypair().PublicKey(), Receive: 11, Bump: 1}
	require.NoError(t, Emit(ctx, ev))
	require.Len(t, ctx.logs, 1)

	var got sample
	ok, err := DecodeEvent(ctx.logs[0], &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ev, got)

	ok, err = DecodeEvent("Program log: Instruction: Make", &got)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestFail(t *testing.T) {
	ctx := &logContext{}

	err := Fail(ctx, ErrConstraintSeeds.WithAccount("escrow"))
	assert.Equal(t, vm.CustomError(2006), err)
	assert.Equal(t, []string{
		"Program log: AnchorError caused by account: escrow. Error Code: ConstraintSeeds. Error Number: 2006. Error Message: A seeds constraint was violated.",
	}, ctx.logs)

	custom := NewError(6000, "InvalidAmount", "Amount must be greater than zero")
	assert.Equal(t, vm.CustomError(6000), Fail(ctx, custom))
	assert.Contains(t, ctx.logs[1], "AnchorError occurred. Error Code: InvalidAmount. Error Number: 6000.")

	assert.Equal(t, vm.ErrInvalidAccountData, Fail(ctx, vm.ErrInvalidAccountData))

	code, ok := Code(fmt.Errorf("wrapped: %w", vm.CustomError(2006)))
	require.True(t, ok)
	assert.Equal(t, uint32(2006), code)
}

func TestBuilder(t *testing.T) {
	program := solana.NewKeypair().PublicKey()
	accounts := sampleAccounts{Payer: solana.NewKeypair().PublicKey(), Vault: solana.NewKeypair().PublicKey()}

	ix, err := NewBuilder(program).Accounts(accounts).Args(sampleArgs{Seed: 1, Amount: 2}).Instruction()
	require.NoError(t, err)
	assert.Equal(t, program, ix.ProgramID)
	assert.Equal(t, accounts.ToAccountMetas(), ix.Accounts)
	assert.Equal(t, InstructionDiscriminator("deposit").Bytes(), ix.Data[:8])

	_, err = NewBuilder(program).Args(sampleArgs{}).Instruction()
	assert.ErrorIs(t, err, ErrMissingAccounts)

	_, err = NewBuilder(program).Accounts(accounts).Instruction()
	assert.ErrorIs(t, err, ErrMissingArgs)
}
