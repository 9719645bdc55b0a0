package svm

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escrow-lab/internal/programs/system"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/vm"
)

const sol = 1_000_000_000

type testProgram struct {
	id solana.PublicKey
	fn func(ctx vm.Context, data []byte) error
}

func (p testProgram) ID() solana.PublicKey { return p.id }
func (p testProgram) Name() string         { return "test_program" }
func (p testProgram) Process(ctx vm.Context, data []byte) error {
	return p.fn(ctx, data)
}

func newTestProgram(fn func(ctx vm.Context, data []byte) error) testProgram {
	return testProgram{id: solana.NewKeypair().PublicKey(), fn: fn}
}

func fundedKeypair(t *testing.T, s *SVM, lamports uint64) *solana.Keypair {
	t.Helper()
	kp := solana.NewKeypair()
	_, err := s.Airdrop(kp.PublicKey(), lamports)
	require.NoError(t, err)
	return kp
}

func send(t *testing.T, s *SVM, payer *solana.Keypair, ixs []solana.Instruction, signers ...*solana.Keypair) (TransactionMetadata, error) {
	t.Helper()
	tx, err := solana.NewSignedTransaction(ixs, payer, signers, s.LatestBlockhash())
	require.NoError(t, err)
	return s.SendTransaction(tx)
}

func TestNew_RegistersBuiltinPrograms(t *testing.T) {
	s := New()

	for _, id := range []solana.PublicKey{
		solana.SystemProgramID,
		solana.TokenProgramID,
		solana.AssociatedTokenProgramID,
	} {
		acct, ok := s.GetAccount(id)
		require.True(t, ok, "program account %s", id)
		assert.True(t, acct.Executable)
		assert.Equal(t, solana.NativeLoaderID, acct.Owner)

		_, ok = s.Program(id)
		assert.True(t, ok)
	}
}

func TestMinimumBalanceForRentExemption(t *testing.T) {
	s := New()

	assert.Equal(t, uint64(890_880), s.MinimumBalanceForRentExemption(0))
	assert.Equal(t, uint64(2_039_280), s.MinimumBalanceForRentExemption(165))
	assert.Equal(t, uint64((128+82)*3480*2), s.MinimumBalanceForRentExemption(82))
}

func TestAirdrop(t *testing.T) {
	s := New()
	to := solana.NewKeypair().PublicKey()

	sig, err := s.Airdrop(to, 2*sol)
	require.NoError(t, err)
	assert.Equal(t, uint64(2*sol), s.Balance(to))

	ptx, ok := s.GetTransaction(sig)
	require.True(t, ok)
	assert.NoError(t, ptx.Err)

	// An identical airdrop gets a fresh blockhash instead of colliding.
	slot := s.Slot()
	_, err = s.Airdrop(to, 2*sol)
	require.NoError(t, err)
	assert.Equal(t, uint64(4*sol), s.Balance(to))
	assert.Equal(t, slot+1, s.Slot())
}

func TestAirdrop_Overflow(t *testing.T) {
	s := New()
	to := solana.NewKeypair().PublicKey()
	s.SetAccount(to, &vm.Account{Lamports: math.MaxUint64 - 10, Owner: solana.SystemProgramID})

	_, err := s.Airdrop(to, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, vm.ErrArithmeticOverflow)
	assert.Equal(t, uint64(math.MaxUint64-10), s.Balance(to))
}

func TestSendTransaction_Transfer(t *testing.T) {
	s := New()
	payer := fundedKeypair(t, s, 10*sol)
	to := solana.NewKeypair().PublicKey()

	meta, err := send(t, s, payer, []solana.Instruction{system.Transfer(payer.PublicKey(), to, sol)})
	require.NoError(t, err)

	assert.Equal(t, uint64(10*sol-sol-5000), s.Balance(payer.PublicKey()))
	assert.Equal(t, uint64(sol), s.Balance(to))
	assert.Equal(t, uint64(5000), meta.Fee)
	assert.Equal(t, uint64(150), meta.ComputeUnitsConsumed)
	assert.Equal(t, []string{
		"Program 11111111111111111111111111111111 invoke [1]",
		"Program 11111111111111111111111111111111 success",
	}, meta.Logs)
	assert.Equal(t, []uint64{10 * sol, 0, s.Balance(solana.SystemProgramID)}, meta.PreBalances)
	assert.Equal(t, []uint64{10*sol - sol - 5000, sol, s.Balance(solana.SystemProgramID)}, meta.PostBalances)

	ptx, ok := s.GetTransaction(meta.Signature)
	require.True(t, ok)
	assert.Equal(t, meta.Signature, ptx.Meta.Signature)
}

func TestSendTransaction_AlreadyProcessed(t *testing.T) {
	s := New()
	payer := fundedKeypair(t, s, 10*sol)
	tx, err := solana.NewSignedTransaction(
		[]solana.Instruction{system.Transfer(payer.PublicKey(), solana.NewKeypair().PublicKey(), sol)},
		payer, nil, s.LatestBlockhash(),
	)
	require.NoError(t, err)

	_, err = s.SendTransaction(tx)
	require.NoError(t, err)

	_, err = s.SendTransaction(tx)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestSendTransaction_BlockhashExpiry(t *testing.T) {
	s := New()
	payer := fundedKeypair(t, s, 10*sol)
	old := s.LatestBlockhash()
	build := func(lamports uint64) *solana.Transaction {
		tx, err := solana.NewSignedTransaction(
			[]solana.Instruction{system.Transfer(payer.PublicKey(), solana.NewKeypair().PublicKey(), lamports)},
			payer, nil, old,
		)
		require.NoError(t, err)
		return tx
	}

	s.ExpireBlockhash()
	_, err := s.SendTransaction(build(sol))
	require.NoError(t, err, "blockhash one slot old is still recent")

	for i := 0; i < MaxRecentBlockhashes; i++ {
		s.ExpireBlockhash()
	}
	_, err = s.SendTransaction(build(sol + 1))
	assert.ErrorIs(t, err, ErrBlockhashNotFound)
	var rejected *FailedTransactionError
	require.True(t, errors.As(err, &rejected))
	assert.False(t, rejected.Executed)

	_, err = s.SendTransaction(func() *solana.Transaction {
		tx, err := solana.NewSignedTransaction(
			[]solana.Instruction{system.Transfer(payer.PublicKey(), solana.NewKeypair().PublicKey(), sol)},
			payer, nil, solana.HashOf([]byte("unknown")),
		)
		require.NoError(t, err)
		return tx
	}())
	assert.ErrorIs(t, err, ErrBlockhashNotFound)
}

func TestSendTransaction_SignatureChecks(t *testing.T) {
	s := New()
	payer := fundedKeypair(t, s, 10*sol)
	ixs := []solana.Instruction{system.Transfer(payer.PublicKey(), solana.NewKeypair().PublicKey(), sol)}

	t.Run("unsigned", func(t *testing.T) {
		tx, err := solana.NewTransaction(ixs, payer.PublicKey(), s.LatestBlockhash())
		require.NoError(t, err)
		_, err = s.SendTransaction(tx)
		assert.ErrorIs(t, err, ErrMissingSignature)
	})

	t.Run("tampered", func(t *testing.T) {
		tx, err := solana.NewSignedTransaction(ixs, payer, nil, s.LatestBlockhash())
		require.NoError(t, err)
		tx.Signatures[0][0] ^= 0xff
		_, err = s.SendTransaction(tx)
		assert.ErrorIs(t, err, ErrSignatureFailure)
	})

	t.Run("signature count mismatch", func(t *testing.T) {
		tx, err := solana.NewSignedTransaction(ixs, payer, nil, s.LatestBlockhash())
		require.NoError(t, err)
		tx.Signatures = nil
		_, err = s.SendTransaction(tx)
		assert.ErrorIs(t, err, ErrSanitizeFailure)
	})

	t.Run("verification disabled", func(t *testing.T) {
		s := New(WithSigVerify(false))
		payer := fundedKeypair(t, s, 10*sol)
		tx, err := solana.NewTransaction(
			[]solana.Instruction{system.Transfer(payer.PublicKey(), solana.NewKeypair().PublicKey(), sol)},
			payer.PublicKey(), s.LatestBlockhash(),
		)
		require.NoError(t, err)
		_, err = s.SendTransaction(tx)
		assert.NoError(t, err)
	})

	assert.Equal(t, uint64(10*sol), s.Balance(payer.PublicKey()), "rejected transactions are not charged")
}

func TestSendTransaction_FeePayerChecks(t *testing.T) {
	s := New()
	to := solana.NewKeypair().PublicKey()

	unfunded := solana.NewKeypair()
	_, err := send(t, s, unfunded, []solana.Instruction{system.Transfer(unfunded.PublicKey(), to, 1)})
	assert.ErrorIs(t, err, ErrAccountNotFound)

	owned := solana.NewKeypair()
	s.SetAccount(owned.PublicKey(), &vm.Account{Lamports: sol, Owner: solana.TokenProgramID})
	_, err = send(t, s, owned, []solana.Instruction{system.Transfer(owned.PublicKey(), to, 1)})
	assert.ErrorIs(t, err, ErrInvalidAccountForFee)

	poor := solana.NewKeypair()
	s.SetAccount(poor.PublicKey(), &vm.Account{Lamports: 4999, Owner: solana.SystemProgramID})
	_, err = send(t, s, poor, []solana.Instruction{system.Transfer(poor.PublicKey(), to, 1)})
	assert.ErrorIs(t, err, ErrInsufficientFundsForFee)

	_, err = send(t, s, fundedKeypair(t, s, 892_000), []solana.Instruction{})
	assert.ErrorIs(t, err, ErrInsufficientFundsForRent, "fee would leave the payer rent-paying")
}

func TestSendTransaction_FailureChargesFeeAndRollsBack(t *testing.T) {
	s := New()
	payer := fundedKeypair(t, s, sol)
	to := solana.NewKeypair().PublicKey()

	_, err := send(t, s, payer, []solana.Instruction{
		system.Transfer(payer.PublicKey(), to, sol/2),
		system.Transfer(payer.PublicKey(), to, 2*sol),
	})
	require.Error(t, err)

	var ie *InstructionError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 1, ie.Index)
	code, ok := vm.CustomCode(err)
	require.True(t, ok)
	assert.Equal(t, uint32(1), code)

	var failed *FailedTransactionError
	require.True(t, errors.As(err, &failed))
	assert.True(t, failed.Executed)
	assert.Equal(t, uint64(5000), failed.Meta.Fee)
	assert.Contains(t, failed.Meta.Logs, "Program 11111111111111111111111111111111 failed: custom program error: 0x1")

	assert.Equal(t, uint64(sol-5000), s.Balance(payer.PublicKey()))
	_, exists := s.GetAccount(to)
	assert.False(t, exists)

	ptx, ok := s.GetTransaction(failed.Meta.Signature)
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{
		"InstructionError": []interface{}{1, map[string]uint32{"Custom": 1}},
	}, ErrorJSON(ptx.Err))
}

func TestSendTransaction_RentCheck(t *testing.T) {
	s := New()
	payer := fundedKeypair(t, s, sol)

	_, err := send(t, s, payer, []solana.Instruction{
		system.Transfer(payer.PublicKey(), solana.NewKeypair().PublicKey(), 1000),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientFundsForRent)

	var re *RentError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 1, re.AccountIndex)
}

func TestSimulateTransaction_DoesNotCommit(t *testing.T) {
	s := New()
	payer := fundedKeypair(t, s, 10*sol)
	to := solana.NewKeypair().PublicKey()
	before := s.TransactionCount()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.Transfer(payer.PublicKey(), to, sol)},
		payer.PublicKey(), s.LatestBlockhash(),
	)
	require.NoError(t, err)

	meta, err := s.SimulateTransaction(tx)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), meta.ComputeUnitsConsumed)
	assert.Len(t, meta.Logs, 2)

	assert.Equal(t, uint64(10*sol), s.Balance(payer.PublicKey()))
	assert.Equal(t, uint64(0), s.Balance(to))
	assert.Equal(t, before, s.TransactionCount())
}

func TestSendTransaction_UnsupportedProgram(t *testing.T) {
	s := New()
	payer := fundedKeypair(t, s, sol)

	_, err := send(t, s, payer, []solana.Instruction{{
		ProgramID: solana.NewKeypair().PublicKey(),
		Accounts:  []solana.AccountMeta{solana.WritableSigner(payer.PublicKey())},
	}})
	assert.ErrorIs(t, err, ErrUnsupportedProgram)
}

func TestExecutor_Logs(t *testing.T) {
	program := newTestProgram(func(ctx vm.Context, data []byte) error {
		ctx.Log("hello %d", 7)
		ctx.LogData([]byte{1, 2, 3}, []byte("ab"))
		return nil
	})
	s := New(WithProgram(program))
	payer := fundedKeypair(t, s, sol)

	meta, err := send(t, s, payer, []solana.Instruction{{ProgramID: program.id}})
	require.NoError(t, err)

	id := program.id.String()
	assert.Equal(t, []string{
		"Program " + id + " invoke [1]",
		"Program log: hello 7",
		"Program data: AQID YWI=",
		"Program " + id + " consumed 150 of 200000 compute units",
		"Program " + id + " success",
	}, meta.Logs)
}

func TestExecutor_OwnershipRules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(target, other *vm.AccountInfo)
		owned   bool
		rw      bool
		wantErr error
	}{
		{
			name:    "data of foreign account",
			mutate:  func(target, _ *vm.AccountInfo) { target.Data[0] = 1 },
			rw:      true,
			wantErr: vm.ErrExternalAccountDataModified,
		},
		{
			name: "debit of foreign account",
			mutate: func(target, other *vm.AccountInfo) {
				target.Lamports--
				other.Lamports++
			},
			rw:      true,
			wantErr: vm.ErrExternalLamportSpend,
		},
		{
			name:    "readonly data",
			mutate:  func(target, _ *vm.AccountInfo) { target.Data[0] = 1 },
			owned:   true,
			wantErr: vm.ErrReadonlyDataModified,
		},
		{
			name:    "minted lamports",
			mutate:  func(target, _ *vm.AccountInfo) { target.Lamports++ },
			owned:   true,
			rw:      true,
			wantErr: vm.ErrUnbalancedInstruction,
		},
		{
			name:    "owner of foreign account",
			mutate:  func(target, _ *vm.AccountInfo) { target.Owner = solana.TokenProgramID },
			rw:      true,
			wantErr: vm.ErrModifiedProgramID,
		},
		{
			name:    "owner with data",
			mutate:  func(target, _ *vm.AccountInfo) { target.Owner = solana.SystemProgramID },
			owned:   true,
			rw:      true,
			wantErr: vm.ErrModifiedProgramID,
		},
		{
			name: "owned data and balance",
			mutate: func(target, other *vm.AccountInfo) {
				target.Data[0] = 9
				target.Lamports--
				other.Lamports++
			},
			owned: true,
			rw:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program := newTestProgram(func(ctx vm.Context, data []byte) error {
				tt.mutate(ctx.Accounts()[0], ctx.Accounts()[1])
				return nil
			})
			s := New(WithProgram(program))
			payer := fundedKeypair(t, s, sol)

			target := solana.NewKeypair().PublicKey()
			owner := solana.SystemProgramID
			if tt.owned {
				owner = program.id
			}
			s.SetAccount(target, &vm.Account{
				Lamports: s.MinimumBalanceForRentExemption(8) + 10,
				Data:     []byte{0, 1, 2, 3, 4, 5, 6, 7},
				Owner:    owner,
			})

			meta := solana.Readonly(target)
			if tt.rw {
				meta = solana.Writable(target)
			}
			_, err := send(t, s, payer, []solana.Instruction{{
				ProgramID: program.id,
				Accounts:  []solana.AccountMeta{meta, solana.WritableSigner(payer.PublicKey())},
			}})
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExecutor_ClosedAccountIsRemoved(t *testing.T) {
	program := newTestProgram(func(ctx vm.Context, data []byte) error {
		closing, dest := ctx.Accounts()[0], ctx.Accounts()[1]
		dest.Lamports += closing.Lamports
		closing.Lamports = 0
		closing.Data = nil
		return nil
	})
	s := New(WithProgram(program))
	payer := fundedKeypair(t, s, sol)
	closing := solana.NewKeypair().PublicKey()
	rent := s.MinimumBalanceForRentExemption(4)
	s.SetAccount(closing, &vm.Account{Lamports: rent, Data: []byte{1, 2, 3, 4}, Owner: program.id})

	_, err := send(t, s, payer, []solana.Instruction{{
		ProgramID: program.id,
		Accounts:  []solana.AccountMeta{solana.Writable(closing), solana.WritableSigner(payer.PublicKey())},
	}})
	require.NoError(t, err)

	_, exists := s.GetAccount(closing)
	assert.False(t, exists)
	assert.Equal(t, sol-5000+rent, s.Balance(payer.PublicKey()))
}

func TestExecutor_CrossProgramInvocation(t *testing.T) {
	seed := []byte("vault")

	program := newTestProgram(nil)
	pda, bump, err := solana.FindProgramAddress([][]byte{seed}, program.id)
	require.NoError(t, err)

	program.fn = func(ctx vm.Context, data []byte) error {
		from, to := ctx.Accounts()[0], ctx.Accounts()[1]
		ix := system.Transfer(from.Key, to.Key, sol)
		switch data[0] {
		case 0:
			return ctx.InvokeSigned(ix, [][]byte{seed, {bump}})
		case 2:
			_ = ctx.Invoke(system.Transfer(from.Key, to.Key, 100*sol))
			return nil
		default:
			return ctx.Invoke(ix)
		}
	}

	s := New(WithProgram(program))
	payer := fundedKeypair(t, s, 10*sol)
	dest := solana.NewKeypair().PublicKey()
	s.SetAccount(pda, &vm.Account{Lamports: 5 * sol, Owner: solana.SystemProgramID})

	run := func(mode byte, from solana.AccountMeta) (TransactionMetadata, error) {
		return send(t, s, payer, []solana.Instruction{{
			ProgramID: program.id,
			Accounts: []solana.AccountMeta{
				from,
				solana.Writable(dest),
				solana.Readonly(solana.SystemProgramID),
			},
			Data: []byte{mode},
		}})
	}

	t.Run("pda signer", func(t *testing.T) {
		meta, err := run(0, solana.Writable(pda))
		require.NoError(t, err)
		assert.Equal(t, uint64(4*sol), s.Balance(pda))
		assert.Equal(t, uint64(sol), s.Balance(dest))
		assert.Contains(t, meta.Logs, "Program 11111111111111111111111111111111 invoke [2]")
		assert.Greater(t, meta.ComputeUnitsConsumed, uint64(InvokeComputeUnits+PDADerivationComputeUnits))
	})

	t.Run("unsigned pda escalates", func(t *testing.T) {
		_, err := run(3, solana.Writable(pda))
		assert.ErrorIs(t, err, vm.ErrPrivilegeEscalation)
		var failed *FailedTransactionError
		require.True(t, errors.As(err, &failed))
		assert.Contains(t, failed.Meta.Logs, pda.String()+"'s signer privilege escalated")
	})

	t.Run("writable escalation", func(t *testing.T) {
		_, err := run(3, solana.Readonly(solana.NewKeypair().PublicKey()))
		assert.ErrorIs(t, err, vm.ErrPrivilegeEscalation)
	})

	t.Run("caller signer is forwarded", func(t *testing.T) {
		_, err := run(3, solana.WritableSigner(payer.PublicKey()))
		require.NoError(t, err)
		assert.Equal(t, uint64(2*sol), s.Balance(dest))
	})

	t.Run("swallowed failure still aborts", func(t *testing.T) {
		before := s.Balance(dest)
		_, err := run(2, solana.WritableSigner(payer.PublicKey()))
		code, ok := vm.CustomCode(err)
		require.True(t, ok)
		assert.Equal(t, uint32(1), code)
		assert.Equal(t, before, s.Balance(dest))
	})
}

func TestExecutor_CallDepth(t *testing.T) {
	program := newTestProgram(nil)
	program.fn = func(ctx vm.Context, data []byte) error {
		if data[0] == 0 {
			return nil
		}
		return ctx.Invoke(solana.Instruction{
			ProgramID: program.id,
			Accounts:  []solana.AccountMeta{solana.Readonly(program.id)},
			Data:      []byte{data[0] - 1},
		})
	}
	s := New(WithProgram(program))
	payer := fundedKeypair(t, s, sol)

	call := func(depth byte) error {
		_, err := send(t, s, payer, []solana.Instruction{{
			ProgramID: program.id,
			Accounts:  []solana.AccountMeta{solana.Readonly(program.id)},
			Data:      []byte{depth},
		}})
		return err
	}

	require.NoError(t, call(MaxInvokeStackHeight-1))
	assert.ErrorIs(t, call(MaxInvokeStackHeight), vm.ErrCallDepth)
}

func TestExecutor_ComputeBudgetAndPanics(t *testing.T) {
	program := newTestProgram(func(ctx vm.Context, data []byte) error {
		switch data[0] {
		case 0:
			return ctx.ConsumeUnits(150_000)
		default:
			panic("boom")
		}
	})
	payerFor := func(s *SVM) *solana.Keypair { return fundedKeypair(t, s, sol) }
	ix := func(mode byte) []solana.Instruction {
		return []solana.Instruction{{ProgramID: program.id, Data: []byte{mode}}}
	}

	s := New(WithProgram(program))
	meta, err := send(t, s, payerFor(s), ix(0))
	require.NoError(t, err)
	assert.Equal(t, uint64(150_150), meta.ComputeUnitsConsumed)

	tight := New(WithProgram(program), WithComputeBudget(100_000))
	_, err = send(t, tight, payerFor(tight), ix(0))
	assert.ErrorIs(t, err, vm.ErrComputationalBudgetExceeded)

	_, err = send(t, s, payerFor(s), ix(1))
	assert.ErrorIs(t, err, vm.ErrProgramFailedToComplete)
}

func TestSignaturesForAddress(t *testing.T) {
	s := New()
	to := solana.NewKeypair().PublicKey()

	var sigs []solana.Signature
	for i := uint64(1); i <= 3; i++ {
		sig, err := s.Airdrop(to, i*sol)
		require.NoError(t, err)
		sigs = append(sigs, sig)
	}

	all := s.SignaturesForAddress(to, HistoryQuery{})
	require.Len(t, all, 3)
	assert.Equal(t, sigs[2], all[0].Meta.Signature)
	assert.Equal(t, sigs[0], all[2].Meta.Signature)

	page := s.SignaturesForAddress(to, HistoryQuery{Before: sigs[2], Limit: 1})
	require.Len(t, page, 1)
	assert.Equal(t, sigs[1], page[0].Meta.Signature)

	newer := s.SignaturesForAddress(to, HistoryQuery{Until: sigs[0]})
	require.Len(t, newer, 2)
	assert.Equal(t, sigs[1], newer[1].Meta.Signature)
}

func TestSubscribe(t *testing.T) {
	s := New()
	defer s.Close()
	to := solana.NewKeypair().PublicKey()

	sub := s.Subscribe(solana.LogsFilter{Mentions: []string{to.String()}})
	other := s.Subscribe(solana.LogsFilter{Mentions: []string{solana.NewKeypair().PublicKey().String()}})

	sig, err := s.Airdrop(to, sol)
	require.NoError(t, err)

	select {
	case n := <-sub.Notifications():
		assert.Equal(t, sig.String(), n.Signature)
		assert.Nil(t, n.Err)
		assert.NotEmpty(t, n.Logs)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}

	select {
	case n := <-other.Notifications():
		t.Fatalf("unexpected notification %s", n.Signature)
	case <-time.After(50 * time.Millisecond):
	}

	assert.True(t, s.Unsubscribe(sub.ID))
	assert.False(t, s.Unsubscribe(sub.ID))
	_, open := <-sub.Notifications()
	assert.False(t, open)
}

func TestSubscribe_LaggingSubscriberClosed(t *testing.T) {
	s := New(WithSubscriptionQueue(2))
	defer s.Close()
	to := solana.NewKeypair().PublicKey()

	slow := s.Subscribe(solana.LogsFilter{Mentions: []string{to.String()}})
	fast := s.Subscribe(solana.LogsFilter{Mentions: []string{to.String()}})

	const airdrops = 10
	for i := 0; i < airdrops; i++ {
		sig, err := s.Airdrop(to, sol+uint64(i))
		require.NoError(t, err)
		select {
		case n := <-fast.Notifications():
			assert.Equal(t, sig.String(), n.Signature)
		case <-time.After(time.Second):
			t.Fatalf("airdrop %d not delivered", i)
		}
	}

	// At most the notification already handed to the pump is delivered
	delivered := 0
	timeout := time.After(time.Second)
drain:
	for {
		select {
		case _, open := <-slow.Notifications():
			if !open {
				break drain
			}
			delivered++
		case <-timeout:
			t.Fatal("lagging subscription was not closed")
		}
	}
	assert.True(t, slow.Lagged())
	assert.LessOrEqual(t, delivered, 1)
	assert.False(t, s.Unsubscribe(slow.ID), "lagging subscription should be released")

	assert.False(t, fast.Lagged())
	assert.True(t, s.Unsubscribe(fast.ID))
}
