package harness

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escrow-lab/internal/anchor"
	"escrow-lab/internal/svm"
)

// ExecutionResult is the outcome of one transaction.
type ExecutionResult struct {
	Meta svm.TransactionMetadata
	Err  error
}

// Succeeded reports whether the transaction executed without error.
func (r *ExecutionResult) Succeeded() bool { return r.Err == nil }

// Logs returns the program logs.
func (r *ExecutionResult) Logs() []string { return r.Meta.Logs }

// ComputeUnits returns the compute units the transaction consumed.
func (r *ExecutionResult) ComputeUnits() uint64 { return r.Meta.ComputeUnitsConsumed }

// HasLog reports whether any log line contains substr.
func (r *ExecutionResult) HasLog(substr string) bool {
	for _, l := range r.Meta.Logs {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

// AssertSuccess fails the test, printing the logs, if the transaction failed.
func (r *ExecutionResult) AssertSuccess(t testing.TB) {
	t.Helper()
	require.NoError(t, r.Err, "transaction failed, logs:\n%s", strings.Join(r.Meta.Logs, "\n"))
}

// AssertFailure fails the test if the transaction succeeded.
func (r *ExecutionResult) AssertFailure(t testing.TB) {
	t.Helper()
	require.Error(t, r.Err, "transaction succeeded, logs:\n%s", strings.Join(r.Meta.Logs, "\n"))
}

// AssertError checks the failure matches target with errors.Is.
func (r *ExecutionResult) AssertError(t testing.TB, target error) {
	t.Helper()
	r.AssertFailure(t)
	assert.True(t, errors.Is(r.Err, target), "error %v does not match %v", r.Err, target)
}

// AssertErrorCode checks the failure carries the custom or Anchor error code.
func (r *ExecutionResult) AssertErrorCode(t testing.TB, code uint32) {
	t.Helper()
	r.AssertFailure(t)
	got, ok := anchor.Code(r.Err)
	require.True(t, ok, "error %v carries no custom code", r.Err)
	assert.Equal(t, code, got, "error %v", r.Err)
}

// AssertLog checks some log line contains substr.
func (r *ExecutionResult) AssertLog(t testing.TB, substr string) {
	t.Helper()
	assert.True(t, r.HasLog(substr), "no log contains %q, logs:\n%s", substr, strings.Join(r.Meta.Logs, "\n"))
}
