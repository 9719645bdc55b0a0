package svm

import (
	"errors"
	"fmt"

	"escrow-lab/internal/vm"
)

// Transaction-level errors. They are returned before any instruction runs.
var (
	ErrSanitizeFailure          = vm.NewError("SanitizeFailure", "Transaction failed to sanitize accounts offsets correctly")
	ErrMissingSignature         = vm.NewError("MissingSignatureForFee", "Transaction did not pass signature verification")
	ErrSignatureFailure         = vm.NewError("SignatureFailure", "Transaction did not pass signature verification")
	ErrBlockhashNotFound        = vm.NewError("BlockhashNotFound", "Blockhash not found")
	ErrAlreadyProcessed         = vm.NewError("AlreadyProcessed", "This transaction has already been processed")
	ErrAccountNotFound          = vm.NewError("AccountNotFound", "Attempt to debit an account but found no record of a prior credit.")
	ErrInvalidAccountForFee     = vm.NewError("InvalidAccountForFee", "This account may not be used to pay transaction fees")
	ErrInsufficientFundsForFee  = vm.NewError("InsufficientFundsForFee", "Insufficient funds for fee")
	ErrInsufficientFundsForRent = vm.NewError("InsufficientFundsForRent", "Transaction results in an account with insufficient funds for rent")
)

// Instruction errors re-exported for callers matching on ledger results.
var (
	ErrMissingRequiredSignature    = vm.ErrMissingRequiredSignature
	ErrInvalidAccountData          = vm.ErrInvalidAccountData
	ErrAccountAlreadyInitialized   = vm.ErrAccountAlreadyInitialized
	ErrInsufficientFunds           = vm.ErrInsufficientFunds
	ErrIncorrectProgramID          = vm.ErrIncorrectProgramID
	ErrInvalidSeeds                = vm.ErrInvalidSeeds
	ErrPrivilegeEscalation         = vm.ErrPrivilegeEscalation
	ErrExternalAccountDataModified = vm.ErrExternalAccountDataModified
	ErrExternalLamportSpend        = vm.ErrExternalLamportSpend
	ErrReadonlyDataModified        = vm.ErrReadonlyDataModified
	ErrReadonlyLamportChange       = vm.ErrReadonlyLamportChange
	ErrUnbalancedInstruction       = vm.ErrUnbalancedInstruction
	ErrModifiedProgramID           = vm.ErrModifiedProgramID
	ErrInvalidInstructionData      = vm.ErrInvalidInstructionData
	ErrNotEnoughAccountKeys        = vm.ErrNotEnoughAccountKeys
	ErrMissingAccount              = vm.ErrMissingAccount
	ErrUnsupportedProgram          = vm.ErrUnsupportedProgram
	ErrCallDepth                   = vm.ErrCallDepth
	ErrReentrancyNotAllowed        = vm.ErrReentrancyNotAllowed
	ErrComputationalBudgetExceeded = vm.ErrComputationalBudgetExceeded
	ErrProgramFailedToComplete     = vm.ErrProgramFailedToComplete
)

// CustomError is a program-defined error code.
type CustomError = vm.CustomError

// InstructionError reports the failing instruction of a transaction.
type InstructionError struct {
	Index int
	Err   error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("Error processing Instruction %d: %v", e.Index, e.Err)
}

func (e *InstructionError) Unwrap() error { return e.Err }

// RentError reports an account left rent-paying after execution.
type RentError struct {
	AccountIndex int
}

func (e *RentError) Error() string {
	return fmt.Sprintf("Transaction results in an account (%d) with insufficient funds for rent", e.AccountIndex)
}

// Is matches ErrInsufficientFundsForRent.
func (e *RentError) Is(target error) bool {
	return target == ErrInsufficientFundsForRent
}

// FailedTransactionError carries the metadata of a failed transaction.
// Executed is false when the transaction was rejected before running
// (sanitize, signature, blockhash, replay or fee checks). A failure with
// Executed set that came from SendTransaction was charged its fee and
// recorded in history.
type FailedTransactionError struct {
	Err      error
	Meta     TransactionMetadata
	Executed bool
}

func (e *FailedTransactionError) Error() string { return e.Err.Error() }

func (e *FailedTransactionError) Unwrap() error { return e.Err }

// ErrorJSON returns the RPC wire representation of a transaction error,
// nil for success.
func ErrorJSON(err error) interface{} {
	if err == nil {
		return nil
	}
	var ie *InstructionError
	if errors.As(err, &ie) {
		return map[string]interface{}{
			"InstructionError": []interface{}{ie.Index, vm.ErrorCode(ie.Err)},
		}
	}
	var re *RentError
	if errors.As(err, &re) {
		return map[string]interface{}{
			"InsufficientFundsForRent": map[string]int{"account_index": re.AccountIndex},
		}
	}
	return vm.ErrorCode(err)
}
