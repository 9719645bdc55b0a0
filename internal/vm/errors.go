package vm

import (
	"errors"
	"fmt"
)

// Error is a named runtime error. Code is the wire name used in RPC
// responses; identity comparison via errors.Is.
type Error struct {
	Code    string
	Message string
}

// NewError creates a named runtime error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string { return e.Message }

// Instruction errors.
var (
	ErrInvalidArgument             = NewError("InvalidArgument", "invalid program argument")
	ErrInvalidInstructionData      = NewError("InvalidInstructionData", "invalid instruction data")
	ErrInvalidAccountData          = NewError("InvalidAccountData", "invalid account data for instruction")
	ErrAccountDataTooSmall         = NewError("AccountDataTooSmall", "account data too small for instruction")
	ErrInsufficientFunds           = NewError("InsufficientFunds", "insufficient funds for instruction")
	ErrIncorrectProgramID          = NewError("IncorrectProgramId", "incorrect program id for instruction")
	ErrMissingRequiredSignature    = NewError("MissingRequiredSignature", "missing required signature for instruction")
	ErrAccountAlreadyInitialized   = NewError("AccountAlreadyInitialized", "instruction requires an uninitialized account")
	ErrUninitializedAccount        = NewError("UninitializedAccount", "instruction requires an initialized account")
	ErrUnbalancedInstruction       = NewError("UnbalancedInstruction", "sum of account balances before and after instruction do not match")
	ErrModifiedProgramID           = NewError("ModifiedProgramId", "instruction illegally modified the program id of an account")
	ErrExternalLamportSpend        = NewError("ExternalAccountLamportSpend", "instruction spent from the balance of an account it does not own")
	ErrExternalAccountDataModified = NewError("ExternalAccountDataModified", "instruction modified data of an account it does not own")
	ErrReadonlyLamportChange       = NewError("ReadonlyLamportChange", "instruction changed the balance of a read-only account")
	ErrReadonlyDataModified        = NewError("ReadonlyDataModified", "instruction modified data of a read-only account")
	ErrExecutableModified          = NewError("ExecutableDataModified", "instruction changed executable accounts data")
	ErrNotEnoughAccountKeys        = NewError("NotEnoughAccountKeys", "insufficient account keys for instruction")
	ErrMissingAccount              = NewError("MissingAccount", "An account required by the instruction is missing")
	ErrInvalidSeeds                = NewError("InvalidSeeds", "Provided seeds do not result in a valid address")
	ErrInvalidRealloc              = NewError("InvalidRealloc", "Failed to reallocate account data")
	ErrArithmeticOverflow          = NewError("ArithmeticOverflow", "Program arithmetic overflowed")
	ErrPrivilegeEscalation         = NewError("PrivilegeEscalation", "Cross-program invocation with unauthorized signer or writable account")
	ErrCallDepth                   = NewError("CallDepth", "Cross-program invocation call depth too deep")
	ErrReentrancyNotAllowed        = NewError("ReentrancyNotAllowed", "Cross-program invocation reentrancy not allowed for this instruction")
	ErrUnsupportedProgram          = NewError("UnsupportedProgramId", "Unsupported program id")
	ErrComputationalBudgetExceeded = NewError("ComputationalBudgetExceeded", "Computational budget exceeded")
	ErrProgramFailedToComplete     = NewError("ProgramFailedToComplete", "Program failed to complete")
)

// CustomError is a program-defined error code.
type CustomError uint32

func (e CustomError) Error() string {
	return fmt.Sprintf("custom program error: 0x%x", uint32(e))
}

// CustomCode extracts the custom error code from err, if any.
func CustomCode(err error) (uint32, bool) {
	var ce CustomError
	if errors.As(err, &ce) {
		return uint32(ce), true
	}
	return 0, false
}

// ErrorCode returns the wire representation of an instruction error:
// {"Custom": n} for custom errors, the error name otherwise.
func ErrorCode(err error) interface{} {
	if code, ok := CustomCode(err); ok {
		return map[string]uint32{"Custom": code}
	}
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code
	}
	return map[string]string{"GenericError": err.Error()}
}
