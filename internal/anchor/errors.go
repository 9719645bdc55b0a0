package anchor

import (
	"errors"
	"fmt"

	"escrow-lab/internal/vm"
)

// Error is an Anchor error code. Programs return it from handlers; Fail
// logs it and converts it to the custom program error the runtime reports.
type Error struct {
	Code    uint32
	Name    string
	Message string

	// Account names the account whose constraint failed, if any.
	Account string
}

// NewError defines an error code. Program-defined codes start at 6000.
func NewError(code uint32, name, message string) *Error {
	return &Error{Code: code, Name: name, Message: message}
}

func (e *Error) Error() string {
	if e.Account != "" {
		return fmt.Sprintf("AnchorError caused by account: %s. Error Code: %s. Error Number: %d. Error Message: %s.",
			e.Account, e.Name, e.Code, e.Message)
	}
	return fmt.Sprintf("AnchorError occurred. Error Code: %s. Error Number: %d. Error Message: %s.",
		e.Name, e.Code, e.Message)
}

// Is matches errors with the same code, regardless of account.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithAccount returns a copy of e attributed to the named account.
func (e *Error) WithAccount(name string) *Error {
	c := *e
	c.Account = name
	return &c
}

// Custom returns the runtime error code of e.
func (e *Error) Custom() vm.CustomError {
	return vm.CustomError(e.Code)
}

// Framework error codes.
var (
	ErrInstructionMissing           = NewError(100, "InstructionMissing", "8 byte instruction identifier not provided")
	ErrInstructionFallbackNotFound  = NewError(101, "InstructionFallbackNotFound", "Fallback functions are not supported")
	ErrInstructionDidNotDeserialize = NewError(102, "InstructionDidNotDeserialize", "The program could not deserialize the given instruction")
	ErrConstraintMut                = NewError(2000, "ConstraintMut", "A mut constraint was violated")
	ErrConstraintHasOne             = NewError(2001, "ConstraintHasOne", "A has one constraint was violated")
	ErrConstraintSigner             = NewError(2002, "ConstraintSigner", "A signer constraint was violated")
	ErrConstraintSeeds              = NewError(2006, "ConstraintSeeds", "A seeds constraint was violated")
	ErrConstraintAssociated         = NewError(2009, "ConstraintAssociated", "An associated constraint was violated")
	ErrConstraintTokenMint          = NewError(2014, "ConstraintTokenMint", "A token mint constraint was violated")
	ErrConstraintTokenOwner         = NewError(2015, "ConstraintTokenOwner", "A token owner constraint was violated")
	ErrAccountDiscriminatorNotFound = NewError(3001, "AccountDiscriminatorNotFound", "No discriminator was found on the account")
	ErrAccountDiscriminatorMismatch = NewError(3002, "AccountDiscriminatorMismatch", "Account discriminator did not match what was expected")
	ErrAccountDidNotDeserialize     = NewError(3003, "AccountDidNotDeserialize", "Failed to deserialize the account")
	ErrAccountNotEnoughKeys         = NewError(3005, "AccountNotEnoughKeys", "Not enough account keys given to the instruction")
	ErrAccountOwnedByWrongProgram   = NewError(3007, "AccountOwnedByWrongProgram", "The given account is owned by a different program than expected")
	ErrInvalidProgramID             = NewError(3008, "InvalidProgramId", "Program ID was not as expected")
	ErrAccountNotInitialized        = NewError(3012, "AccountNotInitialized", "The program expected this account to be already initialized")
)

// Fail reports err the way Anchor programs do: an AnchorError log line and
// the custom error code. Errors that are not *Error pass through unchanged.
func Fail(ctx vm.Context, err error) error {
	var ae *Error
	if !errors.As(err, &ae) {
		return err
	}
	ctx.Log("%s", ae.Error())
	return ae.Custom()
}

// Code extracts an Anchor error code from a runtime result.
func Code(err error) (uint32, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code, true
	}
	return vm.CustomCode(err)
}
