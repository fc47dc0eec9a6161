// Package errs holds the error taxonomy shared by the trade workflow.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrPriceDataUnavailable = errors.New("price data unavailable")
	ErrBalanceRead          = errors.New("balance read failed")
	ErrDecimalQuery         = errors.New("decimal query failed")
	ErrApprovalFailed       = errors.New("approval failed")
	ErrSwapBuildFailed      = errors.New("swap build failed")
	ErrBroadcastFailed      = errors.New("broadcast failed")
	ErrConfirmationTimeout  = errors.New("confirmation timeout")
)

// Stage names a step of the trade workflow.
type Stage string

const (
	StageValidate       Stage = "validate"
	StageReadBalances   Stage = "read_balances"
	StageSize           Stage = "size"
	StageConvert        Stage = "convert"
	StageCheckAllowance Stage = "check_allowance"
	StageBuildApproval  Stage = "build_approval"
	StageSendApproval   Stage = "sign_send_approval"
	StageAwaitApproval  Stage = "await_approval"
	StageBuildSwap      Stage = "build_swap"
	StageSendSwap       Stage = "sign_send_swap"
	StageAwaitSwap      Stage = "await_swap"
	StageDone           Stage = "done"
)

// StageError reports which workflow stage failed. TxHash is set once a
// transaction has been broadcast, so callers can always follow it up.
type StageError struct {
	Stage  Stage
	Kind   error
	TxHash string
	Err    error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Stage, e.Err)
	if e.TxHash != "" {
		msg += " (tx " + e.TxHash + ")"
	}
	return msg
}

func (e *StageError) Unwrap() error { return e.Err }

// Is matches the error kind so errors.Is(err, ErrApprovalFailed) works
// without the kind being part of the wrapped chain.
func (e *StageError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func AtStage(stage Stage, kind error, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

func (e *StageError) WithTx(hash string) *StageError {
	e.TxHash = hash
	return e
}

// Validation builds an ErrValidation with a readable reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// StageOf returns the failing stage of err, or "" when err carries none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Wrap tags err with kind so both match errors.Is.
func Wrap(kind error, err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", kind, fmt.Sprintf(format, args...), err)
}
