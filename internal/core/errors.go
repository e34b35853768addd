package core

import (
	stderrors "errors"

	goerrors "github.com/goliatone/go-errors"

	"github.com/comalice/chartx/internal/primitives"
)

// Invalid-state codes returned synchronously by Machine operations.
const (
	ErrCodeNotRunning          = "NOT_RUNNING"
	ErrCodeAlreadyStarted      = "ALREADY_STARTED"
	ErrCodeRestoreWhileRunning = "RESTORE_WHILE_RUNNING"
	ErrCodeInvalidSnapshot     = "INVALID_SNAPSHOT"
)

// Codes passed to ErrorReporter.Report.
const (
	CodeExpressionError    = "EXPRESSION_ERROR"
	CodeIllegalConfig      = "ILLEGAL_CONFIG"
	CodeInvokeFailed       = "INVOKE_FAILED"
	CodeCancelFailed       = "CANCEL_FAILED"
	CodeCommunicationError = "COMMUNICATION_ERROR"
	CodeMicrostepLimit     = "MICROSTEP_LIMIT"
	CodeUnknownAction      = "UNKNOWN_ACTION"
)

var (
	ErrNotRunning = goerrors.New("machine is not running", goerrors.CategoryConflict).
			WithTextCode(ErrCodeNotRunning)
	ErrAlreadyStarted = goerrors.New("machine already started", goerrors.CategoryConflict).
				WithTextCode(ErrCodeAlreadyStarted)
	ErrRestoreWhileRunning = goerrors.New("cannot restore a running machine", goerrors.CategoryConflict).
				WithTextCode(ErrCodeRestoreWhileRunning)
	ErrInvalidSnapshot = goerrors.New("snapshot does not match document", goerrors.CategoryValidation).
				WithTextCode(ErrCodeInvalidSnapshot)
	ErrIllegalConfig = goerrors.New("illegal configuration", goerrors.CategoryConflict).
				WithTextCode(CodeIllegalConfig)
	ErrExpression = goerrors.New("expression error", goerrors.CategoryBadInput).
			WithTextCode(CodeExpressionError)
	ErrInvokeFailed = goerrors.New("invocation failed", goerrors.CategoryExternal).
			WithTextCode(CodeInvokeFailed)
	ErrCancelFailed = goerrors.New("invocation cancel failed", goerrors.CategoryExternal).
			WithTextCode(CodeCancelFailed)
	ErrCommunication = goerrors.New("event delivery failed", goerrors.CategoryExternal).
				WithTextCode(CodeCommunicationError)
	ErrUnknownAction = goerrors.New("unknown action", goerrors.CategoryBadInput).
				WithTextCode(CodeUnknownAction)
)

func cloneError(base *goerrors.Error, message string, source error, metadata map[string]any) *goerrors.Error {
	return primitives.CloneError(base, message, source, metadata)
}

// ErrorCode returns the text code of a go-errors value, or "".
func ErrorCode(err error) string {
	return primitives.ErrorCode(err)
}

// errorMessage returns the go-errors message when available.
func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	var ge *goerrors.Error
	if stderrors.As(err, &ge) {
		return ge.Message
	}
	return err.Error()
}
