package primitives

import (
	stderrors "errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeInvalidConfig = "INVALID_CONFIG"
	ErrCodeInvalidKind   = "INVALID_KIND"
	ErrCodeEmptyDocument = "EMPTY_DOCUMENT"
	ErrCodeInvalidAction = "INVALID_ACTION"
)

var (
	ErrInvalidConfig = goerrors.New("invalid chart configuration", goerrors.CategoryValidation).
				WithTextCode(ErrCodeInvalidConfig)
	ErrInvalidKind = goerrors.New("invalid state kind", goerrors.CategoryValidation).
			WithTextCode(ErrCodeInvalidKind)
	ErrEmptyDocument = goerrors.New("document has no states", goerrors.CategoryValidation).
				WithTextCode(ErrCodeEmptyDocument)
	ErrInvalidAction = goerrors.New("invalid action", goerrors.CategoryValidation).
				WithTextCode(ErrCodeInvalidAction)
)

// CloneError copies a sentinel, replacing the message and attaching source and
// metadata when given.
func CloneError(base *goerrors.Error, message string, source error, metadata map[string]any) *goerrors.Error {
	if base == nil {
		base = ErrInvalidConfig
	}
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ErrorCode extracts the text code of a go-errors value anywhere in the chain.
func ErrorCode(err error) string {
	var ge *goerrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}
