package model

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeDuplicateID    = "DUPLICATE_ID"
	ErrCodeUnknownTarget  = "UNKNOWN_TARGET"
	ErrCodeIllegalInitial = "ILLEGAL_INITIAL"
	ErrCodeIllegalTargets = "ILLEGAL_TARGETS"
)

var (
	ErrDuplicateID = goerrors.New("duplicate state id", goerrors.CategoryValidation).
			WithTextCode(ErrCodeDuplicateID)
	ErrUnknownTarget = goerrors.New("unknown transition target", goerrors.CategoryValidation).
				WithTextCode(ErrCodeUnknownTarget)
	ErrIllegalInitial = goerrors.New("illegal initial target", goerrors.CategoryValidation).
				WithTextCode(ErrCodeIllegalInitial)
	ErrIllegalTargets = goerrors.New("illegal transition targets", goerrors.CategoryValidation).
				WithTextCode(ErrCodeIllegalTargets)
)
