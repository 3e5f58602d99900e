package bia

import "errors"

var (
	ErrNotFound        = errors.New("bia: not found")
	ErrInvalidProcess  = errors.New("bia: invalid process")
	ErrInvalidPriority = errors.New("bia: invalid priority")
	ErrInvalidAnswer   = errors.New("bia: invalid answer")
	ErrIncomplete      = errors.New("bia: questionnaire incomplete")
	ErrEmptyCategory   = errors.New("bia: category has no questions")
	ErrPending         = errors.New("bia: operation already in flight")
	ErrUnknownTemplate = errors.New("bia: unknown template")
)
