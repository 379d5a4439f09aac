package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrContentUnavailable  = errors.New("content unavailable")
	ErrClassificationParse = errors.New("classification reply is not valid JSON")
	ErrVocabularyWrite     = errors.New("vocabulary write failed")
	ErrCounterUpdate       = errors.New("counter update failed")
	ErrInvalidConfig       = errors.New("invalid configuration")
)
