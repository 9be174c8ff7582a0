package usecase

import "errors"

// ErrInvalidInput marks caller mistakes so the HTTP layer can map them to a
// 400 instead of a 5xx.
var ErrInvalidInput = errors.New("invalid input")
