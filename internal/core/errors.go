package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeUnknownPeer = "unknown_peer"
	ErrCodePersistence = "persistence_failed"
	ErrCodeUploadError = "upload_failed"
)

var (
	// ErrValidation marks caller errors. They are never retried.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence marks store failures; the message was not sent.
	ErrPersistence = errors.New("persistence failed")
)

// CoreError wraps a code and human-readable message around a sentinel.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

func validationError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg, Err: ErrValidation}
}

func persistenceError(code, msg string, cause error) *CoreError {
	return &CoreError{Code: code, Message: msg + ": " + cause.Error(), Err: errors.Join(ErrPersistence, cause)}
}
