package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Common domain errors
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNoCredentials = errors.New("no credentials configured")
	ErrEmptyPlaylist = errors.New("playlist is empty")
)

// TransferError is a connection-level failure (dial, timeout, reset)
type TransferError struct {
	Op  string
	URL string
	Err error
}

// Error returns the error message
func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: transfer failed: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying error
func (e *TransferError) Unwrap() error {
	return e.Err
}

// NewTransferError creates a new transfer error
func NewTransferError(op, url string, err error) *TransferError {
	return &TransferError{Op: op, URL: url, Err: err}
}

// StatusError is a completed request with a non-2xx response
type StatusError struct {
	Op         string
	URL        string
	StatusCode int
}

// Error returns the error message
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d %s", e.Op, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsUnauthorized reports a 401 response
func (e *StatusError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.IsUnauthorized()
}

// NewStatusError creates a new status error
func NewStatusError(op, url string, statusCode int) *StatusError {
	return &StatusError{Op: op, URL: url, StatusCode: statusCode}
}

// DecodeError is malformed JSON or an unexpected record shape
type DecodeError struct {
	What string
	Err  error
}

// Error returns the error message
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.What, e.Err)
}

// Unwrap returns the underlying error
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError creates a new decode error
func NewDecodeError(what string, err error) *DecodeError {
	return &DecodeError{What: what, Err: err}
}

// StorageError is a filesystem create/write/remove failure
type StorageError struct {
	Op   string
	Path string
	Err  error
}

// Error returns the error message
func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new storage error
func NewStorageError(op, path string, err error) *StorageError {
	return &StorageError{Op: op, Path: path, Err: err}
}

// UnsupportedMediaError means a cached file could not be interpreted as the
// expected kind
type UnsupportedMediaError struct {
	Path string
	Err  error
}

// Error returns the error message
func (e *UnsupportedMediaError) Error() string {
	return fmt.Sprintf("unsupported media %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *UnsupportedMediaError) Unwrap() error {
	return e.Err
}

// NewUnsupportedMediaError creates a new unsupported media error
func NewUnsupportedMediaError(path string, err error) *UnsupportedMediaError {
	return &UnsupportedMediaError{Path: path, Err: err}
}

// IsTransfer returns true if err is a transfer error
func IsTransfer(err error) bool {
	var te *TransferError
	return errors.As(err, &te)
}

// IsUnauthorized returns true if err is a 401 status error
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsStorage returns true if err is a storage error
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
