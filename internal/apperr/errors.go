// Package apperr holds the error kinds shared across packages.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrDecode          = errors.New("decode error")
	ErrInvalidPattern  = errors.New("invalid pattern")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidName     = errors.New("invalid name")
	ErrUnavailable     = errors.New("unavailable")
)
