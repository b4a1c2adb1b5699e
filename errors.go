// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package torus

import (
	"errors"
	"fmt"
)

// Kind classifies errors returned by this package.
type Kind uint8

const (
	// KindParameter covers invalid or incompatible parameters and encodings.
	KindParameter Kind = iota + 1
	// KindCryptoOperation covers failures reported by the lattice library.
	// They are never transient.
	KindCryptoOperation
	// KindIO covers key cache directory and file failures.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindParameter:
		return "parameter"
	case KindCryptoOperation:
		return "crypto"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Kind sentinels. Match with errors.Is(err, ErrParameter).
var (
	ErrParameter       = &kindSentinel{KindParameter}
	ErrCryptoOperation = &kindSentinel{KindCryptoOperation}
	ErrIO              = &kindSentinel{KindIO}
)

// Specific errors.
var (
	ErrNoPublicKey      = errors.New("operation requires a bootstrapping key")
	ErrEncodingMismatch = errors.New("incompatible encoding")
	ErrValueOutOfRange  = errors.New("value exceeds cleartext bit-width")
	ErrKeyDestroyed     = errors.New("secret key destroyed")
	ErrCacheMismatch    = errors.New("cached keys were generated for different parameters")
	ErrParamsMismatch   = errors.New("ciphertext parameters do not match")
)

type kindSentinel struct {
	kind Kind
}

func (s *kindSentinel) Error() string {
	return s.kind.String() + " error"
}

// Error is the error type returned by this package.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	s, ok := target.(*kindSentinel)
	return ok && s.kind == e.Kind
}

// KindOf returns the kind of err, or 0 if err does not come from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func paramError(op string, err error) error {
	return newError(KindParameter, op, err)
}

func paramErrorf(op, format string, args ...any) error {
	return newError(KindParameter, op, fmt.Errorf(format, args...))
}

func cryptoError(op string, err error) error {
	return newError(KindCryptoOperation, op, err)
}

func ioError(op string, err error) error {
	return newError(KindIO, op, err)
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}
