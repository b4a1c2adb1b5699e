// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package ffi

import (
	"errors"
	"fmt"
	"math"

	"github.com/luxfi/torus"
)

// Code is the numeric error class carried across the boundary.
type Code int32

const (
	CodeOK Code = iota
	CodeParameter
	CodeCrypto
	CodeIO
	CodeHandle
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeParameter:
		return "parameter"
	case CodeCrypto:
		return "crypto"
	case CodeIO:
		return "io"
	case CodeHandle:
		return "handle"
	default:
		return fmt.Sprintf("code(%d)", int32(c))
	}
}

// ErrInvalidHandle is reported for unknown, freed, or mistyped handles.
var ErrInvalidHandle = errors.New("invalid handle")

// Result is the tagged outcome of every call. The zero Result is success.
type Result struct {
	Code    Code
	Kind    string
	Message string
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Code == CodeOK
}

// Err returns the result as an error, or nil on success.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &Error{Result: r}
}

// Error is a failed Result used as a Go error.
type Error struct {
	Result Result
}

func (e *Error) Error() string {
	return e.Result.Kind + ": " + e.Result.Message
}

var okResult = Result{Code: CodeOK, Kind: CodeOK.String()}

func failure(code Code, msg string) Result {
	return Result{Code: code, Kind: code.String(), Message: msg}
}

func resultOf(err error) Result {
	if err == nil {
		return okResult
	}
	if errors.Is(err, ErrInvalidHandle) {
		return failure(CodeHandle, err.Error())
	}
	switch torus.KindOf(err) {
	case torus.KindParameter:
		return failure(CodeParameter, err.Error())
	case torus.KindIO:
		return failure(CodeIO, err.Error())
	default:
		return failure(CodeCrypto, err.Error())
	}
}

func handleError(h Handle, want string) Result {
	return resultOf(fmt.Errorf("%w: %d is not a live %s", ErrInvalidHandle, h, want))
}

// recoverResult turns a panic escaping the core into a crypto result.
func recoverResult(res *Result) {
	if r := recover(); r != nil {
		*res = failure(CodeCrypto, fmt.Sprintf("panic: %v", r))
	}
}

// MaxBufferSize is the largest byte buffer accepted from a foreign caller.
const MaxBufferSize = math.MaxInt32

// CheckBufferSize rejects buffer lengths above MaxBufferSize.
func CheckBufferSize(n uint64) Result {
	if n > MaxBufferSize {
		return failure(CodeParameter, fmt.Sprintf("buffer of %d bytes exceeds %d", n, MaxBufferSize))
	}
	return okResult
}
