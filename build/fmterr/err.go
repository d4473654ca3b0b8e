// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fmterr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error categories. Every error returned by the runtime wraps exactly one of them
// and can be tested with errors.Is.
var (
	// ErrPrecondition is returned when the caller violates the contract of an
	// operation, e.g. binding an unknown name or a value of the wrong kind.
	ErrPrecondition = errors.New("precondition violation")

	// ErrNotSupported is returned for constructs the runtime does not implement.
	ErrNotSupported = errors.New("not supported")

	// ErrInternal is returned when an invariant of the runtime itself is broken.
	ErrInternal = errors.New("internal error")
)

type kindError struct {
	kind error
	err  error
}

func newKind(kind error, err error) error {
	return kindError{kind: kind, err: err}
}

// Precondition marks an error as a precondition violation.
func Precondition(err error) error {
	if err == nil {
		return nil
	}
	return newKind(ErrPrecondition, errors.WithStack(err))
}

// Preconditionf returns a precondition violation error.
func Preconditionf(format string, a ...any) error {
	return newKind(ErrPrecondition, errors.Errorf(format, a...))
}

// NotSupportedf returns an error for a construct that is not supported.
func NotSupportedf(format string, a ...any) error {
	return newKind(ErrNotSupported, errors.Errorf(format, a...))
}

// Internal marks an error as internal.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	return newKind(ErrInternal, err)
}

// Internalf returns a formatted internal error.
func Internalf(format string, a ...any) error {
	return Internal(errors.Errorf(format, a...))
}

// Error returns a string description of the error.
func (err kindError) Error() string {
	if err.kind == ErrInternal {
		return fmt.Sprintf("simjit internal error. This is a bug in simjit. Please report it. Error: %s", err.err.Error())
	}
	return err.kind.Error() + ": " + err.err.Error()
}

// Is reports whether the error belongs to the target category.
func (err kindError) Is(target error) bool {
	return err.kind == target
}

// Unwrap the error.
func (err kindError) Unwrap() error {
	return err.err
}

// Format writes the error into the state of the formatter.
func (err kindError) Format(s fmt.State, verb rune) {
	format(err, s, verb)
}
