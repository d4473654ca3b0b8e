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

// Package handle maps Go values to integer handles.
//
// Machine addresses of compiled code are handles: the zero handle is the
// null address and never maps to a value.
package handle

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/gx-org/simjit/base/sync"
)

// Handle to a Go object.
type Handle uintptr

var (
	// handles holds the mapping between Handle and Go values.
	handles   = sync.Map[Handle, any]{}
	handleIdx = atomic.Uintptr{}
)

// Wrap converts a Go value to a handle.
//
// Handles must be unwrapped with the Unwrap() function using the same type T.
func Wrap[T comparable](v T) Handle {
	var zero T
	if v == zero {
		return 0
	}

	h := Handle(handleIdx.Add(1))
	if h == 0 {
		panic("handle: ran out of handle space")
	}

	handles.Store(h, v)
	return h
}

// Unwrap converts a handle returned by Wrap() into the original Go value.
// Returns false if the handle is null, has been released, or does not hold a T.
func Unwrap[T any](h Handle) (T, bool) {
	var zero T
	if h == 0 {
		return zero, false
	}
	v, ok := handles.Load(h)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Release deletes a handle.
//
// The handle must not be used (either through Unwrap or Release) after deletion.
// Releasing the null handle is a no-op.
func Release(h Handle) error {
	if h == 0 {
		return nil
	}
	if _, ok := handles.LoadAndDelete(h); !ok {
		return errors.Errorf("releasing invalid handle %#x", uintptr(h))
	}
	return nil
}

// Count returns the total number of active handles.
func Count() int {
	return handles.Size()
}

// Dump returns a string representation of all existing handles.
func Dump() string {
	var lines []string
	for h, v := range handles.Iter() {
		lines = append(lines, fmt.Sprintf("%T handle: %#x", v, uintptr(h)))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
