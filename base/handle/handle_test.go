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

package handle_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/simjit/base/handle"
)

func checkHandleCount(t *testing.T, startCount int) {
	endCount := handle.Count()
	if endCount != startCount {
		t.Errorf("handles are leaking: started with %d and ended with %d:\n%s", startCount, endCount, handle.Dump())
	}
}

func TestWrapStructPointer(t *testing.T) {
	defer checkHandleCount(t, handle.Count())
	type test struct {
		A int32
		B string
	}
	want := &test{A: 42, B: "more data"}
	h := handle.Wrap(want)
	got, ok := handle.Unwrap[*test](h)
	if !ok {
		t.Fatalf("cannot unwrap handle %v", h)
	}
	if !cmp.Equal(*got, *want) {
		t.Errorf("wrong value: got %v, want %v", *got, *want)
	}
	if err := handle.Release(h); err != nil {
		t.Error(err)
	}
}

func TestNullHandle(t *testing.T) {
	defer checkHandleCount(t, handle.Count())
	var nilFunc *func()
	if h := handle.Wrap(nilFunc); h != 0 {
		t.Errorf("wrapping a nil pointer returned handle %v but want 0", h)
	}
	if _, ok := handle.Unwrap[*func()](0); ok {
		t.Errorf("unwrapping the null handle succeeded")
	}
	if err := handle.Release(0); err != nil {
		t.Errorf("releasing the null handle: %v", err)
	}
}

func TestReleaseTwice(t *testing.T) {
	defer checkHandleCount(t, handle.Count())
	v := 3
	h := handle.Wrap(&v)
	if err := handle.Release(h); err != nil {
		t.Fatal(err)
	}
	if err := handle.Release(h); err == nil {
		t.Errorf("releasing a handle twice did not return an error")
	}
	if _, ok := handle.Unwrap[*int](h); ok {
		t.Errorf("unwrapping a released handle succeeded")
	}
}

func TestUnwrapWrongType(t *testing.T) {
	defer checkHandleCount(t, handle.Count())
	v := 3
	h := handle.Wrap(&v)
	defer handle.Release(h)
	if _, ok := handle.Unwrap[*string](h); ok {
		t.Errorf("unwrapping a *int handle as a *string succeeded")
	}
}

type fake struct{}

func BenchmarkWrap(b *testing.B) {
	value := &fake{}
	b.ReportAllocs()
	for range b.N {
		handle.Release(handle.Wrap(value))
	}
}
