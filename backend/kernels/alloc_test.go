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

package kernels_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/gx-org/simjit/backend/kernels"
	"go.uber.org/zap/zaptest"
)

func TestZero(t *testing.T) {
	alloc := kernels.NewAllocator(zaptest.NewLogger(t))
	sh := &shape.Shape{DType: dtype.Float32, AxisLengths: []int{4}}
	first, err := alloc.Allocate(sh)
	if err != nil {
		t.Fatal(err)
	}
	vals, err := kernels.ToSlice[float32](first)
	if err != nil {
		t.Fatal(err)
	}
	for i := range vals {
		vals[i] = 1
	}
	if err := first.Free(); err != nil {
		t.Fatal(err)
	}
	second, err := alloc.Zero(sh)
	if err != nil {
		t.Fatal(err)
	}
	got, err := kernels.ToSlice[float32](second)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float32{0, 0, 0, 0}, got); diff != "" {
		t.Errorf("buffer not zeroed (-want +got):\n%s", diff)
	}
	if got, want := second.Size(), 4; got != want {
		t.Errorf("got size %d but want %d", got, want)
	}
	if _, err := kernels.ToSlice[int64](second); err == nil {
		t.Errorf("reading a float32 buffer as int64 did not fail")
	}
	if err := second.Free(); err != nil {
		t.Fatal(err)
	}
}

func TestFree(t *testing.T) {
	alloc := kernels.NewAllocator(nil)
	sh := &shape.Shape{DType: dtype.Int32, AxisLengths: []int{2, 3}}
	bufs := make([]*kernels.Buffer, 3)
	for i := range bufs {
		var err error
		if bufs[i], err = alloc.Allocate(sh); err != nil {
			t.Fatal(err)
		}
	}
	if got, want := alloc.Live(), 3; got != want {
		t.Errorf("got %d live buffers but want %d", got, want)
	}
	for _, buf := range bufs {
		if err := buf.Free(); err != nil {
			t.Fatal(err)
		}
		if !buf.Freed() {
			t.Errorf("buffer not marked as freed")
		}
		if buf.Data() != nil {
			t.Errorf("freed buffer still has data")
		}
	}
	if got := alloc.Live(); got != 0 {
		t.Errorf("got %d live buffers after freeing all of them", got)
	}
	if err := bufs[0].Free(); err == nil {
		t.Errorf("freeing a buffer twice did not fail")
	}
	if got := alloc.Live(); got != 0 {
		t.Errorf("freeing a buffer twice changed the number of live buffers to %d", got)
	}
}

func TestEmpty(t *testing.T) {
	alloc := kernels.NewAllocator(nil)
	buf, err := alloc.Zero(&shape.Shape{DType: dtype.Float64, AxisLengths: []int{0}})
	if err != nil {
		t.Fatal(err)
	}
	if buf.Data() != nil {
		t.Errorf("empty buffer has data at %p", buf.Data())
	}
	if err := buf.Free(); err != nil {
		t.Errorf("freeing an empty buffer: %v", err)
	}
}
