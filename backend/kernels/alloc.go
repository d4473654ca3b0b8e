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

// Package kernels implements the buffers storing the temporaries of
// compiled programs. The memory is fully managed by the Go runtime.
package kernels

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"go.uber.org/zap"
)

type (
	// Allocator allocates buffers given a shape and keeps track of the
	// buffers that have not been freed yet.
	// Freed buffers are recycled by Allocate.
	Allocator struct {
		log *zap.Logger

		mut  sync.Mutex
		live int
		free map[int][][]byte
	}

	// Buffer of components allocated by an Allocator.
	Buffer struct {
		alloc *Allocator
		shape *shape.Shape

		mut  sync.Mutex
		data []byte
	}
)

// NewAllocator returns a new allocator.
func NewAllocator(log *zap.Logger) *Allocator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Allocator{log: log, free: make(map[int][][]byte)}
}

// Zero allocates a buffer given a shape. All components are set to zero.
func (a *Allocator) Zero(sh *shape.Shape) (*Buffer, error) {
	buf, err := a.Allocate(sh)
	if err != nil {
		return nil, err
	}
	clear(buf.data)
	return buf, nil
}

// Allocate a buffer given a shape. The content of the buffer is unspecified.
func (a *Allocator) Allocate(sh *shape.Shape) (*Buffer, error) {
	if sh.DType == dtype.Invalid {
		return nil, errors.Errorf("cannot allocate a buffer of data type %s", sh.DType.String())
	}
	for _, l := range sh.AxisLengths {
		if l < 0 {
			return nil, errors.Errorf("cannot allocate a buffer of shape %s: negative axis length", sh)
		}
	}
	size := sh.ByteSize()
	a.mut.Lock()
	defer a.mut.Unlock()
	var data []byte
	if recycled := a.free[size]; len(recycled) > 0 {
		data = recycled[len(recycled)-1]
		a.free[size] = recycled[:len(recycled)-1]
	} else {
		data = make([]byte, size)
	}
	a.live++
	a.log.Debug("buffer allocated", zap.Stringer("shape", sh), zap.Int("bytes", size))
	return &Buffer{alloc: a, shape: sh, data: data}, nil
}

// Live returns the number of buffers allocated and not freed yet.
func (a *Allocator) Live() int {
	a.mut.Lock()
	defer a.mut.Unlock()
	return a.live
}

func (a *Allocator) release(data []byte) {
	a.mut.Lock()
	defer a.mut.Unlock()
	a.live--
	if len(data) > 0 {
		a.free[len(data)] = append(a.free[len(data)], data)
	}
}

// Shape of the buffer.
func (buf *Buffer) Shape() *shape.Shape {
	return buf.shape
}

// Size returns the number of components in the buffer.
func (buf *Buffer) Size() int {
	return buf.shape.Size()
}

// Acquire locks the buffer and returns it.
// The buffer can be read or written by the caller. All other access is locked.
// Returns nil if the buffer has been freed.
func (buf *Buffer) Acquire() []byte {
	buf.mut.Lock()
	return buf.data
}

// Release the buffer. The caller of that function should not read or write data
// from the buffer.
func (buf *Buffer) Release() {
	buf.mut.Unlock()
}

// Data returns a pointer to the first component of the buffer.
// Returns nil if the buffer is empty or has been freed.
func (buf *Buffer) Data() unsafe.Pointer {
	buf.mut.Lock()
	defer buf.mut.Unlock()
	if len(buf.data) == 0 {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(buf.data))
}

// Freed returns true if the buffer has been freed.
func (buf *Buffer) Freed() bool {
	buf.mut.Lock()
	defer buf.mut.Unlock()
	return buf.data == nil
}

// Free the memory occupied by the buffer. The buffer is invalid after
// calling this function. Freeing a buffer twice returns an error.
func (buf *Buffer) Free() error {
	buf.mut.Lock()
	defer buf.mut.Unlock()
	if buf.data == nil {
		return errors.Errorf("buffer of shape %s freed twice", buf.shape)
	}
	buf.alloc.release(buf.data)
	buf.data = nil
	return nil
}

// ToSlice returns the components of a buffer as a Go slice sharing the
// buffer storage.
func ToSlice[T dtype.GoDataType](buf *Buffer) ([]T, error) {
	if want := dtype.Generic[T](); want != buf.shape.DType {
		return nil, errors.Errorf("cannot read buffer of type %s as %s", buf.shape.DType.String(), want.String())
	}
	data := buf.Acquire()
	defer buf.Release()
	if len(data) == 0 {
		return nil, nil
	}
	return dtype.ToSlice[T](data), nil
}
