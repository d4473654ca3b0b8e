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

package module

import (
	"fmt"
	"unsafe"

	"github.com/gx-org/simjit/build/fmterr"
)

type cellKind int

const (
	unsetCell cellKind = iota
	nullCell
	intCell
	ptrCell
)

// Cell is a one-word global of a module. Compiled code reads the data it
// does not receive as parameters from cells.
// A cell holds either an integer or a pointer.
type Cell struct {
	name string
	kind cellKind
	i    int
	p    unsafe.Pointer
}

// Name of the global.
func (c *Cell) Name() string {
	return c.name
}

// StoreInt writes an integer into the cell.
func (c *Cell) StoreInt(i int) {
	c.kind = intCell
	c.i = i
	c.p = nil
}

// StorePtr writes a pointer into the cell.
func (c *Cell) StorePtr(p unsafe.Pointer) {
	if p == nil {
		c.Clear()
		return
	}
	c.kind = ptrCell
	c.p = p
	c.i = 0
}

// Clear writes the null pointer into the cell.
func (c *Cell) Clear() {
	c.kind = nullCell
	c.i = 0
	c.p = nil
}

// IsNull returns true if the cell holds the null pointer.
func (c *Cell) IsNull() bool {
	return c.kind == nullCell
}

// Int returns the integer stored in the cell.
func (c *Cell) Int() (int, error) {
	switch c.kind {
	case intCell:
		return c.i, nil
	case unsetCell:
		return 0, fmterr.Internalf("loading global %s: never written", c.name)
	}
	return 0, fmterr.Internalf("loading global %s: holds %s, not an integer", c.name, c.content())
}

// Ptr returns the pointer stored in the cell.
func (c *Cell) Ptr() (unsafe.Pointer, error) {
	switch c.kind {
	case ptrCell, nullCell:
		return c.p, nil
	case unsetCell:
		return nil, fmterr.Internalf("loading global %s: never written", c.name)
	}
	return nil, fmterr.Internalf("loading global %s: holds %s, not a pointer", c.name, c.content())
}

func (c *Cell) content() string {
	switch c.kind {
	case nullCell:
		return "null"
	case intCell:
		return fmt.Sprintf("i32 %d", c.i)
	case ptrCell:
		return fmt.Sprintf("ptr %p", c.p)
	}
	return "undef"
}

// String representation of the cell.
func (c *Cell) String() string {
	return fmt.Sprintf("@%s = %s", c.name, c.content())
}
