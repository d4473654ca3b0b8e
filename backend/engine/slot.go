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

package engine

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/gx-org/simjit/backend/module"
	"github.com/gx-org/simjit/build/fmterr"
	"github.com/gx-org/simjit/build/ir"
	"go.uber.org/zap"
)

// Slot is a global of the compiled module written by the engine.
// A slot belongs to an extern, a temporary or a tensor index and plays
// a role for its owner, e.g. the size of a set or the data of a tensor.
type Slot struct {
	owner string
	role  string
	cell  *module.Cell
}

// Owner returns the name of the variable the slot belongs to.
func (s *Slot) Owner() string {
	return s.owner
}

// Role of the slot for its owner.
func (s *Slot) Role() string {
	return s.role
}

// Cell returns the global of the slot.
func (s *Slot) Cell() *module.Cell {
	return s.cell
}

// Int returns the integer stored in the slot.
func (s *Slot) Int() (int, error) {
	return s.cell.Int()
}

// Ptr returns the pointer stored in the slot.
func (s *Slot) Ptr() (unsafe.Pointer, error) {
	return s.cell.Ptr()
}

// IsNull returns true if the slot stores the null pointer.
func (s *Slot) IsNull() bool {
	return s.cell.IsNull()
}

// String representation of the slot.
func (s *Slot) String() string {
	return fmt.Sprintf("%s[%s]: %s", s.owner, s.role, s.cell)
}

func (e *Engine) storeInt(s *Slot, i int) {
	s.cell.StoreInt(i)
	e.log.Debug("slot write", zap.String("owner", s.owner), zap.String("role", s.role), zap.Int("value", i))
}

func (e *Engine) storePtr(s *Slot, p unsafe.Pointer) {
	s.cell.StorePtr(p)
	e.log.Debug("slot write", zap.String("owner", s.owner), zap.String("role", s.role), zap.Uintptr("value", uintptr(p)))
}

func (e *Engine) newSlot(owner, role, global string) (*Slot, error) {
	cell, err := e.mod.GlobalAddress(global)
	if err != nil {
		return nil, err
	}
	cell.Clear()
	return &Slot{owner: owner, role: role, cell: cell}, nil
}

// resolveSlots fetches the globals of the externs, the temporaries and the
// tensor indices from the finalized module and clears them.
func (e *Engine) resolveSlots() error {
	env := e.fn.Env
	if env == nil {
		return nil
	}
	for _, ext := range env.Externs() {
		name := ext.Var.Name
		if _, ok := e.externSlots[name]; ok {
			return fmterr.Internalf("extern %s defined more than once", name)
		}
		slots := make([]*Slot, len(ext.Mappings))
		for i, m := range ext.Mappings {
			var err error
			if slots[i], err = e.newSlot(name, role(name, m), m.Name); err != nil {
				return err
			}
		}
		e.externSlots[name] = slots
	}
	for _, tmp := range env.Temporaries() {
		slot, err := e.newSlot(tmp.Name, "temporary", tmp.Name)
		if err != nil {
			return err
		}
		e.temporarySlots[tmp.Name] = slot
	}
	for _, ti := range env.TensorIndices() {
		coords, err := e.newSlot(ti.Name(), "coords", ti.CoordsArray().Name)
		if err != nil {
			return err
		}
		sinks, err := e.newSlot(ti.Name(), "sinks", ti.SinksArray().Name)
		if err != nil {
			return err
		}
		e.indexSlots[ti.Name()] = [2]*Slot{coords, sinks}
	}
	return nil
}

func role(owner string, mapping ir.Var) string {
	if mapping.Name == owner {
		return "data"
	}
	return strings.TrimPrefix(mapping.Name, owner+".")
}

// ExternSlots returns the slots of an extern, in the order compiled code
// reads them.
func (e *Engine) ExternSlots(name string) ([]*Slot, bool) {
	slots, ok := e.externSlots[name]
	return slots, ok
}

// TemporarySlot returns the slot storing the pointer to a temporary.
func (e *Engine) TemporarySlot(name string) (*Slot, bool) {
	slot, ok := e.temporarySlots[name]
	return slot, ok
}

// IndexSlots returns the coords and sinks slots of a tensor index.
func (e *Engine) IndexSlots(name string) (coords, sinks *Slot, ok bool) {
	slots, ok := e.indexSlots[name]
	return slots[0], slots[1], ok
}
