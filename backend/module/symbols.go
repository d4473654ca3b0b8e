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
	"slices"

	"github.com/gx-org/simjit/base/sync"
)

// Symbols maps external function names to machine addresses.
// Declarations of a module are resolved from its symbols when the module
// is finalized.
type Symbols struct {
	addrs sync.Map[string, Addr]
}

// NewSymbols returns an empty symbol table.
func NewSymbols() *Symbols {
	return &Symbols{}
}

// Add a symbol to the table. An existing symbol is replaced.
func (s *Symbols) Add(name string, addr Addr) {
	s.addrs.Store(name, addr)
}

// Remove a symbol from the table.
func (s *Symbols) Remove(name string) {
	s.addrs.Delete(name)
}

// Lookup returns the address of a symbol.
func (s *Symbols) Lookup(name string) (Addr, bool) {
	return s.addrs.Load(name)
}

// Names returns the sorted names of all symbols.
func (s *Symbols) Names() []string {
	var names []string
	for name := range s.addrs.Iter() {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
