// Copyright 2025 Google LLC
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

// Package uname provides unique names.
package uname

import (
	"strconv"
	"sync"
)

// Unique generates unique names. It is safe for concurrent use.
type Unique struct {
	mut   sync.Mutex
	names map[string]int
}

// New name generator.
func New() *Unique {
	return &Unique{names: make(map[string]int)}
}

// Name returns a unique name given a desired root name.
// The root is returned the first time. A counter is appended afterward.
func (n *Unique) Name(root string) string {
	n.mut.Lock()
	defer n.mut.Unlock()
	next, ok := n.names[root]
	n.names[root] = next + 1
	if !ok || next == 0 {
		return root
	}
	return root + strconv.Itoa(next)
}

// Count returns the number of names generated from a root.
func (n *Unique) Count(root string) int {
	n.mut.Lock()
	defer n.mut.Unlock()
	return n.names[root]
}
