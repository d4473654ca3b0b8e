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

package graph

import (
	"slices"
	"unsafe"
)

// NeighborIndex stores, for every element of the first endpoint set of an
// edge set, the sorted elements of that same set it shares an edge with
// (itself included). Endpoints in other sets are ignored.
//
// Neighbors of element i are stored in Neighbors()[Start()[i]:Start()[i+1]].
type NeighborIndex struct {
	start []int32
	nbrs  []int32
	// Version of the first endpoint set when the index was built.
	version uint64
}

// NeighborIndex returns the neighbor index of an edge set.
// The index is built on first use and rebuilt after edges or endpoint
// elements are added. Returns nil if the set is not an edge set.
func (s *Set) NeighborIndex() *NeighborIndex {
	if !s.IsEdgeSet() {
		return nil
	}
	if s.nbrs == nil || s.nbrs.version != s.endpointSets[0].Version() {
		s.nbrs = buildNeighborIndex(s)
	}
	return s.nbrs
}

func buildNeighborIndex(s *Set) *NeighborIndex {
	first := s.endpointSets[0]
	numElements := first.Size()
	adjacent := make([][]int32, numElements)
	card := s.Cardinality()
	for e := range s.size {
		var eps []int32
		for j := range card {
			if s.endpointSets[j] == first {
				eps = append(eps, s.endpoints[e*card+j])
			}
		}
		for _, i := range eps {
			adjacent[i] = append(adjacent[i], eps...)
		}
	}
	idx := &NeighborIndex{
		start:   make([]int32, numElements+1),
		version: first.Version(),
	}
	for i, nbrs := range adjacent {
		slices.Sort(nbrs)
		nbrs = slices.Compact(nbrs)
		idx.nbrs = append(idx.nbrs, nbrs...)
		idx.start[i+1] = int32(len(idx.nbrs))
	}
	return idx
}

// Start returns the offset of the neighbors of every element.
func (idx *NeighborIndex) Start() []int32 {
	return idx.start
}

// Neighbors returns the neighbors of all elements.
func (idx *NeighborIndex) Neighbors() []int32 {
	return idx.nbrs
}

// Of returns the neighbors of an element.
func (idx *NeighborIndex) Of(elem int) []int32 {
	return idx.nbrs[idx.start[elem]:idx.start[elem+1]]
}

// StartData returns a pointer to the start offsets.
func (idx *NeighborIndex) StartData() unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(idx.start))
}

// NeighborsData returns a pointer to the neighbors.
func (idx *NeighborIndex) NeighborsData() unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(idx.nbrs))
}
