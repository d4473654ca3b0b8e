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

package pe

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/gx-org/simjit/graph"
)

// PathIndex is the evaluation of a path expression against bound sets.
type PathIndex interface {
	// NumElements returns the number of elements of the source set.
	NumElements() int
	// NumNeighbors returns the total number of (source, sink) pairs.
	NumNeighbors() int
	// Neighbors returns the sink elements related to a source element.
	Neighbors(elem int) []int32
	// String representation of the index.
	String() string
}

// SegmentedPathIndex stores a path index as an offset array and a sink
// array, like the row pointers and column indices of a CSR matrix.
//
// The sinks of element i are stored in Sinks()[Coords()[i]:Coords()[i+1]].
type SegmentedPathIndex struct {
	coords []int32
	sinks  []int32
}

var _ PathIndex = (*SegmentedPathIndex)(nil)

// NewSegmentedPathIndex returns a segmented path index from the sinks of
// every source element.
func NewSegmentedPathIndex(adj [][]int32) *SegmentedPathIndex {
	idx := &SegmentedPathIndex{
		coords: make([]int32, len(adj)+1),
		sinks:  []int32{},
	}
	for i, sinks := range adj {
		idx.sinks = append(idx.sinks, sinks...)
		idx.coords[i+1] = int32(len(idx.sinks))
	}
	return idx
}

// NumElements returns the number of source elements.
func (idx *SegmentedPathIndex) NumElements() int {
	return len(idx.coords) - 1
}

// NumNeighbors returns the length of the sink array.
func (idx *SegmentedPathIndex) NumNeighbors() int {
	return len(idx.sinks)
}

// Neighbors returns the sinks of a source element.
func (idx *SegmentedPathIndex) Neighbors(elem int) []int32 {
	return idx.sinks[idx.coords[elem]:idx.coords[elem+1]]
}

// Coords returns the offset array.
func (idx *SegmentedPathIndex) Coords() []int32 {
	return idx.coords
}

// Sinks returns the sink array.
func (idx *SegmentedPathIndex) Sinks() []int32 {
	return idx.sinks
}

// CoordData returns a pointer to the offset array.
func (idx *SegmentedPathIndex) CoordData() unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(idx.coords))
}

// SinkData returns a pointer to the sink array.
func (idx *SegmentedPathIndex) SinkData() unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(idx.sinks))
}

// String representation of the index.
func (idx *SegmentedPathIndex) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "segmented path index (%d elements, %d neighbors)\n", idx.NumElements(), idx.NumNeighbors())
	fmt.Fprintf(&b, "  coords: %v\n", idx.coords)
	fmt.Fprintf(&b, "  sinks : %v", idx.sinks)
	return b.String()
}

// EndpointPathIndex relates every edge of an edge set to its endpoints
// without storing offsets: all edges have the same number of endpoints.
type EndpointPathIndex struct {
	edges *graph.Set
}

var _ PathIndex = (*EndpointPathIndex)(nil)

// NewEndpointPathIndex returns the endpoint path index of an edge set.
func NewEndpointPathIndex(edges *graph.Set) *EndpointPathIndex {
	return &EndpointPathIndex{edges: edges}
}

// NumElements returns the number of edges.
func (idx *EndpointPathIndex) NumElements() int {
	return idx.edges.Size()
}

// NumNeighbors returns the number of endpoints of all the edges.
func (idx *EndpointPathIndex) NumNeighbors() int {
	return idx.edges.Size() * idx.edges.Cardinality()
}

// Neighbors returns the endpoints of an edge.
func (idx *EndpointPathIndex) Neighbors(elem int) []int32 {
	card := idx.edges.Cardinality()
	return idx.edges.Endpoints()[elem*card : (elem+1)*card]
}

// String representation of the index.
func (idx *EndpointPathIndex) String() string {
	return fmt.Sprintf("endpoint path index (%d edges, cardinality %d)", idx.edges.Size(), idx.edges.Cardinality())
}
