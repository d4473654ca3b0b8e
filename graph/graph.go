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

// Package graph implements the sets bound to simulation programs at run time.
//
// A set is a collection of elements. Every element stores one value per field.
// An edge set additionally connects each of its elements to a fixed number of
// elements of its endpoint sets.
//
// Pointers returned by the Data methods are invalidated when elements are
// added to the set.
package graph

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/simjit/base/ordered"
)

// Set of elements with fields and, for edge sets, endpoints.
type Set struct {
	size         int
	version      uint64
	fields       *ordered.Map[string, *Field]
	endpointSets []*Set
	endpoints    []int32
	nbrs         *NeighborIndex
}

// NewSet returns a new empty set.
// Passing endpoint sets creates an edge set: every element of the set
// connects one element of each endpoint set, in order.
func NewSet(endpointSets ...*Set) *Set {
	return &Set{
		fields:       ordered.NewMap[string, *Field](),
		endpointSets: endpointSets,
	}
}

// Size returns the number of elements in the set.
func (s *Set) Size() int {
	return s.size
}

// Version is incremented every time the set is modified.
func (s *Set) Version() uint64 {
	return s.version
}

// IsEdgeSet returns true if the elements of the set have endpoints.
func (s *Set) IsEdgeSet() bool {
	return len(s.endpointSets) > 0
}

// Cardinality returns the number of endpoints of every edge.
func (s *Set) Cardinality() int {
	return len(s.endpointSets)
}

// EndpointSets returns the sets the edges of this set connect.
func (s *Set) EndpointSets() []*Set {
	return s.endpointSets
}

// AddField adds a field to the set.
// Every element of the set stores blockSize components of type dt for the field.
func (s *Set) AddField(name string, dt dtype.DataType, blockSize int) (*Field, error) {
	if s.fields.Has(name) {
		return nil, errors.Errorf("set already has a field %s", name)
	}
	if blockSize <= 0 {
		return nil, errors.Errorf("invalid block size %d for field %s", blockSize, name)
	}
	f := &Field{
		name:      name,
		dt:        dt,
		blockSize: blockSize,
		data:      make([]byte, s.size*blockSize*dtype.Sizeof(dt)),
	}
	s.fields.Store(name, f)
	s.version++
	return f, nil
}

// Field returns a field given its name.
func (s *Set) Field(name string) (*Field, bool) {
	return s.fields.Load(name)
}

// Fields returns all the fields of the set in the order they were added.
func (s *Set) Fields() []*Field {
	fields := make([]*Field, 0, s.fields.Size())
	for f := range s.fields.Values() {
		fields = append(fields, f)
	}
	return fields
}

// FieldData returns a pointer to the data of a field.
func (s *Set) FieldData(name string) (unsafe.Pointer, error) {
	f, ok := s.fields.Load(name)
	if !ok {
		return nil, errors.Errorf("set has no field %s", name)
	}
	return f.Data(), nil
}

func (s *Set) grow() int {
	elem := s.size
	s.size++
	s.version++
	for f := range s.fields.Values() {
		f.data = append(f.data, make([]byte, f.blockSize*dtype.Sizeof(f.dt))...)
	}
	return elem
}

// Add a new element to a set and returns its index.
// All fields of the new element are set to zero.
func (s *Set) Add() (int, error) {
	if s.IsEdgeSet() {
		return -1, errors.Errorf("cannot add an element without endpoints to an edge set")
	}
	return s.grow(), nil
}

// AddEdge adds an element connecting the given endpoints to an edge set
// and returns its index.
func (s *Set) AddEdge(endpoints ...int) (int, error) {
	if len(endpoints) != len(s.endpointSets) {
		return -1, errors.Errorf("edge has %d endpoints but the set expects %d", len(endpoints), len(s.endpointSets))
	}
	for i, ep := range endpoints {
		if ep < 0 || ep >= s.endpointSets[i].Size() {
			return -1, errors.Errorf("endpoint %d out of range: %d not in [0, %d)", i, ep, s.endpointSets[i].Size())
		}
	}
	for _, ep := range endpoints {
		s.endpoints = append(s.endpoints, int32(ep))
	}
	s.nbrs = nil
	return s.grow(), nil
}

// Endpoint returns the j-th endpoint of an edge.
func (s *Set) Endpoint(edge, j int) int {
	return int(s.endpoints[edge*len(s.endpointSets)+j])
}

// Endpoints returns the endpoints of all edges.
// The endpoints of edge i are stored in [i*Cardinality(), (i+1)*Cardinality()).
func (s *Set) Endpoints() []int32 {
	return s.endpoints
}

// EndpointsData returns a pointer to the endpoints of the set.
func (s *Set) EndpointsData() unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(s.endpoints))
}

// String representation of the set.
func (s *Set) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "set{size: %d", s.size)
	if s.IsEdgeSet() {
		fmt.Fprintf(&b, ", cardinality: %d", s.Cardinality())
	}
	for f := range s.fields.Values() {
		fmt.Fprintf(&b, ", %s", f)
	}
	b.WriteString("}")
	return b.String()
}

// Field of a set.
type Field struct {
	name      string
	dt        dtype.DataType
	blockSize int
	data      []byte
}

// Name of the field.
func (f *Field) Name() string {
	return f.name
}

// DType returns the data type of the field components.
func (f *Field) DType() dtype.DataType {
	return f.dt
}

// BlockSize returns the number of components per element.
func (f *Field) BlockSize() int {
	return f.blockSize
}

// Bytes returns the raw data of the field.
func (f *Field) Bytes() []byte {
	return f.data
}

// Data returns a pointer to the first component of the field.
// Returns nil if the set is empty.
func (f *Field) Data() unsafe.Pointer {
	if len(f.data) == 0 {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(f.data))
}

// String representation of the field.
func (f *Field) String() string {
	return fmt.Sprintf("%s:%s[%d]", f.name, f.dt.String(), f.blockSize)
}

// Values returns the components of a field as a Go slice sharing
// the field storage.
func Values[T dtype.GoDataType](f *Field) ([]T, error) {
	if want := dtype.Generic[T](); want != f.dt {
		return nil, errors.Errorf("cannot read field %s of type %s as %s", f.name, f.dt.String(), want.String())
	}
	if len(f.data) == 0 {
		return nil, nil
	}
	return dtype.ToSlice[T](f.data), nil
}
