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

package ir

import (
	"slices"
	"strconv"

	"github.com/gx-org/simjit/base/stringseq"
	"github.com/gx-org/simjit/build/fmterr"
)

// IndexSetKind is the kind of an index set.
type IndexSetKind int

const (
	// RangeKind is a range [0, n) with n known statically.
	RangeKind IndexSetKind = iota
	// SetKind ranges over the elements of a set.
	SetKind
	// SingleKind is a single index.
	SingleKind
	// DynamicKind ranges over a set computed at run time.
	DynamicKind
)

// IndexSet is a set of indices of a tensor dimension.
type IndexSet struct {
	kind IndexSetKind
	size int
	set  string
}

// Range returns the index set [0, n).
func Range(n int) IndexSet {
	return IndexSet{kind: RangeKind, size: n}
}

// SetOf returns the index set ranging over the elements of a named set.
func SetOf(name string) IndexSet {
	return IndexSet{kind: SetKind, set: name}
}

// Single returns an index set with a single index.
func Single() IndexSet {
	return IndexSet{kind: SingleKind, size: 1}
}

// Dynamic returns an index set computed at run time from a named set.
func Dynamic(name string) IndexSet {
	return IndexSet{kind: DynamicKind, set: name}
}

// Kind of the index set.
func (is IndexSet) Kind() IndexSetKind {
	return is.kind
}

// SetName returns the name of the set for set and dynamic index sets.
func (is IndexSet) SetName() string {
	return is.set
}

// Size returns the number of indices in the set, as known statically.
func (is IndexSet) Size() (int, error) {
	switch is.kind {
	case RangeKind, SingleKind:
		return is.size, nil
	case SetKind:
		return 0, fmterr.NotSupportedf("static size of index set %s: only known once %s is bound", is, is.set)
	default:
		return 0, fmterr.NotSupportedf("static size of dynamic index set %s", is)
	}
}

// String representation of the index set.
func (is IndexSet) String() string {
	switch is.kind {
	case RangeKind:
		return strconv.Itoa(is.size)
	case SetKind:
		return is.set
	case SingleKind:
		return "single"
	default:
		return "dynamic(" + is.set + ")"
	}
}

// IndexDomain is the index set of a tensor dimension. A domain with nested
// index sets is blocked: the first index set indexes the blocks.
type IndexDomain struct {
	sets []IndexSet
}

// NewDomain returns a new index domain given its nested index sets.
func NewDomain(sets ...IndexSet) IndexDomain {
	return IndexDomain{sets: sets}
}

// IndexSets returns the nested index sets of the domain.
func (d IndexDomain) IndexSets() []IndexSet {
	return d.sets
}

// Outer returns the outermost index set of the domain.
func (d IndexDomain) Outer() (IndexSet, error) {
	if len(d.sets) == 0 {
		return IndexSet{}, fmterr.Internalf("dimension with no index set")
	}
	return d.sets[0], nil
}

// Size returns the number of indices in the domain, as known statically.
func (d IndexDomain) Size() (int, error) {
	size := 1
	for _, is := range d.sets {
		isSize, err := is.Size()
		if err != nil {
			return 0, err
		}
		size *= isSize
	}
	return size, nil
}

// String representation of the domain.
func (d IndexDomain) String() string {
	return stringseq.JoinStringer(slices.Values(d.sets), ":")
}
