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

// Package pe implements path expressions and their path indices.
//
// A path expression describes which elements of a set relate to which
// elements of another set, independently of the storage of the sets.
// Evaluating a path expression against bound sets produces a path index.
package pe

import (
	"fmt"
	"slices"

	"github.com/gx-org/simjit/build/fmterr"
	"github.com/gx-org/simjit/graph"
)

// Var is an element variable ranging over the elements of a named set.
type Var struct {
	Name string
	Set  string
}

// String representation of the variable.
func (v Var) String() string {
	return v.Name + ":" + v.Set
}

// PathExpression relates the elements of a source set to the elements of
// a sink set.
type PathExpression interface {
	// Source variable of the expression.
	Source() Var
	// Sink variable of the expression.
	Sink() Var
	// Sets returns the sorted names of all the sets the expression ranges over.
	Sets() []string
	// String returns the canonical representation of the expression.
	String() string

	// evaluate returns, for every element of the source set, the elements
	// of the sink set it relates to.
	evaluate(sets map[string]*graph.Set) ([][]int32, error)
}

func lookup(sets map[string]*graph.Set, name string) (*graph.Set, error) {
	set, ok := sets[name]
	if !ok {
		return nil, fmterr.Preconditionf("no set bound to %s", name)
	}
	return set, nil
}

// Link relates an edge set to one of its endpoint sets, in either direction.
//
// From an edge set, every edge relates to its endpoints in the endpoint
// order of the edge. From an endpoint set, every element relates to the
// sorted edges it is an endpoint of.
type Link struct {
	From, To Var
}

var _ PathExpression = (*Link)(nil)

// NewLink returns a path expression linking two element variables.
func NewLink(from, to Var) *Link {
	return &Link{From: from, To: to}
}

// Source variable of the link.
func (l *Link) Source() Var {
	return l.From
}

// Sink variable of the link.
func (l *Link) Sink() Var {
	return l.To
}

// Sets returns the names of the sets of the link.
func (l *Link) Sets() []string {
	return sortedUnique([]string{l.From.Set, l.To.Set})
}

// String representation of the link.
func (l *Link) String() string {
	return fmt.Sprintf("link(%s, %s)", l.From, l.To)
}

func (l *Link) evaluate(sets map[string]*graph.Set) ([][]int32, error) {
	from, err := lookup(sets, l.From.Set)
	if err != nil {
		return nil, err
	}
	to, err := lookup(sets, l.To.Set)
	if err != nil {
		return nil, err
	}
	if slices.Contains(from.EndpointSets(), to) {
		return edgesToEndpoints(from, to), nil
	}
	if slices.Contains(to.EndpointSets(), from) {
		return endpointsToEdges(from, to), nil
	}
	return nil, fmterr.Preconditionf("sets %s and %s in %s are not connected by edges", l.From.Set, l.To.Set, l)
}

func edgesToEndpoints(edges, endpoints *graph.Set) [][]int32 {
	adj := make([][]int32, edges.Size())
	card := edges.Cardinality()
	eps := edges.Endpoints()
	for e := range adj {
		for j, set := range edges.EndpointSets() {
			if set == endpoints {
				adj[e] = append(adj[e], eps[e*card+j])
			}
		}
	}
	return adj
}

func endpointsToEdges(endpoints, edges *graph.Set) [][]int32 {
	adj := make([][]int32, endpoints.Size())
	card := edges.Cardinality()
	eps := edges.Endpoints()
	for e := range edges.Size() {
		for j, set := range edges.EndpointSets() {
			if set != endpoints {
				continue
			}
			v := eps[e*card+j]
			if n := len(adj[v]); n > 0 && adj[v][n-1] == int32(e) {
				continue
			}
			adj[v] = append(adj[v], int32(e))
		}
	}
	return adj
}

// Compose relates the source of a left expression to the sink of a right
// expression through the elements of their shared intermediate set.
type Compose struct {
	Left, Right PathExpression
}

var _ PathExpression = (*Compose)(nil)

// NewCompose returns the composition of two path expressions.
// The sink set of left must be the source set of right.
func NewCompose(left, right PathExpression) (*Compose, error) {
	if left.Sink().Set != right.Source().Set {
		return nil, fmterr.Preconditionf("cannot compose %s with %s: sink set %s is not source set %s", left, right, left.Sink().Set, right.Source().Set)
	}
	return &Compose{Left: left, Right: right}, nil
}

// Source variable of the composition.
func (c *Compose) Source() Var {
	return c.Left.Source()
}

// Sink variable of the composition.
func (c *Compose) Sink() Var {
	return c.Right.Sink()
}

// Sets returns the names of the sets of both expressions.
func (c *Compose) Sets() []string {
	return sortedUnique(append(c.Left.Sets(), c.Right.Sets()...))
}

// String representation of the composition.
func (c *Compose) String() string {
	return fmt.Sprintf("compose(%s, %s)", c.Left, c.Right)
}

func (c *Compose) evaluate(sets map[string]*graph.Set) ([][]int32, error) {
	left, err := c.Left.evaluate(sets)
	if err != nil {
		return nil, err
	}
	right, err := c.Right.evaluate(sets)
	if err != nil {
		return nil, err
	}
	adj := make([][]int32, len(left))
	for i, mids := range left {
		var sinks []int32
		for _, mid := range mids {
			if int(mid) >= len(right) {
				return nil, fmterr.Internalf("%s: intermediate element %d out of range [0, %d)", c, mid, len(right))
			}
			sinks = append(sinks, right[mid]...)
		}
		slices.Sort(sinks)
		adj[i] = slices.Compact(sinks)
	}
	return adj, nil
}

func sortedUnique(names []string) []string {
	slices.Sort(names)
	return slices.Compact(names)
}
