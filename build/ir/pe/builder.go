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
	"slices"
	"strings"

	simfmt "github.com/gx-org/simjit/base/fmt"
	"github.com/gx-org/simjit/build/fmterr"
	"github.com/gx-org/simjit/graph"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
)

type setVersion struct {
	set     *graph.Set
	version uint64
}

type cacheEntry struct {
	index PathIndex
	sets  map[string]setVersion
}

// Builder evaluates path expressions against bound sets and caches the
// resulting path indices, keyed by the canonical string of the expression.
//
// A cached index is reused as long as every set the expression ranges over
// is still bound to the same set and that set has not been modified.
// Binding a different set under a name drops every index mentioning it.
type Builder struct {
	log   *zap.Logger
	sets  map[string]*graph.Set
	cache map[string]*cacheEntry
}

// NewBuilder returns a new path index builder.
func NewBuilder(log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		log:   log,
		sets:  make(map[string]*graph.Set),
		cache: make(map[string]*cacheEntry),
	}
}

// Bind a set to a name.
func (b *Builder) Bind(name string, set *graph.Set) {
	if prev, ok := b.sets[name]; ok && prev != set {
		b.Invalidate(name)
	}
	b.sets[name] = set
}

// Set returns the set bound to a name.
func (b *Builder) Set(name string) (*graph.Set, bool) {
	set, ok := b.sets[name]
	return set, ok
}

// Invalidate drops every cached index whose expression ranges over a set.
func (b *Builder) Invalidate(name string) {
	for key, entry := range b.cache {
		if _, ok := entry.sets[name]; !ok {
			continue
		}
		b.log.Debug("invalidating path index", zap.String("pexpr", key), zap.String("set", name))
		delete(b.cache, key)
	}
}

// Cached returns the cached segmented index of a path expression,
// if still valid.
func (b *Builder) Cached(pexpr PathExpression) (PathIndex, bool) {
	entry, ok := b.cache[pexpr.String()]
	if !ok || !b.valid(entry) {
		return nil, false
	}
	return entry.index, true
}

func (b *Builder) valid(entry *cacheEntry) bool {
	for name, sv := range entry.sets {
		if b.sets[name] != sv.set || sv.set.Version() != sv.version {
			return false
		}
	}
	return true
}

// BuildSegmented returns the segmented path index of a path expression.
func (b *Builder) BuildSegmented(pexpr PathExpression) (PathIndex, error) {
	return b.build(pexpr.String(), pexpr, func() (PathIndex, error) {
		adj, err := pexpr.evaluate(b.sets)
		if err != nil {
			return nil, err
		}
		return NewSegmentedPathIndex(adj), nil
	})
}

// Build returns the most compact path index of a path expression:
// a link from an edge set to its only endpoint set is represented by an
// endpoint path index, any other expression by a segmented path index.
func (b *Builder) Build(pexpr PathExpression) (PathIndex, error) {
	link, ok := pexpr.(*Link)
	if !ok {
		return b.BuildSegmented(pexpr)
	}
	from, err := lookup(b.sets, link.From.Set)
	if err != nil {
		return nil, err
	}
	to, err := lookup(b.sets, link.To.Set)
	if err != nil {
		return nil, err
	}
	if !from.IsEdgeSet() || slices.ContainsFunc(from.EndpointSets(), func(s *graph.Set) bool { return s != to }) {
		return b.BuildSegmented(pexpr)
	}
	return b.build("endpoints "+pexpr.String(), pexpr, func() (PathIndex, error) {
		return NewEndpointPathIndex(from), nil
	})
}

func (b *Builder) build(key string, pexpr PathExpression, eval func() (PathIndex, error)) (PathIndex, error) {
	if entry, ok := b.cache[key]; ok && b.valid(entry) {
		b.log.Debug("path index cache hit", zap.String("pexpr", key))
		return entry.index, nil
	}
	entry := &cacheEntry{sets: make(map[string]setVersion)}
	for _, name := range pexpr.Sets() {
		set, err := lookup(b.sets, name)
		if err != nil {
			return nil, fmterr.PrefixWith("cannot build path index for %s", key)(err)
		}
		entry.sets[name] = setVersion{set: set, version: set.Version()}
	}
	index, err := eval()
	if err != nil {
		return nil, fmterr.PrefixWith("cannot build path index for %s", key)(err)
	}
	entry.index = index
	b.cache[key] = entry
	b.log.Info("path index built",
		zap.String("pexpr", key),
		zap.Int("elements", index.NumElements()),
		zap.Int("neighbors", index.NumNeighbors()))
	return index, nil
}

// String representation of the cache.
func (b *Builder) String() string {
	var s strings.Builder
	keys := maps.Keys(b.cache)
	slices.Sort(keys)
	for _, key := range keys {
		fmt.Fprintf(&s, "%s:\n%s\n", key, simfmt.Indent(b.cache[key].index.String()))
	}
	return s.String()
}
