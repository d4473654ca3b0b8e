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
	"github.com/gx-org/backend/shape"
	"github.com/gx-org/simjit/backend/harness"
	"github.com/gx-org/simjit/backend/kernels"
	"github.com/gx-org/simjit/backend/module"
	"github.com/gx-org/simjit/base/iter"
	"github.com/gx-org/simjit/base/ordered"
	"github.com/gx-org/simjit/build/fmterr"
	"github.com/gx-org/simjit/build/ir"
	"github.com/gx-org/simjit/build/ir/pe"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Init computes the path indices of the tensor indices, allocates the
// temporaries, calls the init function of the program and returns its
// entry point.
//
// Every call recomputes everything: entry points returned by previous calls
// are stale and return ErrStale when called.
func (e *Engine) Init() (Func, error) {
	if err := e.checkAlive("initialize"); err != nil {
		return nil, err
	}
	e.markStale()
	if err := e.checkArguments(); err != nil {
		return nil, err
	}
	e.registerSets()
	if err := e.initIndices(); err != nil {
		return nil, err
	}
	if err := e.initTemporaries(); err != nil {
		return nil, err
	}
	entry, err := e.dispatch()
	if err != nil {
		return nil, err
	}
	e.state = Initialized
	e.generation++
	generation := e.generation
	e.log.Info("engine initialized", zap.Uint64("generation", generation))
	return func() error {
		if e.state != Initialized || e.generation != generation {
			return fmterr.PrefixWith("calling %s (engine %s)", e.fn.Name, e.state)(fmterr.Precondition(ErrStale))
		}
		return call(entry)
	}, nil
}

func (e *Engine) checkArguments() error {
	unbound := iter.Filter(func(v ir.Var) bool {
		return !e.arguments.Has(v.Name)
	}, e.fn.Args, e.fn.Results)
	for formal := range unbound {
		return fmterr.Preconditionf("argument %s of %s not bound", formal.Name, e.fn.Name)
	}
	return nil
}

// registerSets binds all the sets to the path index builder: path
// expressions range over the sets passed as arguments and over global sets.
func (e *Engine) registerSets() {
	for _, actuals := range []*ordered.Map[string, Actual]{e.arguments, e.globals} {
		for name, actual := range actuals.Iter() {
			if set, ok := actual.(SetActual); ok {
				e.builder.Bind(name, set.Set)
			}
		}
	}
}

func (e *Engine) initIndices() error {
	if e.fn.Env == nil {
		return nil
	}
	for _, ti := range e.fn.Env.TensorIndices() {
		pidx, err := e.builder.BuildSegmented(ti.PathExpression())
		if err != nil {
			return fmterr.PrefixWith("tensor index %s", ti.Name())(err)
		}
		slots := e.indexSlots[ti.Name()]
		switch pidxT := pidx.(type) {
		case *pe.SegmentedPathIndex:
			e.storePtr(slots[0], pidxT.CoordData())
			e.storePtr(slots[1], pidxT.SinkData())
		default:
			return fmterr.NotSupportedf("tensor index %s: don't know how to initialize a path index of type %T", ti.Name(), pidx)
		}
		e.pathIndices[ti.Name()] = pidx
	}
	return nil
}

func (e *Engine) initTemporaries() error {
	if e.fn.Env == nil {
		return nil
	}
	for _, tmp := range e.fn.Env.Temporaries() {
		if err := e.initTemporary(tmp); err != nil {
			return fmterr.PrefixWith("temporary %s", tmp.Name)(err)
		}
	}
	return nil
}

func (e *Engine) initTemporary(tmp ir.Var) error {
	slot := e.temporarySlots[tmp.Name]
	tensor, ok := tmp.Type.(*ir.TensorType)
	if !ok {
		return fmterr.Internalf("don't know how to initialize temporary %q of type %s", tmp.Name, tmp.Type)
	}
	if err := e.freeTemporary(tmp.Name); err != nil {
		return err
	}
	blockSize, err := tensor.BlockType().Size()
	if err != nil {
		return err
	}
	sh := &shape.Shape{DType: tensor.ComponentType()}
	var buf *kernels.Buffer
	switch tensor.Order() {
	case 0:
		sh.AxisLengths = []int{blockSize}
		buf, err = e.alloc.Zero(sh)
	case 1:
		// Vectors are always dense.
		var outer ir.IndexSet
		if outer, err = tensor.Dimensions()[0].Outer(); err != nil {
			return err
		}
		var n int
		if n, err = e.size(ir.NewDomain(outer)); err != nil {
			return err
		}
		sh.AxisLengths = []int{n * blockSize}
		buf, err = e.alloc.Zero(sh)
	case 2:
		var pidx pe.PathIndex
		pidx, err = e.pathIndexOf(tmp)
		if err != nil {
			return err
		}
		sh.AxisLengths = []int{pidx.NumNeighbors() * blockSize}
		buf, err = e.alloc.Allocate(sh)
	default:
		return fmterr.NotSupportedf("tensors of order %d", tensor.Order())
	}
	if err != nil {
		return err
	}
	e.temporaries[tmp.Name] = buf
	e.storePtr(slot, buf.Data())
	e.log.Debug("temporary allocated", zap.String("name", tmp.Name), zap.Stringer("shape", sh))
	return nil
}

func (e *Engine) pathIndexOf(tmp ir.Var) (pe.PathIndex, error) {
	ti, err := e.fn.Env.TensorIndex(tmp)
	if err != nil {
		return nil, err
	}
	pidx, ok := e.pathIndices[ti.Name()]
	if !ok {
		return nil, fmterr.Internalf("no path index for tensor index %s", ti.Name())
	}
	return pidx, nil
}

// size returns the number of indices of a dimension given the sets bound
// to the engine.
func (e *Engine) size(dim ir.IndexDomain) (int, error) {
	result := 1
	for _, is := range dim.IndexSets() {
		switch is.Kind() {
		case ir.RangeKind:
			n, err := is.Size()
			if err != nil {
				return 0, err
			}
			result *= n
		case ir.SetKind:
			actual, ok := e.Actual(is.SetName())
			if !ok {
				return 0, fmterr.Preconditionf("set %s not bound", is.SetName())
			}
			set, ok := actual.(SetActual)
			if !ok {
				return 0, fmterr.Preconditionf("%s is not bound to a set", is.SetName())
			}
			result *= set.Set.Size()
		default:
			return 0, fmterr.NotSupportedf("runtime size of index set %s", is)
		}
		if result == 0 {
			return 0, fmterr.Internalf("dimension %s has size zero", dim)
		}
	}
	return result, nil
}

func (e *Engine) freeTemporary(name string) error {
	buf, ok := e.temporaries[name]
	if !ok {
		return nil
	}
	delete(e.temporaries, name)
	e.temporarySlots[name].cell.Clear()
	e.log.Debug("temporary freed", zap.String("name", name))
	return buf.Free()
}

func (e *Engine) freeTemporaries() error {
	var err error
	for name := range e.temporarySlots {
		err = multierr.Append(err, e.freeTemporary(name))
	}
	return err
}

// dispatch calls the init function of the program and returns the
// address of its entry point. Functions without parameters are called
// directly. Otherwise, a harness passing the bound arguments is built.
func (e *Engine) dispatch() (module.Addr, error) {
	initName := e.fn.Name + e.cfg.InitSuffix
	deinitName := e.fn.Name + e.cfg.DeinitSuffix
	if e.current != nil {
		err := e.current.Dispose()
		e.current = nil
		e.deinit = 0
		if err != nil {
			return 0, err
		}
	}
	if len(e.params) == 0 {
		return e.dispatchDirect(initName, deinitName)
	}
	args, err := e.harnessArgs()
	if err != nil {
		return 0, err
	}
	h, err := e.harness.Compile([]string{initName, deinitName, e.fn.Name}, args)
	if err != nil {
		return 0, err
	}
	e.current = h
	initAddr, err := h.Address(initName)
	if err != nil {
		return 0, err
	}
	if err := call(initAddr); err != nil {
		return 0, err
	}
	if e.deinit, err = h.Address(deinitName); err != nil {
		return 0, err
	}
	entry, err := h.Address(e.fn.Name)
	if err != nil {
		return 0, err
	}
	if e.cfg.Verify {
		if err := multierr.Append(e.mod.Verify(), h.Module().Verify()); err != nil {
			return 0, err
		}
	}
	return entry, nil
}

func (e *Engine) dispatchDirect(initName, deinitName string) (module.Addr, error) {
	var addrs [3]module.Addr
	for i, name := range []string{initName, deinitName, e.fn.Name} {
		addr, err := e.mod.FunctionAddress(name)
		if err != nil {
			return 0, err
		}
		if addr == 0 {
			return 0, fmterr.Internalf("module %s has no function %s", e.mod.Name(), name)
		}
		addrs[i] = addr
	}
	if err := call(addrs[0]); err != nil {
		return 0, err
	}
	e.deinit = addrs[1]
	return addrs[2], nil
}

// harnessArgs returns the constants passing the bound arguments to the
// parameters of the entry point.
func (e *Engine) harnessArgs() ([]module.Value, error) {
	formals := e.fn.Formals()
	args := make([]module.Value, len(formals))
	for i, formal := range formals {
		actual, _ := e.arguments.Load(formal.Name)
		var err error
		switch actualT := actual.(type) {
		case SetActual:
			var typ *ir.SetType
			if typ, err = formal.Set(); err == nil {
				args[i], err = harness.SetValue(typ, actualT.Set, e.params[i].Type)
			}
		case TensorActual:
			var typ *ir.TensorType
			if typ, err = formal.Tensor(); err == nil {
				args[i], err = harness.TensorValue(typ, actualT.Data, e.params[i].Type)
			}
		default:
			err = fmterr.Internalf("actual of type %T not supported", actual)
		}
		if err != nil {
			return nil, fmterr.PrefixWith("argument %s", formal.Name)(err)
		}
	}
	return args, nil
}

// TemporarySize returns the number of components allocated for a
// temporary by the last call to Init.
func (e *Engine) TemporarySize(name string) (int, bool) {
	buf, ok := e.temporaries[name]
	if !ok {
		return 0, false
	}
	return buf.Size(), true
}

// Temporary returns the buffer allocated for a temporary by the last call
// to Init.
func (e *Engine) Temporary(name string) (*kernels.Buffer, bool) {
	buf, ok := e.temporaries[name]
	return buf, ok
}

// PathIndex returns the path index computed for a tensor index by the last
// call to Init.
func (e *Engine) PathIndex(name string) (pe.PathIndex, bool) {
	pidx, ok := e.pathIndices[name]
	return pidx, ok
}

// LiveBuffers returns the number of temporary buffers not freed yet.
func (e *Engine) LiveBuffers() int {
	return e.alloc.Live()
}
