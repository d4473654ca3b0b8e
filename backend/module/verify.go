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
	"github.com/pkg/errors"
	"github.com/gx-org/simjit/build/fmterr"
	"go.uber.org/multierr"
)

// Verify checks that the module is well-formed:
//   - functions with private linkage have a body,
//   - every call targets a function of the module with the same number of
//     parameters, the same parameter types and the same calling convention,
//   - once finalized, every declaration is resolved and every definition
//     has an address.
//
// All the problems found are returned together.
func (m *Module) Verify() error {
	var err error
	for f := range m.funcs.Values() {
		err = multierr.Append(err, m.verifyFunction(f))
	}
	if err != nil {
		return fmterr.Internal(errors.Wrapf(err, "module %s does not pass verification", m.name))
	}
	return nil
}

func (m *Module) verifyFunction(f *Function) error {
	if f.IsDeclaration() {
		if f.Linkage == PrivateLinkage {
			return errors.Errorf("private function %s has no body", f.Name)
		}
		if m.state != Finalized {
			return nil
		}
		if _, ok := m.symbols.Lookup(f.Name); !ok {
			return errors.Errorf("declaration %s is not resolved", f.Name)
		}
		return nil
	}
	var err error
	if m.state == Finalized && m.addrs[f.Name] == 0 {
		err = multierr.Append(err, errors.Errorf("function %s has no address", f.Name))
	}
	call, ok := f.Body.(*Call)
	if !ok {
		return err
	}
	callee, ok := m.funcs.Load(call.Callee)
	if !ok {
		return multierr.Append(err, errors.Errorf("function %s calls undefined function %s", f.Name, call.Callee))
	}
	if call.CallConv != callee.CallConv {
		err = multierr.Append(err, errors.Errorf("function %s calls %s with calling convention %s but %s uses %s", f.Name, callee.Name, call.CallConv, callee.Name, callee.CallConv))
	}
	if len(call.Args) != len(callee.Params) {
		return multierr.Append(err, errors.Errorf("function %s calls %s with %d arguments but %s has %d parameters", f.Name, callee.Name, len(call.Args), callee.Name, len(callee.Params)))
	}
	for i, arg := range call.Args {
		param := callee.Params[i]
		if !Equal(arg.Type(), param.Type) {
			err = multierr.Append(err, errors.Errorf("function %s calls %s: argument %d has type %s but parameter %s has type %s", f.Name, callee.Name, i, arg.Type(), param.Name, param.Type))
		}
	}
	return err
}
