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

// Package options specifies options for engines.
//
// The configuration of an engine can be loaded from a TOML file:
//
//	verify = true
//	log_level = "debug"
//	harness_module = "simit_harness"
//	harness_suffix = "_harness"
//	init_suffix = "_init"
//	deinit_suffix = "_deinit"
package options

import (
	"os"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/gx-org/simjit/backend/codegen"
	"github.com/gx-org/simjit/build/ir/pe"
	"github.com/gx-org/simjit/graph"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config of an engine.
type Config struct {
	// Verify both the main and the harness modules after a harness is built.
	Verify bool `toml:"verify"`
	// LogLevel is the minimum level of the logger built by NewLogger.
	LogLevel string `toml:"log_level"`
	// HarnessModule is the name of the harness modules.
	HarnessModule string `toml:"harness_module"`
	// HarnessSuffix is appended to function names to name their wrapper.
	HarnessSuffix string `toml:"harness_suffix"`
	// InitSuffix is appended to the entry point name to name its init function.
	// Modules run by an engine have to be generated with the same suffix:
	// see Codegen.
	InitSuffix string `toml:"init_suffix"`
	// DeinitSuffix is appended to the entry point name to name its deinit function.
	DeinitSuffix string `toml:"deinit_suffix"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Verify:        true,
		LogLevel:      "info",
		HarnessModule: "simit_harness",
		HarnessSuffix: "_harness",
		InitSuffix:    "_init",
		DeinitSuffix:  "_deinit",
	}
}

// Parse a TOML configuration. Keys missing from the data keep their
// default value.
func Parse(data string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, errors.Wrap(err, "cannot parse configuration")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.Errorf("unknown configuration key %q", undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load a TOML configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "cannot read configuration")
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return Config{}, errors.Wrapf(err, "configuration %s", path)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "invalid log level")
	}
	if c.HarnessModule == "" {
		return errors.Errorf("harness module name cannot be empty")
	}
	suffixes := []string{c.HarnessSuffix, c.InitSuffix, c.DeinitSuffix}
	if slices.Contains(suffixes, "") {
		return errors.Errorf("function suffixes cannot be empty: harness=%q init=%q deinit=%q", c.HarnessSuffix, c.InitSuffix, c.DeinitSuffix)
	}
	slices.Sort(suffixes)
	if len(slices.Compact(suffixes)) != 3 {
		return errors.Errorf("function suffixes must be distinct: harness=%q init=%q deinit=%q", c.HarnessSuffix, c.InitSuffix, c.DeinitSuffix)
	}
	return nil
}

// NewLogger returns a production logger logging at the configured level.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level")
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

// Codegen returns the code generator options naming the init and deinit
// functions the way an engine with this configuration looks them up.
func (c Config) Codegen() codegen.Options {
	return codegen.Options{
		InitSuffix:   c.InitSuffix,
		DeinitSuffix: c.DeinitSuffix,
	}
}

type (
	// EngineOption is an option of an engine.
	EngineOption interface {
		engineOption()
	}

	// IndexBuilder builds the path indices of the tensor indices of a program.
	IndexBuilder interface {
		// Bind a set to a name.
		Bind(name string, set *graph.Set)
		// BuildSegmented returns the path index of a path expression.
		BuildSegmented(pexpr pe.PathExpression) (pe.PathIndex, error)
	}

	// WithConfig sets the configuration of an engine.
	WithConfig struct {
		Config Config
	}

	// WithLogger sets the logger of an engine.
	// Without a logger, an engine given a configuration logs with the
	// logger returned by Config.NewLogger and does not log otherwise.
	WithLogger struct {
		Logger *zap.Logger
	}

	// WithIndexBuilder sets the path index builder of an engine.
	// By default, an engine builds path indices with a pe.Builder.
	WithIndexBuilder struct {
		Builder IndexBuilder
	}
)

func (WithConfig) engineOption()       {}
func (WithLogger) engineOption()       {}
func (WithIndexBuilder) engineOption() {}

var _ IndexBuilder = (*pe.Builder)(nil)
