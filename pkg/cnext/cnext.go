// Copyright The go-cnext Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package cnext

import (
	"fmt"

	"github.com/jlaustill/go-cnext/pkg/cnext/ast"
	"github.com/jlaustill/go-cnext/pkg/cnext/compiler"
	"github.com/jlaustill/go-cnext/pkg/cnext/gen"
	"github.com/jlaustill/go-cnext/pkg/util/source"
)

// SyntaxError defines the kind of errors that can be reported by this
// compiler.  Syntax errors are always associated with some line in one of
// the original source files.
type SyntaxError = source.SyntaxError

// Config encapsulates the options affecting transpilation.
type Config struct {
	// Mode selects the output language: "c" (C99, the default) or "cpp"
	// (C++17).
	Mode string `yaml:"mode"`
	// Debug switches saturating helpers to their panicking form.
	Debug bool `yaml:"debug"`
	// Atomic indicates the target supports C11 atomics.
	Atomic bool `yaml:"atomic"`
	// Overflow is the file-wide default overflow behaviour: "default",
	// "wrap" or "clamp".
	Overflow string `yaml:"overflow"`
}

// DefaultConfig returns the built-in configuration: C99 output, release
// helpers, no atomic support, default overflow behaviour.
func DefaultConfig() Config {
	return Config{Mode: "c", Overflow: "default"}
}

// genConfig lowers the public configuration onto the generator's options.
func (c Config) genConfig() (gen.Config, error) {
	config := gen.Config{Debug: c.Debug, Atomic: c.Atomic}
	//
	switch c.Mode {
	case "", "c":
		// C99 is the default.
	case "cpp":
		config.Cpp = true
	default:
		return config, fmt.Errorf("unknown mode %q (expected c or cpp)", c.Mode)
	}
	//
	switch c.Overflow {
	case "", "default":
		config.Overflow = gen.OVERFLOW_DEFAULT
	case "wrap":
		config.Overflow = gen.OVERFLOW_WRAP
	case "clamp":
		config.Overflow = gen.OVERFLOW_CLAMP
	default:
		return config, fmt.Errorf("unknown overflow mode %q (expected default, wrap or clamp)", c.Overflow)
	}
	//
	return config, nil
}

// TranspileSourceFile transpiles a single C-Next source file into C (or C++)
// text.  The transpiler either completes cleanly or produces no output:
// every failure is reported as a positioned syntax error, and no error is
// recovered silently.
func TranspileSourceFile(config Config, srcfile *source.File) (string, []SyntaxError) {
	genConfig, err := config.genConfig()
	if err != nil {
		return "", []SyntaxError{*srcfile.SyntaxError(source.NewSpan(0, 0),
			source.UnexpectedToken, err.Error())}
	}
	// Parse into a translation unit.
	unit, srcmap, errs := compiler.ParseSourceFile(srcfile)
	if len(errs) > 0 {
		return "", errs
	}
	//
	srcmaps := source.NewSourceMaps[ast.Node]()
	srcmaps.Join(srcmap)
	// Build and freeze the symbol registry.
	registry, errs := compiler.BuildRegistry(srcmaps, unit)
	if len(errs) > 0 {
		return "", errs
	}
	// Type check (including definite initialisation).
	if errs := compiler.TypeCheckUnit(srcmaps, registry, unit); len(errs) > 0 {
		return "", errs
	}
	// Generate, collecting effects along the way.
	return gen.Generate(genConfig, registry, srcmaps, unit)
}

// CheckSourceFile runs every compilation phase without keeping the output,
// reporting any errors found.
func CheckSourceFile(config Config, srcfile *source.File) []SyntaxError {
	_, errs := TranspileSourceFile(config, srcfile)
	return errs
}
