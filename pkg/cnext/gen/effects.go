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
package gen

import (
	"fmt"

	"github.com/jlaustill/go-cnext/pkg/cnext/ast"
)

// EffectKind identifies the category of a code effect: a record emitted
// alongside generated code which demands a contribution to the prelude.
type EffectKind uint

const (
	// EFFECT_INCLUDE demands a header inclusion (canonical or user).
	EFFECT_INCLUDE EffectKind = iota
	// EFFECT_HELPER demands the definition of a helper function.
	EFFECT_HELPER
	// EFFECT_TYPEDEF demands a callback typedef.
	EFFECT_TYPEDEF
)

// Canonical include names.  Each maps to a fixed prelude line; user includes
// pass through with their original spelling.
const (
	// IncludeStdbool provides the C boolean type.
	IncludeStdbool = "stdbool"
	// IncludeStdint provides the fixed-width integer types.
	IncludeStdint = "stdint"
	// IncludeString provides memcpy and the string functions.
	IncludeString = "string"
	// IncludeStdlib provides abort.
	IncludeStdlib = "stdlib"
	// IncludeStdio provides fprintf for panic helpers.
	IncludeStdio = "stdio"
	// IncludeFloatAssert is the pseudo-include asserting the bit width of
	// float, required by float bit indexing.
	IncludeFloatAssert = "float_static_assert"
	// IncludeDoubleAssert is the pseudo-include asserting the bit width of
	// double.
	IncludeDoubleAssert = "double_static_assert"
)

// HelperOp identifies the operation a helper implements.
type HelperOp uint

const (
	// HELPER_ADD is saturating (or panicking) addition.
	HELPER_ADD HelperOp = iota
	// HELPER_SUB is saturating (or panicking) subtraction.
	HELPER_SUB
	// HELPER_MUL is saturating (or panicking) multiplication.
	HELPER_MUL
	// HELPER_DIV is checked division with an explicit default.
	HELPER_DIV
	// HELPER_MOD is checked modulo with an explicit default.
	HELPER_MOD
	// HELPER_CRITICAL is the interrupt save / disable / restore pair.
	HELPER_CRITICAL
)

// Name returns the operation fragment used in helper function names.
func (op HelperOp) Name() string {
	switch op {
	case HELPER_ADD:
		return "add"
	case HELPER_SUB:
		return "sub"
	case HELPER_MUL:
		return "mul"
	case HELPER_DIV:
		return "div"
	case HELPER_MOD:
		return "mod"
	case HELPER_CRITICAL:
		return "critical"
	}
	//
	panic("unknown helper operation")
}

// HelperMode selects the behaviour of a helper on its boundary condition.
type HelperMode uint

const (
	// MODE_CLAMP saturates at the boundary value.
	MODE_CLAMP HelperMode = iota
	// MODE_PANIC aborts with a message (debug builds).
	MODE_PANIC
	// MODE_SAFE writes an explicit default (division helpers).
	MODE_SAFE
)

// Effect is a tagged record demanding a prelude contribution.
type Effect struct {
	Kind EffectKind
	// Header name (EFFECT_INCLUDE): canonical, or the user spelling.
	Header string
	// User marks a pass-through user include.
	User bool
	// System marks an angle-bracketed user include.
	System bool
	// Operation (EFFECT_HELPER).
	Op HelperOp
	// Element type the helper is specialised to (EFFECT_HELPER).
	Type ast.Base
	// Mode of the helper (EFFECT_HELPER).
	Mode HelperMode
	// Name of the callback type (EFFECT_TYPEDEF).
	Name string
	// Rendered typedef line (EFFECT_TYPEDEF).
	Signature string
}

// key gives the deduplication identity of this effect.
func (e Effect) key() string {
	switch e.Kind {
	case EFFECT_INCLUDE:
		return fmt.Sprintf("include:%s", e.Header)
	case EFFECT_HELPER:
		return fmt.Sprintf("helper:%d:%d:%d", e.Op, e.Type, e.Mode)
	case EFFECT_TYPEDEF:
		return fmt.Sprintf("typedef:%s", e.Name)
	}
	//
	panic("unknown effect kind")
}

// Collector accumulates effects discovered during generation, with set
// semantics: duplicates are dropped and the order of first occurrence is
// preserved for reproducible output.
type Collector struct {
	seen    map[string]bool
	effects []Effect
}

// NewCollector constructs an empty effect collector.
func NewCollector() *Collector {
	return &Collector{seen: make(map[string]bool)}
}

// Add records an effect, unless an identical one was already recorded.
func (p *Collector) Add(effect Effect) {
	key := effect.key()
	//
	if p.seen[key] {
		return
	}
	//
	p.seen[key] = true
	p.effects = append(p.effects, effect)
}

// Include records a canonical header requirement.
func (p *Collector) Include(name string) {
	p.Add(Effect{Kind: EFFECT_INCLUDE, Header: name})
}

// UserInclude records a pass-through user include.
func (p *Collector) UserInclude(header string, system bool) {
	p.Add(Effect{Kind: EFFECT_INCLUDE, Header: header, User: true, System: system})
}

// Helper records a helper requirement for a given operation, element type and
// mode.
func (p *Collector) Helper(op HelperOp, base ast.Base, mode HelperMode) {
	p.Add(Effect{Kind: EFFECT_HELPER, Op: op, Type: base, Mode: mode})
}

// Typedef records a callback typedef requirement.
func (p *Collector) Typedef(name string, signature string) {
	p.Add(Effect{Kind: EFFECT_TYPEDEF, Name: name, Signature: signature})
}

// Effects returns all recorded effects in first-occurrence order.
func (p *Collector) Effects() []Effect {
	return p.effects
}
