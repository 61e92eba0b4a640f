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
	"strings"

	"github.com/jlaustill/go-cnext/pkg/cnext/ast"
)

// HelperName returns the name of the helper function implementing a given
// operation over a given element type.
func HelperName(op HelperOp, base ast.Base) string {
	var prefix string
	//
	switch op {
	case HELPER_DIV, HELPER_MOD:
		prefix = "cnx_safe"
	default:
		prefix = "cnx_clamp"
	}
	//
	t := ast.NewPrimitiveType(base)
	//
	return fmt.Sprintf("%s_%s_%s", prefix, op.Name(), t.String())
}

// RenderHelper produces the C definition of a helper.  Helpers are static
// inline and emitted at most once, guarded by the effect collector.
func RenderHelper(effect Effect) string {
	if effect.Op == HELPER_CRITICAL {
		return renderCriticalHelpers()
	}
	//
	t := ast.NewPrimitiveType(effect.Type)
	//
	switch effect.Op {
	case HELPER_DIV, HELPER_MOD:
		return renderSafeDivMod(effect.Op, t)
	default:
		return renderClampHelper(effect.Op, t, effect.Mode)
	}
}

// The saturating helpers follow one of three strategies.  Signed types
// narrower than int64_t compute in the wider type and compare against the
// boundaries.  int64_t itself uses explicit pre-check arithmetic, since no
// wider signed type exists.  Unsigned types use the compiler overflow
// builtins, which evaluate in infinite precision and so cannot truncate
// their arguments.
func renderClampHelper(op HelperOp, t ast.Type, mode HelperMode) string {
	switch {
	case t.IsUnsigned():
		return renderUnsignedClamp(op, t, mode)
	case t.Base == ast.I64:
		return renderInt64Clamp(op, t, mode)
	default:
		return renderNarrowSignedClamp(op, t, mode)
	}
}

func renderUnsignedClamp(op HelperOp, t ast.Type, mode HelperMode) string {
	var (
		name     = HelperName(op, t.Base)
		cName    = t.CName()
		boundary = t.MaxLiteral()
		builder  strings.Builder
	)
	// Subtraction saturates downwards.
	if op == HELPER_SUB {
		boundary = "0u"
	}
	//
	fmt.Fprintf(&builder, "static inline %s %s(%s a, %s b)\n", cName, name, cName, cName)
	fmt.Fprintf(&builder, "{\n")
	fmt.Fprintf(&builder, "    %s result;\n", cName)
	fmt.Fprintf(&builder, "    if (__builtin_%s_overflow(a, b, &result)) {\n", op.Name())
	builder.WriteString(renderBoundary(t, mode, boundary, overflowMessage(op, t)))
	fmt.Fprintf(&builder, "    }\n")
	fmt.Fprintf(&builder, "    return result;\n")
	fmt.Fprintf(&builder, "}\n")
	//
	return builder.String()
}

func renderNarrowSignedClamp(op HelperOp, t ast.Type, mode HelperMode) string {
	var (
		name    = HelperName(op, t.Base)
		cName   = t.CName()
		wide    = t.WiderType().CName()
		symbol  = arithmeticSymbol(op)
		builder strings.Builder
	)
	//
	fmt.Fprintf(&builder, "static inline %s %s(%s a, %s b)\n", cName, name, cName, cName)
	fmt.Fprintf(&builder, "{\n")
	fmt.Fprintf(&builder, "    %s wide = (%s)a %s (%s)b;\n", wide, wide, symbol, wide)
	fmt.Fprintf(&builder, "    if (wide > %s) {\n", t.MaxLiteral())
	builder.WriteString(renderBoundary(t, mode, t.MaxLiteral(), overflowMessage(op, t)))
	fmt.Fprintf(&builder, "    }\n")
	fmt.Fprintf(&builder, "    if (wide < %s) {\n", t.MinLiteral())
	builder.WriteString(renderBoundary(t, mode, t.MinLiteral(), overflowMessage(op, t)))
	fmt.Fprintf(&builder, "    }\n")
	fmt.Fprintf(&builder, "    return (%s)wide;\n", cName)
	fmt.Fprintf(&builder, "}\n")
	//
	return builder.String()
}

// For int64_t there is no wider signed type; addition and subtraction use
// explicit pre-checks, whilst multiplication relies on the overflow builtin
// and recovers the saturation direction from the operand signs.
func renderInt64Clamp(op HelperOp, t ast.Type, mode HelperMode) string {
	var (
		name    = HelperName(op, t.Base)
		cName   = t.CName()
		builder strings.Builder
	)
	//
	fmt.Fprintf(&builder, "static inline %s %s(%s a, %s b)\n", cName, name, cName, cName)
	fmt.Fprintf(&builder, "{\n")
	//
	switch op {
	case HELPER_ADD:
		fmt.Fprintf(&builder, "    if ((b > 0) && (a > %s - b)) {\n", t.MaxLiteral())
		builder.WriteString(renderBoundary(t, mode, t.MaxLiteral(), overflowMessage(op, t)))
		fmt.Fprintf(&builder, "    }\n")
		fmt.Fprintf(&builder, "    if ((b < 0) && (a < %s - b)) {\n", t.MinLiteral())
		builder.WriteString(renderBoundary(t, mode, t.MinLiteral(), overflowMessage(op, t)))
		fmt.Fprintf(&builder, "    }\n")
		fmt.Fprintf(&builder, "    return a + b;\n")
	case HELPER_SUB:
		fmt.Fprintf(&builder, "    if ((b < 0) && (a > %s + b)) {\n", t.MaxLiteral())
		builder.WriteString(renderBoundary(t, mode, t.MaxLiteral(), overflowMessage(op, t)))
		fmt.Fprintf(&builder, "    }\n")
		fmt.Fprintf(&builder, "    if ((b > 0) && (a < %s + b)) {\n", t.MinLiteral())
		builder.WriteString(renderBoundary(t, mode, t.MinLiteral(), overflowMessage(op, t)))
		fmt.Fprintf(&builder, "    }\n")
		fmt.Fprintf(&builder, "    return a - b;\n")
	case HELPER_MUL:
		fmt.Fprintf(&builder, "    %s result;\n", cName)
		fmt.Fprintf(&builder, "    if (__builtin_mul_overflow(a, b, &result)) {\n")
		boundary := fmt.Sprintf("((a > 0) == (b > 0)) ? %s : %s", t.MaxLiteral(), t.MinLiteral())
		builder.WriteString(renderBoundary(t, mode, boundary, overflowMessage(op, t)))
		fmt.Fprintf(&builder, "    }\n")
		fmt.Fprintf(&builder, "    return result;\n")
	}
	//
	fmt.Fprintf(&builder, "}\n")
	//
	return builder.String()
}

// renderBoundary emits the body of an overflow branch: either the saturated
// boundary value, or (in debug builds) a panic.
func renderBoundary(t ast.Type, mode HelperMode, boundary string, message string) string {
	if mode == MODE_PANIC {
		var builder strings.Builder
		//
		fmt.Fprintf(&builder, "        (void)fprintf(stderr, \"PANIC: %s\\n\");\n", message)
		fmt.Fprintf(&builder, "        abort();\n")
		//
		return builder.String()
	}
	//
	return fmt.Sprintf("        return (%s)(%s);\n", t.CName(), boundary)
}

func overflowMessage(op HelperOp, t ast.Type) string {
	var operation string
	//
	switch op {
	case HELPER_ADD:
		operation = "addition"
	case HELPER_SUB:
		operation = "subtraction"
	case HELPER_MUL:
		operation = "multiplication"
	}
	//
	return fmt.Sprintf("%s %s overflow", t.String(), operation)
}

func arithmeticSymbol(op HelperOp) string {
	switch op {
	case HELPER_ADD:
		return "+"
	case HELPER_SUB:
		return "-"
	case HELPER_MUL:
		return "*"
	}
	//
	panic("not an arithmetic helper")
}

// renderSafeDivMod emits the checked division (or modulo) helper, which
// writes an explicit default when the divisor is zero.  Signed variants also
// guard the MIN / -1 case, whose quotient is unrepresentable.
func renderSafeDivMod(op HelperOp, t ast.Type) string {
	var (
		name    = HelperName(op, t.Base)
		cName   = t.CName()
		symbol  = "/"
		builder strings.Builder
	)
	//
	if op == HELPER_MOD {
		symbol = "%"
	}
	//
	fmt.Fprintf(&builder, "static inline void %s(%s *out, %s a, %s b, %s def)\n",
		name, cName, cName, cName, cName)
	fmt.Fprintf(&builder, "{\n")
	fmt.Fprintf(&builder, "    if (b == 0) {\n")
	fmt.Fprintf(&builder, "        *out = def;\n")
	fmt.Fprintf(&builder, "        return;\n")
	fmt.Fprintf(&builder, "    }\n")
	//
	if !t.IsUnsigned() {
		fmt.Fprintf(&builder, "    if ((a == %s) && (b == -1)) {\n", t.MinLiteral())
		fmt.Fprintf(&builder, "        *out = def;\n")
		fmt.Fprintf(&builder, "        return;\n")
		fmt.Fprintf(&builder, "    }\n")
	}
	//
	fmt.Fprintf(&builder, "    *out = (%s)(a %s b);\n", cName, symbol)
	fmt.Fprintf(&builder, "}\n")
	//
	return builder.String()
}

// The critical-section helpers save, disable and restore the interrupt state
// using the CMSIS primask intrinsics, so nested sections restore whatever
// state they entered with.
func renderCriticalHelpers() string {
	var builder strings.Builder
	//
	builder.WriteString("static inline uint32_t cnx_critical_enter(void)\n")
	builder.WriteString("{\n")
	builder.WriteString("    uint32_t primask = __get_PRIMASK();\n")
	builder.WriteString("    __disable_irq();\n")
	builder.WriteString("    return primask;\n")
	builder.WriteString("}\n")
	builder.WriteString("\n")
	builder.WriteString("static inline void cnx_critical_exit(uint32_t primask)\n")
	builder.WriteString("{\n")
	builder.WriteString("    __set_PRIMASK(primask);\n")
	builder.WriteString("}\n")
	//
	return builder.String()
}
