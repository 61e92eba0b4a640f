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
	"github.com/jlaustill/go-cnext/pkg/cnext/compiler"
)

// Declaration generates C for a top-level declaration, preserving the one
// declaration per source declaration contract.
func (g *statementGenerator) Declaration(out *emitter, decl ast.Declaration) []SyntaxError {
	switch d := decl.(type) {
	case *ast.Variable:
		return g.globalVariable(out, d, "", compiler.PUBLIC)
	case *ast.Function:
		return g.function(out, d, "", compiler.PUBLIC)
	case *ast.Scope:
		return g.scope(out, d)
	case *ast.Struct:
		return g.structDecl(out, d)
	case *ast.Enum:
		return g.enumDecl(out, d)
	case *ast.Bitmap:
		return g.bitmapDecl(out, d)
	case *ast.Register:
		return g.registerDecl(out, d)
	case *ast.Callback:
		return g.callbackDecl(d)
	}
	//
	panic("unknown declaration")
}

// ============================================================================
// Variables
// ============================================================================

func (g *statementGenerator) globalVariable(out *emitter, decl *ast.Variable, scope string,
	vis compiler.Visibility) []SyntaxError {
	//
	info, _ := g.Symbols().Variable(scope, decl.Name)
	//
	var (
		name   = decl.Name
		prefix = ""
	)
	// Visibility lowers to linkage: private members are static, public
	// members are not.
	if scope != "" && !g.GenConfig().Cpp {
		name = fmt.Sprintf("%s_%s", scope, decl.Name)
	}
	//
	if vis == compiler.PRIVATE {
		prefix = "static "
	}
	//
	declarator := g.declarator(info.Type, name, decl.Modifiers)
	//
	if decl.Initialiser == nil {
		out.line("%s%s;", prefix, declarator)
		return nil
	}
	//
	g.SetOverflowPolicy(g.PolicyFor(decl.Modifiers))
	g.TypingEnv().Scope = scope
	//
	defer func() { g.TypingEnv().Scope = "" }()
	//
	value, errs := g.GenerateExpression(decl.Initialiser, info.Type)
	if len(errs) > 0 {
		return errs
	}
	//
	out.line("%s%s = %s;", prefix, declarator, value)
	//
	return nil
}

// ============================================================================
// Functions
// ============================================================================

func (g *statementGenerator) function(out *emitter, decl *ast.Function, scope string,
	vis compiler.Visibility) []SyntaxError {
	//
	info, ok := g.Symbols().Function(scope, decl.Name)
	if !ok {
		return nil
	}
	// Enter the per-function state, discarded again on exit.  The state is
	// owned by the orchestrator; this generator only borrows it.
	g.EnterFunction(scope, info)
	defer g.ExitFunction()
	//
	signature := g.signature(decl, info, scope, vis)
	//
	out.line("%s", signature)
	out.line("{")
	errs := g.blockBody(out, decl.Body)
	out.line("}")
	//
	return errs
}

// signature renders a function head under the parameter promotion rules.
func (g *statementGenerator) signature(decl *ast.Function, info *compiler.FunctionInfo, scope string,
	vis compiler.Visibility) string {
	// The entry point keeps its C shape.
	if info.IsMain() {
		return "int main(int argc, char *argv[])"
	}
	//
	var builder strings.Builder
	//
	if vis == compiler.PRIVATE {
		builder.WriteString("static ")
	}
	//
	if info.Return.IsVoid() {
		builder.WriteString("void ")
	} else {
		builder.WriteString(g.CTypeName(info.Return))
		builder.WriteString(" ")
	}
	//
	name := decl.Name
	if scope != "" && !g.GenConfig().Cpp {
		name = fmt.Sprintf("%s_%s", scope, decl.Name)
	}
	//
	builder.WriteString(name)
	builder.WriteString("(")
	//
	if len(info.Params) == 0 {
		builder.WriteString("void")
	}
	//
	for i, param := range info.Params {
		if i > 0 {
			builder.WriteString(", ")
		}
		//
		builder.WriteString(g.parameter(param))
	}
	//
	builder.WriteString(")")
	//
	return builder.String()
}

// parameter renders one parameter.  Promoted parameters become pointers,
// gaining const when the function never mutates them; arrays keep their
// dimensions and decay naturally.
func (g *statementGenerator) parameter(param *compiler.ParamInfo) string {
	var (
		t       = param.Type
		builder strings.Builder
	)
	//
	if param.Type.IsCallback {
		g.RequestTypedef(t.Name, g.callbackTypedef(t.Name))
		fmt.Fprintf(&builder, "%s %s", t.Name, param.Name)
		//
		return builder.String()
	}
	//
	if param.ForcePointer && (param.Const || !param.Mutated) {
		builder.WriteString("const ")
	}
	//
	switch {
	case t.IsString:
		fmt.Fprintf(&builder, "char %s[]", param.Name)
	case t.IsArray:
		fmt.Fprintf(&builder, "%s %s", g.CTypeName(t), param.Name)
		//
		for _, dim := range t.Dims {
			if dim == 0 {
				builder.WriteString("[]")
			} else {
				fmt.Fprintf(&builder, "[%d]", dim)
			}
		}
	case param.ForcePointer:
		fmt.Fprintf(&builder, "%s *%s", g.CTypeName(t), param.Name)
	default:
		fmt.Fprintf(&builder, "%s %s", g.CTypeName(t), param.Name)
	}
	//
	return builder.String()
}

// ============================================================================
// Scopes
// ============================================================================

// scope lowers each member to a prefixed file-scope declaration (C), or to a
// namespace (C++).  Member generation runs with the scope as the ambient
// resolution context.
func (g *statementGenerator) scope(out *emitter, decl *ast.Scope) []SyntaxError {
	var errors []SyntaxError
	//
	if g.GenConfig().Cpp {
		out.line("namespace %s {", decl.Name)
		out.blank()
	}
	//
	for i, member := range decl.Members {
		if i > 0 {
			out.blank()
		}
		//
		vis := compiler.PRIVATE
		//
		if info, ok := g.Symbols().Scope(decl.Name); ok {
			if v, ok := info.Visibility(member.DeclaredName()); ok {
				vis = v
			}
		}
		//
		switch member := member.(type) {
		case *ast.Variable:
			g.TypingEnv().Scope = decl.Name
			errors = append(errors, g.globalVariable(out, member, decl.Name, vis)...)
			g.TypingEnv().Scope = ""
		case *ast.Function:
			errors = append(errors, g.function(out, member, decl.Name, vis)...)
		}
	}
	//
	if g.GenConfig().Cpp {
		out.blank()
		out.line("} // namespace %s", decl.Name)
	}
	//
	return errors
}

// ============================================================================
// Structs, enums, bitmaps
// ============================================================================

func (g *statementGenerator) structDecl(out *emitter, decl *ast.Struct) []SyntaxError {
	info, _ := g.Symbols().Struct(decl.Name)
	//
	if g.GenConfig().Cpp {
		out.line("struct %s {", decl.Name)
	} else {
		out.line("typedef struct {")
	}
	//
	out.indent++
	//
	for _, field := range info.Fields {
		out.line("%s;", g.declarator(field.Type, field.Name, 0))
	}
	//
	out.indent--
	//
	if g.GenConfig().Cpp {
		out.line("};")
	} else {
		out.line("} %s;", decl.Name)
	}
	//
	return nil
}

func (g *statementGenerator) enumDecl(out *emitter, decl *ast.Enum) []SyntaxError {
	info, _ := g.Symbols().Enum(decl.Name)
	//
	if g.GenConfig().Cpp {
		out.line("enum class %s {", decl.Name)
	} else {
		out.line("typedef enum {")
	}
	//
	out.indent++
	//
	for i, member := range info.MemberOrder {
		var (
			name  = member
			comma = ","
		)
		//
		if !g.GenConfig().Cpp {
			name = fmt.Sprintf("%s_%s", decl.Name, member)
		}
		//
		if i == len(info.MemberOrder)-1 {
			comma = ""
		}
		//
		out.line("%s = %d%s", name, info.Members[member], comma)
	}
	//
	out.indent--
	//
	if g.GenConfig().Cpp {
		out.line("};")
	} else {
		out.line("} %s;", decl.Name)
	}
	//
	return nil
}

// bitmapDecl lowers a bitmap to a typedef of its backing integer.  Field
// access compiles to inline shift-and-mask, so no per-field accessors are
// emitted.
func (g *statementGenerator) bitmapDecl(out *emitter, decl *ast.Bitmap) []SyntaxError {
	backing := compiler.UnsignedOfWidth(decl.Backing)
	//
	out.line("typedef %s %s;", g.CTypeName(backing), decl.Name)
	//
	return nil
}

// ============================================================================
// Registers
// ============================================================================

// registerDecl lowers each member to a volatile accessor macro over its
// absolute address.  All use sites go through these accessors, so no raw
// integer-to-pointer arithmetic appears in expressions.
func (g *statementGenerator) registerDecl(out *emitter, decl *ast.Register) []SyntaxError {
	info, _ := g.Symbols().Register(decl.Name)
	//
	for _, name := range info.MemberOrder {
		member := info.Members[name]
		//
		backing := compiler.UnsignedOfWidth(member.Type.WidthBits)
		//
		out.line("#define %s_%s (*(volatile %s *)%#xU)",
			decl.Name, name, g.CTypeName(backing), decl.Address+member.Offset)
	}
	//
	return nil
}

// ============================================================================
// Callbacks
// ============================================================================

// callbackDecl contributes a typedef effect; the typedef itself is emitted
// once in the prelude.
func (g *statementGenerator) callbackDecl(decl *ast.Callback) []SyntaxError {
	g.RequestTypedef(decl.Name, g.callbackTypedef(decl.Name))
	//
	return nil
}

func (g *statementGenerator) callbackTypedef(name string) string {
	info, ok := g.Symbols().Callback(name)
	if !ok {
		return ""
	}
	//
	var params []string
	//
	for _, param := range info.Params {
		params = append(params, g.CTypeName(param.Type))
	}
	//
	if len(params) == 0 {
		params = append(params, "void")
	}
	//
	ret := "void"
	if !info.Return.IsVoid() {
		ret = g.CTypeName(info.Return)
	}
	//
	return fmt.Sprintf("typedef %s (*%s)(%s);", ret, name, strings.Join(params, ", "))
}
