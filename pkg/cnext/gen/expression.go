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
	"github.com/jlaustill/go-cnext/pkg/util/source"
)

// Expression generates C for an expression.  The expected type gives the
// context into which the value flows, which steers literal suffixing and
// narrowing casts; pass the zero Type when no context applies.
func (g *expressionGenerator) Expression(expr ast.Expr, expected ast.Type) (string, []SyntaxError) {
	switch n := expr.(type) {
	case *ast.Identifier:
		return g.identifier(n)
	case *ast.IntLiteral:
		return g.intLiteral(n, expected), nil
	case *ast.FloatLiteral:
		return g.floatLiteral(n), nil
	case *ast.BoolLiteral:
		return g.boolLiteral(n), nil
	case *ast.StringLiteral:
		return fmt.Sprintf("\"%s\"", n.Value), nil
	case *ast.Paren:
		inner, errs := g.Expression(n.Inner, expected)
		if len(errs) > 0 {
			return "", errs
		}
		//
		return fmt.Sprintf("(%s)", inner), nil
	case *ast.Unary:
		return g.unary(n, expected)
	case *ast.Binary:
		return g.binary(n, expected)
	case *ast.Ternary:
		return g.ternary(n, expected)
	case *ast.Member, *ast.Index, *ast.Call:
		code, _, errs := g.postfix(expr)
		return code, errs
	}
	//
	panic("unknown expression")
}

// ============================================================================
// Literals and identifiers
// ============================================================================

// Integer suffixes lower as follows: u64 becomes ULL, i64 becomes LL, and
// narrower suffixes are stripped.  When the expected type context is an
// unsigned C type, a U (or ULL) suffix is appended even to unsuffixed
// literals.
func (g *expressionGenerator) intLiteral(literal *ast.IntLiteral, expected ast.Type) string {
	text := literal.Text
	// C99 has no binary literals; rewrite them in hexadecimal.
	if strings.HasPrefix(text, "0b") {
		text = fmt.Sprintf("%#x", literal.Value)
	}
	//
	switch {
	case literal.Suffix == ast.U64:
		return text + "ULL"
	case literal.Suffix == ast.I64:
		return text + "LL"
	case expected.IsUnsigned() && expected.WidthBits == 64:
		return text + "ULL"
	case expected.IsUnsigned():
		return text + "U"
	}
	//
	return text
}

// Float suffixes: f32 becomes f, f64 is stripped.
func (g *expressionGenerator) floatLiteral(literal *ast.FloatLiteral) string {
	if literal.Suffix == ast.F64 {
		return literal.Text
	}
	//
	return literal.Text + "f"
}

func (g *expressionGenerator) boolLiteral(literal *ast.BoolLiteral) string {
	if !g.GenConfig().Cpp {
		g.RequestInclude(IncludeStdbool)
	}
	//
	if literal.Value {
		return "true"
	}
	//
	return "false"
}

func (g *expressionGenerator) identifier(n *ast.Identifier) (string, []SyntaxError) {
	place, errs := g.primaryPlace(n, false)
	if len(errs) > 0 {
		return "", errs
	}
	//
	// A bare function name is a function pointer.
	if place.kind == placeFunction {
		return place.name, nil
	}
	//
	if place.kind != placeValue {
		return "", g.TypingEnv().Srcmap.SyntaxErrors(n, source.WrongKind,
			fmt.Sprintf("\"%s\" is not a value", n.Name))
	}
	//
	return place.code, nil
}

// ============================================================================
// Unary
// ============================================================================

func (g *expressionGenerator) unary(n *ast.Unary, expected ast.Type) (string, []SyntaxError) {
	operandType, errs := g.TypingEnv().TypeOf(n.Operand)
	if len(errs) > 0 {
		return "", errs
	}
	//
	operand, errs := g.Expression(n.Operand, expected)
	if len(errs) > 0 {
		return "", errs
	}
	//
	operand = parenthesise(n.Operand, operand)
	// Bitwise NOT promotes to int, so unsigned operands are cast back to
	// their own type (MISRA 10.1).
	if n.Op == ast.BITNOT && operandType.IsUnsigned() {
		return fmt.Sprintf("(%s)(~%s)", g.CTypeName(operandType), operand), nil
	}
	//
	return fmt.Sprintf("%s%s", n.Op.Token(), operand), nil
}

// ============================================================================
// Binary
// ============================================================================

func (g *expressionGenerator) binary(n *ast.Binary, expected ast.Type) (string, []SyntaxError) {
	resultType, errs := g.TypingEnv().TypeOf(n)
	if len(errs) > 0 {
		return "", errs
	}
	//
	switch {
	case n.Op == ast.SHL || n.Op == ast.SHR:
		return g.shift(n, resultType)
	case n.Op == ast.DIV || n.Op == ast.REM:
		if errs := g.TypingEnv().ValidateDivision(n, n.Rhs); len(errs) > 0 {
			return "", errs
		}
		//
		return g.plainBinary(n, resultType)
	case n.Op.IsArithmetic() && resultType.IsInteger():
		return g.arithmetic(n, resultType)
	case n.Op.IsComparison():
		return g.comparison(n)
	default:
		return g.plainBinary(n, resultType)
	}
}

func (g *expressionGenerator) operands(n *ast.Binary, expected ast.Type) (string, string, []SyntaxError) {
	lhs, errs := g.Expression(n.Lhs, expected)
	if len(errs) > 0 {
		return "", "", errs
	}
	//
	rhs, errs := g.Expression(n.Rhs, expected)
	if len(errs) > 0 {
		return "", "", errs
	}
	//
	return parenthesise(n.Lhs, lhs), parenthesise(n.Rhs, rhs), nil
}

// parenthesise wraps compound operands, keeping emitted precedence explicit
// regardless of the surrounding operator.
func parenthesise(expr ast.Expr, code string) string {
	switch expr.(type) {
	case *ast.Binary, *ast.Ternary:
		return fmt.Sprintf("(%s)", code)
	}
	//
	return code
}

func (g *expressionGenerator) plainBinary(n *ast.Binary, resultType ast.Type) (string, []SyntaxError) {
	lhs, rhs, errs := g.operands(n, resultType)
	if len(errs) > 0 {
		return "", errs
	}
	//
	return fmt.Sprintf("%s %s %s", lhs, n.Op.Token(), rhs), nil
}

func (g *expressionGenerator) comparison(n *ast.Binary) (string, []SyntaxError) {
	// Each side provides the literal context for the other.
	lhsType, _ := g.TypingEnv().TypeOf(n.Lhs)
	rhsType, _ := g.TypingEnv().TypeOf(n.Rhs)
	//
	lhs, errs := g.Expression(n.Lhs, rhsType)
	if len(errs) > 0 {
		return "", errs
	}
	//
	rhs, errs := g.Expression(n.Rhs, lhsType)
	if len(errs) > 0 {
		return "", errs
	}
	//
	return fmt.Sprintf("%s %s %s", parenthesise(n.Lhs, lhs), n.Op.Token(),
		parenthesise(n.Rhs, rhs)), nil
}

// arithmetic emits +, - and * under the overflow policy of the surrounding
// declaration or assignment.
func (g *expressionGenerator) arithmetic(n *ast.Binary, resultType ast.Type) (string, []SyntaxError) {
	lhs, rhs, errs := g.operands(n, resultType)
	if len(errs) > 0 {
		return "", errs
	}
	//
	switch g.OverflowPolicy() {
	case OVERFLOW_CLAMP:
		return g.clampedArithmetic(n, resultType, lhs, rhs), nil
	case OVERFLOW_WRAP:
		if resultType.IsUnsigned() {
			// Unsigned wrap is already well defined.
			return fmt.Sprintf("%s %s %s", lhs, n.Op.Token(), rhs), nil
		}
		//
		if resultType.Base == ast.I64 {
			// No wider signed type: wrap via unsigned arithmetic, which is
			// well defined, then convert back.
			return fmt.Sprintf("(int64_t)((uint64_t)%s %s (uint64_t)%s)", lhs, n.Op.Token(), rhs), nil
		}
		//
		return g.widenedArithmetic(n, resultType, lhs, rhs), nil
	default:
		// Unsigned types rely on modular behaviour; narrow signed types use
		// the widened-then-narrowed pattern to avoid undefined behaviour.
		if resultType.Signed && resultType.WidthBits < 64 {
			return g.widenedArithmetic(n, resultType, lhs, rhs), nil
		}
		//
		return fmt.Sprintf("%s %s %s", lhs, n.Op.Token(), rhs), nil
	}
}

func (g *expressionGenerator) clampedArithmetic(n *ast.Binary, resultType ast.Type, lhs string, rhs string) string {
	op := helperOpFor(n.Op)
	mode := MODE_CLAMP
	//
	if g.GenConfig().Debug {
		mode = MODE_PANIC
		g.RequestInclude(IncludeStdio)
		g.RequestInclude(IncludeStdlib)
	}
	//
	g.RequestInclude(IncludeStdint)
	g.RequestHelper(op, resultType.Base, mode)
	//
	return fmt.Sprintf("%s(%s, %s)", HelperName(op, resultType.Base), lhs, rhs)
}

// widenedArithmetic computes in the wider type and casts the result back.
func (g *expressionGenerator) widenedArithmetic(n *ast.Binary, resultType ast.Type, lhs string, rhs string) string {
	wider := g.CTypeName(resultType.WiderType())
	//
	return fmt.Sprintf("(%s)((%s)%s %s (%s)%s)",
		g.CTypeName(resultType), wider, lhs, n.Op.Token(), wider, rhs)
}

func (g *expressionGenerator) shift(n *ast.Binary, resultType ast.Type) (string, []SyntaxError) {
	lhsType, errs := g.TypingEnv().TypeOf(n.Lhs)
	if len(errs) > 0 {
		return "", errs
	}
	//
	if errs := g.TypingEnv().ValidateShift(n, lhsType); len(errs) > 0 {
		return "", errs
	}
	//
	lhs, rhs, errs := g.operands(n, ast.Type{})
	if len(errs) > 0 {
		return "", errs
	}
	// Narrow operands promote to int under shift; cast back.
	if resultType.IsUnsigned() && resultType.WidthBits < 32 {
		return fmt.Sprintf("(%s)(%s %s %s)", g.CTypeName(resultType), lhs, n.Op.Token(), rhs), nil
	}
	//
	return fmt.Sprintf("%s %s %s", lhs, n.Op.Token(), rhs), nil
}

func helperOpFor(op ast.BinaryOp) HelperOp {
	switch op {
	case ast.ADD:
		return HELPER_ADD
	case ast.SUB:
		return HELPER_SUB
	case ast.MUL:
		return HELPER_MUL
	case ast.DIV:
		return HELPER_DIV
	case ast.REM:
		return HELPER_MOD
	}
	//
	panic("operation has no helper")
}

// ============================================================================
// Ternary
// ============================================================================

func (g *expressionGenerator) ternary(n *ast.Ternary, expected ast.Type) (string, []SyntaxError) {
	if errs := g.ValidateTernaryCondition(n); len(errs) > 0 {
		return "", errs
	}
	//
	cond, errs := g.Expression(n.Cond, ast.Type{})
	if len(errs) > 0 {
		return "", errs
	}
	//
	then, errs := g.Expression(n.Then, expected)
	if len(errs) > 0 {
		return "", errs
	}
	//
	els, errs := g.Expression(n.Else, expected)
	if len(errs) > 0 {
		return "", errs
	}
	//
	return fmt.Sprintf("(%s) ? %s : %s", stripOuterParens(cond), then, els), nil
}

func stripOuterParens(code string) string {
	if strings.HasPrefix(code, "(") && strings.HasSuffix(code, ")") {
		// Only strip when the parentheses actually match each other.
		depth := 0
		//
		for i, ch := range code {
			switch ch {
			case '(':
				depth++
			case ')':
				depth--
				//
				if depth == 0 && i != len(code)-1 {
					return code
				}
			}
		}
		//
		return code[1 : len(code)-1]
	}
	//
	return code
}

// ============================================================================
// Postfix chains
// ============================================================================

// placeKind distinguishes what the code generated so far denotes: an
// ordinary value, or one of the namespaces (this, global, a scope, an enum,
// a register) which only a member access can consume.
type placeKind uint

const (
	placeValue placeKind = iota
	placeThis
	placeGlobal
	placeScope
	placeEnum
	placeRegister
	placeFunction
	placeExternal
)

// place is the state threaded across the operations of a postfix chain.
type place struct {
	kind placeKind
	code string
	typ  ast.Type
	// Namespace (or external function) name for non-value places.
	name string
	// Resolved callee for placeFunction.
	fn *compiler.FunctionInfo
	// The base identifier this chain started from, where applicable; keys
	// the length and alias caches and identifies main's argument vector.
	base *ast.Identifier
	// Whether the current code is a struct parameter, accessed through a
	// pointer in C.
	structParam bool
}

// postfix generates a full postfix chain, returning the final code and type.
func (g *expressionGenerator) postfix(expr ast.Expr) (string, ast.Type, []SyntaxError) {
	primary, ops := flattenPostfix(expr)
	//
	var (
		st   place
		errs []SyntaxError
	)
	// Resolve the primary expression.
	if ident, ok := primary.(*ast.Identifier); ok {
		calleeFirst := false
		//
		if len(ops) > 0 {
			_, calleeFirst = ops[0].(*ast.Call)
		}
		//
		st, errs = g.primaryPlace(ident, calleeFirst)
	} else {
		var code string
		//
		code, errs = g.Expression(primary, ast.Type{})
		//
		if len(errs) == 0 {
			var t ast.Type
			//
			t, errs = g.TypingEnv().TypeOf(primary)
			st = place{kind: placeValue, code: code, typ: t}
		}
	}
	//
	if len(errs) > 0 {
		return "", ast.Type{}, errs
	}
	// Thread the state through each postfix operation.
	for _, op := range ops {
		switch op := op.(type) {
		case *ast.Member:
			st, errs = g.applyMember(st, op)
		case *ast.Index:
			st, errs = g.applyIndex(st, op)
		case *ast.Call:
			st, errs = g.applyCall(st, op)
		}
		//
		if len(errs) > 0 {
			return "", ast.Type{}, errs
		}
	}
	//
	if st.kind != placeValue {
		return "", ast.Type{}, g.TypingEnv().Srcmap.SyntaxErrors(expr, source.WrongKind,
			"expression does not produce a value")
	}
	//
	return st.code, st.typ, nil
}

// flattenPostfix unrolls a nested postfix expression into its primary and
// the operations applied to it, left to right.
func flattenPostfix(expr ast.Expr) (ast.Expr, []ast.Expr) {
	var ops []ast.Expr
	//
	for {
		switch e := expr.(type) {
		case *ast.Member:
			ops = append([]ast.Expr{e}, ops...)
			expr = e.Target
		case *ast.Index:
			ops = append([]ast.Expr{e}, ops...)
			expr = e.Target
		case *ast.Call:
			ops = append([]ast.Expr{e}, ops...)
			expr = e.Target
		default:
			return expr, ops
		}
	}
}

// primaryPlace resolves an identifier at the head of a postfix chain.
// Resolution order is parameters, locals, then the registry; namespaces are
// recognised only when no parameter or local shadows them.
func (g *expressionGenerator) primaryPlace(ident *ast.Identifier, calleePosition bool) (place, []SyntaxError) {
	name := ident.Name
	//
	if ident.IsThis() {
		if g.TypingEnv().Scope == "" {
			return place{}, g.TypingEnv().Srcmap.SyntaxErrors(ident, source.WrongKind,
				"\"this\" used outside a scope")
		}
		//
		return place{kind: placeThis}, nil
	}
	//
	if ident.IsGlobal() {
		return place{kind: placeGlobal}, nil
	}
	// Parameters first.
	if g.FuncState() != nil {
		if param, ok := g.FuncState().info.Param(name); ok {
			return g.parameterPlace(ident, param), nil
		}
	}
	// Then locals.
	if t, ok := g.TypingEnv().Locals[name]; ok {
		return place{kind: placeValue, code: name, typ: t, base: ident}, nil
	}
	// Then the registry.  A qualified identifier must resolve to exactly one
	// symbol.
	var (
		places []place
	)
	//
	if g.IsKnownScope(name) {
		places = append(places, place{kind: placeScope, name: name})
	}
	//
	if g.Symbols().IsEnum(name) {
		places = append(places, place{kind: placeEnum, name: name})
	}
	//
	if g.Symbols().IsRegister(name) {
		places = append(places, place{kind: placeRegister, name: name})
	}
	//
	if info, ok := g.Symbols().Variable("", name); ok {
		places = append(places, place{kind: placeValue, code: name, typ: info.Type, base: ident})
	}
	//
	if info, ok := g.Symbols().Function("", name); ok {
		places = append(places, place{kind: placeFunction, name: name, fn: info})
	}
	//
	switch len(places) {
	case 1:
		return places[0], nil
	case 0:
		// Unknown names in callee position denote external C functions.
		if calleePosition {
			return place{kind: placeExternal, name: name}, nil
		}
		//
		return place{}, g.TypingEnv().Srcmap.SyntaxErrors(ident, source.UnknownSymbol,
			fmt.Sprintf("unknown symbol \"%s\"", name))
	default:
		return place{}, g.TypingEnv().Srcmap.SyntaxErrors(ident, source.AmbiguousReference,
			fmt.Sprintf("\"%s\" is ambiguous", name))
	}
}

// parameterPlace resolves a parameter reference, dereferencing promoted
// parameters.  Struct parameters stay as pointers so field access can use
// the arrow form.
func (g *expressionGenerator) parameterPlace(ident *ast.Identifier, param *compiler.ParamInfo) place {
	st := place{kind: placeValue, typ: param.Type, base: ident}
	//
	switch {
	case !param.ForcePointer:
		st.code = param.Name
	case param.Type.IsStruct && !g.GenConfig().Cpp:
		st.code = param.Name
		st.structParam = true
	case param.Type.IsArray || param.Type.IsString:
		// Arrays (and strings) arrive as pointers already.
		st.code = param.Name
	default:
		st.code = fmt.Sprintf("(*%s)", param.Name)
	}
	//
	return st
}

// ============================================================================
// Member access
// ============================================================================

func (g *expressionGenerator) applyMember(st place, op *ast.Member) (place, []SyntaxError) {
	switch st.kind {
	case placeThis:
		return g.scopeMember(st, op, g.TypingEnv().Scope, true)
	case placeGlobal:
		return g.globalMember(st, op)
	case placeScope:
		if st.name == g.TypingEnv().Scope {
			return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.OwnScopeByName,
				fmt.Sprintf("use \"this.%s\" within scope %s", op.Name, st.name))
		}
		//
		return g.scopeMember(st, op, st.name, false)
	case placeEnum:
		return g.enumMember(st, op)
	case placeRegister:
		return g.registerMember(st, op)
	case placeValue:
		return g.valueMember(st, op)
	}
	//
	return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.WrongKind,
		fmt.Sprintf("\"%s\" cannot be accessed here", op.Name))
}

// scopeMember resolves a member of a scope, enforcing visibility for
// cross-scope accesses and folding constants where their value is known.
func (g *expressionGenerator) scopeMember(st place, op *ast.Member, scope string, own bool) (place, []SyntaxError) {
	info, _ := g.Symbols().Scope(scope)
	//
	vis, ok := info.Visibility(op.Name)
	if !ok {
		return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.UnknownSymbol,
			fmt.Sprintf("scope %s has no member \"%s\"", scope, op.Name))
	}
	//
	if !own && vis == compiler.PRIVATE {
		return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.PrivateMember,
			fmt.Sprintf("\"%s\" is private to scope %s", op.Name, scope))
	}
	//
	if variable, ok := g.Symbols().Variable(scope, op.Name); ok {
		// Fold constants whose value is known.
		if value, ok := g.Symbols().ConstValue(compiler.QualifiedName(scope, op.Name)); ok &&
			variable.Type.IsInteger() {
			return place{kind: placeValue, code: g.ConstantCode(value, variable.Type),
				typ: variable.Type}, nil
		}
		//
		return place{kind: placeValue, code: g.ScopedName(scope, op.Name), typ: variable.Type}, nil
	}
	//
	if fn, ok := g.Symbols().Function(scope, op.Name); ok {
		return place{kind: placeFunction, name: g.ScopedName(scope, op.Name), fn: fn}, nil
	}
	// Unreachable: scope members are variables or functions.
	panic(fmt.Sprintf("unknown member \"%s\" of scope %s", op.Name, scope))
}

// globalMember resolves through the global sentinel, which forces file-level
// resolution.  Emitting the bare identifier is only sound when no local
// shadows it.
func (g *expressionGenerator) globalMember(st place, op *ast.Member) (place, []SyntaxError) {
	if g.TypingEnv().Function != nil {
		if _, ok := g.TypingEnv().Function.Param(op.Name); ok {
			return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.AmbiguousReference,
				fmt.Sprintf("\"global.%s\" is shadowed by a parameter", op.Name))
		}
	}
	//
	if _, ok := g.TypingEnv().Locals[op.Name]; ok {
		return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.AmbiguousReference,
			fmt.Sprintf("\"global.%s\" is shadowed by a local", op.Name))
	}
	//
	if variable, ok := g.Symbols().Variable("", op.Name); ok {
		return place{kind: placeValue, code: op.Name, typ: variable.Type}, nil
	}
	//
	if fn, ok := g.Symbols().Function("", op.Name); ok {
		return place{kind: placeFunction, name: op.Name, fn: fn}, nil
	}
	//
	return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.UnknownSymbol,
		fmt.Sprintf("unknown symbol \"%s\"", op.Name))
}

func (g *expressionGenerator) enumMember(st place, op *ast.Member) (place, []SyntaxError) {
	info, _ := g.Symbols().Enum(st.name)
	//
	if _, ok := info.Members[op.Name]; !ok {
		return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.UnknownSymbol,
			fmt.Sprintf("enum %s has no member \"%s\"", st.name, op.Name))
	}
	//
	t, _ := g.Symbols().ResolveType(ast.NewNamedType(st.name))
	//
	return place{kind: placeValue, code: g.ScopedName(st.name, op.Name), typ: t}, nil
}

// registerMember resolves a member of a memory-mapped register in a read
// context; assignment generation handles the write side.
func (g *expressionGenerator) registerMember(st place, op *ast.Member) (place, []SyntaxError) {
	info, _ := g.Symbols().Register(st.name)
	//
	member, ok := info.Members[op.Name]
	if !ok {
		return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.UnknownSymbol,
			fmt.Sprintf("register %s has no member \"%s\"", st.name, op.Name))
	}
	//
	if errs := g.TypingEnv().ValidateRegisterRead(op, st.name, member); len(errs) > 0 {
		return place{}, errs
	}
	//
	return place{kind: placeValue, code: fmt.Sprintf("%s_%s", st.name, op.Name),
		typ: member.Type}, nil
}

// valueMember projects a member out of an ordinary value: a struct field, a
// bitmap field, or one of the semantic properties.
func (g *expressionGenerator) valueMember(st place, op *ast.Member) (place, []SyntaxError) {
	switch op.Name {
	case "length":
		return g.lengthProperty(st, op)
	case "capacity":
		if st.typ.IsString {
			return place{kind: placeValue, code: fmt.Sprintf("%dU", st.typ.StringCapacity),
				typ: ast.NewPrimitiveType(ast.U32)}, nil
		}
	case "size":
		if st.typ.IsString {
			return place{kind: placeValue, code: fmt.Sprintf("%dU", st.typ.StringCapacity+1),
				typ: ast.NewPrimitiveType(ast.U32)}, nil
		}
	}
	//
	if st.typ.IsStruct {
		field, ok := g.StructFieldInfo(st.typ.Name, op.Name)
		if !ok {
			return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.UnknownSymbol,
				fmt.Sprintf("struct %s has no field \"%s\"", st.typ.Name, op.Name))
		}
		// Struct parameters are pointers in C, values in C++.
		accessor := "."
		if st.structParam {
			accessor = "->"
		}
		//
		return place{kind: placeValue, code: fmt.Sprintf("%s%s%s", st.code, accessor, op.Name),
			typ: field.Type}, nil
	}
	//
	if st.typ.IsBitmap {
		return g.bitmapField(st, op)
	}
	//
	return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.WrongKind,
		fmt.Sprintf("type %s has no member \"%s\"", st.typ.String(), op.Name))
}

// bitmapField reads a named bit field by inline shift-and-mask.
func (g *expressionGenerator) bitmapField(st place, op *ast.Member) (place, []SyntaxError) {
	info, _ := g.Symbols().Bitmap(st.typ.Name)
	//
	field, ok := info.Fields[op.Name]
	if !ok {
		return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.UnknownBitmapField,
			fmt.Sprintf("bitmap %s has no field \"%s\"", st.typ.Name, op.Name))
	}
	//
	var (
		mask      = g.MaskLiteral(field.Width, info.Backing)
		fieldType ast.Type
		code      string
	)
	//
	if field.Offset == 0 {
		code = fmt.Sprintf("(%s & %s)", st.code, mask)
	} else {
		code = fmt.Sprintf("((%s >> %d) & %s)", st.code, field.Offset, mask)
	}
	//
	if field.Width == 1 {
		fieldType = ast.NewPrimitiveType(ast.BOOL)
	} else {
		fieldType = compiler.UnsignedOfWidth(field.Width)
	}
	//
	return place{kind: placeValue, code: code, typ: fieldType}, nil
}

// lengthProperty lowers ".length": strlen for strings (memoised per
// function), the static extent for arrays, the bit width for integers, and
// argc for main's argument vector.
func (g *expressionGenerator) lengthProperty(st place, op *ast.Member) (place, []SyntaxError) {
	u32 := ast.NewPrimitiveType(ast.U32)
	//
	switch {
	case st.base != nil && g.TypingEnv().IsMainArgs(st.base):
		return place{kind: placeValue, code: "(uint32_t)argc", typ: u32}, nil
	case st.typ.IsString:
		if g.FuncState() == nil {
			// At global scope there is nowhere to hoist the strlen.
			return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.WrongKind,
				"string length is not available at global scope")
		}
		//
		g.RequestInclude(IncludeString)
		// Repeat uses of the same string reuse the first measurement.
		cached, ok := g.FuncState().lengthCache[st.code]
		if !ok {
			cached = g.FreshTemp("cnx_len")
			g.FuncState().lengthCache[st.code] = cached
			g.FuncState().pendingTemps = append(g.FuncState().pendingTemps,
				fmt.Sprintf("size_t %s = strlen(%s);", cached, st.code))
		}
		//
		return place{kind: placeValue, code: fmt.Sprintf("(uint32_t)%s", cached), typ: u32}, nil
	case st.typ.IsArray:
		return place{kind: placeValue, code: fmt.Sprintf("%dU", st.typ.Dims[0]), typ: u32}, nil
	case st.typ.IsInteger() || st.typ.IsBitmap:
		return place{kind: placeValue, code: fmt.Sprintf("%dU", st.typ.WidthBits), typ: u32}, nil
	}
	//
	return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.WrongKind,
		"\"length\" requires a string, array or integer")
}

// ============================================================================
// Subscripts
// ============================================================================

func (g *expressionGenerator) applyIndex(st place, op *ast.Index) (place, []SyntaxError) {
	if st.kind != placeValue {
		return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.WrongKind, "cannot subscript a namespace")
	}
	//
	switch {
	case st.typ.IsArray:
		return g.arrayIndex(st, op)
	case st.typ.IsString:
		return g.stringIndex(st, op)
	case st.typ.IsBitmap:
		return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.TypeMismatch,
			"bitmaps are indexed by field name, not position")
	case st.typ.IsFloat():
		return g.floatBitRange(st, op)
	case st.typ.IsInteger():
		if op.IsBitRange() {
			return g.bitRange(st, op, st.code, st.typ)
		}
		//
		return g.bitIndex(st, op)
	}
	//
	return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.TypeMismatch,
		fmt.Sprintf("type %s cannot be subscripted", st.typ.String()))
}

func (g *expressionGenerator) arrayIndex(st place, op *ast.Index) (place, []SyntaxError) {
	if op.IsBitRange() {
		return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.TypeMismatch,
			"bit ranges do not apply to arrays")
	}
	//
	if errs := g.TypingEnv().ValidateArrayIndex(op, st.typ, op.Args[0]); len(errs) > 0 {
		return place{}, errs
	}
	//
	index, errs := g.Expression(op.Args[0], ast.NewPrimitiveType(ast.U32))
	if len(errs) > 0 {
		return place{}, errs
	}
	//
	st.code = fmt.Sprintf("%s[%s]", st.code, index)
	st.typ = st.typ.ElementType()
	//
	return st, nil
}

func (g *expressionGenerator) stringIndex(st place, op *ast.Index) (place, []SyntaxError) {
	if op.IsBitRange() {
		return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.TypeMismatch,
			"bit ranges do not apply to strings")
	}
	//
	index, errs := g.Expression(op.Args[0], ast.NewPrimitiveType(ast.U32))
	if len(errs) > 0 {
		return place{}, errs
	}
	//
	st.code = fmt.Sprintf("%s[%s]", st.code, index)
	st.typ = ast.NewPrimitiveType(ast.U8)
	//
	return st, nil
}

// bitIndex reads a single bit of a scalar integer.
func (g *expressionGenerator) bitIndex(st place, op *ast.Index) (place, []SyntaxError) {
	if errs := g.TypingEnv().ValidateBitIndex(op, st.typ.WidthBits, op.Args[0]); len(errs) > 0 {
		return place{}, errs
	}
	//
	index, errs := g.Expression(op.Args[0], ast.NewPrimitiveType(ast.U32))
	if len(errs) > 0 {
		return place{}, errs
	}
	//
	one := "1U"
	if st.typ.WidthBits == 64 {
		one = "1ULL"
	}
	//
	st.code = fmt.Sprintf("((%s >> %s) & %s)", st.code, index, one)
	st.typ = ast.NewPrimitiveType(ast.BOOL)
	//
	return st, nil
}

// bitRange reads a contiguous bit range [lo, hi] of an integer value.  A
// literal zero low bound drops the shift.
func (g *expressionGenerator) bitRange(st place, op *ast.Index, code string, backing ast.Type) (place, []SyntaxError) {
	for _, arg := range op.Args {
		if errs := g.TypingEnv().ValidateBitIndex(op, backing.WidthBits, arg); len(errs) > 0 {
			return place{}, errs
		}
	}
	//
	lo, errs := g.Expression(op.Args[0], ast.NewPrimitiveType(ast.U32))
	if len(errs) > 0 {
		return place{}, errs
	}
	//
	var (
		loVal      = compiler.FoldConstant(g.Symbols(), g.TypingEnv().Scope, op.Args[0])
		hiVal      = compiler.FoldConstant(g.Symbols(), g.TypingEnv().Scope, op.Args[1])
		resultType ast.Type
		mask       string
	)
	//
	if loVal != nil && hiVal != nil {
		if hiVal.Cmp(loVal) < 0 {
			return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.BitIndexOutOfBounds,
				"bit range bounds are reversed")
		}
		//
		width := uint(hiVal.Uint64()-loVal.Uint64()) + 1
		mask = g.MaskLiteral(width, backing.WidthBits)
		resultType = compiler.UnsignedOfWidth(width)
	} else {
		// Runtime bounds take a runtime mask.
		hi, errs := g.Expression(op.Args[1], ast.NewPrimitiveType(ast.U32))
		if len(errs) > 0 {
			return place{}, errs
		}
		//
		one := "1U"
		if backing.WidthBits == 64 {
			one = "1ULL"
		}
		//
		mask = fmt.Sprintf("((%s << ((%s - %s) + 1U)) - %s)", one, hi, lo, one)
		resultType = compiler.UnsignedOfWidth(backing.WidthBits)
	}
	//
	if loVal != nil && loVal.Sign() == 0 {
		st.code = fmt.Sprintf("(%s & %s)", code, mask)
	} else {
		st.code = fmt.Sprintf("((%s >> %s) & %s)", code, lo, mask)
	}
	//
	st.typ = resultType
	//
	return st, nil
}

// floatBitRange reads bits of a float through a memcpy alias variable, which
// may only appear within a function body.
func (g *expressionGenerator) floatBitRange(st place, op *ast.Index) (place, []SyntaxError) {
	if !op.IsBitRange() {
		return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.TypeMismatch,
			"float bit access requires a [lo, hi] range")
	}
	//
	if g.FuncState() == nil {
		return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.UnsupportedFloatBitOp,
			"float bit access requires a function body")
	}
	//
	g.RequestInclude(IncludeString)
	//
	var backing ast.Type
	//
	if st.typ.Base == ast.F32 {
		g.RequestInclude(IncludeFloatAssert)
		backing = ast.NewPrimitiveType(ast.U32)
	} else {
		g.RequestInclude(IncludeDoubleAssert)
		backing = ast.NewPrimitiveType(ast.U64)
	}
	// One alias per distinct float expression.
	alias, ok := g.FuncState().aliasCache[st.code]
	if !ok {
		if st.base != nil {
			alias = fmt.Sprintf("__bits_%s", st.base.Name)
		} else {
			alias = g.FreshTemp("__bits")
		}
		//
		g.FuncState().aliasCache[st.code] = alias
		g.FuncState().pendingTemps = append(g.FuncState().pendingTemps,
			fmt.Sprintf("%s %s;", g.CTypeName(backing), alias),
			fmt.Sprintf("(void)memcpy(&%s, &%s, sizeof(%s));", alias, st.code, st.code))
	}
	//
	return g.bitRange(st, op, alias, backing)
}

// ============================================================================
// Calls
// ============================================================================

func (g *expressionGenerator) applyCall(st place, op *ast.Call) (place, []SyntaxError) {
	switch st.kind {
	case placeFunction:
		return g.cnextCall(st, op)
	case placeExternal:
		if g.TypingEnv().IsIntrinsicCall(op) {
			return g.intrinsicCall(st, op)
		}
		//
		return g.externalCall(st, op)
	case placeValue:
		// A callback-typed value is invoked indirectly, by value.
		if st.typ.IsCallback {
			return g.callbackCall(st, op)
		}
	}
	//
	return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.WrongKind, "call target is not a function")
}

// cnextCall invokes a C-Next function, inserting address-of operators for
// promoted parameters and static casts for enum values in C++ mode.
func (g *expressionGenerator) cnextCall(st place, op *ast.Call) (place, []SyntaxError) {
	callee := st.fn
	//
	if len(op.Args) != len(callee.Params) {
		return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.TypeMismatch,
			fmt.Sprintf("%s expects %d arguments", callee.Name, len(callee.Params)))
	}
	//
	if errs := g.TypingEnv().ValidateConstArgs(op, callee); len(errs) > 0 {
		return place{}, errs
	}
	//
	args := make([]string, len(op.Args))
	//
	for i, arg := range op.Args {
		code, errs := g.argument(arg, callee.Params[i])
		if len(errs) > 0 {
			return place{}, errs
		}
		//
		args[i] = code
	}
	//
	return place{
		kind: placeValue,
		code: fmt.Sprintf("%s(%s)", st.name, strings.Join(args, ", ")),
		typ:  callee.Return,
	}, nil
}

func (g *expressionGenerator) argument(arg ast.Expr, param *compiler.ParamInfo) (string, []SyntaxError) {
	argType, errs := g.TypingEnv().TypeOf(arg)
	if len(errs) > 0 {
		return "", errs
	}
	//
	code, errs := g.Expression(arg, param.Type)
	if len(errs) > 0 {
		return "", errs
	}
	// Enum class values need a static cast when flowing into integers.
	if g.GenConfig().Cpp && argType.IsEnum && param.Type.IsInteger() {
		return fmt.Sprintf("static_cast<%s>(%s)", g.CTypeName(param.Type), code), nil
	}
	//
	if !param.ForcePointer {
		return code, nil
	}
	// Arrays and strings decay to pointers on their own.
	if argType.IsArray || argType.IsString {
		return code, nil
	}
	// A promoted parameter forwarded to another promoted parameter is
	// already a pointer.
	if ident, ok := arg.(*ast.Identifier); ok && g.FuncState() != nil {
		if argParam, ok := g.FuncState().info.Param(ident.Name); ok && argParam.ForcePointer {
			return ident.Name, nil
		}
	}
	//
	if g.isLvalue(arg) {
		return fmt.Sprintf("&%s", code), nil
	}
	// Values with no address (literals, bitmap fields, arithmetic) are
	// materialised into a temporary first.
	if g.FuncState() == nil {
		return "", g.TypingEnv().Srcmap.SyntaxErrors(arg, source.WrongKind,
			"cannot pass this value by pointer at global scope")
	}
	//
	temp := g.FreshTemp("cnx_arg")
	g.FuncState().pendingTemps = append(g.FuncState().pendingTemps,
		fmt.Sprintf("%s %s = %s;", g.CTypeName(param.Type), temp, code))
	//
	return fmt.Sprintf("&%s", temp), nil
}

// isLvalue determines whether an expression's generated form has an address:
// identifiers, struct fields, scope members and array elements do; bitmap
// fields, bit reads, lengths, register members and computed values do not.
func (g *expressionGenerator) isLvalue(expr ast.Expr) bool {
	switch e := unwrapParens(expr).(type) {
	case *ast.Identifier:
		return !e.IsThis() && !e.IsGlobal()
	case *ast.Member:
		// Qualified scope accesses are lvalues; projections depend on the
		// target's type.
		if base, ok := e.Target.(*ast.Identifier); ok && !g.Shadowed(base.Name) {
			if base.IsThis() || base.IsGlobal() || g.IsKnownScope(base.Name) {
				return true
			}
			//
			if g.Symbols().IsRegister(base.Name) || g.Symbols().IsEnum(base.Name) {
				return false
			}
		}
		//
		targetType, errs := g.TypingEnv().TypeOf(e.Target)
		//
		return len(errs) == 0 && targetType.IsStruct
	case *ast.Index:
		targetType, errs := g.TypingEnv().TypeOf(e.Target)
		//
		return len(errs) == 0 && (targetType.IsArray || targetType.IsString)
	}
	//
	return false
}

func unwrapParens(expr ast.Expr) ast.Expr {
	for {
		paren, ok := expr.(*ast.Paren)
		if !ok {
			return expr
		}
		//
		expr = paren.Inner
	}
}

// intrinsicCall lowers safe_div / safe_mod onto their helpers.
func (g *expressionGenerator) intrinsicCall(st place, op *ast.Call) (place, []SyntaxError) {
	if len(op.Args) != 4 {
		return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.TypeMismatch,
			fmt.Sprintf("%s expects (out, a, b, default)", st.name))
	}
	//
	outType, errs := g.TypingEnv().TypeOf(op.Args[0])
	if len(errs) > 0 {
		return place{}, errs
	}
	//
	helperOp := HELPER_DIV
	if st.name == compiler.SafeMod {
		helperOp = HELPER_MOD
	}
	//
	g.RequestInclude(IncludeStdint)
	g.RequestHelper(helperOp, outType.Base, MODE_SAFE)
	//
	out, errs := g.argument(op.Args[0], &compiler.ParamInfo{Type: outType, ForcePointer: true})
	if len(errs) > 0 {
		return place{}, errs
	}
	//
	args := []string{out}
	//
	for _, arg := range op.Args[1:] {
		code, errs := g.Expression(arg, outType)
		if len(errs) > 0 {
			return place{}, errs
		}
		//
		args = append(args, code)
	}
	//
	return place{
		kind: placeValue,
		code: fmt.Sprintf("%s(%s)", HelperName(helperOp, outType.Base), strings.Join(args, ", ")),
		typ:  ast.Type{Base: ast.VOID},
	}, nil
}

// callbackCall invokes a function pointer.  Callback parameters pass by
// value, so no promotion applies.
func (g *expressionGenerator) callbackCall(st place, op *ast.Call) (place, []SyntaxError) {
	info, ok := g.Symbols().Callback(st.typ.Name)
	if !ok {
		return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.WrongKind, "call target is not a function")
	}
	//
	if len(op.Args) != len(info.Params) {
		return place{}, g.TypingEnv().Srcmap.SyntaxErrors(op, source.TypeMismatch,
			fmt.Sprintf("%s expects %d arguments", st.typ.Name, len(info.Params)))
	}
	//
	args := make([]string, len(op.Args))
	//
	for i, arg := range op.Args {
		code, errs := g.Expression(arg, info.Params[i].Type)
		if len(errs) > 0 {
			return place{}, errs
		}
		//
		args[i] = code
	}
	//
	return place{
		kind: placeValue,
		code: fmt.Sprintf("%s(%s)", st.code, strings.Join(args, ", ")),
		typ:  info.Return,
	}, nil
}

// externalCall invokes an external C function: arguments pass by value, with
// no signature to check against.
func (g *expressionGenerator) externalCall(st place, op *ast.Call) (place, []SyntaxError) {
	args := make([]string, len(op.Args))
	//
	for i, arg := range op.Args {
		code, errs := g.Expression(arg, ast.Type{})
		if len(errs) > 0 {
			return place{}, errs
		}
		//
		args[i] = code
	}
	//
	return place{
		kind: placeValue,
		code: fmt.Sprintf("%s(%s)", st.name, strings.Join(args, ", ")),
		typ:  ast.NewPrimitiveType(ast.I32),
	}, nil
}

// readTarget generates a read of an lvalue, used by compound assignment.
func (g *expressionGenerator) readTarget(target ast.Expr) (string, ast.Type, []SyntaxError) {
	switch target.(type) {
	case *ast.Member, *ast.Index, *ast.Call:
		return g.postfix(target)
	default:
		t, errs := g.TypingEnv().TypeOf(target)
		if len(errs) > 0 {
			return "", ast.Type{}, errs
		}
		//
		code, errs := g.Expression(target, ast.Type{})
		//
		return code, t, errs
	}
}
