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
package compiler

import (
	"fmt"
	"math/big"

	"github.com/jlaustill/go-cnext/pkg/cnext/ast"
	"github.com/jlaustill/go-cnext/pkg/util/source"
)

// SafeDiv is the name of the checked-division intrinsic.
const SafeDiv = "safe_div"

// SafeMod is the name of the checked-modulo intrinsic.
const SafeMod = "safe_mod"

// Env captures the ambient state needed to infer the type of an expression:
// the frozen registry, the enclosing scope (if any), the enclosing function
// (whose parameters are in scope), and the local variables declared so far.
type Env struct {
	Registry *Registry
	Srcmap   *source.Maps[ast.Node]
	// Enclosing scope name, or empty at file level.
	Scope string
	// Enclosing function, or nil outside function bodies.
	Function *FunctionInfo
	// Local variables in scope.
	Locals map[string]ast.Type
}

// NewEnv constructs an environment for typing expressions at file level.
func NewEnv(registry *Registry, srcmap *source.Maps[ast.Node]) *Env {
	return &Env{registry, srcmap, "", nil, make(map[string]ast.Type)}
}

// EnterFunction derives an environment for typing expressions within a given
// function body.
func (e *Env) EnterFunction(scope string, fn *FunctionInfo) *Env {
	return &Env{e.Registry, e.Srcmap, scope, fn, make(map[string]ast.Type)}
}

// DeclareLocal records a local variable.
func (e *Env) DeclareLocal(name string, t ast.Type) {
	e.Locals[name] = t
}

// IsMainArgs checks whether a given expression names the argument vector of
// the program entry point, whose length lowers to argc.
func (e *Env) IsMainArgs(expr ast.Expr) bool {
	ident, ok := expr.(*ast.Identifier)
	//
	if !ok || e.Function == nil || !e.Function.IsMain() {
		return false
	}
	//
	param, ok := e.Function.Param(ident.Name)
	//
	return ok && param.Type.IsArray
}

func (e *Env) errorOn(node ast.Node, kind source.ErrorKind, msg string) []SyntaxError {
	return e.Srcmap.SyntaxErrors(node, kind, msg)
}

// TypeOf infers the type of an expression, or reports why it has none.  The
// resolver is total over well-typed programs: every failure carries a
// kind-specific error.
func (e *Env) TypeOf(expr ast.Expr) (ast.Type, []SyntaxError) {
	switch n := expr.(type) {
	case *ast.Identifier:
		return e.typeOfIdentifier(n)
	case *ast.IntLiteral:
		return typeOfIntLiteral(n), nil
	case *ast.FloatLiteral:
		if n.Suffix == ast.F64 {
			return ast.NewPrimitiveType(ast.F64), nil
		}
		//
		return ast.NewPrimitiveType(ast.F32), nil
	case *ast.BoolLiteral:
		return ast.NewPrimitiveType(ast.BOOL), nil
	case *ast.StringLiteral:
		return ast.NewStringType(uint(len(n.Value))), nil
	case *ast.Paren:
		return e.TypeOf(n.Inner)
	case *ast.Unary:
		return e.typeOfUnary(n)
	case *ast.Binary:
		return e.typeOfBinary(n)
	case *ast.Ternary:
		return e.typeOfTernary(n)
	case *ast.Member:
		return e.typeOfMember(n)
	case *ast.Index:
		return e.typeOfIndex(n)
	case *ast.Call:
		return e.TypeOfCall(n)
	}
	//
	panic("unknown expression")
}

// Literals take the narrowest type that fits, unless explicitly suffixed.
func typeOfIntLiteral(literal *ast.IntLiteral) ast.Type {
	if literal.Suffix != ast.VOID {
		return ast.NewPrimitiveType(literal.Suffix)
	}
	//
	value := literal.Value
	//
	if value.Sign() >= 0 {
		switch {
		case value.BitLen() <= 8:
			return ast.NewPrimitiveType(ast.U8)
		case value.BitLen() <= 16:
			return ast.NewPrimitiveType(ast.U16)
		case value.BitLen() <= 32:
			return ast.NewPrimitiveType(ast.U32)
		default:
			return ast.NewPrimitiveType(ast.U64)
		}
	}
	//
	switch {
	case fitsSigned(value, 8):
		return ast.NewPrimitiveType(ast.I8)
	case fitsSigned(value, 16):
		return ast.NewPrimitiveType(ast.I16)
	case fitsSigned(value, 32):
		return ast.NewPrimitiveType(ast.I32)
	default:
		return ast.NewPrimitiveType(ast.I64)
	}
}

func fitsSigned(value *big.Int, bits uint) bool {
	var (
		upper = new(big.Int).Lsh(big.NewInt(1), bits-1)
		lower = new(big.Int).Neg(upper)
	)
	// Inclusive lower bound, exclusive upper.
	return value.Cmp(lower) >= 0 && value.Cmp(upper) < 0
}

// FitsIn checks whether a constant value is representable in a given integer
// type.
func FitsIn(value *big.Int, t ast.Type) bool {
	if !t.IsInteger() {
		return false
	}
	//
	if t.IsUnsigned() {
		return value.Sign() >= 0 && uint(value.BitLen()) <= t.WidthBits
	}
	//
	return fitsSigned(value, t.WidthBits)
}

func (e *Env) typeOfIdentifier(n *ast.Identifier) (ast.Type, []SyntaxError) {
	if n.IsThis() || n.IsGlobal() {
		return ast.Type{}, e.errorOn(n, source.WrongKind,
			fmt.Sprintf("\"%s\" may only qualify a member access", n.Name))
	}
	// Parameters take precedence, then locals, then the registry.
	if e.Function != nil {
		if param, ok := e.Function.Param(n.Name); ok {
			return param.Type, nil
		}
	}
	//
	if t, ok := e.Locals[n.Name]; ok {
		return t, nil
	}
	//
	if info, ok := e.Registry.Variable("", n.Name); ok {
		return info.Type, nil
	}
	// A bare function name denotes a function pointer, assignable to a
	// compatible callback.
	if _, ok := e.Registry.Function("", n.Name); ok {
		return ast.Type{Base: ast.NAMED, IsCallback: true}, nil
	}
	//
	if e.Registry.TypeName(n.Name) {
		return ast.Type{}, e.errorOn(n, source.WrongKind,
			fmt.Sprintf("\"%s\" is not a value", n.Name))
	}
	//
	return ast.Type{}, e.errorOn(n, source.UnknownSymbol,
		fmt.Sprintf("unknown symbol \"%s\"", n.Name))
}

func (e *Env) typeOfUnary(n *ast.Unary) (ast.Type, []SyntaxError) {
	operand, errs := e.TypeOf(n.Operand)
	if len(errs) > 0 {
		return ast.Type{}, errs
	}
	//
	switch n.Op {
	case ast.NEG:
		if !operand.IsNumeric() {
			return ast.Type{}, e.errorOn(n, source.TypeMismatch, "cannot negate a non-numeric value")
		}
		// Negation flips signedness where needed.
		if operand.IsUnsigned() {
			return signedOfWidth(operand.WidthBits), nil
		}
		//
		return operand, nil
	case ast.LOGNOT:
		if !operand.IsBool() {
			return ast.Type{}, e.errorOn(n, source.TypeMismatch, "logical not requires a boolean operand")
		}
		//
		return operand, nil
	case ast.BITNOT:
		if !operand.IsInteger() && !operand.IsBitmap {
			return ast.Type{}, e.errorOn(n, source.TypeMismatch, "bitwise not requires an integer operand")
		}
		//
		return operand, nil
	}
	//
	panic("unknown unary operator")
}

func (e *Env) typeOfBinary(n *ast.Binary) (ast.Type, []SyntaxError) {
	lhs, errs := e.TypeOf(n.Lhs)
	if len(errs) > 0 {
		return ast.Type{}, errs
	}
	//
	rhs, errs := e.TypeOf(n.Rhs)
	if len(errs) > 0 {
		return ast.Type{}, errs
	}
	//
	switch {
	case n.Op.IsLogical():
		if !lhs.IsBool() || !rhs.IsBool() {
			return ast.Type{}, e.errorOn(n, source.TypeMismatch,
				fmt.Sprintf("\"%s\" requires boolean operands", n.Op.Token()))
		}
		//
		return ast.NewPrimitiveType(ast.BOOL), nil
	case n.Op.IsComparison():
		if _, errs := e.commonType(n, n.Lhs, lhs, n.Rhs, rhs); len(errs) > 0 {
			return ast.Type{}, errs
		}
		//
		return ast.NewPrimitiveType(ast.BOOL), nil
	case n.Op == ast.SHL || n.Op == ast.SHR:
		if !lhs.IsInteger() && !lhs.IsBitmap {
			return ast.Type{}, e.errorOn(n, source.TypeMismatch, "shift requires an integer operand")
		} else if !rhs.IsInteger() {
			return ast.Type{}, e.errorOn(n, source.TypeMismatch, "shift amount must be an integer")
		}
		// Shifts preserve the type being shifted.
		return lhs, nil
	default:
		return e.commonType(n, n.Lhs, lhs, n.Rhs, rhs)
	}
}

// commonType implements the usual arithmetic conversions, restricted: mixed
// signedness is rejected rather than silently converted, with the one
// exception of literals which fit the other operand's type.
func (e *Env) commonType(node ast.Node, lexpr ast.Expr, lhs ast.Type, rexpr ast.Expr,
	rhs ast.Type) (ast.Type, []SyntaxError) {
	// Boolean and enum operands only combine with themselves.
	if lhs.IsBool() || rhs.IsBool() {
		if lhs.IsBool() && rhs.IsBool() {
			return lhs, nil
		}
		//
		return ast.Type{}, e.errorOn(node, source.TypeMismatch, "cannot mix boolean and numeric operands")
	}
	//
	if lhs.IsEnum || rhs.IsEnum {
		if lhs.IsEnum && rhs.IsEnum && lhs.Name == rhs.Name {
			return lhs, nil
		}
		//
		return ast.Type{}, e.errorOn(node, source.TypeMismatch, "enum operands must share their enum type")
	}
	// Floats absorb integer literals, but not integer variables.
	if lhs.IsFloat() || rhs.IsFloat() {
		if lhs.IsFloat() && rhs.IsFloat() {
			return widerOf(lhs, rhs), nil
		} else if lhs.IsFloat() && rexpr.AsConstant() != nil {
			return lhs, nil
		} else if rhs.IsFloat() && lexpr.AsConstant() != nil {
			return rhs, nil
		}
		//
		return ast.Type{}, e.errorOn(node, source.TypeMismatch, "cannot mix float and integer operands")
	}
	//
	if !lhs.IsInteger() || !rhs.IsInteger() {
		return ast.Type{}, e.errorOn(node, source.TypeMismatch, "operands must be numeric")
	}
	// Literals adopt the signedness of the other operand when they fit.
	if lhs.Signed != rhs.Signed {
		if value := lexpr.AsConstant(); value != nil && FitsIn(value, rhs) {
			return rhs, nil
		} else if value := rexpr.AsConstant(); value != nil && FitsIn(value, lhs) {
			return lhs, nil
		}
		//
		return ast.Type{}, e.errorOn(node, source.TypeMismatch, "cannot mix signed and unsigned operands")
	}
	//
	return widerOf(lhs, rhs), nil
}

func widerOf(lhs ast.Type, rhs ast.Type) ast.Type {
	if rhs.WidthBits > lhs.WidthBits {
		return rhs
	}
	//
	return lhs
}

func signedOfWidth(bits uint) ast.Type {
	switch {
	case bits <= 8:
		return ast.NewPrimitiveType(ast.I8)
	case bits <= 16:
		return ast.NewPrimitiveType(ast.I16)
	case bits <= 32:
		return ast.NewPrimitiveType(ast.I32)
	default:
		return ast.NewPrimitiveType(ast.I64)
	}
}

// UnsignedOfWidth returns the narrowest unsigned type covering a given number
// of bits.
func UnsignedOfWidth(bits uint) ast.Type {
	switch {
	case bits <= 8:
		return ast.NewPrimitiveType(ast.U8)
	case bits <= 16:
		return ast.NewPrimitiveType(ast.U16)
	case bits <= 32:
		return ast.NewPrimitiveType(ast.U32)
	default:
		return ast.NewPrimitiveType(ast.U64)
	}
}

func (e *Env) typeOfTernary(n *ast.Ternary) (ast.Type, []SyntaxError) {
	if _, errs := e.TypeOf(n.Cond); len(errs) > 0 {
		return ast.Type{}, errs
	}
	//
	then, errs := e.TypeOf(n.Then)
	if len(errs) > 0 {
		return ast.Type{}, errs
	}
	//
	els, errs := e.TypeOf(n.Else)
	if len(errs) > 0 {
		return ast.Type{}, errs
	}
	// Branches must agree in signedness and width class.
	if !then.SameClass(els) {
		return ast.Type{}, e.errorOn(n, source.TypeMismatch, "ternary branches must have a common type")
	}
	//
	if then.IsInteger() {
		return widerOf(then, els), nil
	}
	//
	return then, nil
}

// ============================================================================
// Member access
// ============================================================================

func (e *Env) typeOfMember(n *ast.Member) (ast.Type, []SyntaxError) {
	// A member access rooted at an identifier may qualify a namespace (this,
	// global, a scope, an enum or a register) rather than project a value.
	if ident, ok := n.Target.(*ast.Identifier); ok {
		if t, errs, handled := e.typeOfQualifiedMember(n, ident); handled {
			return t, errs
		}
	}
	//
	target, errs := e.TypeOf(n.Target)
	if len(errs) > 0 {
		return ast.Type{}, errs
	}
	//
	return e.typeOfProjection(n, target)
}

// typeOfQualifiedMember handles namespace-qualified member accesses.  The
// final result indicates whether the access was handled here; when false, the
// target is an ordinary value and projection rules apply.
func (e *Env) typeOfQualifiedMember(n *ast.Member, ident *ast.Identifier) (ast.Type, []SyntaxError, bool) {
	// A shadowing parameter or local takes precedence over any namespace.
	if e.shadowed(ident.Name) {
		return ast.Type{}, nil, false
	}
	//
	var (
		name       = ident.Name
		resolved   ast.Type
		resolution []string
		errs       []SyntaxError
	)
	//
	if ident.IsThis() {
		return e.typeOfThisMember(n)
	} else if ident.IsGlobal() {
		return e.typeOfGlobalMember(n)
	}
	// A qualified identifier must resolve to exactly one symbol.
	if e.Registry.IsScope(name) {
		resolution = append(resolution, "scope")
		resolved, errs = e.typeOfScopeMember(n, name)
	}
	//
	if e.Registry.IsEnum(name) {
		resolution = append(resolution, "enum")
		resolved, errs = e.typeOfEnumMember(n, name)
	}
	//
	if e.Registry.IsRegister(name) {
		resolution = append(resolution, "register")
		resolved, errs = e.typeOfRegisterMember(n, name)
	}
	//
	if _, ok := e.Registry.Variable("", name); ok {
		resolution = append(resolution, "variable")
	}
	//
	switch len(resolution) {
	case 0:
		return ast.Type{}, nil, false
	case 1:
		if resolution[0] == "variable" {
			// An ordinary value; projection rules apply.
			return ast.Type{}, nil, false
		}
		//
		return resolved, errs, true
	default:
		return ast.Type{}, e.errorOn(n, source.AmbiguousReference,
			fmt.Sprintf("\"%s\" is ambiguous", name)), true
	}
}

func (e *Env) shadowed(name string) bool {
	if e.Function != nil {
		if _, ok := e.Function.Param(name); ok {
			return true
		}
	}
	//
	_, ok := e.Locals[name]
	//
	return ok
}

func (e *Env) typeOfThisMember(n *ast.Member) (ast.Type, []SyntaxError, bool) {
	if e.Scope == "" {
		return ast.Type{}, e.errorOn(n, source.WrongKind, "\"this\" used outside a scope"), true
	}
	//
	if info, ok := e.Registry.Variable(e.Scope, n.Name); ok {
		return info.Type, nil, true
	}
	//
	if _, ok := e.Registry.Function(e.Scope, n.Name); ok {
		return ast.Type{}, nil, true
	}
	//
	return ast.Type{}, e.errorOn(n, source.UnknownSymbol,
		fmt.Sprintf("scope %s has no member \"%s\"", e.Scope, n.Name)), true
}

func (e *Env) typeOfGlobalMember(n *ast.Member) (ast.Type, []SyntaxError, bool) {
	if info, ok := e.Registry.Variable("", n.Name); ok {
		return info.Type, nil, true
	}
	//
	if _, ok := e.Registry.Function("", n.Name); ok {
		return ast.Type{}, nil, true
	}
	//
	return ast.Type{}, e.errorOn(n, source.UnknownSymbol,
		fmt.Sprintf("unknown symbol \"%s\"", n.Name)), true
}

func (e *Env) typeOfScopeMember(n *ast.Member, scope string) (ast.Type, []SyntaxError) {
	if scope == e.Scope {
		return ast.Type{}, e.errorOn(n, source.OwnScopeByName,
			fmt.Sprintf("use \"this.%s\" within scope %s", n.Name, scope))
	}
	//
	info, _ := e.Registry.Scope(scope)
	//
	vis, ok := info.Visibility(n.Name)
	if !ok {
		return ast.Type{}, e.errorOn(n, source.UnknownSymbol,
			fmt.Sprintf("scope %s has no member \"%s\"", scope, n.Name))
	}
	//
	if vis == PRIVATE {
		return ast.Type{}, e.errorOn(n, source.PrivateMember,
			fmt.Sprintf("\"%s\" is private to scope %s", n.Name, scope))
	}
	//
	if variable, ok := e.Registry.Variable(scope, n.Name); ok {
		return variable.Type, nil
	}
	// Must be a function; only meaningful as a call target.
	return ast.Type{}, nil
}

func (e *Env) typeOfEnumMember(n *ast.Member, enum string) (ast.Type, []SyntaxError) {
	info, _ := e.Registry.Enum(enum)
	//
	if _, ok := info.Members[n.Name]; !ok {
		return ast.Type{}, e.errorOn(n, source.UnknownSymbol,
			fmt.Sprintf("enum %s has no member \"%s\"", enum, n.Name))
	}
	//
	t, _ := e.Registry.ResolveType(ast.NewNamedType(enum))
	//
	return t, nil
}

func (e *Env) typeOfRegisterMember(n *ast.Member, register string) (ast.Type, []SyntaxError) {
	info, _ := e.Registry.Register(register)
	//
	member, ok := info.Members[n.Name]
	if !ok {
		return ast.Type{}, e.errorOn(n, source.UnknownSymbol,
			fmt.Sprintf("register %s has no member \"%s\"", register, n.Name))
	}
	//
	return member.Type, nil
}

// typeOfProjection handles member access on an ordinary value: struct fields,
// bitmap fields, and the semantic properties length / capacity / size.
func (e *Env) typeOfProjection(n *ast.Member, target ast.Type) (ast.Type, []SyntaxError) {
	switch n.Name {
	case "length":
		if target.IsString || target.IsArray || target.IsInteger() || target.IsBitmap {
			return ast.NewPrimitiveType(ast.U32), nil
		}
		//
		return ast.Type{}, e.errorOn(n, source.WrongKind, "\"length\" requires a string, array or integer")
	case "capacity", "size":
		if target.IsString {
			return ast.NewPrimitiveType(ast.U32), nil
		}
		//
		return ast.Type{}, e.errorOn(n, source.WrongKind,
			fmt.Sprintf("\"%s\" requires a string", n.Name))
	}
	//
	if target.IsStruct {
		info, _ := e.Registry.Struct(target.Name)
		//
		field, ok := info.Field(n.Name)
		if !ok {
			return ast.Type{}, e.errorOn(n, source.UnknownSymbol,
				fmt.Sprintf("struct %s has no field \"%s\"", target.Name, n.Name))
		}
		//
		return field.Type, nil
	}
	//
	if target.IsBitmap {
		info, _ := e.Registry.Bitmap(target.Name)
		//
		field, ok := info.Fields[n.Name]
		if !ok {
			return ast.Type{}, e.errorOn(n, source.UnknownBitmapField,
				fmt.Sprintf("bitmap %s has no field \"%s\"", target.Name, n.Name))
		}
		//
		if field.Width == 1 {
			return ast.NewPrimitiveType(ast.BOOL), nil
		}
		//
		return UnsignedOfWidth(field.Width), nil
	}
	//
	return ast.Type{}, e.errorOn(n, source.WrongKind,
		fmt.Sprintf("type %s has no member \"%s\"", target.String(), n.Name))
}

// ============================================================================
// Subscripts
// ============================================================================

func (e *Env) typeOfIndex(n *ast.Index) (ast.Type, []SyntaxError) {
	target, errs := e.TypeOf(n.Target)
	if len(errs) > 0 {
		return ast.Type{}, errs
	}
	//
	for _, arg := range n.Args {
		argType, errs := e.TypeOf(arg)
		if len(errs) > 0 {
			return ast.Type{}, errs
		}
		//
		if !argType.IsInteger() {
			return ast.Type{}, e.errorOn(n, source.TypeMismatch, "subscript must be an integer")
		}
	}
	//
	switch {
	case target.IsArray:
		if n.IsBitRange() {
			return ast.Type{}, e.errorOn(n, source.TypeMismatch, "bit ranges do not apply to arrays")
		}
		// Subscripting strips one dimension.
		return target.ElementType(), nil
	case target.IsString:
		if n.IsBitRange() {
			return ast.Type{}, e.errorOn(n, source.TypeMismatch, "bit ranges do not apply to strings")
		}
		//
		return ast.NewPrimitiveType(ast.U8), nil
	case target.IsBitmap:
		return ast.Type{}, e.errorOn(n, source.TypeMismatch,
			"bitmaps are indexed by field name, not position")
	case target.IsFloat():
		// Floats expose their bit pattern through ranges only.
		if !n.IsBitRange() {
			return ast.Type{}, e.errorOn(n, source.TypeMismatch, "float bit access requires a [lo, hi] range")
		}
		//
		return e.typeOfBitRange(n, target)
	case target.IsInteger():
		if n.IsBitRange() {
			return e.typeOfBitRange(n, target)
		}
		// A single-bit read.
		return ast.NewPrimitiveType(ast.BOOL), nil
	}
	//
	return ast.Type{}, e.errorOn(n, source.TypeMismatch,
		fmt.Sprintf("type %s cannot be subscripted", target.String()))
}

func (e *Env) typeOfBitRange(n *ast.Index, target ast.Type) (ast.Type, []SyntaxError) {
	var (
		lo = FoldConstant(e.Registry, e.Scope, n.Args[0])
		hi = FoldConstant(e.Registry, e.Scope, n.Args[1])
	)
	//
	if lo != nil && hi != nil && lo.IsUint64() && hi.IsUint64() && hi.Cmp(lo) >= 0 {
		width := uint(hi.Uint64()-lo.Uint64()) + 1
		return UnsignedOfWidth(width), nil
	}
	// Runtime bounds: the result spans the whole backing type.
	return UnsignedOfWidth(target.WidthBits), nil
}

// ============================================================================
// Calls
// ============================================================================

// TypeOfCall infers the result type of a call, resolving the callee through
// the registry.  Calls to names not known to the registry are assumed to be
// external C functions and are not signature checked.
func (e *Env) TypeOfCall(n *ast.Call) (ast.Type, []SyntaxError) {
	// Check argument expressions are themselves well typed.
	for _, arg := range n.Args {
		if _, errs := e.TypeOf(arg); len(errs) > 0 {
			return ast.Type{}, errs
		}
	}
	//
	callee, errs := e.ResolveCallee(n)
	if len(errs) > 0 {
		return ast.Type{}, errs
	}
	// Intrinsics, callbacks and externals.
	if callee == nil {
		if name, ok := intrinsicName(n); ok {
			return e.typeOfIntrinsic(n, name)
		}
		// A callback-typed value is invoked indirectly.
		if targetType, errs := e.TypeOf(n.Target); len(errs) == 0 && targetType.IsCallback {
			if info, ok := e.Registry.Callback(targetType.Name); ok {
				return info.Return, nil
			}
		}
		// External C function: assumed well formed.
		return ast.NewPrimitiveType(ast.I32), nil
	}
	//
	if len(n.Args) != len(callee.Params) {
		return ast.Type{}, e.errorOn(n, source.TypeMismatch,
			fmt.Sprintf("%s expects %d arguments", callee.Name, len(callee.Params)))
	}
	//
	for i, arg := range n.Args {
		argType, _ := e.TypeOf(arg)
		//
		if errs := e.checkAssignable(n, arg, argType, callee.Params[i].Type); len(errs) > 0 {
			return ast.Type{}, errs
		}
	}
	//
	return callee.Return, nil
}

// ResolveCallee maps a call target to its function, enforcing existence and
// visibility.  A nil result (with no errors) denotes an intrinsic or an
// external C function.
func (e *Env) ResolveCallee(n *ast.Call) (*FunctionInfo, []SyntaxError) {
	switch target := n.Target.(type) {
	case *ast.Identifier:
		if info, ok := e.Registry.Function("", target.Name); ok {
			return info, nil
		}
		// Intrinsic or external.
		return nil, nil
	case *ast.Member:
		base, ok := target.Target.(*ast.Identifier)
		if !ok {
			return nil, e.errorOn(n, source.WrongKind, "call target is not a function")
		}
		//
		switch {
		case base.IsThis():
			if e.Scope == "" {
				return nil, e.errorOn(n, source.WrongKind, "\"this\" used outside a scope")
			}
			//
			if info, ok := e.Registry.Function(e.Scope, target.Name); ok {
				return info, nil
			}
			//
			return nil, e.errorOn(n, source.UnknownSymbol,
				fmt.Sprintf("scope %s has no member \"%s\"", e.Scope, target.Name))
		case base.IsGlobal():
			if info, ok := e.Registry.Function("", target.Name); ok {
				return info, nil
			}
			//
			return nil, e.errorOn(n, source.UnknownSymbol,
				fmt.Sprintf("unknown function \"%s\"", target.Name))
		case e.Registry.IsScope(base.Name):
			if base.Name == e.Scope {
				return nil, e.errorOn(n, source.OwnScopeByName,
					fmt.Sprintf("use \"this.%s\" within scope %s", target.Name, base.Name))
			}
			//
			info, ok := e.Registry.Function(base.Name, target.Name)
			if !ok {
				return nil, e.errorOn(n, source.UnknownSymbol,
					fmt.Sprintf("scope %s has no member \"%s\"", base.Name, target.Name))
			}
			//
			if info.Visibility == PRIVATE {
				return nil, e.errorOn(n, source.PrivateMember,
					fmt.Sprintf("\"%s\" is private to scope %s", target.Name, base.Name))
			}
			//
			return info, nil
		}
		//
		return nil, e.errorOn(n, source.WrongKind, "call target is not a function")
	case *ast.Paren:
		inner := &ast.Call{Target: target.Inner, Args: n.Args}
		return e.ResolveCallee(inner)
	}
	//
	return nil, e.errorOn(n, source.WrongKind, "call target is not a function")
}

func intrinsicName(n *ast.Call) (string, bool) {
	if ident, ok := n.Target.(*ast.Identifier); ok {
		if ident.Name == SafeDiv || ident.Name == SafeMod {
			return ident.Name, true
		}
	}
	//
	return "", false
}

// IsIntrinsicCall checks whether a call invokes one of the checked-division
// intrinsics, safe_div or safe_mod.
func (e *Env) IsIntrinsicCall(n *ast.Call) bool {
	name, ok := intrinsicName(n)
	//
	if !ok {
		return false
	}
	// A user function of the same name takes precedence.
	if _, exists := e.Registry.Function("", name); exists {
		return false
	}
	//
	return ok
}

func (e *Env) typeOfIntrinsic(n *ast.Call, name string) (ast.Type, []SyntaxError) {
	if len(n.Args) != 4 {
		return ast.Type{}, e.errorOn(n, source.TypeMismatch,
			fmt.Sprintf("%s expects (out, a, b, default)", name))
	}
	//
	for _, arg := range n.Args {
		argType, _ := e.TypeOf(arg)
		//
		if !argType.IsInteger() {
			return ast.Type{}, e.errorOn(n, source.TypeMismatch,
				fmt.Sprintf("%s requires integer operands", name))
		}
	}
	//
	return ast.Type{Base: ast.VOID}, nil
}

// ============================================================================
// Assignability
// ============================================================================

func (e *Env) checkAssignable(node ast.Node, expr ast.Expr, from ast.Type, to ast.Type) []SyntaxError {
	if AssignableTo(expr, from, to) {
		return nil
	}
	//
	return e.errorOn(node, source.TypeMismatch,
		fmt.Sprintf("cannot assign %s to %s", from.String(), to.String()))
}

// AssignableTo determines whether a value of one type may flow into a
// location of another.  Integer literals are assignable wherever their value
// fits; otherwise narrowing and signedness changes are rejected.
func AssignableTo(expr ast.Expr, from ast.Type, to ast.Type) bool {
	// Constant values flow anywhere they fit.
	if expr != nil && to.IsInteger() {
		if value := expr.AsConstant(); value != nil {
			return FitsIn(value, to)
		}
	}
	//
	switch {
	case to.IsString:
		return from.IsString && from.StringCapacity <= to.StringCapacity
	case to.IsCallback:
		// A named callback accepts its own type, or a bare function.
		return from.IsCallback && (from.Name == to.Name || from.Name == "")
	case to.IsStruct, to.IsEnum:
		return from.Base == ast.NAMED && from.Name == to.Name
	case to.IsBitmap:
		// A bitmap accepts its own type, or its backing integer.
		return (from.Base == ast.NAMED && from.Name == to.Name) ||
			(from.IsUnsigned() && from.WidthBits <= to.WidthBits)
	case to.IsBool():
		return from.IsBool()
	case to.IsFloat():
		return from.IsFloat() && from.WidthBits <= to.WidthBits
	case to.IsInteger():
		// A single-bit read (bool) widens into any unsigned integer.
		if from.IsBool() {
			return to.IsUnsigned()
		}
		// Enum values flow into integers (with a static cast in C++ mode).
		if from.IsEnum {
			return true
		}
		// A bitmap narrows back to its backing integer.
		if from.IsBitmap {
			return to.IsUnsigned() && from.WidthBits <= to.WidthBits
		}
		//
		return from.IsInteger() && from.Signed == to.Signed && from.WidthBits <= to.WidthBits
	case to.IsArray:
		return from.IsArray && from.Base == to.Base && len(from.Dims) == len(to.Dims)
	}
	//
	return false
}
