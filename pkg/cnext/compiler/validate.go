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

	"github.com/jlaustill/go-cnext/pkg/cnext/ast"
	"github.com/jlaustill/go-cnext/pkg/util/source"
)

// The validators below are pure predicates over nodes (and the registry),
// invoked by the generators at exactly the point where generation would
// otherwise succeed.  Each violation surfaces a distinct error kind.

// ValidateTernary enforces the restricted ternary shape: the condition must
// be a comparison free of function calls, and neither branch may contain
// another ternary.
func (e *Env) ValidateTernary(n *ast.Ternary) []SyntaxError {
	cond := stripParens(n.Cond)
	//
	if binary, ok := cond.(*ast.Binary); !ok || !binary.Op.IsComparison() {
		return e.errorOn(n, source.TernaryConditionNotComparison,
			"ternary condition must be a comparison")
	}
	//
	if containsCall(n.Cond) {
		return e.errorOn(n, source.TernaryConditionHasCall,
			"ternary condition must not call a function")
	}
	//
	if containsTernary(n.Then) || containsTernary(n.Else) {
		return e.errorOn(n, source.NestedTernary, "ternary expressions cannot be nested")
	}
	//
	return nil
}

func stripParens(expr ast.Expr) ast.Expr {
	for {
		paren, ok := expr.(*ast.Paren)
		if !ok {
			return expr
		}
		//
		expr = paren.Inner
	}
}

func containsCall(expr ast.Expr) bool {
	found := false
	//
	WalkExpr(expr, func(e ast.Expr) {
		if _, ok := e.(*ast.Call); ok {
			found = true
		}
	})
	//
	return found
}

func containsTernary(expr ast.Expr) bool {
	found := false
	//
	WalkExpr(expr, func(e ast.Expr) {
		if _, ok := e.(*ast.Ternary); ok {
			found = true
		}
	})
	//
	return found
}

// ValidateShift enforces that a shift amount is an integer constant strictly
// below the width of the shifted type.
func (e *Env) ValidateShift(n *ast.Binary, shifted ast.Type) []SyntaxError {
	amount := FoldConstant(e.Registry, e.Scope, n.Rhs)
	//
	if amount == nil {
		return e.errorOn(n, source.ShiftBeyondWidth, "shift amount must be a constant")
	}
	//
	if amount.Sign() < 0 || !amount.IsUint64() || uint(amount.Uint64()) >= shifted.WidthBits {
		return e.errorOn(n, source.ShiftBeyondWidth,
			fmt.Sprintf("shift amount must be below %d", shifted.WidthBits))
	}
	//
	return nil
}

// ValidateCondition enforces that a loop or branch condition has boolean
// type; integers as truth values are rejected.
func (e *Env) ValidateCondition(expr ast.Expr) []SyntaxError {
	t, errs := e.TypeOf(expr)
	if len(errs) > 0 {
		return errs
	}
	//
	if !t.IsBool() {
		return e.errorOn(expr, source.NonBooleanCondition, "condition must be boolean")
	}
	//
	return nil
}

// ValidateArrayIndex bounds-checks a constant subscript against a statically
// known array extent.
func (e *Env) ValidateArrayIndex(n *ast.Index, array ast.Type, index ast.Expr) []SyntaxError {
	size := uint64(0)
	//
	if len(array.Dims) > 0 {
		size = uint64(array.Dims[0])
	}
	// Unsized dimensions cannot be checked.
	if size == 0 {
		return nil
	}
	//
	value := FoldConstant(e.Registry, e.Scope, index)
	if value == nil {
		return nil
	}
	//
	if value.Sign() < 0 || !value.IsUint64() || value.Uint64() >= size {
		return e.errorOn(n, source.ArrayIndexOutOfBounds,
			fmt.Sprintf("index %s outside array of %d elements", value.String(), size))
	}
	//
	return nil
}

// ValidateBitIndex bounds-checks a constant bit position against the width of
// the value being indexed.
func (e *Env) ValidateBitIndex(n ast.Node, width uint, index ast.Expr) []SyntaxError {
	value := FoldConstant(e.Registry, e.Scope, index)
	if value == nil {
		return nil
	}
	//
	if value.Sign() < 0 || !value.IsUint64() || uint(value.Uint64()) >= width {
		return e.errorOn(n, source.BitIndexOutOfBounds,
			fmt.Sprintf("bit %s outside a %d bit value", value.String(), width))
	}
	//
	return nil
}

// ValidateRegisterRead rejects reads of write-only register members (wo, w1c
// and w1s).
func (e *Env) ValidateRegisterRead(n ast.Node, register string, member *RegisterMemberInfo) []SyntaxError {
	if !member.Mode.Readable() {
		return e.errorOn(n, source.WriteOnlyRead,
			fmt.Sprintf("%s.%s is %s and cannot be read", register, member.Name, member.Mode))
	}
	//
	return nil
}

// ValidateRegisterWrite rejects writes to read-only register members.
func (e *Env) ValidateRegisterWrite(n ast.Node, register string, member *RegisterMemberInfo) []SyntaxError {
	if !member.Mode.Writable() {
		return e.errorOn(n, source.ReadOnlyWrite,
			fmt.Sprintf("%s.%s is %s and cannot be written", register, member.Name, member.Mode))
	}
	//
	return nil
}

// ValidateDivision rejects division (or modulo) by a literal zero.
func (e *Env) ValidateDivision(n ast.Node, divisor ast.Expr) []SyntaxError {
	value := FoldConstant(e.Registry, e.Scope, divisor)
	//
	if value != nil && value.Sign() == 0 {
		return e.errorOn(n, source.DivisionByZero, "division by zero")
	}
	//
	return nil
}

// ValidateAssignTarget rejects assignments whose target is a constant.  Both
// bare locals and qualified scope members are covered.
func (e *Env) ValidateAssignTarget(n ast.Node, target ast.Expr) []SyntaxError {
	var targetType *ast.Type
	//
	switch t := stripParens(target).(type) {
	case *ast.Member:
		if base, ok := t.Target.(*ast.Identifier); ok && !e.shadowed(base.Name) {
			switch {
			case base.IsThis():
				if info, ok := e.Registry.Variable(e.Scope, t.Name); ok {
					targetType = &info.Type
				}
			case base.IsGlobal():
				if info, ok := e.Registry.Variable("", t.Name); ok {
					targetType = &info.Type
				}
			case e.Registry.IsScope(base.Name):
				if info, ok := e.Registry.Variable(base.Name, t.Name); ok {
					targetType = &info.Type
				}
			}
		}
	default:
		if root := RootIdentifier(target); root != nil {
			targetType = e.lvalueType(root)
		}
	}
	//
	if targetType != nil && targetType.IsConst {
		return e.errorOn(n, source.ConstAssigned, "target is constant and cannot be assigned")
	}
	//
	return nil
}

func (e *Env) lvalueType(ident *ast.Identifier) *ast.Type {
	if e.Function != nil {
		if param, ok := e.Function.Param(ident.Name); ok {
			return &param.Type
		}
	}
	//
	if t, ok := e.Locals[ident.Name]; ok {
		return &t
	}
	//
	if info, ok := e.Registry.Variable("", ident.Name); ok {
		return &info.Type
	}
	//
	return nil
}

// ValidateConstArgs rejects constant values passed to non-constant pointer
// parameters, through which the callee could mutate them.
func (e *Env) ValidateConstArgs(n *ast.Call, callee *FunctionInfo) []SyntaxError {
	var errors []SyntaxError
	//
	for i, arg := range n.Args {
		if i >= len(callee.Params) {
			break
		}
		//
		param := callee.Params[i]
		if param.Const || !param.ForcePointer {
			continue
		}
		//
		argType, errs := e.TypeOf(arg)
		if len(errs) > 0 {
			continue
		}
		//
		if argType.IsConst {
			errors = append(errors, *e.Srcmap.SyntaxError(n, source.ConstToNonConst,
				fmt.Sprintf("constant argument %d passed to non-const parameter \"%s\"",
					i+1, param.Name)))
		}
	}
	//
	return errors
}

// ValidateSwitch enforces the strict reading of default(N): the declared
// count must equal the number of cases.
func (e *Env) ValidateSwitch(n *ast.Switch) []SyntaxError {
	if n.DefaultCount != uint(len(n.Cases)) {
		return e.errorOn(n, source.DefaultCountMismatch,
			fmt.Sprintf("default(%d) does not match %d cases", n.DefaultCount, len(n.Cases)))
	}
	//
	return nil
}
