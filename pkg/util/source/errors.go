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
package source

// ErrorKind identifies the general category of a syntax error.  Every
// compile-time failure reported by the transpiler carries exactly one kind,
// which allows tooling (and tests) to distinguish failures without parsing
// error messages.
type ErrorKind uint

const (
	// UnexpectedToken indicates the parser encountered a token which cannot
	// begin (or continue) the construct being parsed.
	UnexpectedToken ErrorKind = iota
	// UnterminatedBlock indicates a block (or other bracketed construct) was
	// opened but never closed.
	UnterminatedBlock
	// UnknownSymbol indicates an identifier which does not resolve to any
	// known declaration.
	UnknownSymbol
	// PrivateMember indicates an attempt to access a private scope member
	// from outside its declaring scope.
	PrivateMember
	// OwnScopeByName indicates a scope member was accessed via the name of
	// the enclosing scope, rather than via "this".
	OwnScopeByName
	// AmbiguousReference indicates a qualified identifier which resolves to
	// more than one symbol.
	AmbiguousReference
	// WrongKind indicates a symbol was used in a context requiring a
	// different kind of symbol (e.g. a struct used as a function).
	WrongKind
	// TypeMismatch indicates an expression whose type is incompatible with
	// its context.
	TypeMismatch
	// NonBooleanCondition indicates a loop or branch condition which is not
	// of boolean type.
	NonBooleanCondition
	// NestedTernary indicates a ternary expression nested within another.
	NestedTernary
	// TernaryConditionNotComparison indicates a ternary condition which is
	// not a comparison expression.
	TernaryConditionNotComparison
	// TernaryConditionHasCall indicates a ternary condition containing a
	// function call.
	TernaryConditionHasCall
	// ShiftBeyondWidth indicates a shift amount at (or beyond) the bit width
	// of the value being shifted.
	ShiftBeyondWidth
	// BitIndexOutOfBounds indicates a constant bit index outside the width of
	// the value being indexed.
	BitIndexOutOfBounds
	// ArrayIndexOutOfBounds indicates a constant array index outside the
	// statically known bounds of the array.
	ArrayIndexOutOfBounds
	// DivisionByZero indicates a division (or modulo) by a literal zero.
	DivisionByZero
	// ConstAssigned indicates an assignment whose target is a constant.
	ConstAssigned
	// ConstToNonConst indicates a constant value passed to a non-constant
	// parameter.
	ConstToNonConst
	// UninitializedUse indicates a variable used on some path along which it
	// has not been assigned.
	UninitializedUse
	// UnknownBitmapField indicates an access to a bitmap field which was
	// never declared.
	UnknownBitmapField
	// WriteOnlyRead indicates a read of a write-only register member.
	WriteOnlyRead
	// ReadOnlyWrite indicates a write to a read-only register member.
	ReadOnlyWrite
	// BitmapOverlap indicates two bitmap fields with overlapping bit ranges.
	BitmapOverlap
	// BitmapOverflow indicates bitmap fields whose combined width exceeds the
	// backing integer.
	BitmapOverflow
	// DuplicateMember indicates a member declared twice within the same
	// enclosing declaration.
	DuplicateMember
	// UnsupportedFloatBitOp indicates float bit indexing at global scope,
	// where the required alias variable cannot be declared.
	UnsupportedFloatBitOp
	// DefaultCountMismatch indicates a switch whose default(N) count does not
	// match the number of cases.
	DefaultCountMismatch
	// SwitchFallThrough indicates a switch case which falls through into the
	// next case.
	SwitchFallThrough
)

// String returns the canonical name of this error kind, as used in error
// listings and test expectations.
func (k ErrorKind) String() string {
	switch k {
	case UnexpectedToken:
		return "UnexpectedToken"
	case UnterminatedBlock:
		return "UnterminatedBlock"
	case UnknownSymbol:
		return "UnknownSymbol"
	case PrivateMember:
		return "PrivateMember"
	case OwnScopeByName:
		return "OwnScopeByName"
	case AmbiguousReference:
		return "AmbiguousReference"
	case WrongKind:
		return "WrongKind"
	case TypeMismatch:
		return "TypeMismatch"
	case NonBooleanCondition:
		return "NonBooleanCondition"
	case NestedTernary:
		return "NestedTernary"
	case TernaryConditionNotComparison:
		return "TernaryConditionNotComparison"
	case TernaryConditionHasCall:
		return "TernaryConditionHasCall"
	case ShiftBeyondWidth:
		return "ShiftBeyondWidth"
	case BitIndexOutOfBounds:
		return "BitIndexOutOfBounds"
	case ArrayIndexOutOfBounds:
		return "ArrayIndexOutOfBounds"
	case DivisionByZero:
		return "DivisionByZero"
	case ConstAssigned:
		return "ConstAssigned"
	case ConstToNonConst:
		return "ConstToNonConst"
	case UninitializedUse:
		return "UninitializedUse"
	case UnknownBitmapField:
		return "UnknownBitmapField"
	case WriteOnlyRead:
		return "WriteOnlyRead"
	case ReadOnlyWrite:
		return "ReadOnlyWrite"
	case BitmapOverlap:
		return "BitmapOverlap"
	case BitmapOverflow:
		return "BitmapOverflow"
	case DuplicateMember:
		return "DuplicateMember"
	case UnsupportedFloatBitOp:
		return "UnsupportedFloatBitOp"
	case DefaultCountMismatch:
		return "DefaultCountMismatch"
	case SwitchFallThrough:
		return "SwitchFallThrough"
	}
	//
	return "UnknownError"
}
