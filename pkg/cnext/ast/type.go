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
package ast

import (
	"fmt"
	"strings"
)

// Base identifies the closed set of primitive type tags, plus a tag for types
// which refer (by name) to a struct, enum, bitmap or callback declared
// elsewhere.
type Base uint

const (
	// VOID is the type of functions which return nothing.
	VOID Base = iota
	// U8 is an unsigned 8bit integer.
	U8
	// U16 is an unsigned 16bit integer.
	U16
	// U32 is an unsigned 32bit integer.
	U32
	// U64 is an unsigned 64bit integer.
	U64
	// I8 is a signed 8bit integer.
	I8
	// I16 is a signed 16bit integer.
	I16
	// I32 is a signed 32bit integer.
	I32
	// I64 is a signed 64bit integer.
	I64
	// F32 is a 32bit floating point number.
	F32
	// F64 is a 64bit floating point number.
	F64
	// BOOL is the type of logical conditions.
	BOOL
	// STRING is a fixed-capacity character string.
	STRING
	// NAMED refers to a struct, enum, bitmap or callback declared elsewhere.
	NAMED
)

// baseInfo captures everything the code generator needs to know about a
// primitive type tag.
type baseInfo struct {
	// Name of this type in C-Next source.
	name string
	// Canonical name of this type in emitted C.
	cName string
	// Bit width of this type.
	width uint
	// Signedness (integers only).
	signed bool
	// Float determines whether this is a floating point type.
	float bool
	// Wider type used as the intermediate for narrow arithmetic.
	wider Base
	// MAX literal in C syntax.
	maxLit string
	// MIN literal in C syntax.
	minLit string
}

var baseInfos = map[Base]baseInfo{
	U8:   {"u8", "uint8_t", 8, false, false, U32, "UINT8_MAX", "0"},
	U16:  {"u16", "uint16_t", 16, false, false, U32, "UINT16_MAX", "0"},
	U32:  {"u32", "uint32_t", 32, false, false, U64, "UINT32_MAX", "0"},
	U64:  {"u64", "uint64_t", 64, false, false, U64, "UINT64_MAX", "0"},
	I8:   {"i8", "int8_t", 8, true, false, I32, "INT8_MAX", "INT8_MIN"},
	I16:  {"i16", "int16_t", 16, true, false, I32, "INT16_MAX", "INT16_MIN"},
	I32:  {"i32", "int32_t", 32, true, false, I64, "INT32_MAX", "INT32_MIN"},
	I64:  {"i64", "int64_t", 64, true, false, I64, "INT64_MAX", "INT64_MIN"},
	F32:  {"f32", "float", 32, true, true, F64, "FLT_MAX", "-FLT_MAX"},
	F64:  {"f64", "double", 64, true, true, F64, "DBL_MAX", "-DBL_MAX"},
	BOOL: {"bool", "bool", 1, false, false, BOOL, "true", "false"},
}

// LookupBase maps a type name (as written in C-Next source) to its primitive
// tag.  Returns false for names which do not denote a primitive.
func LookupBase(name string) (Base, bool) {
	for base, info := range baseInfos {
		if info.name == name {
			return base, true
		}
	}
	//
	return VOID, false
}

// Type is the semantic descriptor given to every expression and declaration.
// Width and signedness are always derivable for primitives; for NAMED types,
// the struct/enum/bitmap/callback flags record what the name was found to
// refer to once the symbol registry has been consulted.
type Type struct {
	// Primitive tag, or NAMED for a reference by name.
	Base Base
	// Name of the referenced struct/enum/bitmap/callback (NAMED only).
	Name string
	// Bit width (primitives and bitmaps).
	WidthBits uint
	// Signedness (integers only).
	Signed bool
	// IsArray indicates an array type, whose dimensions follow.
	IsArray bool
	// Ordered dimension list.  Multidimensional arrays are not flattened.
	Dims []uint
	// IsString indicates a fixed-capacity string.
	IsString bool
	// Capacity of this string, excluding the NUL terminator.
	StringCapacity uint
	// IsEnum indicates the name refers to an enum.
	IsEnum bool
	// IsBitmap indicates the name refers to a bitmap.
	IsBitmap bool
	// IsStruct indicates the name refers to a struct.
	IsStruct bool
	// IsCallback indicates the name refers to a callback type.
	IsCallback bool
	// IsConst indicates a constant declaration.
	IsConst bool
}

// NewPrimitiveType constructs the type descriptor for a given primitive tag.
func NewPrimitiveType(base Base) Type {
	info, ok := baseInfos[base]
	//
	if !ok {
		return Type{Base: base}
	}
	//
	return Type{
		Base:      base,
		WidthBits: info.width,
		Signed:    info.signed && !info.float,
	}
}

// NewNamedType constructs a type referring (by name) to a declaration made
// elsewhere.  The kind flags are filled in during registry construction.
func NewNamedType(name string) Type {
	return Type{Base: NAMED, Name: name}
}

// NewStringType constructs a string type of a given capacity.
func NewStringType(capacity uint) Type {
	return Type{Base: STRING, IsString: true, StringCapacity: capacity}
}

// WithArray returns a copy of this type carrying the given array dimensions.
func (t Type) WithArray(dims []uint) Type {
	t.IsArray = len(dims) > 0
	t.Dims = dims
	//
	return t
}

// WithConst returns a copy of this type marked as constant.
func (t Type) WithConst() Type {
	t.IsConst = true
	return t
}

// ElementType strips one array dimension from this type, as happens when
// subscripting.  Stripping the final dimension yields the scalar type.
func (t Type) ElementType() Type {
	if len(t.Dims) <= 1 {
		t.IsArray = false
		t.Dims = nil
	} else {
		t.Dims = t.Dims[1:]
	}
	//
	return t
}

// IsVoid determines whether this is the void type.
func (t Type) IsVoid() bool {
	return t.Base == VOID
}

// IsInteger determines whether this is an integer type.
func (t Type) IsInteger() bool {
	switch t.Base {
	case U8, U16, U32, U64, I8, I16, I32, I64:
		return !t.IsArray
	}
	//
	return false
}

// IsUnsigned determines whether this is an unsigned integer type.
func (t Type) IsUnsigned() bool {
	switch t.Base {
	case U8, U16, U32, U64:
		return !t.IsArray
	}
	//
	return false
}

// IsFloat determines whether this is a floating point type.
func (t Type) IsFloat() bool {
	return (t.Base == F32 || t.Base == F64) && !t.IsArray
}

// IsNumeric determines whether this is an integer or floating point type.
func (t Type) IsNumeric() bool {
	return t.IsInteger() || t.IsFloat()
}

// IsBool determines whether this is the boolean type.
func (t Type) IsBool() bool {
	return t.Base == BOOL && !t.IsArray
}

// BitWidth returns the bit width of this type.  For bitmaps this is the
// backing width; for other named types it is zero.
func (t Type) BitWidth() uint {
	return t.WidthBits
}

// WiderType returns the type used as the intermediate for arithmetic on
// narrow operands, avoiding undefined behaviour from C's implicit promotions.
func (t Type) WiderType() Type {
	if info, ok := baseInfos[t.Base]; ok {
		return NewPrimitiveType(info.wider)
	}
	//
	return t
}

// CName returns the canonical C type name used when emitting this type.
func (t Type) CName() string {
	if info, ok := baseInfos[t.Base]; ok {
		return info.cName
	} else if t.Base == NAMED {
		return t.Name
	} else if t.Base == STRING {
		return "char"
	}
	//
	return "void"
}

// MaxLiteral returns the MAX bound of this type as a C literal, for use in
// clamp and panic helpers.
func (t Type) MaxLiteral() string {
	if info, ok := baseInfos[t.Base]; ok {
		return info.maxLit
	}
	//
	panic(fmt.Sprintf("type %s has no MAX literal", t.String()))
}

// MinLiteral returns the MIN bound of this type as a C literal, for use in
// clamp and panic helpers.
func (t Type) MinLiteral() string {
	if info, ok := baseInfos[t.Base]; ok {
		return info.minLit
	}
	//
	panic(fmt.Sprintf("type %s has no MIN literal", t.String()))
}

// SameClass determines whether two types agree in signedness and width class,
// as required (for example) of the two branches of a ternary.
func (t Type) SameClass(other Type) bool {
	if t.Base == NAMED || other.Base == NAMED {
		return t.Base == other.Base && t.Name == other.Name
	}
	//
	return t.IsInteger() == other.IsInteger() &&
		t.IsFloat() == other.IsFloat() &&
		t.Signed == other.Signed
}

func (t Type) String() string {
	var builder strings.Builder
	//
	if t.IsConst {
		builder.WriteString("const ")
	}
	//
	switch {
	case t.Base == NAMED:
		builder.WriteString(t.Name)
	case t.IsString:
		builder.WriteString(fmt.Sprintf("string(%d)", t.StringCapacity))
	default:
		if info, ok := baseInfos[t.Base]; ok {
			builder.WriteString(info.name)
		} else {
			builder.WriteString("void")
		}
	}
	//
	for _, dim := range t.Dims {
		builder.WriteString(fmt.Sprintf("[%d]", dim))
	}
	//
	return builder.String()
}
