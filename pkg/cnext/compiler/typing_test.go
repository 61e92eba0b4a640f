package compiler

import (
	"testing"

	"github.com/jlaustill/go-cnext/pkg/cnext/ast"
	"github.com/jlaustill/go-cnext/pkg/util/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Typing_LiteralNarrowest(t *testing.T) {
	tests := []struct {
		input string
		base  ast.Base
	}{
		{"200", ast.U8},
		{"300", ast.U16},
		{"70000", ast.U32},
		{"5000000000", ast.U64},
		{"100u64", ast.U64},
	}
	//
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			typ := check_TypeOfExpr(t, "u64 x <- "+tt.input+";")
			assert.Equal(t, tt.base, typ.Base)
		})
	}
}

func Test_Typing_BinaryWidening(t *testing.T) {
	// u8 + u32 takes the wider type.
	typ := check_TypeOfBody(t, "void f(u8 a, u32 b) { u32 x <- a + b; }")
	assert.Equal(t, ast.U32, typ.Base)
}

func Test_Typing_MixedSignedness(t *testing.T) {
	check_CheckError(t, "void f(u8 a, i8 b) { u8 x <- a + b; }", source.TypeMismatch)
}

func Test_Typing_LiteralAdoptsSignedness(t *testing.T) {
	// A literal fitting the other operand adopts its type.
	typ := check_TypeOfBody(t, "void f(i8 a) { i8 x <- a + 5; }")
	assert.Equal(t, ast.I8, typ.Base)
}

func Test_Typing_ComparisonIsBool(t *testing.T) {
	typ := check_TypeOfBody(t, "void f(u8 a) { bool x <- a > 1; }")
	assert.Equal(t, ast.BOOL, typ.Base)
}

func Test_Typing_BitReadIsBool(t *testing.T) {
	typ := check_TypeOfBody(t, "void f(u8 a) { bool x <- a[3]; }")
	assert.Equal(t, ast.BOOL, typ.Base)
}

func Test_Typing_BitRangeWidth(t *testing.T) {
	// A [0, 11] range needs twelve bits, hence u16.
	typ := check_TypeOfBody(t, "void f(u32 a) { u16 x <- a[0, 11]; }")
	assert.Equal(t, ast.U16, typ.Base)
}

func Test_Typing_SubscriptStripsDimension(t *testing.T) {
	typ := check_TypeOfBody(t, "void f() { u8 m[4][2]; m[0][1] <- 1; u8 x <- m[1][0]; }")
	assert.Equal(t, ast.U8, typ.Base)
	assert.False(t, typ.IsArray)
}

func Test_Typing_NarrowingRejected(t *testing.T) {
	check_CheckError(t, "void f(u32 a) { u8 x <- a; }", source.TypeMismatch)
}

func Test_Typing_BoolIntMixRejected(t *testing.T) {
	check_CheckError(t, "void f(bool a) { u8 x <- a + 1; }", source.TypeMismatch)
}

func Test_Typing_UnknownSymbol(t *testing.T) {
	check_CheckError(t, "void f() { u8 x <- missing; }", source.UnknownSymbol)
}

func Test_Typing_PrivateMember(t *testing.T) {
	check_CheckError(t, `
scope Motor {
    private u32 speed <- 0;
}
void f() {
    u32 x <- Motor.speed;
}`, source.PrivateMember)
}

func Test_Typing_OwnScopeByName(t *testing.T) {
	check_CheckError(t, `
scope Motor {
    public u32 speed <- 0;
    public void f() {
        u32 x <- Motor.speed;
    }
}`, source.OwnScopeByName)
}

func Test_Typing_AmbiguousReference(t *testing.T) {
	check_CheckError(t, `
scope Status { public u32 code <- 0; }
u32 Status <- 0;
void f() {
    u32 x <- Status.code;
}`, source.AmbiguousReference)
}

func Test_Typing_TernaryBranchMismatch(t *testing.T) {
	check_CheckError(t, "void f(u32 a, i32 b) { u32 x <- (a > 1) ? a : b; }", source.TypeMismatch)
}

func Test_Typing_ReturnMismatch(t *testing.T) {
	check_CheckError(t, "void f() { return 1; }", source.TypeMismatch)
}

func Test_InitCheck_IfWithoutElse(t *testing.T) {
	check_CheckError(t, `
u32 f(bool cond) {
    u32 x;
    if (cond) {
        x <- 1;
    }
    return x;
}`, source.UninitializedUse)
}

func Test_InitCheck_IfElseCovers(t *testing.T) {
	check_CheckOk(t, `
u32 f(bool cond) {
    u32 x;
    if (cond) {
        x <- 1;
    } else {
        x <- 2;
    }
    return x;
}`)
}

func Test_InitCheck_WhileBodyDoesNotEstablish(t *testing.T) {
	check_CheckError(t, `
u32 f(bool cond) {
    u32 x;
    while (cond) {
        x <- 1;
    }
    return x;
}`, source.UninitializedUse)
}

func Test_InitCheck_DoWhileEstablishes(t *testing.T) {
	check_CheckOk(t, `
u32 f(bool cond) {
    u32 x;
    do {
        x <- 1;
    } while (cond);
    return x;
}`)
}

func Test_InitCheck_SwitchArmsIntersect(t *testing.T) {
	check_CheckOk(t, `
u32 f(u8 v) {
    u32 x;
    switch (v) {
        case 1 {
            x <- 1;
        }
        default(1) {
            x <- 0;
        }
    }
    return x;
}`)
}

func Test_InitCheck_SwitchMissingArm(t *testing.T) {
	check_CheckError(t, `
u32 f(u8 v) {
    u32 x;
    switch (v) {
        case 1 {
            x <- 1;
        }
        default(1) {
        }
    }
    return x;
}`, source.UninitializedUse)
}

func Test_InitCheck_SafeDivInitialises(t *testing.T) {
	check_CheckOk(t, `
i32 f(i32 a, i32 b) {
    i32 q;
    safe_div(q, a, b, 0);
    return q;
}`)
}

// ===================================================================
// Test Helpers
// ===================================================================

// check_TypeOfExpr parses a file whose final declaration is a variable, and
// returns the inferred type of that variable's initialiser.
func check_TypeOfExpr(t *testing.T, input string) ast.Type {
	unit, registry, srcmaps := check_Checked(t, input)
	//
	decl := unit.Declarations[len(unit.Declarations)-1].(*ast.Variable)
	require.NotNil(t, decl.Initialiser)
	//
	env := NewEnv(registry, srcmaps)
	//
	typ, errs := env.TypeOf(decl.Initialiser)
	require.Empty(t, errs)
	//
	return typ
}

// check_TypeOfBody returns the inferred type of the initialiser of the final
// local declared in the final function of the input.
func check_TypeOfBody(t *testing.T, input string) ast.Type {
	unit, registry, srcmaps := check_Checked(t, input)
	//
	fn := unit.Declarations[len(unit.Declarations)-1].(*ast.Function)
	info, ok := registry.Function("", fn.Name)
	require.True(t, ok)
	//
	env := NewEnv(registry, srcmaps).EnterFunction("", info)
	//
	var last *ast.Variable
	//
	WalkStmt(fn.Body, func(stmt ast.Stmt) {
		if local, ok := stmt.(*ast.Local); ok {
			env.DeclareLocal(local.Decl.Name, local.Decl.Type)
			last = local.Decl
		}
	})
	//
	require.NotNil(t, last)
	require.NotNil(t, last.Initialiser)
	//
	typ, errs := env.TypeOf(last.Initialiser)
	require.Empty(t, errs)
	//
	return typ
}

func check_Checked(t *testing.T, input string) (*ast.Unit, *Registry, *source.Maps[ast.Node]) {
	srcfile := source.NewSourceFile("test.cnx", []byte(input))
	//
	unit, srcmap, errs := ParseSourceFile(srcfile)
	require.Empty(t, errs)
	//
	srcmaps := source.NewSourceMaps[ast.Node]()
	srcmaps.Join(srcmap)
	//
	registry, rerrs := BuildRegistry(srcmaps, unit)
	require.Empty(t, rerrs)
	//
	cerrs := TypeCheckUnit(srcmaps, registry, unit)
	require.Empty(t, cerrs)
	//
	return unit, registry, srcmaps
}

func check_CheckOk(t *testing.T, input string) {
	check_Checked(t, input)
}

func check_CheckError(t *testing.T, input string, kind source.ErrorKind) {
	srcfile := source.NewSourceFile("test.cnx", []byte(input))
	//
	unit, srcmap, errs := ParseSourceFile(srcfile)
	require.Empty(t, errs)
	//
	srcmaps := source.NewSourceMaps[ast.Node]()
	srcmaps.Join(srcmap)
	//
	registry, rerrs := BuildRegistry(srcmaps, unit)
	require.Empty(t, rerrs)
	//
	cerrs := TypeCheckUnit(srcmaps, registry, unit)
	require.NotEmpty(t, cerrs)
	//
	found := false
	//
	for _, err := range cerrs {
		if err.Kind() == kind {
			found = true
		}
	}
	//
	assert.True(t, found, "expected error kind %s", kind)
}
