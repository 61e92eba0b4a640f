package compiler

import (
	"testing"

	"github.com/jlaustill/go-cnext/pkg/cnext/ast"
	"github.com/jlaustill/go-cnext/pkg/util/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Registry_BitmapLayout(t *testing.T) {
	registry := check_Build(t, "bitmap8 S { A, B[3], C[4] }")
	//
	info, ok := registry.Bitmap("S")
	require.True(t, ok)
	assert.Equal(t, uint(8), info.Backing)
	assert.Equal(t, BitRange{0, 1}, info.Fields["A"])
	assert.Equal(t, BitRange{1, 3}, info.Fields["B"])
	assert.Equal(t, BitRange{4, 4}, info.Fields["C"])
}

func Test_Registry_BitmapPinnedLayout(t *testing.T) {
	registry := check_Build(t, "bitmap16 S { A[2] @ 4, B }")
	//
	info, _ := registry.Bitmap("S")
	assert.Equal(t, BitRange{4, 2}, info.Fields["A"])
	// Packing resumes after the pinned field.
	assert.Equal(t, BitRange{6, 1}, info.Fields["B"])
}

func Test_Registry_BitmapOverflow(t *testing.T) {
	check_BuildError(t, "bitmap8 S { A[6], B[4] }", source.BitmapOverflow)
}

func Test_Registry_BitmapOverlap(t *testing.T) {
	check_BuildError(t, "bitmap8 S { A[4] @ 0, B[4] @ 2 }", source.BitmapOverlap)
}

func Test_Registry_EnumValues(t *testing.T) {
	registry := check_Build(t, "enum Color { RED, GREEN <- 5, BLUE }")
	//
	info, ok := registry.Enum("Color")
	require.True(t, ok)
	assert.Equal(t, int64(0), info.Members["RED"])
	assert.Equal(t, int64(5), info.Members["GREEN"])
	assert.Equal(t, int64(6), info.Members["BLUE"])
	// Members double as constants.
	value, ok := registry.ConstValue("Color.GREEN")
	require.True(t, ok)
	assert.Equal(t, int64(5), value.Int64())
}

func Test_Registry_EnumOutOfRange(t *testing.T) {
	check_BuildError(t, "enum Big { HUGE <- 4294967296 }", source.TypeMismatch)
}

func Test_Registry_RegisterOffsets(t *testing.T) {
	check_BuildError(t, `
register GPIO @ 0x4000 {
    A: u32 rw @ 0;
    B: u32 rw @ 0;
}`, source.DuplicateMember)
}

func Test_Registry_DuplicateDeclaration(t *testing.T) {
	check_BuildError(t, "u32 a; u32 a;", source.DuplicateMember)
}

func Test_Registry_UnknownFieldType(t *testing.T) {
	check_BuildError(t, "struct Point { Missing m; }", source.UnknownSymbol)
}

func Test_Registry_RecursiveStruct(t *testing.T) {
	check_BuildError(t, "struct Node { Node next; }", source.TypeMismatch)
}

func Test_Registry_ScopeVisibility(t *testing.T) {
	registry := check_Build(t, `
scope Motor {
    private u32 speed <- 0;
    public void stop() {
    }
}`)
	//
	info, ok := registry.Scope("Motor")
	require.True(t, ok)
	//
	vis, ok := info.Visibility("speed")
	require.True(t, ok)
	assert.Equal(t, PRIVATE, vis)
	//
	vis, _ = info.Visibility("stop")
	assert.Equal(t, PUBLIC, vis)
}

func Test_Registry_ParameterPromotion(t *testing.T) {
	registry := check_Build(t, `
struct Point { u32 x; }
void f(u8 small, u32 wide, f32 ratio, bool flag, Point p, value u32 tagged) {
}`)
	//
	info, _ := registry.Function("", "f")
	require.Len(t, info.Params, 6)
	// Primitives of at most 16 bits, floats and booleans pass by value.
	assert.False(t, info.Params[0].ForcePointer)
	assert.True(t, info.Params[1].ForcePointer)
	assert.False(t, info.Params[2].ForcePointer)
	assert.False(t, info.Params[3].ForcePointer)
	// Structs always pass by pointer.
	assert.True(t, info.Params[4].ForcePointer)
	// The explicit tag overrides promotion.
	assert.False(t, info.Params[5].ForcePointer)
}

func Test_Registry_MutationAnalysis(t *testing.T) {
	registry := check_Build(t, `
void inner(u32 out) {
    out <- 1;
}
void outer(u32 x) {
    inner(x);
}
void reader(u32 y) {
    u32 z <- y + 1;
    inner(z);
}`)
	//
	inner, _ := registry.Function("", "inner")
	assert.True(t, inner.Params[0].Mutated)
	// One hop: outer's x is handed to a mutating callee parameter.
	outer, _ := registry.Function("", "outer")
	assert.True(t, outer.Params[0].Mutated)
	// reader never passes y onwards.
	reader, _ := registry.Function("", "reader")
	assert.False(t, reader.Params[0].Mutated)
}

func Test_Registry_FrozenAfterBuild(t *testing.T) {
	registry := check_Build(t, "u32 a;")
	//
	assert.Panics(t, func() {
		registry.DeclareScope("late")
	})
}

func Test_Registry_ConstFolding(t *testing.T) {
	registry := check_Build(t, "const u32 BASE <- 100; const u32 LIMIT <- BASE + 20;")
	//
	value, ok := registry.ConstValue("LIMIT")
	require.True(t, ok)
	assert.Equal(t, int64(120), value.Int64())
}

// ===================================================================
// Test Helpers
// ===================================================================

func check_Build(t *testing.T, input string) *Registry {
	registry, errs := build_Registry(t, input)
	require.Empty(t, errs)
	//
	return registry
}

func check_BuildError(t *testing.T, input string, kind source.ErrorKind) {
	_, errs := build_Registry(t, input)
	require.NotEmpty(t, errs)
	assert.Equal(t, kind, errs[0].Kind())
}

func build_Registry(t *testing.T, input string) (*Registry, []SyntaxError) {
	srcfile := source.NewSourceFile("test.cnx", []byte(input))
	//
	unit, srcmap, errs := ParseSourceFile(srcfile)
	require.Empty(t, errs)
	//
	srcmaps := source.NewSourceMaps[ast.Node]()
	srcmaps.Join(srcmap)
	//
	return BuildRegistry(srcmaps, unit)
}
