package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Source_EnclosingLine(t *testing.T) {
	srcfile := NewSourceFile("test.cnx", []byte("first\nsecond\nthird\n"))
	// "second" starts at offset 6.
	line := srcfile.FindFirstEnclosingLine(NewSpan(8, 10))
	//
	assert.Equal(t, 2, line.Number())
	assert.Equal(t, "second", line.String())
	assert.Equal(t, 6, line.Start())
	assert.Equal(t, 6, line.Length())
}

func Test_Source_SyntaxError(t *testing.T) {
	srcfile := NewSourceFile("test.cnx", []byte("u32 a <- ;"))
	//
	err := srcfile.SyntaxError(NewSpan(9, 10), UnexpectedToken, "expected expression")
	assert.Equal(t, UnexpectedToken, err.Kind())
	assert.Equal(t, "expected expression", err.Message())
	assert.Equal(t, 9, err.Span().Start())
	assert.Equal(t, 1, err.FirstEnclosingLine().Number())
}

func Test_Source_ErrorKindNames(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		name string
	}{
		{UnknownSymbol, "UnknownSymbol"},
		{PrivateMember, "PrivateMember"},
		{OwnScopeByName, "OwnScopeByName"},
		{ShiftBeyondWidth, "ShiftBeyondWidth"},
		{DefaultCountMismatch, "DefaultCountMismatch"},
		{UnsupportedFloatBitOp, "UnsupportedFloatBitOp"},
	}
	//
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.kind.String())
	}
}

func Test_Source_SpanJoin(t *testing.T) {
	a := NewSpan(2, 5)
	b := NewSpan(4, 9)
	//
	joined := a.Join(b)
	assert.Equal(t, 2, joined.Start())
	assert.Equal(t, 9, joined.End())
}

func Test_Source_Maps(t *testing.T) {
	srcfile := NewSourceFile("test.cnx", []byte("u32 a;"))
	srcmap := NewSourceMap[*int](*srcfile)
	//
	node := new(int)
	srcmap.Put(node, NewSpan(0, 3))
	//
	maps := NewSourceMaps[*int]()
	maps.Join(srcmap)
	//
	require.True(t, maps.Has(node))
	//
	err := maps.SyntaxError(node, TypeMismatch, "boom")
	assert.Equal(t, TypeMismatch, err.Kind())
	assert.Equal(t, 0, err.Span().Start())
	//
	assert.Panics(t, func() {
		maps.SyntaxError(new(int), TypeMismatch, "missing")
	})
}
