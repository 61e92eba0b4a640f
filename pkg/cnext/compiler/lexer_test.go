package compiler

import (
	"testing"

	"github.com/jlaustill/go-cnext/pkg/util/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Lexer_01(t *testing.T) {
	check_Tokens(t, "u32 a <- 10;", IDENT, IDENT, ASSIGN, NUMBER, SEMICOLON)
}

func Test_Lexer_02(t *testing.T) {
	check_Tokens(t, "a +<- 0x1F;", IDENT, ADD_ASSIGN, NUMBER, SEMICOLON)
}

func Test_Lexer_03(t *testing.T) {
	check_Tokens(t, "x <<<- 2; y >><- 1;", IDENT, SHL_ASSIGN, NUMBER, SEMICOLON,
		IDENT, SHR_ASSIGN, NUMBER, SEMICOLON)
}

func Test_Lexer_04(t *testing.T) {
	check_Tokens(t, "a << 2 >> 1 <= 3 >= 4 < 5 > 6", IDENT, SHIFTLEFT, NUMBER,
		SHIFTRIGHT, NUMBER, LESSTHANEQUALS, NUMBER, GREATERTHANEQUALS, NUMBER,
		LESSTHAN, NUMBER, GREATERTHAN, NUMBER)
}

func Test_Lexer_05(t *testing.T) {
	check_Tokens(t, "s.B[3, 7]", IDENT, DOT, IDENT, LBRACKET, NUMBER, COMMA, NUMBER, RBRACKET)
}

func Test_Lexer_06(t *testing.T) {
	// Comments are discarded.
	check_Tokens(t, "a // trailing\n/* block */ b", IDENT, IDENT)
}

func Test_Lexer_07(t *testing.T) {
	check_Tokens(t, "1.5f32 100u64 0b101", FLOATNUMBER, NUMBER, NUMBER)
}

func Test_Lexer_08(t *testing.T) {
	check_Tokens(t, "#include \"io.h\"\nu8 x;", DIRECTIVE, IDENT, IDENT, SEMICOLON)
}

func Test_Lexer_09(t *testing.T) {
	check_Tokens(t, "a == b != c && d || !e", IDENT, EQUALS, IDENT, NOTEQUALS,
		IDENT, LOGICALAND, IDENT, LOGICALOR, BANG, IDENT)
}

func Test_Lexer_10(t *testing.T) {
	// Unterminated strings are rejected.
	lexer := NewLexer(source.NewSourceFile("test.cnx", []byte("\"abc")))
	_, err := lexer.Collect()
	//
	require.NotNil(t, err)
	assert.Equal(t, source.UnterminatedBlock, err.Kind())
}

// ===================================================================
// Test Helpers
// ===================================================================

func check_Tokens(t *testing.T, input string, kinds ...TokenKind) {
	srcfile := source.NewSourceFile("test.cnx", []byte(input))
	//
	tokens, err := NewLexer(srcfile).Collect()
	require.Nil(t, err)
	// Final token is always END.
	require.Equal(t, len(kinds)+1, len(tokens))
	//
	for i, kind := range kinds {
		assert.Equal(t, kind, tokens[i].Kind, "token %d", i)
	}
	//
	assert.Equal(t, END, tokens[len(tokens)-1].Kind)
}
