package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeBasicResource(t *testing.T) {
	src := `aws.vpc { name = "main" cidr_block = "10.0.0.0/16" }`
	tokens, err := New("test.crn", src).Tokenize()
	require.NoError(t, err)

	var kinds []TokenKind
	for _, tok := range tokens {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []TokenKind{
		DottedIdent, LBrace, Ident, Equals, String, Ident, Equals, String, RBrace, EOF,
	}, kinds)
}

func TestTokenizeCommentAndNewline(t *testing.T) {
	src := "# a comment\nname = \"x\"\n"
	tokens, err := New("test.crn", src).Tokenize()
	require.NoError(t, err)
	require.True(t, len(tokens) >= 2)
	assert.Equal(t, Comment, tokens[0].Kind)
	assert.Equal(t, " a comment", tokens[0].Value)
}

func TestTokenizeUnterminatedStringFails(t *testing.T) {
	_, err := New("test.crn", `name = "unterminated`).Tokenize()
	require.Error(t, err)
}

func TestTokenizeEscapeSequences(t *testing.T) {
	tokens, err := New("test.crn", `"line1\nline2\t\"quoted\""`).Tokenize()
	require.NoError(t, err)
	require.Equal(t, String, tokens[0].Kind)
	assert.Equal(t, "line1\nline2\t\"quoted\"", tokens[0].Value)
}

func TestTokenizeDottedIdentVsIdent(t *testing.T) {
	tokens, err := New("test.crn", `main_vpc.id aws.Region.us_east_1 plainident`).Tokenize()
	require.NoError(t, err)
	assert.Equal(t, DottedIdent, tokens[0].Kind)
	assert.Equal(t, "main_vpc.id", tokens[0].Text)
	assert.Equal(t, DottedIdent, tokens[1].Kind)
	assert.Equal(t, "aws.Region.us_east_1", tokens[1].Text)
	assert.Equal(t, Ident, tokens[2].Kind)
}
