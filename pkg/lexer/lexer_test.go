package lexer

import "testing"

func tokenTypes(toks []Token) []TokenType {
	var out []TokenType
	for _, t := range toks {
		out = append(out, t.Type)
	}
	return out
}

func TestTokenizesKeywordsAndPunctuators(t *testing.T) {
	toks := New("var x = 1 + 2; if (x < 3) { return x; }").Tokenize()
	types := tokenTypes(toks)
	want := []TokenType{
		TokenVar, TokenIdentifier, TokenAssign, TokenNumber, TokenPlus, TokenNumber, TokenSemicolon,
		TokenIf, TokenLParen, TokenIdentifier, TokenLt, TokenNumber, TokenRParen, TokenLBrace,
		TokenReturn, TokenIdentifier, TokenSemicolon, TokenRBrace, TokenEOF,
	}
	if len(types) != len(want) {
		t.Fatalf("token count mismatch: got %d want %d (%v)", len(types), len(want), types)
	}
	for i, tt := range want {
		if types[i] != tt {
			t.Errorf("token %d: got %v want %v", i, types[i], tt)
		}
	}
}

func TestRangeOperatorsNotConsumedByNumber(t *testing.T) {
	toks := New("1..5").Tokenize()
	if toks[0].Type != TokenNumber || toks[0].Literal != "1" {
		t.Fatalf("expected number '1', got %+v", toks[0])
	}
	if toks[1].Type != TokenDotDot {
		t.Fatalf("expected '..' operator, got %+v", toks[1])
	}
	if toks[2].Type != TokenNumber || toks[2].Literal != "5" {
		t.Fatalf("expected number '5', got %+v", toks[2])
	}
}

func TestRangeEqAndEllipsis(t *testing.T) {
	toks := New("1..=5 ...").Tokenize()
	if toks[1].Type != TokenRangeEq {
		t.Fatalf("expected '..=' got %+v", toks[1])
	}
	if toks[3].Type != TokenEllipsis {
		t.Fatalf("expected '...' got %+v", toks[3])
	}
}

func TestFractionalNumber(t *testing.T) {
	toks := New("3.14").Tokenize()
	if toks[0].Type != TokenNumber || toks[0].Literal != "3.14" {
		t.Fatalf("expected fractional literal, got %+v", toks[0])
	}
}

func TestStringEscapes(t *testing.T) {
	toks := New(`'a\nb\tc\\d\'e'`).Tokenize()
	if toks[0].Type != TokenString {
		t.Fatalf("expected string token, got %+v", toks[0])
	}
	want := "a\nb\tc\\d'e"
	if toks[0].Literal != want {
		t.Fatalf("got %q want %q", toks[0].Literal, want)
	}
}

func TestStringInterpolationEmitsConcatenation(t *testing.T) {
	toks := New(`'hi ${1+2}!'`).Tokenize()
	types := tokenTypes(toks)
	want := []TokenType{
		TokenString, TokenPlus, TokenInterpBegin,
		TokenNumber, TokenPlus, TokenNumber,
		TokenInterpEnd, TokenPlus, TokenString, TokenEOF,
	}
	if len(types) != len(want) {
		t.Fatalf("token count mismatch: got %d want %d (%v)", len(types), len(want), types)
	}
	for i, tt := range want {
		if types[i] != tt {
			t.Errorf("token %d: got %v want %v", i, types[i], tt)
		}
	}
	if toks[0].Literal != "hi " {
		t.Errorf("expected prefix fragment %q, got %q", "hi ", toks[0].Literal)
	}
	if toks[8].Literal != "!" {
		t.Errorf("expected suffix fragment %q, got %q", "!", toks[8].Literal)
	}
}

func TestSkipsLineAndBlockComments(t *testing.T) {
	src := "// a comment\nvar x = 1 /* inline\nblock */ + 2"
	toks := New(src).Tokenize()
	types := tokenTypes(toks)
	want := []TokenType{TokenVar, TokenIdentifier, TokenAssign, TokenNumber, TokenPlus, TokenNumber, TokenEOF}
	if len(types) != len(want) {
		t.Fatalf("token count mismatch: got %d want %d (%v)", len(types), len(want), types)
	}
}

func TestRowColProvenanceStartsAtOneOne(t *testing.T) {
	toks := New("x").Tokenize()
	if toks[0].Row != 1 {
		t.Fatalf("expected row 1, got %d", toks[0].Row)
	}
}

func TestMultiCharPunctuators(t *testing.T) {
	toks := New("== != <= >= |>").Tokenize()
	want := []TokenType{TokenEqEq, TokenNotEq, TokenLe, TokenGe, TokenPipeGt, TokenEOF}
	types := tokenTypes(toks)
	for i, tt := range want {
		if types[i] != tt {
			t.Errorf("token %d: got %v want %v", i, types[i], tt)
		}
	}
}
