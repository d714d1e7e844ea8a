package pipes

import (
	"io"
	"strings"
	"testing"
)

func TestLex(t *testing.T) {
	cases := []struct {
		src    string
		tokens []lexToken
	}{
		// spaces
		{"", nil},
		{" \t \r\n ", nil},
		// numbers
		{"0", []lexToken{{text: "0", kind: tokenNum, pos: 1}}},
		{"9876543210", []lexToken{{text: "9876543210", kind: tokenNum, pos: 1}}},
		{"1 0", []lexToken{{text: "1", kind: tokenNum, pos: 1}, {text: "0", kind: tokenNum, pos: 3}}},
		{"1.0", []lexToken{{text: "1.0", kind: tokenNum, pos: 1}}},
		{"1e1", []lexToken{{text: "1e1", kind: tokenNum, pos: 1}}},
		{"1e+1", []lexToken{{text: "1e+1", kind: tokenNum, pos: 1}}},
		{"1e-1", []lexToken{{text: "1e-1", kind: tokenNum, pos: 1}}},
		{".1", []lexToken{{text: ".1", kind: tokenNum, pos: 1}}},
		{".1e1", []lexToken{{text: ".1e1", kind: tokenNum, pos: 1}}},
		{"inf", []lexToken{{text: "inf", kind: tokenNum, pos: 1}}},
		{"Inf", []lexToken{{text: "Inf", kind: tokenNum, pos: 1}}},
		// identifiers
		{"e", []lexToken{{text: "e", kind: tokenIdent, pos: 1}}},
		{"e1", []lexToken{{text: "e1", kind: tokenIdent, pos: 1}}},
		{"π", []lexToken{{text: "π", kind: tokenIdent, pos: 1}}},
		{"_", []lexToken{{text: "_", kind: tokenIdent, pos: 1}}},
		{"_1234_", []lexToken{{text: "_1234_", kind: tokenIdent, pos: 1}}},
		// operators
		{"-1", []lexToken{{text: "-", kind: tokenOp, pos: 1}, {text: "1", kind: tokenNum, pos: 2}}},
		{"1+0", []lexToken{{text: "1", kind: tokenNum, pos: 1}, {text: "+", kind: tokenOp, pos: 2}, {text: "0", kind: tokenNum, pos: 3}}},
		{"a--b", []lexToken{{text: "a", kind: tokenIdent, pos: 1}, {text: "-", kind: tokenOp, pos: 2}, {text: "-", kind: tokenOp, pos: 3}, {text: "b", kind: tokenIdent, pos: 4}}},
		{"2^3", []lexToken{{text: "2", kind: tokenNum, pos: 1}, {text: "^", kind: tokenOp, pos: 2}, {text: "3", kind: tokenNum, pos: 3}}},
		// brackets and separators
		{"(1)", []lexToken{{text: "(", kind: tokenOpen, pos: 1}, {text: "1", kind: tokenNum, pos: 2}, {text: ")", kind: tokenClose, pos: 3}}},
		{"f(1,2)", []lexToken{{text: "f", kind: tokenIdent, pos: 1}, {text: "(", kind: tokenOpen, pos: 2}, {text: "1", kind: tokenNum, pos: 3}, {text: ",", kind: tokenSep, pos: 4}, {text: "2", kind: tokenNum, pos: 5}, {text: ")", kind: tokenClose, pos: 6}}},
		// pipes
		{"|>", []lexToken{{text: "|>", kind: tokenPipe, pos: 1}}},
		{"|T>", []lexToken{{text: "|T>", kind: tokenPipe, pos: 1}}},
		{"4|>f", []lexToken{{text: "4", kind: tokenNum, pos: 1}, {text: "|>", kind: tokenPipe, pos: 2}, {text: "f", kind: tokenIdent, pos: 4}}},
		{"4 |T> f", []lexToken{{text: "4", kind: tokenNum, pos: 1}, {text: "|T>", kind: tokenPipe, pos: 3}, {text: "f", kind: tokenIdent, pos: 7}}},
	}
	for _, c := range cases {
		scan := lex(strings.NewReader(c.src))
		for _, want := range c.tokens {
			got, err := scan.next("")
			if err != nil {
				t.Errorf("scanning %q: unexpected error %v", c.src, err)
				break
			}
			if got.kind == tokenEOF {
				t.Errorf("scanning %q: expected token %v but got EOF", c.src, want)
				break
			}
			if got != want {
				t.Errorf("scanning %q: want %v, got %v", c.src, want, got)
			}
		}
		got, err := scan.next("")
		if err != nil {
			t.Errorf("scanning %q: unexpected error %v at end", c.src, err)
			continue
		}
		if got.kind != tokenEOF {
			t.Errorf("scanning %q: extra token %v", c.src, got)
		}
	}
}

func TestLexErrors(t *testing.T) {
	cases := []struct {
		src string
		pos int
	}{
		{"$", 2},
		{"0$", 3},
		{"1e", 3},
		{"1.1.1", 5},
		{".", 2},
		{"|", 2},
		{"|x", 3},
		{"|T", 3},
		{"|Tx", 4},
		{"1 | 2", 5},
	}
	for _, c := range cases {
		scan := lex(strings.NewReader(c.src))
		var err error
		for {
			var tok lexToken
			tok, err = scan.next("")
			if err != nil || tok.kind == tokenEOF {
				break
			}
		}
		if err == nil {
			t.Errorf("scanning %q: no error", c.src)
			continue
		}
		le, ok := err.(*LexError)
		if !ok {
			t.Errorf("scanning %q: error %#v is not a LexError", c.src, err)
			continue
		}
		if le.Pos() != c.pos {
			t.Errorf("scanning %q: error at %d, expected %d", c.src, le.Pos(), c.pos)
		}
	}
}

func TestLexPush(t *testing.T) {
	scan := lex(strings.NewReader("1 2"))
	tok, err := scan.next("")
	if err != nil {
		t.Fatal(err)
	}
	scan.push(tok)
	again, err := scan.next("")
	if err != nil {
		t.Fatal(err)
	}
	if tok != again {
		t.Errorf("pushed %v but got %v", tok, again)
	}
}

func TestLexStopOnSpace(t *testing.T) {
	scan := lex(strings.NewReader("1\n2"))
	tok, err := scan.next("\n")
	if err != nil || tok.kind != tokenNum {
		t.Fatalf("first token %v with error %v", tok, err)
	}
	tok, err = scan.next("\n")
	if err != nil || tok.kind != tokenEOF {
		t.Fatalf("expected EOF at newline, got %v with error %v", tok, err)
	}
	if _, err := scan.next("\n"); err != io.EOF {
		t.Errorf("expected io.EOF after EOF token, got %v", err)
	}
}
