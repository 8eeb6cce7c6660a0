package lua

import (
	"fmt"
	"strings"
	"testing"
)

type scannerTest struct {
	source string
	tokens []token
}

func TestScanner(t *testing.T) {
	tests := []scannerTest{
		{"", []token{}},
		{"-", []token{{t: '-'}}},
		{"--[\n\n\r--]", []token{}},
		{"-- hello, world\n", []token{}},
		{"=", []token{{t: '='}}},
		{"==", []token{{t: tkEq}}},
		{"\"hello, world\"", []token{{t: tkString, s: "hello, world"}}},
		{"[[hello,\r\nworld]]", []token{{t: tkString, s: "hello,\nworld"}}},
		{".", []token{{t: '.'}}},
		{"..", []token{{t: tkConcat}}},
		{"...", []token{{t: tkDots}}},
		{".34", []token{{t: tkNumber, n: 0.34}}},
		{"_foo", []token{{t: tkName, s: "_foo"}}},
		{"3", []token{{t: tkNumber, n: int64(3)}}},
		{"3.0", []token{{t: tkNumber, n: 3.0}}},
		{"3.1416", []token{{t: tkNumber, n: 3.1416}}},
		{"314.16e-2", []token{{t: tkNumber, n: 3.1416}}},
		{"0.31416E1", []token{{t: tkNumber, n: 3.1416}}},
		{"0xff", []token{{t: tkNumber, n: int64(0xff)}}},
		{"0x0.1E", []token{{t: tkNumber, n: 0.1171875}}},
		{"0xA23p-4", []token{{t: tkNumber, n: 162.1875}}},
		{"0X1.921FB54442D18P+1", []token{{t: tkNumber, n: 3.141592653589793}}},
		{"  -0xa  ", []token{{t: '-'}, {t: tkNumber, n: int64(10)}}},
		{"1 // 2", []token{{t: tkNumber, n: int64(1)}, {t: tkIDiv}, {t: tkNumber, n: int64(2)}}},
		{"1 & 2 | 3 ~ 4", []token{
			{t: tkNumber, n: int64(1)}, {t: '&'},
			{t: tkNumber, n: int64(2)}, {t: '|'},
			{t: tkNumber, n: int64(3)}, {t: '~'},
			{t: tkNumber, n: int64(4)},
		}},
		{"1 << 2 >> 3", []token{
			{t: tkNumber, n: int64(1)}, {t: tkShl},
			{t: tkNumber, n: int64(2)}, {t: tkShr},
			{t: tkNumber, n: int64(3)},
		}},
		{"a::b::", []token{{t: tkName, s: "a"}, {t: tkDoubleColon}, {t: tkName, s: "b"}, {t: tkDoubleColon}}},
		{`"tab\tnewline\nquote\""`, []token{{t: tkString, s: "tab\tnewline\nquote\""}}},
		{`"\65\66\67"`, []token{{t: tkString, s: "ABC"}}},
		{`"\x41\x42"`, []token{{t: tkString, s: "AB"}}},
		{`"\u{48}\u{49}"`, []token{{t: tkString, s: "HI"}}},
		{"[==[long\n]]==]", []token{{t: tkString, s: "long\n]"}}},
		{"--[==[\nlong comment\n]==]\n42", []token{{t: tkNumber, n: int64(42)}}},
		{"and or not", []token{{t: tkAnd}, {t: tkOr}, {t: tkNot}}},
	}
	for i, v := range tests {
		testScanner(t, i, v.source, v.tokens)
	}
}

func testScanner(t *testing.T, n int, source string, tokens []token) {
	s := scanner{r: strings.NewReader(source)}
	for i, expected := range tokens {
		if result := s.scan(); result != expected {
			t.Errorf("[%d] expected token %s but found %s at %d", n, expected, result, i)
		}
	}
	expected := token{t: tkEOS}
	if result := s.scan(); result != expected {
		t.Errorf("[%d] expected token %s but found %s", n, expected, result)
	}
}

func (tk token) String() string {
	name := string(rune(tk.t))
	if n, ok := tokenNames[tk.t]; ok {
		name = n
	} else if tk.t == tkEOS {
		name = "<eof>"
	} else if tk.t == tkName {
		name = "<name>"
	} else if tk.t == tkString {
		name = "<string>"
	} else if tk.t == tkNumber {
		name = "<number>"
	}
	return fmt.Sprintf("{t:%s, n:%v, s:%q}", name, tk.n, tk.s)
}
