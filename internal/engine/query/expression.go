package query

import (
	"strings"

	"pyintel/internal/engine/ast"
)

// Expression is source text extracted around an offset together with its
// byte range in the source.
type Expression struct {
	Text string
	Span ast.Span
}

var keywords = map[string]bool{
	"and": true, "as": true, "assert": true, "async": true, "await": true,
	"break": true, "class": true, "continue": true, "def": true, "del": true,
	"elif": true, "else": true, "except": true, "finally": true, "for": true,
	"from": true, "global": true, "if": true, "import": true, "in": true,
	"is": true, "lambda": true, "nonlocal": true, "not": true, "or": true,
	"pass": true, "raise": true, "return": true, "try": true, "while": true,
	"with": true, "yield": true,
}

// AnalyzeExpression returns the longest dotted, called or subscripted chain
// that ends at or contains offset, such as "a.b(c, d).e". It refuses offsets
// inside keywords, comments and unbalanced brackets.
func AnalyzeExpression(text string, offset int) (Expression, bool) {
	if offset < 0 || offset > len(text) || inComment(text, offset) {
		return Expression{}, false
	}

	// Extend forward to the end of the identifier under the cursor.
	end := offset
	for end < len(text) && isIdentByte(text[end]) {
		end++
	}

	start, ok := scanBack(text, end)
	if !ok || start >= end {
		return Expression{}, false
	}
	expr := strings.TrimSpace(text[start:end])
	if expr == "" || keywords[expr] {
		return Expression{}, false
	}
	return Expression{Text: expr, Span: ast.Span{Start: start, End: end}}, true
}

// scanBack walks left from end over one primary expression and its trailers.
func scanBack(text string, end int) (int, bool) {
	pos := end
	for {
		atom := pos
		switch {
		case atom > 0 && (text[atom-1] == ')' || text[atom-1] == ']'):
			open, ok := matchOpen(text, atom-1)
			if !ok {
				return 0, false
			}
			pos = open
			// A call or subscript continues with whatever it applies to.
			if p := skipHorizontalSpace(text, pos); p > 0 && (isIdentByte(text[p-1]) || text[p-1] == ')' || text[p-1] == ']') {
				if word := identBefore(text, p); keywords[word] {
					return pos, true
				}
				pos = p
				continue
			}
		case atom > 0 && (text[atom-1] == '"' || text[atom-1] == '\''):
			open, ok := matchQuote(text, atom-1)
			if !ok {
				return 0, false
			}
			pos = open
		default:
			word := identBefore(text, atom)
			if word == "" {
				return pos, pos < end
			}
			if keywords[word] {
				return pos, pos < end
			}
			pos = atom - len(word)
		}

		// Continue across a dot.
		p := skipHorizontalSpace(text, pos)
		if p == 0 || text[p-1] != '.' {
			return pos, true
		}
		q := skipHorizontalSpace(text, p-1)
		if q == 0 {
			return pos, true
		}
		c := text[q-1]
		if !isIdentByte(c) && c != ')' && c != ']' && c != '"' && c != '\'' {
			return pos, true
		}
		if isDigitRun(text, q) {
			// "1.5" is a number, not an attribute access.
			return pos, true
		}
		pos = q
	}
}

// matchOpen finds the bracket opening the one closed at i.
func matchOpen(text string, i int) (int, bool) {
	depth := 0
	for j := i; j >= 0; j-- {
		switch text[j] {
		case ')', ']', '}':
			depth++
		case '(', '[', '{':
			depth--
			if depth == 0 {
				return j, true
			}
		case '"', '\'':
			open, ok := matchQuote(text, j)
			if !ok {
				return 0, false
			}
			j = open
		}
	}
	return 0, false
}

// matchQuote finds the quote opening the string literal closed at i.
func matchQuote(text string, i int) (int, bool) {
	q := text[i]
	for j := i - 1; j >= 0; j-- {
		if text[j] == '\n' {
			return 0, false
		}
		if text[j] == q && (j == 0 || text[j-1] != '\\') {
			return j, true
		}
	}
	return 0, false
}

func identBefore(text string, end int) string {
	start := end
	for start > 0 && isIdentByte(text[start-1]) {
		start--
	}
	return text[start:end]
}

func isDigitRun(text string, end int) bool {
	word := identBefore(text, end)
	if word == "" {
		return false
	}
	for i := 0; i < len(word); i++ {
		if word[i] < '0' || word[i] > '9' {
			return false
		}
	}
	return true
}

func skipHorizontalSpace(text string, pos int) int {
	for pos > 0 && (text[pos-1] == ' ' || text[pos-1] == '\t') {
		pos--
	}
	return pos
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 0x80 || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// inComment reports whether offset follows a '#' on its line outside of a
// string literal.
func inComment(text string, offset int) bool {
	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
	var quote byte
	for i := lineStart; i < offset; i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '#':
			return true
		}
	}
	return false
}
