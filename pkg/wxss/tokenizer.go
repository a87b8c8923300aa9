package wxss

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/walteh/wxls/pkg/position"
)

// TokenStream is the tokenizer output: top level trees plus out of band comments.
type TokenStream struct {
	Trees    []TokenTree
	Comments []Comment
	Warnings []Warning
	Index    *position.Index
}

// Tokenize turns stylesheet source into token trees. It never fails; malformed input is
// kept as Bad* tokens and reported in Warnings.
func Tokenize(src string) *TokenStream {
	return TokenizeIndexed(src, position.NewIndex(src))
}

// TokenizeIndexed is Tokenize with a prebuilt index over src.
func TokenizeIndexed(src string, ix *position.Index) *TokenStream {
	t := &tokenizer{src: src, ix: ix}
	trees, _, _ := t.readList(0)
	return &TokenStream{
		Trees:    trees,
		Comments: t.comments,
		Warnings: t.warnings,
		Index:    ix,
	}
}

type tokenizer struct {
	src      string
	ix       *position.Index
	pos      int
	closers  []byte
	comments []Comment
	warnings []Warning
}

func (t *tokenizer) span(start, end int) Span {
	return Span{Start: start, End: end, Location: t.ix.RangeFor(start, end)}
}

func (t *tokenizer) warn(kind WarningKind, start, end int) {
	t.warnings = append(t.warnings, Warning{Kind: kind, Span: t.span(start, end)})
}

func (t *tokenizer) eof() bool {
	return t.pos >= len(t.src)
}

func (t *tokenizer) peekAt(i int) byte {
	if i < len(t.src) {
		return t.src[i]
	}
	return 0
}

// readList collects trees until closer (0 at top level) or the end of input. A closer that
// belongs to an enclosing group ends the list without being consumed.
func (t *tokenizer) readList(closer byte) ([]TokenTree, bool, Span) {
	var out []TokenTree
	for {
		t.skipTrivia()
		if t.eof() {
			return out, false, t.span(len(t.src), len(t.src))
		}
		c := t.src[t.pos]
		if isCloser(c) {
			if c == closer {
				start := t.pos
				t.pos++
				return out, true, t.span(start, t.pos)
			}
			if strings.IndexByte(string(t.closers), c) >= 0 {
				return out, false, t.span(t.pos, t.pos)
			}
			start := t.pos
			t.pos++
			t.warn(WarnUnmatchedClose, start, t.pos)
			out = append(out, TokenTree{Kind: KindBadOperator, Span: t.span(start, t.pos), Text: string(c)})
			continue
		}
		out = append(out, t.next())
	}
}

func (t *tokenizer) skipTrivia() {
	for !t.eof() {
		c := t.src[t.pos]
		switch {
		case isWhitespace(c):
			t.pos++
		case c == '/' && t.peekAt(t.pos+1) == '*':
			start := t.pos
			end := strings.Index(t.src[start+2:], "*/")
			if end < 0 {
				t.pos = len(t.src)
				t.warn(WarnUnterminatedComment, start, t.pos)
				t.comments = append(t.comments, Comment{Span: t.span(start, t.pos), Text: t.src[start+2:]})
				continue
			}
			t.pos = start + 2 + end + 2
			t.comments = append(t.comments, Comment{Span: t.span(start, t.pos), Text: t.src[start+2 : t.pos-2]})
		default:
			return
		}
	}
}

func (t *tokenizer) next() TokenTree {
	start := t.pos
	c := t.src[start]
	switch {
	case c == '"' || c == '\'':
		return t.readString(c)
	case c == '#':
		if isNameChar(t.peekAt(start+1)) || t.validEscape(start+1) {
			kind := KindHash
			if t.startsIdent(start + 1) {
				kind = KindIDHash
			}
			t.pos++
			name := t.readName()
			return TokenTree{Kind: kind, Span: t.span(start, t.pos), Text: name}
		}
		return t.operator(1)
	case c == '(':
		return t.readGroup(KindParen, start, start+1, ')', "")
	case c == '[':
		return t.readGroup(KindBracket, start, start+1, ']', "")
	case c == '{':
		return t.readGroup(KindBrace, start, start+1, '}', "")
	case c == '+' || c == '.':
		if t.startsNumber(start) {
			return t.readNumeric()
		}
		return t.operator(1)
	case c == '-':
		if t.startsNumber(start) {
			return t.readNumeric()
		}
		if t.startsIdent(start) {
			return t.readIdentLike()
		}
		if strings.HasPrefix(t.src[start:], "-->") {
			return t.operator(3)
		}
		return t.operator(1)
	case c == '<':
		if strings.HasPrefix(t.src[start:], "<!--") {
			return t.operator(4)
		}
		return t.operator(1)
	case c == ':':
		t.pos++
		return TokenTree{Kind: KindColon, Span: t.span(start, t.pos), Text: ":"}
	case c == ';':
		t.pos++
		return TokenTree{Kind: KindSemicolon, Span: t.span(start, t.pos), Text: ";"}
	case c == ',':
		t.pos++
		return TokenTree{Kind: KindComma, Span: t.span(start, t.pos), Text: ","}
	case c == '@':
		if t.startsIdent(start + 1) {
			t.pos++
			name := t.readName()
			return TokenTree{Kind: KindAtKeyword, Span: t.span(start, t.pos), Text: name}
		}
		return t.operator(1)
	case c == '\\':
		if t.validEscape(start) {
			return t.readIdentLike()
		}
		t.pos++
		t.warn(WarnBadEscape, start, t.pos)
		return TokenTree{Kind: KindBadOperator, Span: t.span(start, t.pos), Text: "\\"}
	case isDigit(c):
		return t.readNumeric()
	case isNameStart(c):
		return t.readIdentLike()
	}
	_, size := utf8.DecodeRuneInString(t.src[start:])
	return t.operator(size)
}

func (t *tokenizer) operator(n int) TokenTree {
	start := t.pos
	t.pos += n
	return TokenTree{Kind: KindOperator, Span: t.span(start, t.pos), Text: t.src[start:t.pos]}
}

func (t *tokenizer) readGroup(kind Kind, start, openEnd int, closer byte, name string) TokenTree {
	t.pos = openEnd
	t.closers = append(t.closers, closer)
	children, closed, closeSpan := t.readList(closer)
	t.closers = t.closers[:len(t.closers)-1]
	if !closed {
		t.warn(WarnUnclosedGroup, start, openEnd)
	}
	return TokenTree{
		Kind:     kind,
		Span:     t.span(start, closeSpan.End),
		Text:     name,
		Open:     t.span(start, openEnd),
		Close:    closeSpan,
		Closed:   closed,
		Children: children,
	}
}

func (t *tokenizer) readString(quote byte) TokenTree {
	start := t.pos
	t.pos++
	for {
		if t.eof() {
			t.warn(WarnUnterminatedString, start, t.pos)
			return TokenTree{Kind: KindQuotedString, Span: t.span(start, t.pos), Text: unescape(t.src[start+1 : t.pos])}
		}
		c := t.src[t.pos]
		switch {
		case c == quote:
			t.pos++
			return TokenTree{Kind: KindQuotedString, Span: t.span(start, t.pos), Text: unescape(t.src[start+1 : t.pos-1])}
		case c == '\n' || c == '\r' || c == '\f':
			t.warn(WarnBadString, start, t.pos)
			return TokenTree{Kind: KindBadString, Span: t.span(start, t.pos), Text: t.src[start+1 : t.pos]}
		case c == '\\':
			t.pos++
			if t.eof() {
				continue
			}
			if t.src[t.pos] == '\r' && t.peekAt(t.pos+1) == '\n' {
				t.pos += 2
				continue
			}
			_, size := utf8.DecodeRuneInString(t.src[t.pos:])
			t.pos += size
		default:
			_, size := utf8.DecodeRuneInString(t.src[t.pos:])
			t.pos += size
		}
	}
}

func (t *tokenizer) readIdentLike() TokenTree {
	start := t.pos
	name := t.readName()
	if t.peekAt(t.pos) != '(' {
		return TokenTree{Kind: KindIdent, Span: t.span(start, t.pos), Text: name}
	}
	if strings.EqualFold(name, "url") {
		i := t.pos + 1
		for i < len(t.src) && isWhitespace(t.src[i]) {
			i++
		}
		if c := t.peekAt(i); c != '"' && c != '\'' {
			return t.readURL(start)
		}
	}
	return t.readGroup(KindFunction, start, t.pos+1, ')', name)
}

// readURL consumes url(...) without quotes; t.pos is at the open paren.
func (t *tokenizer) readURL(start int) TokenTree {
	t.pos++
	for !t.eof() && isWhitespace(t.src[t.pos]) {
		t.pos++
	}
	contentStart := t.pos
	for {
		if t.eof() {
			t.warn(WarnBadURL, start, t.pos)
			return TokenTree{Kind: KindUnquotedURL, Span: t.span(start, t.pos), Text: unescape(t.src[contentStart:t.pos])}
		}
		c := t.src[t.pos]
		switch {
		case c == ')':
			content := t.src[contentStart:t.pos]
			t.pos++
			return TokenTree{Kind: KindUnquotedURL, Span: t.span(start, t.pos), Text: unescape(strings.TrimRight(content, " \t\n\r\f"))}
		case isWhitespace(c):
			contentEnd := t.pos
			for !t.eof() && isWhitespace(t.src[t.pos]) {
				t.pos++
			}
			if t.eof() || t.src[t.pos] == ')' {
				if !t.eof() {
					t.pos++
				} else {
					t.warn(WarnBadURL, start, t.pos)
				}
				return TokenTree{Kind: KindUnquotedURL, Span: t.span(start, t.pos), Text: unescape(t.src[contentStart:contentEnd])}
			}
			return t.readBadURL(start)
		case c == '"' || c == '\'' || c == '(':
			return t.readBadURL(start)
		case c == '\\':
			if !t.validEscape(t.pos) {
				return t.readBadURL(start)
			}
			t.pos++
			_, size := utf8.DecodeRuneInString(t.src[t.pos:])
			t.pos += size
		default:
			_, size := utf8.DecodeRuneInString(t.src[t.pos:])
			t.pos += size
		}
	}
}

func (t *tokenizer) readBadURL(start int) TokenTree {
	for !t.eof() {
		c := t.src[t.pos]
		if c == ')' {
			t.pos++
			break
		}
		if c == '\\' && t.validEscape(t.pos) {
			t.pos++
		}
		_, size := utf8.DecodeRuneInString(t.src[t.pos:])
		t.pos += size
	}
	t.warn(WarnBadURL, start, t.pos)
	return TokenTree{Kind: KindBadURL, Span: t.span(start, t.pos), Text: t.src[start:t.pos]}
}

func (t *tokenizer) readNumeric() TokenTree {
	start := t.pos
	hasSign := false
	if c := t.src[t.pos]; c == '+' || c == '-' {
		hasSign = true
		t.pos++
	}
	integer := true
	for !t.eof() && isDigit(t.src[t.pos]) {
		t.pos++
	}
	if t.peekAt(t.pos) == '.' && isDigit(t.peekAt(t.pos+1)) {
		integer = false
		t.pos++
		for !t.eof() && isDigit(t.src[t.pos]) {
			t.pos++
		}
	}
	if c := t.peekAt(t.pos); c == 'e' || c == 'E' {
		next := t.peekAt(t.pos + 1)
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(t.peekAt(t.pos+2))) {
			integer = false
			t.pos += 2
			for !t.eof() && isDigit(t.src[t.pos]) {
				t.pos++
			}
		}
	}
	raw := t.src[start:t.pos]
	value, _ := strconv.ParseFloat(raw, 64)
	tree := TokenTree{Kind: KindNumber, Value: value, IsInteger: integer, HasSign: hasSign, Text: raw}
	switch {
	case t.startsIdent(t.pos):
		tree.Kind = KindDimension
		tree.Unit = t.readName()
	case t.peekAt(t.pos) == '%':
		tree.Kind = KindPercentage
		t.pos++
	}
	tree.Span = t.span(start, t.pos)
	return tree
}

// readName consumes name code points and escapes and returns the decoded name.
func (t *tokenizer) readName() string {
	start := t.pos
	escaped := false
loop:
	for !t.eof() {
		c := t.src[t.pos]
		switch {
		case isNameChar(c):
			_, size := utf8.DecodeRuneInString(t.src[t.pos:])
			t.pos += size
		case t.validEscape(t.pos):
			escaped = true
			t.pos++
			t.skipEscapeBody()
		default:
			break loop
		}
	}
	if escaped {
		return unescape(t.src[start:t.pos])
	}
	return t.src[start:t.pos]
}

// skipEscapeBody consumes what follows a backslash: up to six hex digits and one optional
// whitespace, or a single code point.
func (t *tokenizer) skipEscapeBody() {
	if isHex(t.peekAt(t.pos)) {
		for n := 0; n < 6 && isHex(t.peekAt(t.pos)); n++ {
			t.pos++
		}
		if isWhitespace(t.peekAt(t.pos)) {
			t.pos++
		}
		return
	}
	if !t.eof() {
		_, size := utf8.DecodeRuneInString(t.src[t.pos:])
		t.pos += size
	}
}

func (t *tokenizer) validEscape(i int) bool {
	if t.peekAt(i) != '\\' || i+1 >= len(t.src) {
		return false
	}
	c := t.src[i+1]
	return c != '\n' && c != '\r' && c != '\f'
}

func (t *tokenizer) startsIdent(i int) bool {
	c := t.peekAt(i)
	switch {
	case c == '-':
		next := t.peekAt(i + 1)
		return next == '-' || isNameStart(next) || t.validEscape(i+1)
	case c == '\\':
		return t.validEscape(i)
	default:
		return isNameStart(c)
	}
}

func (t *tokenizer) startsNumber(i int) bool {
	c := t.peekAt(i)
	if c == '+' || c == '-' {
		i++
		c = t.peekAt(i)
	}
	if isDigit(c) {
		return true
	}
	return c == '.' && isDigit(t.peekAt(i+1))
}

func unescape(raw string) string {
	if strings.IndexByte(raw, '\\') < 0 {
		return raw
	}
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			b.WriteByte(c)
			continue
		}
		i++
		if raw[i] == '\n' {
			continue
		}
		if raw[i] == '\r' {
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
			continue
		}
		if isHex(raw[i]) {
			j := i
			for j < len(raw) && j-i < 6 && isHex(raw[j]) {
				j++
			}
			code, _ := strconv.ParseUint(raw[i:j], 16, 32)
			r := rune(code)
			if r == 0 || r > utf8.MaxRune || (r >= 0xD800 && r <= 0xDFFF) {
				r = utf8.RuneError
			}
			b.WriteRune(r)
			if j < len(raw) && isWhitespace(raw[j]) {
				j++
			}
			i = j - 1
			continue
		}
		b.WriteByte(raw[i])
	}
	return b.String()
}

func isCloser(c byte) bool {
	return c == ')' || c == ']' || c == '}'
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isNameStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c >= utf8.RuneSelf
}

func isNameChar(c byte) bool {
	return isNameStart(c) || isDigit(c) || c == '-'
}
