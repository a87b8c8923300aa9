package wxss

import (
	"github.com/walteh/wxls/pkg/position"
)

// Kind classifies a TokenTree.
type Kind uint8

const (
	KindIdent Kind = iota
	KindAtKeyword
	KindHash
	KindIDHash
	KindQuotedString
	KindUnquotedURL
	KindNumber
	KindPercentage
	KindDimension
	KindColon
	KindSemicolon
	KindComma
	KindOperator
	KindBadURL
	KindBadString
	KindBadOperator

	// groups
	KindFunction
	KindParen
	KindBracket
	KindBrace
)

var kindNames = [...]string{
	KindIdent:        "Ident",
	KindAtKeyword:    "AtKeyword",
	KindHash:         "Hash",
	KindIDHash:       "IDHash",
	KindQuotedString: "QuotedString",
	KindUnquotedURL:  "UnquotedURL",
	KindNumber:       "Number",
	KindPercentage:   "Percentage",
	KindDimension:    "Dimension",
	KindColon:        "Colon",
	KindSemicolon:    "Semicolon",
	KindComma:        "Comma",
	KindOperator:     "Operator",
	KindBadURL:       "BadURL",
	KindBadString:    "BadString",
	KindBadOperator:  "BadOperator",
	KindFunction:     "Function",
	KindParen:        "Paren",
	KindBracket:      "Bracket",
	KindBrace:        "Brace",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(?)"
}

// Span is a half-open byte span together with its line/column range.
type Span struct {
	Start    int
	End      int
	Location position.Range
}

// TokenTree is one lexeme, or a group that owns the lexemes between its delimiters.
type TokenTree struct {
	Kind Kind
	Span Span

	// Text holds the decoded payload: the identifier, at-keyword or hash name without its
	// sigil, the string or url content, the operator, or the function name.
	Text string

	// numeric payload for Number, Percentage and Dimension
	Value     float64
	IsInteger bool
	HasSign   bool
	Unit      string

	// group payload; Close is empty at the end of input when the group never closed
	Open     Span
	Close    Span
	Closed   bool
	Children []TokenTree
}

func (t *TokenTree) IsGroup() bool {
	return t.Kind >= KindFunction
}

func (t *TokenTree) Location() position.Range {
	return t.Span.Location
}

// IsOperator reports an Operator token with the given text.
func (t *TokenTree) IsOperator(op string) bool {
	return t.Kind == KindOperator && t.Text == op
}

// Adjacent reports that next starts exactly where t ends.
func (t *TokenTree) Adjacent(next *TokenTree) bool {
	return t.Span.End == next.Span.Start
}

// Comment is a /* */ block, kept out of band.
type Comment struct {
	Span Span
	Text string
}

// WarningKind names a locally recoverable problem.
type WarningKind uint8

const (
	WarnUnterminatedComment WarningKind = iota
	WarnUnterminatedString
	WarnBadString
	WarnBadURL
	WarnBadEscape
	WarnUnmatchedClose
	WarnUnclosedGroup
	WarnExpectedSelector
	WarnInvalidSelector
	WarnExpectedPropertyValue
	WarnMissingBody
	WarnExpectedImportURL
	WarnUnexpectedToken
	WarnNestingTooDeep
)

var warningMessages = [...]string{
	WarnUnterminatedComment:   "unterminated comment",
	WarnUnterminatedString:    "unterminated string",
	WarnBadString:             "newline in string",
	WarnBadURL:                "malformed url",
	WarnBadEscape:             "invalid escape",
	WarnUnmatchedClose:        "unmatched closing bracket",
	WarnUnclosedGroup:         "bracket is never closed",
	WarnExpectedSelector:      "expected selector",
	WarnInvalidSelector:       "unrecognized selector",
	WarnExpectedPropertyValue: "expected property value",
	WarnMissingBody:           "expected '{' or ';'",
	WarnExpectedImportURL:     "expected import url",
	WarnUnexpectedToken:       "unexpected token",
	WarnNestingTooDeep:        "blocks nested too deeply",
}

func (k WarningKind) String() string {
	if int(k) < len(warningMessages) {
		return warningMessages[k]
	}
	return "unknown warning"
}

type Warning struct {
	Kind WarningKind
	Span Span
}

func (w Warning) Error() string {
	return w.Span.Location.String() + ": " + w.Kind.String()
}
