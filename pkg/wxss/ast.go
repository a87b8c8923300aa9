package wxss

import (
	"github.com/walteh/wxls/pkg/position"
)

// StyleSheet is a parsed stylesheet. Parsing never fails; whatever the parser did not
// recognize is kept as Unknown items or segments so that it can still be walked.
type StyleSheet struct {
	Items    []Item
	Comments []Comment
	Warnings []Warning
	Index    *position.Index
	Source   string
}

type ItemKind uint8

const (
	ItemUnknown ItemKind = iota
	ItemProperty
	ItemStyle
	ItemImport
	ItemMedia
	ItemFontFace
	ItemKeyframes
	ItemUnknownAtRule
)

// Item is one top level or nested entry. Exactly one payload matches Kind: Tokens for
// ItemUnknown, AtKeyword and Tokens for ItemUnknownAtRule, and the named rule otherwise.
type Item struct {
	Kind      ItemKind
	Tokens    []TokenTree
	AtKeyword *TokenTree
	Property  *Property
	Style     *StyleRule
	Import    *ImportRule
	Media     *MediaRule
	FontFace  *FontFaceRule
	Keyframes *KeyframesRule
}

type BodyKind uint8

const (
	// BodyBrace is a brace group parsed into Content.
	BodyBrace BodyKind = iota
	// BodySemicolon ends a rule head without a body; Open and Close are the semicolon.
	BodySemicolon
	// BodyUnknownBrace is a brace group left unparsed in Trailing.
	BodyUnknownBrace
)

// Block is the body of a rule head: a brace group, a semicolon, or an unparsed brace.
// An absent body is a nil *Block.
type Block[T any] struct {
	Kind     BodyKind
	Open     Span
	Close    Span
	Content  []T
	Trailing []TokenTree
}

func (b *Block[T]) Location() position.Range {
	return position.Range{Start: b.Open.Location.Start, End: b.Close.Location.End}
}

type Property struct {
	Name      TokenTree
	Colon     TokenTree
	Value     []TokenTree
	Semicolon *TokenTree
}

type StyleRule struct {
	Selectors []Selector
	Commas    []TokenTree
	// SelectorText is the selector list source with whitespace collapsed.
	SelectorText string
	Body         *Block[Item]
}

type Selector struct {
	Segments []Segment
}

type SegmentKind uint8

const (
	SegUnknown SegmentKind = iota
	SegUniversal
	SegTagName
	SegID
	SegClass
	SegAttribute
	SegNextSibling
	SegChild
	SegColumn
	SegSubsequentSibling
	SegNamespace
	SegPseudoClass
	SegPseudoElement
)

func (k SegmentKind) IsCombinator() bool {
	switch k {
	case SegNextSibling, SegChild, SegColumn, SegSubsequentSibling, SegNamespace:
		return true
	}
	return false
}

// Segment is one compound piece of a selector. Tokens are the source tokens it was built
// from; Argument is the attribute bracket or the pseudo function, if any.
type Segment struct {
	Kind     SegmentKind
	Tokens   []TokenTree
	Name     string
	NameSpan Span
	Argument *TokenTree
}

func (s *Segment) Location() position.Range {
	if len(s.Tokens) == 0 {
		return position.Range{}
	}
	return position.Range{
		Start: s.Tokens[0].Span.Location.Start,
		End:   s.Tokens[len(s.Tokens)-1].Span.Location.End,
	}
}

type ImportRule struct {
	AtImport  TokenTree
	URL       *TokenTree
	Condition []TokenTree
	Semicolon *TokenTree
	Body      *Block[Item]
}

// URLText returns the imported path for quoted, unquoted and url("...") forms.
func (r *ImportRule) URLText() string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Kind == KindFunction {
		for _, c := range r.URL.Children {
			if c.Kind == KindQuotedString {
				return c.Text
			}
		}
		return ""
	}
	return r.URL.Text
}

type MediaRule struct {
	AtMedia TokenTree
	Query   MediaQuery
	Body    *Block[Item]
}

type MediaQueryKind uint8

const (
	MediaUnknown MediaQueryKind = iota
	MediaType
	MediaFeature
	MediaSub
	MediaAnd
	MediaOr
	MediaNot
	MediaOnly
	MediaEmpty
)

// MediaQuery is a node of a media query list. And/Or nodes hold their operands in
// Children and the joining keywords (or commas) in Operators; Not/Only hold one child.
type MediaQuery struct {
	Kind      MediaQueryKind
	Keyword   *TokenTree
	Ident     *TokenTree
	Paren     *TokenTree
	Feature   *Feature
	Children  []MediaQuery
	Operators []TokenTree
	Tokens    []TokenTree
}

// Feature is a "(name)" or "(name: value)" test.
type Feature struct {
	Name  TokenTree
	Colon *TokenTree
	Value []TokenTree
}

type FontFaceRule struct {
	AtFontFace TokenTree
	Prelude    []TokenTree
	Body       *Block[Item]
}

type KeyframesRule struct {
	AtKeyframes TokenTree
	Name        *TokenTree
	Prelude     []TokenTree
	Body        *Block[Keyframe]
}

// Keyframe is one "from, 50% { ... }" entry. Selectors holds the progress tokens without
// the separating commas.
type Keyframe struct {
	Selectors []TokenTree
	Commas    []TokenTree
	Body      *Block[Item]
}
