package wxss

import (
	"github.com/walteh/wxls/pkg/position"
)

// TokenKind classifies what sits under a cursor in a stylesheet.
type TokenKind uint8

const (
	TokenNone TokenKind = iota
	TokenKeyword
	TokenIdent
	TokenAtKeyword
	TokenHash
	TokenIDHash
	TokenQuotedString
	TokenUnquotedURL
	TokenFunction
	TokenParen
	TokenBracket
	TokenBrace
	TokenBadURL
	TokenBadString
	TokenTagName
	TokenID
	TokenClass
	TokenPseudoClass
	TokenPseudoElement
	TokenPropertyName
	TokenPropertyValue
	TokenStyleRuleUnknownIdent
	TokenFontFacePropertyName
	TokenMediaType
	TokenMediaFeatureName
	TokenMediaQueryUnknownParen
	TokenKeyframesName
	TokenKeyframeProgressName
	TokenKeyframeProgressPercentage
	TokenImportURL
)

var tokenKindNames = [...]string{
	TokenNone:                       "None",
	TokenKeyword:                    "Keyword",
	TokenIdent:                      "Ident",
	TokenAtKeyword:                  "AtKeyword",
	TokenHash:                       "Hash",
	TokenIDHash:                     "IDHash",
	TokenQuotedString:               "QuotedString",
	TokenUnquotedURL:                "UnquotedURL",
	TokenFunction:                   "Function",
	TokenParen:                      "Paren",
	TokenBracket:                    "Bracket",
	TokenBrace:                      "Brace",
	TokenBadURL:                     "BadURL",
	TokenBadString:                  "BadString",
	TokenTagName:                    "TagName",
	TokenID:                         "ID",
	TokenClass:                      "Class",
	TokenPseudoClass:                "PseudoClass",
	TokenPseudoElement:              "PseudoElement",
	TokenPropertyName:               "PropertyName",
	TokenPropertyValue:              "PropertyValue",
	TokenStyleRuleUnknownIdent:      "StyleRuleUnknownIdent",
	TokenFontFacePropertyName:       "FontFacePropertyName",
	TokenMediaType:                  "MediaType",
	TokenMediaFeatureName:           "MediaFeatureName",
	TokenMediaQueryUnknownParen:     "MediaQueryUnknownParen",
	TokenKeyframesName:              "KeyframesName",
	TokenKeyframeProgressName:       "KeyframeProgressName",
	TokenKeyframeProgressPercentage: "KeyframeProgressPercentage",
	TokenImportURL:                  "ImportURL",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return "TokenKind(?)"
}

// Token is the classification of a cursor position. Location always contains the
// queried position. Property is set for tokens inside a declaration value.
type Token struct {
	Kind     TokenKind
	Name     string
	Location position.Range
	Property string
}

// Resolve classifies the construct at p.
func Resolve(sheet *StyleSheet, p position.Place) Token {
	if tok := findInItems(sheet.Items, p, TokenPropertyName); tok != nil {
		return *tok
	}
	return Token{Kind: TokenNone, Location: position.Range{Start: p, End: p}}
}

func token(kind TokenKind, name string, loc position.Range) *Token {
	return &Token{Kind: kind, Name: name, Location: loc}
}

func findInItems(items []Item, p position.Place, propKind TokenKind) *Token {
	for i := range items {
		if tok := findInItem(&items[i], p, propKind); tok != nil {
			return tok
		}
	}
	return nil
}

func findInItem(item *Item, p position.Place, propKind TokenKind) *Token {
	switch item.Kind {
	case ItemUnknown:
		if len(item.Tokens) > 0 && item.Tokens[0].Kind == KindIdent && item.Tokens[0].Location().ContainsInclusive(p) {
			return token(TokenStyleRuleUnknownIdent, item.Tokens[0].Text, item.Tokens[0].Location())
		}
		return findInTreeList(item.Tokens, p)
	case ItemProperty:
		return findInProperty(item.Property, p, propKind)
	case ItemStyle:
		return findInStyleRule(item.Style, p)
	case ItemImport:
		return findInImport(item.Import, p)
	case ItemMedia:
		return findInMedia(item.Media, p)
	case ItemFontFace:
		return findInFontFace(item.FontFace, p)
	case ItemKeyframes:
		return findInKeyframes(item.Keyframes, p)
	case ItemUnknownAtRule:
		if item.AtKeyword.Location().ContainsInclusive(p) {
			return token(TokenAtKeyword, item.AtKeyword.Text, item.AtKeyword.Location())
		}
		return findInTreeList(item.Tokens, p)
	}
	return nil
}

func findInProperty(prop *Property, p position.Place, nameKind TokenKind) *Token {
	if prop.Name.Location().ContainsInclusive(p) {
		return token(nameKind, prop.Name.Text, prop.Name.Location())
	}
	if prop.Colon.Location().ContainsExclusive(p) {
		return token(TokenNone, "", prop.Colon.Location())
	}
	if tok := findInTreeList(prop.Value, p); tok != nil {
		if tok.Kind == TokenIdent {
			tok.Kind = TokenPropertyValue
		}
		tok.Property = prop.Name.Text
		return tok
	}
	if prop.Semicolon != nil && prop.Semicolon.Location().ContainsExclusive(p) {
		return token(TokenNone, "", prop.Semicolon.Location())
	}
	return nil
}

func findInStyleRule(rule *StyleRule, p position.Place) *Token {
	for i := range rule.Selectors {
		for j := range rule.Selectors[i].Segments {
			if tok := findInSegment(&rule.Selectors[i].Segments[j], p); tok != nil {
				return tok
			}
		}
	}
	for i := range rule.Commas {
		if rule.Commas[i].Location().ContainsExclusive(p) {
			return token(TokenNone, "", rule.Commas[i].Location())
		}
	}
	return findInItemBlock(rule.Body, p, TokenPropertyName)
}

func findInSegment(seg *Segment, p position.Place) *Token {
	loc := seg.Location()
	switch seg.Kind {
	case SegUniversal, SegNextSibling, SegChild, SegColumn, SegSubsequentSibling, SegNamespace:
		if loc.ContainsExclusive(p) {
			return token(TokenNone, "", loc)
		}
	case SegTagName:
		if loc.ContainsInclusive(p) {
			return token(TokenTagName, seg.Name, loc)
		}
	case SegID:
		if loc.ContainsInclusive(p) {
			return token(TokenID, seg.Name, loc)
		}
	case SegClass:
		if loc.ContainsInclusive(p) {
			return token(TokenClass, seg.Name, loc)
		}
	case SegPseudoClass, SegPseudoElement:
		kind := TokenPseudoClass
		if seg.Kind == SegPseudoElement {
			kind = TokenPseudoElement
		}
		if seg.Argument == nil {
			if loc.ContainsInclusive(p) {
				return token(kind, seg.Name, loc)
			}
			return nil
		}
		if !loc.ContainsInclusive(p) {
			return nil
		}
		if p.Compare(seg.Argument.Open.Location.End) < 0 {
			return token(kind, seg.Name, seg.NameSpan.Location.Union(seg.Tokens[0].Location()))
		}
		if tok := findInTreeList(seg.Argument.Children, p); tok != nil {
			return tok
		}
		return token(TokenFunction, seg.Name, seg.Argument.Location())
	case SegAttribute:
		if tok := findInTreeList(seg.Argument.Children, p); tok != nil {
			return tok
		}
		if loc.ContainsExclusive(p) {
			return token(TokenBracket, "", loc)
		}
	case SegUnknown:
		return findInTreeList(seg.Tokens, p)
	}
	return nil
}

// findInItemBlock searches a body. A cursor inside the braces that hits nothing stops the
// search with TokenNone so that outer constructs do not claim it.
func findInItemBlock(b *Block[Item], p position.Place, propKind TokenKind) *Token {
	if b == nil {
		return nil
	}
	loc := b.Location()
	if b.Kind == BodySemicolon {
		if loc.ContainsExclusive(p) {
			return token(TokenNone, "", loc)
		}
		return nil
	}
	if !loc.ContainsInclusive(p) {
		return nil
	}
	if tok := findInItems(b.Content, p, propKind); tok != nil {
		return tok
	}
	if tok := findInTreeList(b.Trailing, p); tok != nil {
		return tok
	}
	if loc.ContainsExclusive(p) {
		return token(TokenNone, "", loc)
	}
	return nil
}

func findInImport(rule *ImportRule, p position.Place) *Token {
	if rule.AtImport.Location().ContainsInclusive(p) {
		return token(TokenKeyword, rule.AtImport.Text, rule.AtImport.Location())
	}
	if rule.URL != nil && rule.URL.Location().ContainsInclusive(p) {
		return token(TokenImportURL, rule.URLText(), rule.URL.Location())
	}
	if tok := findInTreeList(rule.Condition, p); tok != nil {
		return tok
	}
	return findInItemBlock(rule.Body, p, TokenPropertyName)
}

func findInMedia(rule *MediaRule, p position.Place) *Token {
	if rule.AtMedia.Location().ContainsInclusive(p) {
		return token(TokenKeyword, rule.AtMedia.Text, rule.AtMedia.Location())
	}
	if tok := findInMediaQuery(&rule.Query, p); tok != nil {
		return tok
	}
	return findInItemBlock(rule.Body, p, TokenPropertyName)
}

func findInMediaQuery(q *MediaQuery, p position.Place) *Token {
	if q.Keyword != nil && q.Keyword.Location().ContainsInclusive(p) {
		return token(TokenKeyword, q.Keyword.Text, q.Keyword.Location())
	}
	for i := range q.Operators {
		op := &q.Operators[i]
		if op.Kind == KindIdent && op.Location().ContainsInclusive(p) {
			return token(TokenKeyword, op.Text, op.Location())
		}
	}
	switch q.Kind {
	case MediaType:
		if q.Ident.Location().ContainsInclusive(p) {
			return token(TokenMediaType, q.Ident.Text, q.Ident.Location())
		}
		return nil
	case MediaFeature:
		if q.Feature.Name.Location().ContainsInclusive(p) {
			return token(TokenMediaFeatureName, q.Feature.Name.Text, q.Feature.Name.Location())
		}
		if tok := findInTreeList(q.Feature.Value, p); tok != nil {
			return tok
		}
		if q.Paren.Location().ContainsExclusive(p) {
			return token(TokenNone, "", q.Paren.Location())
		}
		return nil
	case MediaUnknown:
		if q.Paren != nil {
			if tok := findInTreeList(q.Paren.Children, p); tok != nil {
				return tok
			}
			if q.Paren.Location().ContainsExclusive(p) {
				return token(TokenMediaQueryUnknownParen, "", q.Paren.Location())
			}
			return nil
		}
		return findInTreeList(q.Tokens, p)
	case MediaEmpty:
		if q.Paren != nil && q.Paren.Location().ContainsExclusive(p) {
			return token(TokenMediaQueryUnknownParen, "", q.Paren.Location())
		}
		return nil
	}
	for i := range q.Children {
		if tok := findInMediaQuery(&q.Children[i], p); tok != nil {
			return tok
		}
	}
	if q.Paren != nil && q.Paren.Location().ContainsExclusive(p) {
		return token(TokenNone, "", q.Paren.Location())
	}
	return nil
}

func findInFontFace(rule *FontFaceRule, p position.Place) *Token {
	if rule.AtFontFace.Location().ContainsInclusive(p) {
		return token(TokenKeyword, rule.AtFontFace.Text, rule.AtFontFace.Location())
	}
	if tok := findInTreeList(rule.Prelude, p); tok != nil {
		return tok
	}
	return findInItemBlock(rule.Body, p, TokenFontFacePropertyName)
}

func findInKeyframes(rule *KeyframesRule, p position.Place) *Token {
	if rule.AtKeyframes.Location().ContainsInclusive(p) {
		return token(TokenKeyword, rule.AtKeyframes.Text, rule.AtKeyframes.Location())
	}
	if rule.Name != nil && rule.Name.Location().ContainsInclusive(p) {
		return token(TokenKeyframesName, rule.Name.Text, rule.Name.Location())
	}
	if tok := findInTreeList(rule.Prelude, p); tok != nil {
		return tok
	}
	b := rule.Body
	if b == nil {
		return nil
	}
	loc := b.Location()
	if b.Kind == BodySemicolon {
		if loc.ContainsExclusive(p) {
			return token(TokenNone, "", loc)
		}
		return nil
	}
	if !loc.ContainsInclusive(p) {
		return nil
	}
	for i := range b.Content {
		if tok := findInKeyframe(&b.Content[i], p); tok != nil {
			return tok
		}
	}
	if tok := findInTreeList(b.Trailing, p); tok != nil {
		return tok
	}
	if loc.ContainsExclusive(p) {
		return token(TokenNone, "", loc)
	}
	return nil
}

func findInKeyframe(kf *Keyframe, p position.Place) *Token {
	for i := range kf.Selectors {
		sel := &kf.Selectors[i]
		if !sel.Location().ContainsInclusive(p) {
			continue
		}
		switch sel.Kind {
		case KindIdent:
			return token(TokenKeyframeProgressName, sel.Text, sel.Location())
		case KindPercentage:
			return token(TokenKeyframeProgressPercentage, sel.Text, sel.Location())
		}
		if tok := findInTree(sel, p); tok != nil {
			return tok
		}
	}
	return findInItemBlock(kf.Body, p, TokenPropertyName)
}

// findInTreeList returns the token of the tree holding p. A position strictly inside the
// list but between trees yields TokenNone.
func findInTreeList(trees []TokenTree, p position.Place) *Token {
	for i := range trees {
		if tok := findInTree(&trees[i], p); tok != nil {
			return tok
		}
	}
	if len(trees) == 0 {
		return nil
	}
	span := position.Range{Start: trees[0].Location().Start, End: trees[len(trees)-1].Location().End}
	if span.ContainsExclusive(p) {
		return token(TokenNone, "", span)
	}
	return nil
}

func findInTree(t *TokenTree, p position.Place) *Token {
	loc := t.Location()
	switch t.Kind {
	case KindIdent, KindAtKeyword, KindHash, KindIDHash, KindQuotedString, KindUnquotedURL, KindBadURL, KindBadString:
		if loc.ContainsInclusive(p) {
			return token(leafTokenKind[t.Kind], t.Text, loc)
		}
	case KindNumber, KindPercentage, KindDimension, KindColon, KindSemicolon, KindComma, KindOperator, KindBadOperator:
		if loc.ContainsExclusive(p) {
			return token(TokenNone, "", loc)
		}
	case KindFunction:
		if !loc.ContainsInclusive(p) {
			return nil
		}
		if tok := findInGroup(t, p); tok != nil {
			return tok
		}
		return token(TokenFunction, t.Text, loc)
	case KindParen, KindBracket, KindBrace:
		if !loc.ContainsExclusive(p) {
			return nil
		}
		if tok := findInGroup(t, p); tok != nil {
			return tok
		}
		return token(leafTokenKind[t.Kind], "", loc)
	}
	return nil
}

func findInGroup(t *TokenTree, p position.Place) *Token {
	return findInTreeList(t.Children, p)
}

var leafTokenKind = map[Kind]TokenKind{
	KindIdent:        TokenIdent,
	KindAtKeyword:    TokenAtKeyword,
	KindHash:         TokenHash,
	KindIDHash:       TokenIDHash,
	KindQuotedString: TokenQuotedString,
	KindUnquotedURL:  TokenUnquotedURL,
	KindBadURL:       TokenBadURL,
	KindBadString:    TokenBadString,
	KindParen:        TokenParen,
	KindBracket:      TokenBracket,
	KindBrace:        TokenBrace,
}
