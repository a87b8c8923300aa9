package wxss

import (
	"strings"

	"github.com/walteh/wxls/pkg/position"
)

const maxNesting = 64

// Parse tokenizes and structurally parses a stylesheet.
func Parse(src string) *StyleSheet {
	return ParseIndexed(src, position.NewIndex(src))
}

// ParseIndexed is Parse with a prebuilt index over src.
func ParseIndexed(src string, ix *position.Index) *StyleSheet {
	stream := TokenizeIndexed(src, ix)
	p := &parser{src: src, ix: ix, warnings: stream.Warnings}
	items := p.parseItems(stream.Trees)
	return &StyleSheet{
		Items:    items,
		Comments: stream.Comments,
		Warnings: p.warnings,
		Index:    ix,
		Source:   src,
	}
}

type parser struct {
	src      string
	ix       *position.Index
	warnings []Warning
	depth    int
}

func (p *parser) warn(kind WarningKind, span Span) {
	p.warnings = append(p.warnings, Warning{Kind: kind, Span: span})
}

func (p *parser) spanOf(start, end int) Span {
	return Span{Start: start, End: end, Location: p.ix.RangeFor(start, end)}
}

// untilBody splits trees at the first semicolon or brace at or after from.
func untilBody(trees []TokenTree, from int) (head []TokenTree, term *TokenTree, next int) {
	for i := from; i < len(trees); i++ {
		if k := trees[i].Kind; k == KindSemicolon || k == KindBrace {
			return trees[from:i], &trees[i], i + 1
		}
	}
	return trees[from:], nil, len(trees)
}

func (p *parser) parseItems(trees []TokenTree) []Item {
	var items []Item
	for i := 0; i < len(trees); {
		t := &trees[i]
		switch t.Kind {
		case KindSemicolon:
			items = append(items, Item{Kind: ItemUnknown, Tokens: trees[i : i+1]})
			i++
			continue
		case KindAtKeyword:
			item, next := p.parseAtRule(trees, i)
			items = append(items, item)
			i = next
			continue
		}

		head, term, next := untilBody(trees, i)
		i = next
		if term != nil && term.Kind == KindBrace {
			rule := p.parseRuleHead(head, term.Open)
			rule.Body = p.parseItemBlock(term)
			items = append(items, Item{Kind: ItemStyle, Style: rule})
			continue
		}
		if len(head) >= 2 && head[0].Kind == KindIdent && head[1].Kind == KindColon {
			items = append(items, Item{Kind: ItemProperty, Property: p.parseProperty(head, term)})
			continue
		}
		rule := p.parseRuleHead(head, head[len(head)-1].Span)
		if term != nil {
			rule.Body = semicolonBlock[Item](term)
		} else {
			p.warn(WarnMissingBody, head[len(head)-1].Span)
		}
		items = append(items, Item{Kind: ItemStyle, Style: rule})
	}
	return items
}

func semicolonBlock[T any](semi *TokenTree) *Block[T] {
	return &Block[T]{Kind: BodySemicolon, Open: semi.Span, Close: semi.Span}
}

func (p *parser) parseItemBlock(brace *TokenTree) *Block[Item] {
	b := &Block[Item]{Kind: BodyBrace, Open: brace.Open, Close: brace.Close}
	if p.depth >= maxNesting {
		b.Kind = BodyUnknownBrace
		b.Trailing = brace.Children
		p.warn(WarnNestingTooDeep, brace.Open)
		return b
	}
	p.depth++
	b.Content = p.parseItems(brace.Children)
	p.depth--
	return b
}

func (p *parser) parseProperty(head []TokenTree, semi *TokenTree) *Property {
	prop := &Property{
		Name:      head[0],
		Colon:     head[1],
		Value:     head[2:],
		Semicolon: semi,
	}
	if len(prop.Value) == 0 {
		p.warn(WarnExpectedPropertyValue, prop.Colon.Span)
	}
	return prop
}

// parseRuleHead splits a selector list on top level commas. at is where an empty list is
// reported.
func (p *parser) parseRuleHead(head []TokenTree, at Span) *StyleRule {
	rule := &StyleRule{}
	if len(head) == 0 {
		p.warn(WarnExpectedSelector, at)
		return rule
	}
	start := 0
	for i := range head {
		if head[i].Kind != KindComma {
			continue
		}
		if i == start {
			p.warn(WarnExpectedSelector, head[i].Span)
		}
		rule.Selectors = append(rule.Selectors, p.parseSelector(head[start:i]))
		rule.Commas = append(rule.Commas, head[i])
		start = i + 1
	}
	if start == len(head) {
		p.warn(WarnExpectedSelector, head[len(head)-1].Span)
	}
	rule.Selectors = append(rule.Selectors, p.parseSelector(head[start:]))
	rule.SelectorText = strings.Join(strings.Fields(p.src[head[0].Span.Start:head[len(head)-1].Span.End]), " ")
	return rule
}

func (p *parser) parseAtRule(trees []TokenTree, at int) (Item, int) {
	kw := &trees[at]
	switch strings.ToLower(kw.Text) {
	case "import":
		rule, next := p.parseImport(trees, at)
		return Item{Kind: ItemImport, Import: rule}, next
	case "media":
		rule, next := p.parseMedia(trees, at)
		return Item{Kind: ItemMedia, Media: rule}, next
	case "font-face":
		rule, next := p.parseFontFace(trees, at)
		return Item{Kind: ItemFontFace, FontFace: rule}, next
	case "keyframes", "-webkit-keyframes":
		rule, next := p.parseKeyframes(trees, at)
		return Item{Kind: ItemKeyframes, Keyframes: rule}, next
	}
	_, _, next := untilBody(trees, at+1)
	return Item{Kind: ItemUnknownAtRule, AtKeyword: kw, Tokens: trees[at+1 : next]}, next
}

func (p *parser) parseImport(trees []TokenTree, at int) (*ImportRule, int) {
	head, term, next := untilBody(trees, at+1)
	rule := &ImportRule{AtImport: trees[at]}
	if len(head) > 0 && isImportURL(&head[0]) {
		rule.URL = &head[0]
		rule.Condition = head[1:]
	} else {
		rule.Condition = head
		p.warn(WarnExpectedImportURL, rule.AtImport.Span)
	}
	switch {
	case term == nil:
	case term.Kind == KindSemicolon:
		rule.Semicolon = term
	default:
		p.warn(WarnUnexpectedToken, term.Open)
		rule.Body = &Block[Item]{Kind: BodyUnknownBrace, Open: term.Open, Close: term.Close, Trailing: term.Children}
	}
	return rule, next
}

func isImportURL(t *TokenTree) bool {
	switch t.Kind {
	case KindQuotedString, KindUnquotedURL:
		return true
	case KindFunction:
		return strings.EqualFold(t.Text, "url")
	}
	return false
}

func (p *parser) parseMedia(trees []TokenTree, at int) (*MediaRule, int) {
	head, term, next := untilBody(trees, at+1)
	rule := &MediaRule{AtMedia: trees[at], Query: p.parseMediaQueryList(head)}
	rule.Body = p.ruleBody(&rule.AtMedia, term)
	return rule, next
}

func (p *parser) parseFontFace(trees []TokenTree, at int) (*FontFaceRule, int) {
	head, term, next := untilBody(trees, at+1)
	rule := &FontFaceRule{AtFontFace: trees[at], Prelude: head}
	if len(head) > 0 {
		p.warn(WarnUnexpectedToken, head[0].Span)
	}
	rule.Body = p.ruleBody(&rule.AtFontFace, term)
	return rule, next
}

func (p *parser) ruleBody(kw *TokenTree, term *TokenTree) *Block[Item] {
	switch {
	case term == nil:
		p.warn(WarnMissingBody, kw.Span)
		return nil
	case term.Kind == KindSemicolon:
		return semicolonBlock[Item](term)
	default:
		return p.parseItemBlock(term)
	}
}
