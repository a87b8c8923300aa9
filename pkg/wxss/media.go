package wxss

import (
	"strings"
)

// parseMediaQueryList reads the prelude of @media. Commas join queries like "or".
func (p *parser) parseMediaQueryList(tokens []TokenTree) MediaQuery {
	var parts [][]TokenTree
	var commas []TokenTree
	start := 0
	for i := range tokens {
		if tokens[i].Kind == KindComma {
			parts = append(parts, tokens[start:i])
			commas = append(commas, tokens[i])
			start = i + 1
		}
	}
	parts = append(parts, tokens[start:])
	if len(parts) == 1 {
		return p.parseMediaQuery(parts[0])
	}
	q := MediaQuery{Kind: MediaOr, Operators: commas}
	for _, part := range parts {
		q.Children = append(q.Children, p.parseMediaQuery(part))
	}
	return q
}

func isKeyword(t *TokenTree, words ...string) bool {
	if t.Kind != KindIdent {
		return false
	}
	for _, w := range words {
		if strings.EqualFold(t.Text, w) {
			return true
		}
	}
	return false
}

func (p *parser) parseMediaQuery(tokens []TokenTree) MediaQuery {
	if len(tokens) == 0 {
		return MediaQuery{Kind: MediaEmpty}
	}
	if isKeyword(&tokens[0], "not", "only") {
		kind := MediaNot
		if isKeyword(&tokens[0], "only") {
			kind = MediaOnly
		}
		return MediaQuery{
			Kind:     kind,
			Keyword:  &tokens[0],
			Children: []MediaQuery{p.parseMediaCondition(tokens[1:])},
		}
	}
	return p.parseMediaCondition(tokens)
}

// parseMediaCondition splits on "and" / "or"; the first joining keyword decides the kind.
func (p *parser) parseMediaCondition(tokens []TokenTree) MediaQuery {
	kind := MediaUnknown
	var operands [][]TokenTree
	var ops []TokenTree
	start := 0
	for i := range tokens {
		if !isKeyword(&tokens[i], "and", "or") {
			continue
		}
		if kind == MediaUnknown {
			kind = MediaAnd
			if isKeyword(&tokens[i], "or") {
				kind = MediaOr
			}
		}
		operands = append(operands, tokens[start:i])
		ops = append(ops, tokens[i])
		start = i + 1
	}
	if len(ops) == 0 {
		return p.parseMediaTerm(tokens)
	}
	operands = append(operands, tokens[start:])
	q := MediaQuery{Kind: kind, Operators: ops}
	for _, o := range operands {
		q.Children = append(q.Children, p.parseMediaTerm(o))
	}
	return q
}

func (p *parser) parseMediaTerm(tokens []TokenTree) MediaQuery {
	switch {
	case len(tokens) == 0:
		return MediaQuery{Kind: MediaEmpty}
	case len(tokens) != 1:
		return MediaQuery{Kind: MediaUnknown, Tokens: tokens}
	}
	t := &tokens[0]
	switch t.Kind {
	case KindIdent:
		return MediaQuery{Kind: MediaType, Ident: t}
	case KindParen:
		return p.parseMediaParen(t)
	}
	return MediaQuery{Kind: MediaUnknown, Tokens: tokens}
}

func (p *parser) parseMediaParen(paren *TokenTree) MediaQuery {
	c := paren.Children
	switch {
	case len(c) == 0:
		return MediaQuery{Kind: MediaEmpty, Paren: paren}
	case len(c) == 1 && c[0].Kind == KindIdent:
		return MediaQuery{Kind: MediaFeature, Paren: paren, Feature: &Feature{Name: c[0]}}
	case len(c) >= 2 && c[0].Kind == KindIdent && c[1].Kind == KindColon:
		return MediaQuery{Kind: MediaFeature, Paren: paren, Feature: &Feature{Name: c[0], Colon: &c[1], Value: c[2:]}}
	}
	for i := range c {
		if isKeyword(&c[i], "and", "or", "not", "only") {
			return MediaQuery{Kind: MediaSub, Paren: paren, Children: []MediaQuery{p.parseMediaQuery(c)}}
		}
	}
	return MediaQuery{Kind: MediaUnknown, Paren: paren, Tokens: c}
}
