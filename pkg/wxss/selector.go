package wxss

func (p *parser) parseSelector(tokens []TokenTree) Selector {
	var sel Selector
	for i := 0; i < len(tokens); {
		seg, n := p.parseSegment(tokens, i)
		sel.Segments = append(sel.Segments, seg)
		i += n
	}
	return sel
}

// parseSegment reads one segment at tokens[i] and returns how many tokens it used.
// Compound parts such as ".name" and ":hover" must be written without whitespace.
func (p *parser) parseSegment(tokens []TokenTree, i int) (Segment, int) {
	t := &tokens[i]
	at := func(k int) *TokenTree {
		if i+k < len(tokens) {
			return &tokens[i+k]
		}
		return nil
	}
	joined := func(a, b *TokenTree) bool {
		return b != nil && a.Adjacent(b)
	}
	single := func(kind SegmentKind) (Segment, int) {
		return Segment{Kind: kind, Tokens: tokens[i : i+1]}, 1
	}

	switch t.Kind {
	case KindIdent:
		return Segment{Kind: SegTagName, Tokens: tokens[i : i+1], Name: t.Text, NameSpan: t.Span}, 1
	case KindIDHash:
		return Segment{Kind: SegID, Tokens: tokens[i : i+1], Name: t.Text, NameSpan: t.Span}, 1
	case KindBracket:
		return Segment{Kind: SegAttribute, Tokens: tokens[i : i+1], Argument: t}, 1
	case KindColon:
		next := at(1)
		if next != nil && next.Kind == KindColon && joined(t, next) {
			if arg := at(2); joined(next, arg) && isPseudoName(arg) {
				return p.pseudoSegment(SegPseudoElement, tokens[i:i+3], arg), 3
			}
			p.warn(WarnInvalidSelector, p.spanOf(t.Span.Start, next.Span.End))
			return Segment{Kind: SegUnknown, Tokens: tokens[i : i+2]}, 2
		}
		if joined(t, next) && isPseudoName(next) {
			return p.pseudoSegment(SegPseudoClass, tokens[i:i+2], next), 2
		}
	case KindOperator:
		switch t.Text {
		case "*":
			return single(SegUniversal)
		case ".":
			if next := at(1); joined(t, next) && next.Kind == KindIdent {
				return Segment{Kind: SegClass, Tokens: tokens[i : i+2], Name: next.Text, NameSpan: next.Span}, 2
			}
		case "+":
			return single(SegNextSibling)
		case ">":
			return single(SegChild)
		case "~":
			return single(SegSubsequentSibling)
		case "|":
			if next := at(1); joined(t, next) && next.IsOperator("|") {
				return Segment{Kind: SegColumn, Tokens: tokens[i : i+2]}, 2
			}
			return single(SegNamespace)
		case "&":
			return single(SegUnknown)
		}
	}
	p.warn(WarnInvalidSelector, t.Span)
	return single(SegUnknown)
}

func isPseudoName(t *TokenTree) bool {
	return t != nil && (t.Kind == KindIdent || t.Kind == KindFunction)
}

func (p *parser) pseudoSegment(kind SegmentKind, tokens []TokenTree, arg *TokenTree) Segment {
	seg := Segment{Kind: kind, Tokens: tokens, Name: arg.Text, NameSpan: arg.Span}
	if arg.Kind == KindFunction {
		seg.Argument = arg
		seg.NameSpan = p.spanOf(arg.Open.Start, arg.Open.End-1)
	}
	return seg
}
