package wxss

func (p *parser) parseKeyframes(trees []TokenTree, at int) (*KeyframesRule, int) {
	head, term, next := untilBody(trees, at+1)
	rule := &KeyframesRule{AtKeyframes: trees[at]}
	if len(head) > 0 && (head[0].Kind == KindIdent || head[0].Kind == KindQuotedString) {
		rule.Name = &head[0]
		head = head[1:]
	}
	rule.Prelude = head
	if len(head) > 0 {
		p.warn(WarnUnexpectedToken, head[0].Span)
	}
	switch {
	case term == nil:
		p.warn(WarnMissingBody, rule.AtKeyframes.Span)
	case term.Kind == KindSemicolon:
		rule.Body = semicolonBlock[Keyframe](term)
	default:
		rule.Body = p.parseKeyframeBlock(term)
	}
	return rule, next
}

func (p *parser) parseKeyframeBlock(brace *TokenTree) *Block[Keyframe] {
	b := &Block[Keyframe]{Kind: BodyBrace, Open: brace.Open, Close: brace.Close}
	children := brace.Children
	start := 0
	for i := range children {
		if children[i].Kind != KindBrace {
			continue
		}
		kf := Keyframe{Body: p.parseItemBlock(&children[i])}
		for j := start; j < i; j++ {
			if children[j].Kind == KindComma {
				kf.Commas = append(kf.Commas, children[j])
				continue
			}
			if k := children[j].Kind; k != KindIdent && k != KindPercentage {
				p.warn(WarnUnexpectedToken, children[j].Span)
			}
			kf.Selectors = append(kf.Selectors, children[j])
		}
		b.Content = append(b.Content, kf)
		start = i + 1
	}
	if start < len(children) {
		b.Trailing = children[start:]
		p.warn(WarnUnexpectedToken, children[start].Span)
	}
	return b
}
