package wxss

import (
	"github.com/walteh/wxls/pkg/position"
)

// ForEachStyleRule visits style rules in document order, including rules nested in
// other rules and in @media bodies.
func ForEachStyleRule(sheet *StyleSheet, fn func(rule *StyleRule)) {
	forEachStyleRule(sheet.Items, fn)
}

func forEachStyleRule(items []Item, fn func(rule *StyleRule)) {
	for i := range items {
		item := &items[i]
		switch item.Kind {
		case ItemStyle:
			fn(item.Style)
			if b := item.Style.Body; b != nil && b.Kind == BodyBrace {
				forEachStyleRule(b.Content, fn)
			}
		case ItemMedia:
			if b := item.Media.Body; b != nil && b.Kind == BodyBrace {
				forEachStyleRule(b.Content, fn)
			}
		}
	}
}

// ForEachClassName visits every class segment of every selector.
func ForEachClassName(sheet *StyleSheet, fn func(name string, loc position.Range)) {
	ForEachStyleRule(sheet, func(rule *StyleRule) {
		for _, sel := range rule.Selectors {
			for i := range sel.Segments {
				seg := &sel.Segments[i]
				if seg.Kind == SegClass && seg.Name != "" {
					fn(seg.Name, seg.NameSpan.Location)
				}
			}
		}
	})
}

// Imports returns the top level @import rules that name a url.
func Imports(sheet *StyleSheet) []*ImportRule {
	var out []*ImportRule
	for i := range sheet.Items {
		if sheet.Items[i].Kind == ItemImport && sheet.Items[i].Import.URLText() != "" {
			out = append(out, sheet.Items[i].Import)
		}
	}
	return out
}
