package wxss_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/wxls/pkg/wxss"
)

const fixtureSheet = `.a, .b > c:hover::before, #id [x=y] { color: red; .n { top: 0 } }
@import "x.wxss";
@media screen and (min-width: 100px) { a { b: c } }
@font-face { font-family: x; }
@keyframes spin { from { x: y } 50% { } }
@foo bar;
`

func segmentKinds(sel wxss.Selector) []wxss.SegmentKind {
	out := make([]wxss.SegmentKind, 0, len(sel.Segments))
	for _, s := range sel.Segments {
		out = append(out, s.Kind)
	}
	return out
}

func TestParseItems(t *testing.T) {
	sheet := wxss.Parse(fixtureSheet)

	kinds := make([]wxss.ItemKind, 0, len(sheet.Items))
	for _, it := range sheet.Items {
		kinds = append(kinds, it.Kind)
	}
	assert.Equal(t, []wxss.ItemKind{
		wxss.ItemStyle,
		wxss.ItemImport,
		wxss.ItemMedia,
		wxss.ItemFontFace,
		wxss.ItemKeyframes,
		wxss.ItemUnknownAtRule,
	}, kinds)
	assert.Empty(t, sheet.Warnings, "fixture is well formed")

	t.Run("test_style_rule", func(t *testing.T) {
		rule := sheet.Items[0].Style
		require.Len(t, rule.Selectors, 3)
		assert.Equal(t, ".a, .b > c:hover::before, #id [x=y]", rule.SelectorText)
		assert.Equal(t, []wxss.SegmentKind{wxss.SegClass}, segmentKinds(rule.Selectors[0]))
		assert.Equal(t, []wxss.SegmentKind{
			wxss.SegClass, wxss.SegChild, wxss.SegTagName, wxss.SegPseudoClass, wxss.SegPseudoElement,
		}, segmentKinds(rule.Selectors[1]))
		assert.Equal(t, []wxss.SegmentKind{wxss.SegID, wxss.SegAttribute}, segmentKinds(rule.Selectors[2]))
		assert.Equal(t, "hover", rule.Selectors[1].Segments[3].Name)
		assert.Equal(t, "before", rule.Selectors[1].Segments[4].Name)

		require.NotNil(t, rule.Body)
		assert.Equal(t, wxss.BodyBrace, rule.Body.Kind)
		require.Len(t, rule.Body.Content, 2)
		assert.Equal(t, wxss.ItemProperty, rule.Body.Content[0].Kind)
		assert.Equal(t, "color", rule.Body.Content[0].Property.Name.Text)
		assert.NotNil(t, rule.Body.Content[0].Property.Semicolon)
		assert.Equal(t, wxss.ItemStyle, rule.Body.Content[1].Kind)
		assert.Nil(t, rule.Body.Content[1].Style.Body.Content[0].Property.Semicolon, "last declaration may omit the semicolon")
	})

	t.Run("test_import", func(t *testing.T) {
		rule := sheet.Items[1].Import
		assert.Equal(t, "x.wxss", rule.URLText())
		assert.NotNil(t, rule.Semicolon)
	})

	t.Run("test_media", func(t *testing.T) {
		rule := sheet.Items[2].Media
		assert.Equal(t, wxss.MediaAnd, rule.Query.Kind)
		require.Len(t, rule.Query.Children, 2)
		assert.Equal(t, wxss.MediaType, rule.Query.Children[0].Kind)
		assert.Equal(t, wxss.MediaFeature, rule.Query.Children[1].Kind)
		assert.Equal(t, "min-width", rule.Query.Children[1].Feature.Name.Text)
		require.Len(t, rule.Body.Content, 1)
		assert.Equal(t, wxss.ItemStyle, rule.Body.Content[0].Kind)
	})

	t.Run("test_font_face", func(t *testing.T) {
		rule := sheet.Items[3].FontFace
		require.Len(t, rule.Body.Content, 1)
		assert.Equal(t, "font-family", rule.Body.Content[0].Property.Name.Text)
	})

	t.Run("test_keyframes", func(t *testing.T) {
		rule := sheet.Items[4].Keyframes
		require.NotNil(t, rule.Name)
		assert.Equal(t, "spin", rule.Name.Text)
		require.Len(t, rule.Body.Content, 2)
		assert.Equal(t, "from", rule.Body.Content[0].Selectors[0].Text)
		assert.Equal(t, wxss.KindPercentage, rule.Body.Content[1].Selectors[0].Kind)
	})

	t.Run("test_unknown_at_rule", func(t *testing.T) {
		it := sheet.Items[5]
		assert.Equal(t, "foo", it.AtKeyword.Text)
		require.Len(t, it.Tokens, 2)
		assert.Equal(t, wxss.KindSemicolon, it.Tokens[1].Kind)
	})
}

func TestParseTolerance(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantKinds []wxss.ItemKind
		wantWarn  wxss.WarningKind
	}{
		{
			name:      "test_dot_with_space_is_unknown",
			src:       ". a { } .b { }",
			wantKinds: []wxss.ItemKind{wxss.ItemStyle, wxss.ItemStyle},
			wantWarn:  wxss.WarnInvalidSelector,
		},
		{
			name:      "test_missing_body",
			src:       ".a { } .b",
			wantKinds: []wxss.ItemKind{wxss.ItemStyle, wxss.ItemStyle},
			wantWarn:  wxss.WarnMissingBody,
		},
		{
			name:      "test_empty_value",
			src:       "a { color: ; } b { }",
			wantKinds: []wxss.ItemKind{wxss.ItemStyle, wxss.ItemStyle},
			wantWarn:  wxss.WarnExpectedPropertyValue,
		},
		{
			name:      "test_import_without_url",
			src:       "@import ; .b { }",
			wantKinds: []wxss.ItemKind{wxss.ItemImport, wxss.ItemStyle},
			wantWarn:  wxss.WarnExpectedImportURL,
		},
		{
			name:      "test_unclosed_rule",
			src:       ".a { color: red",
			wantKinds: []wxss.ItemKind{wxss.ItemStyle},
			wantWarn:  wxss.WarnUnclosedGroup,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet := wxss.Parse(tt.src)
			kinds := make([]wxss.ItemKind, 0, len(sheet.Items))
			for _, it := range sheet.Items {
				kinds = append(kinds, it.Kind)
			}
			assert.Equal(t, tt.wantKinds, kinds, "siblings should survive malformed input")

			found := false
			for _, w := range sheet.Warnings {
				if w.Kind == tt.wantWarn {
					found = true
				}
			}
			assert.True(t, found, "expected warning %q in %v", tt.wantWarn, sheet.Warnings)
		})
	}
}

func TestParseIdempotent(t *testing.T) {
	a := wxss.Parse(fixtureSheet)
	b := wxss.Parse(fixtureSheet)
	assert.Equal(t, a.Items, b.Items, "re-parsing identical content should give equal items")
	assert.Equal(t, a.Comments, b.Comments)
	assert.Equal(t, a.Warnings, b.Warnings)
}
