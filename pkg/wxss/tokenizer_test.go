package wxss_test

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/wxls/pkg/wxss"
)

type leaf struct {
	kind wxss.Kind
	text string
}

func leaves(trees []wxss.TokenTree) []leaf {
	out := make([]leaf, 0, len(trees))
	for _, t := range trees {
		out = append(out, leaf{kind: t.Kind, text: t.Text})
	}
	return out
}

func TestTokenizeLeaves(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []leaf
	}{
		{
			name: "test_selector_pieces",
			src:  ".a#b-1 > *",
			want: []leaf{
				{wxss.KindOperator, "."},
				{wxss.KindIdent, "a"},
				{wxss.KindIDHash, "b-1"},
				{wxss.KindOperator, ">"},
				{wxss.KindOperator, "*"},
			},
		},
		{
			name: "test_numbers",
			src:  "12px 50% +3 .5 #123",
			want: []leaf{
				{wxss.KindDimension, "12"},
				{wxss.KindPercentage, "50"},
				{wxss.KindNumber, "+3"},
				{wxss.KindNumber, ".5"},
				{wxss.KindHash, "123"},
			},
		},
		{
			name: "test_strings_and_urls",
			src:  "@import url(x.png) \"s\\\"q\" 'bad\nx",
			want: []leaf{
				{wxss.KindAtKeyword, "import"},
				{wxss.KindUnquotedURL, "x.png"},
				{wxss.KindQuotedString, "s\"q"},
				{wxss.KindBadString, "bad"},
				{wxss.KindIdent, "x"},
			},
		},
		{
			name: "test_punctuation",
			src:  "a:b;c,--d",
			want: []leaf{
				{wxss.KindIdent, "a"},
				{wxss.KindColon, ":"},
				{wxss.KindIdent, "b"},
				{wxss.KindSemicolon, ";"},
				{wxss.KindIdent, "c"},
				{wxss.KindComma, ","},
				{wxss.KindIdent, "--d"},
			},
		},
		{
			name: "test_escaped_ident",
			src:  ".a\\:b",
			want: []leaf{
				{wxss.KindOperator, "."},
				{wxss.KindIdent, "a:b"},
			},
		},
		{
			name: "test_bad_url",
			src:  "url(a b)",
			want: []leaf{
				{wxss.KindBadURL, "url(a b)"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := wxss.Tokenize(tt.src)
			assert.Equal(t, tt.want, leaves(stream.Trees), "leaf tokens should match")
		})
	}
}

func TestTokenizeNumericPayload(t *testing.T) {
	stream := wxss.Tokenize("-1.5em 42")
	require.Len(t, stream.Trees, 2)

	dim := stream.Trees[0]
	assert.Equal(t, wxss.KindDimension, dim.Kind)
	assert.InDelta(t, -1.5, dim.Value, 1e-9)
	assert.True(t, dim.HasSign, "sign should be recorded")
	assert.False(t, dim.IsInteger, "fraction is not an integer")
	assert.Equal(t, "em", dim.Unit)

	num := stream.Trees[1]
	assert.Equal(t, wxss.KindNumber, num.Kind)
	assert.True(t, num.IsInteger, "42 is an integer")
	assert.InDelta(t, 42, num.Value, 1e-9)
}

func TestTokenizeGroups(t *testing.T) {
	t.Run("test_nested_groups", func(t *testing.T) {
		stream := wxss.Tokenize("a(b [c] {d})")
		require.Len(t, stream.Trees, 1)
		fn := stream.Trees[0]
		assert.Equal(t, wxss.KindFunction, fn.Kind)
		assert.Equal(t, "a", fn.Text)
		assert.True(t, fn.Closed)
		require.Len(t, fn.Children, 3)
		assert.Equal(t, wxss.KindIdent, fn.Children[0].Kind)
		assert.Equal(t, wxss.KindBracket, fn.Children[1].Kind)
		assert.Equal(t, wxss.KindBrace, fn.Children[2].Kind)
		assert.Equal(t, "d", fn.Children[2].Children[0].Text)
		assert.Empty(t, stream.Warnings)
	})

	t.Run("test_unclosed_group_at_end", func(t *testing.T) {
		src := "(a"
		stream := wxss.Tokenize(src)
		require.Len(t, stream.Trees, 1)
		paren := stream.Trees[0]
		assert.False(t, paren.Closed)
		assert.Equal(t, len(src), paren.Span.End, "group should extend to the end of input")
		require.Len(t, paren.Children, 1)
		assert.Equal(t, "a", paren.Children[0].Text)
		require.Len(t, stream.Warnings, 1)
		assert.Equal(t, wxss.WarnUnclosedGroup, stream.Warnings[0].Kind)
	})

	t.Run("test_outer_closer_ends_inner_group", func(t *testing.T) {
		stream := wxss.Tokenize("{ a: rgb( }")
		require.Len(t, stream.Trees, 1)
		brace := stream.Trees[0]
		assert.True(t, brace.Closed, "brace should still match its closer")
		require.Len(t, brace.Children, 3)
		assert.False(t, brace.Children[2].Closed, "function should be left open")
	})

	t.Run("test_stray_closer", func(t *testing.T) {
		stream := wxss.Tokenize("a }")
		require.Len(t, stream.Trees, 2)
		assert.Equal(t, wxss.KindBadOperator, stream.Trees[1].Kind)
		require.Len(t, stream.Warnings, 1)
		assert.Equal(t, wxss.WarnUnmatchedClose, stream.Warnings[0].Kind)
	})
}

func TestTokenizeComments(t *testing.T) {
	stream := wxss.Tokenize("/* one */ a /* two")
	require.Len(t, stream.Trees, 1)
	require.Len(t, stream.Comments, 2)
	assert.Equal(t, " one ", stream.Comments[0].Text)
	assert.Equal(t, " two", stream.Comments[1].Text)
	require.Len(t, stream.Warnings, 1)
	assert.Equal(t, wxss.WarnUnterminatedComment, stream.Warnings[0].Kind)
}

func collectSpans(trees []wxss.TokenTree, out *[]wxss.Span) {
	for i := range trees {
		t := &trees[i]
		if !t.IsGroup() {
			*out = append(*out, t.Span)
			continue
		}
		*out = append(*out, t.Open)
		collectSpans(t.Children, out)
		if t.Close.End > t.Close.Start {
			*out = append(*out, t.Close)
		}
	}
}

func TestTokenizeRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		".a, .b { color: red; }",
		"a { b: url( x.png ) }",
		"@media (min-width: 10px) { .x { } }",
		"a { b: rgb(1, 2",
		"}} ] )",
		"a { content: \"abc",
		"a{b:'x\ny'}",
		"/* c */ a /* unterminated",
		"url(a b) url(\"q\")",
		"#123 #abc \\",
		"中文 { 颜色: 红 }",
		"<!-- a --> -->",
		"a\r\nb\rc\f",
	}

	for _, src := range inputs {
		t.Run(src, func(t *testing.T) {
			stream := wxss.Tokenize(src)
			var spans []wxss.Span
			collectSpans(stream.Trees, &spans)
			for _, c := range stream.Comments {
				spans = append(spans, c.Span)
			}
			sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

			var b strings.Builder
			last := 0
			for _, s := range spans {
				require.GreaterOrEqual(t, s.Start, last, "spans must not overlap")
				gap := src[last:s.Start]
				require.Empty(t, strings.Trim(gap, " \t\n\r\f"), "only whitespace may fall between tokens")
				b.WriteString(gap)
				b.WriteString(src[s.Start:s.End])
				last = s.End
			}
			require.Empty(t, strings.Trim(src[last:], " \t\n\r\f"), "only whitespace may follow the last token")
			b.WriteString(src[last:])
			assert.Equal(t, src, b.String())
		})
	}
}
