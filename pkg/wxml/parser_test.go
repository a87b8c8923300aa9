package wxml_test

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/wxls/pkg/position"
	"github.com/walteh/wxls/pkg/wxml"
)

const fixtureTemplate = `<import src="a.wxml"/>
<wxs module="m">module.exports = {}</wxs>
<template name="card"><text>{{title}}</text></template>
<view id="root" class="a b {{c}}" bindtap="onTap">
  <block wx:if="{{x}}">A</block>
  <text wx:elif="{{y}}">B</text>
  <text wx:else>C</text>
  <view wx:for="{{list}}" wx:for-item="it" wx:key="id">{{it.name}} {{index}}</view>
</view>
<!-- note -->
`

// render prints an expression tree compactly so tests can compare shapes.
func render(e *wxml.Expr) string {
	join := func(list []*wxml.Expr) string {
		parts := make([]string, 0, len(list))
		for _, c := range list {
			parts = append(parts, render(c))
		}
		return strings.Join(parts, ", ")
	}
	switch e.Kind {
	case wxml.ExprLitStr:
		return strconv.Quote(e.Value)
	case wxml.ExprLitNumber, wxml.ExprLitBool, wxml.ExprLitNull, wxml.ExprLitUndefined, wxml.ExprDataField:
		return e.Value
	case wxml.ExprScopeRef:
		return fmt.Sprintf("$%s#%d", e.Value, e.Index)
	case wxml.ExprStaticMember:
		return render(e.Children[0]) + "." + e.Value
	case wxml.ExprDynamicMember:
		return render(e.Children[0]) + "[" + render(e.Children[1]) + "]"
	case wxml.ExprCall:
		return render(e.Children[0]) + "(" + join(e.Children[1:]) + ")"
	case wxml.ExprUnary:
		return "(" + e.Op + render(e.Children[0]) + ")"
	case wxml.ExprBinary, wxml.ExprPlus:
		return "(" + render(e.Children[0]) + " " + e.Op + " " + render(e.Children[1]) + ")"
	case wxml.ExprCond:
		return "(" + render(e.Children[0]) + " ? " + render(e.Children[1]) + " : " + render(e.Children[2]) + ")"
	case wxml.ExprArray:
		return "[" + join(e.Children) + "]"
	case wxml.ExprObject:
		return "{" + join(e.Children) + "}"
	case wxml.ExprObjectField:
		return e.Value + ":" + render(e.Children[0])
	case wxml.ExprSpread:
		return "..." + render(e.Children[0])
	case wxml.ExprToString:
		return "str(" + render(e.Children[0]) + ")"
	}
	return "?"
}

func TestParseStructure(t *testing.T) {
	tmpl := wxml.Parse("pages/index.wxml", fixtureTemplate)

	assert.Empty(t, tmpl.Warnings)

	require.Len(t, tmpl.Imports, 1)
	assert.Equal(t, "a.wxml", tmpl.Imports[0].Src.Name)

	require.Len(t, tmpl.Scripts, 1)
	assert.Equal(t, "m", tmpl.Scripts[0].Module.Name)
	assert.True(t, tmpl.Scripts[0].Inline)
	assert.Equal(t, "module.exports = {}", tmpl.Scripts[0].Content)

	require.Len(t, tmpl.SubTemplates, 1)
	assert.Equal(t, "card", tmpl.SubTemplates[0].Name.Name)
	assert.Len(t, tmpl.SubTemplates[0].Content, 1)

	require.Len(t, tmpl.Content, 2)
	assert.Equal(t, wxml.NodeComment, tmpl.Node(tmpl.Content[1]).Kind)
	assert.Equal(t, " note ", tmpl.Node(tmpl.Content[1]).Content)

	root := tmpl.Element(tmpl.Node(tmpl.Content[0]).Element)
	assert.Equal(t, wxml.ElemNormal, root.Kind)
	assert.Equal(t, "view", root.TagName.Name)
	assert.Equal(t, wxml.NoElement, root.Parent)
	require.Len(t, root.Attributes, 3)
	assert.Equal(t, wxml.AttrID, root.Attributes[0].Kind)
	assert.Equal(t, wxml.AttrClass, root.Attributes[1].Kind)
	assert.Equal(t, wxml.ValueDynamic, root.Attributes[1].Value.Kind)
	assert.Equal(t, wxml.AttrEvent, root.Attributes[2].Kind)
	assert.Equal(t, "bind", root.Attributes[2].Prefix.Name)
	assert.Equal(t, "tap", root.Attributes[2].Name.Name)

	var classes []string
	for _, c := range tmpl.ClassNames(&root.Attributes[1].Value) {
		classes = append(classes, c.Name)
	}
	assert.Equal(t, []string{"a", "b"}, classes)

	require.Len(t, root.Children, 2)
	cond := tmpl.Element(tmpl.Node(root.Children[0]).Element)
	require.Equal(t, wxml.ElemIf, cond.Kind)
	require.Len(t, cond.Branches, 3)
	assert.False(t, cond.Branches[0].IsElse)
	assert.False(t, cond.Branches[1].IsElse)
	assert.True(t, cond.Branches[2].IsElse)
	first := tmpl.Element(tmpl.Node(cond.Branches[0].Children[0]).Element)
	assert.Equal(t, wxml.ElemPure, first.Kind)
	assert.Equal(t, tmpl.Node(root.Children[0]).Element, first.Parent)

	loop := tmpl.Element(tmpl.Node(root.Children[1]).Element)
	require.Equal(t, wxml.ElemFor, loop.Kind)
	assert.Equal(t, "it", loop.For.Item.Name.Name)
	assert.True(t, loop.For.Item.Declared)
	assert.Equal(t, "index", loop.For.Index.Name.Name)
	assert.False(t, loop.For.Index.Declared)
	assert.Equal(t, "id", loop.For.Key.Name.Name)
	assert.Equal(t, "view", loop.TagName.Name)

	inner := tmpl.Element(tmpl.Node(loop.Children[0]).Element)
	require.Len(t, inner.Children, 1)
	text := tmpl.Node(inner.Children[0])
	require.Equal(t, wxml.NodeText, text.Kind)
	assert.Equal(t, `((str($it#1.name) + " ") + str($index#2))`, render(text.Text.Expr))
}

func TestParseExpressions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "test_precedence_mul_right", src: `<view a="{{a + b * c}}"/>`, want: "(a + (b * c))"},
		{name: "test_precedence_mul_left", src: `<view a="{{a * b + c}}"/>`, want: "((a * b) + c)"},
		{name: "test_left_associative", src: `<view a="{{a - b - c}}"/>`, want: "((a - b) - c)"},
		{name: "test_logical", src: `<view a="{{!a && b || c}}"/>`, want: "(((!a) && b) || c)"},
		{name: "test_conditional", src: `<view a="{{x ? 'y' : z.w[0]}}"/>`, want: `(x ? "y" : z.w[0])`},
		{name: "test_call", src: `<view a="{{f(1, 'two')}}"/>`, want: `f(1, "two")`},
		{name: "test_array_spread", src: `<view a="{{[1, ...xs]}}"/>`, want: "[1, ...xs]"},
		{name: "test_object", src: `<view a="{{ {a: 1, b, ...c} }}"/>`, want: "{a:1, b:b, ...c}"},
		{name: "test_strict_equality", src: `<view a="{{a === null}}"/>`, want: "(a === null)"},
		{name: "test_negative", src: `<view a="{{-1}}"/>`, want: "(-1)"},
		{name: "test_escaped_string", src: `<view a="{{'it\'s'}}"/>`, want: `"it's"`},
		{name: "test_mixed_text", src: `<view a="x{{y}}z"/>`, want: `(("x" + str(y)) + "z")`},
		{name: "test_template_data_object", src: `<template is="t" data="{{a, b: 1}}"/>`, want: "{a:a, b:1}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := wxml.Parse("x.wxml", tt.src)
			require.Empty(t, tmpl.Warnings)
			el := tmpl.Element(tmpl.Node(tmpl.Content[0]).Element)
			v := el.Attributes[len(el.Attributes)-1].Value
			require.Equal(t, wxml.ValueDynamic, v.Kind)
			assert.Equal(t, tt.want, render(v.Expr))
		})
	}
}

func TestParseTolerance(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want wxml.WarningKind
	}{
		{name: "test_unclosed_child", src: `<view><text>hi</view>`, want: wxml.WarnUnclosedElement},
		{name: "test_unmatched_end", src: `</foo>`, want: wxml.WarnUnmatchedEndTag},
		{name: "test_unterminated_value", src: `<view class="a`, want: wxml.WarnUnterminatedValue},
		{name: "test_bad_expression", src: `<view>{{ a + }}</view>`, want: wxml.WarnInvalidExpression},
		{name: "test_empty_expression", src: `<view>{{}}</view>`, want: wxml.WarnInvalidExpression},
		{name: "test_misplaced_else", src: `<text wx:else>x</text>`, want: wxml.WarnMisplacedElse},
		{name: "test_unterminated_moustache", src: `<view>{{a</view>`, want: wxml.WarnUnterminatedMoustache},
		{name: "test_unterminated_comment", src: `<view/><!-- x`, want: wxml.WarnUnterminatedComment},
		{name: "test_duplicate_attribute", src: `<view a="1" a="2"/>`, want: wxml.WarnDuplicateAttribute},
		{name: "test_missing_include_src", src: `<include/>`, want: wxml.WarnMissingAttribute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := wxml.Parse("x.wxml", tt.src)
			var kinds []wxml.WarningKind
			for _, w := range tmpl.Warnings {
				kinds = append(kinds, w.Kind)
			}
			assert.Contains(t, kinds, tt.want)
		})
	}
}

func TestParseRecoversContent(t *testing.T) {
	tmpl := wxml.Parse("x.wxml", `<view><text>hi</view><image/>`)

	require.Len(t, tmpl.Content, 2)
	view := tmpl.Element(tmpl.Node(tmpl.Content[0]).Element)
	assert.True(t, view.Tag.HasEnd)
	require.Len(t, view.Children, 1)
	text := tmpl.Element(tmpl.Node(view.Children[0]).Element)
	assert.Equal(t, "text", text.TagName.Name)
	assert.False(t, text.Tag.HasEnd)
	require.Len(t, text.Children, 1)
	assert.Equal(t, "hi", tmpl.Node(text.Children[0]).Text.Static)
	image := tmpl.Element(tmpl.Node(tmpl.Content[1]).Element)
	assert.True(t, image.Tag.SelfClose)
}

func TestParseIdempotent(t *testing.T) {
	a := wxml.Parse("x.wxml", fixtureTemplate)
	b := wxml.Parse("x.wxml", fixtureTemplate)
	assert.Equal(t, a, b)
}

func TestScopeRefs(t *testing.T) {
	src := `<wxs module="u" src="u.wxs"/>
<view wx:for="{{rows}}" wx:for-item="row">
  <view wx:for="{{row.cells}}">{{u.fmt(row, item, index)}}</view>
</view>
<comp slot:item="it" slot:index><text>{{it}}{{index}}</text></comp>`
	tmpl := wxml.Parse("x.wxml", src)
	require.Empty(t, tmpl.Warnings)

	type ref struct {
		Name    string
		Kind    wxml.ScopeKind
		IsIndex bool
	}
	var got []ref
	wxml.ForEachScopeRef(tmpl, func(_ position.Range, scope wxml.Scope) {
		got = append(got, ref{Name: scope.Name.Name, Kind: scope.Kind, IsIndex: scope.IsIndex})
	})

	assert.Equal(t, []ref{
		{Name: "row", Kind: wxml.ScopeFor},
		{Name: "u", Kind: wxml.ScopeScript},
		{Name: "row", Kind: wxml.ScopeFor},
		{Name: "item", Kind: wxml.ScopeFor},
		{Name: "index", Kind: wxml.ScopeFor, IsIndex: true},
		{Name: "it", Kind: wxml.ScopeSlotValue},
		{Name: "index", Kind: wxml.ScopeSlotValue},
	}, got)
}

func TestWalkers(t *testing.T) {
	tmpl := wxml.Parse("x.wxml", fixtureTemplate)

	var tags []string
	wxml.ForEachTagName(tmpl, func(name wxml.StrName, _ wxml.ElementID) {
		tags = append(tags, name.Name)
	})
	assert.Equal(t, []string{"view", "view", "text", "text", "text", "text", "view", "view", "text", "text"}, tags)

	var classes []string
	wxml.ForEachStaticClassName(tmpl, func(name wxml.StrName, _ wxml.ElementID) {
		classes = append(classes, name.Name)
	})
	assert.Equal(t, []string{"a", "b"}, classes)

	roots := 0
	wxml.ForEachExpressionRoot(tmpl, func(_ *wxml.Expr, _ wxml.ValueOwner, _ []wxml.Scope) {
		roots++
	})
	// class, x, y, list, the loop text and the sub-template text
	assert.Equal(t, 6, roots)

	slots := 0
	wxml.ForEachSlot(wxml.Parse("c.wxml", `<view><slot name="a"/><slot/></view>`), func(wxml.ElementID, []wxml.Scope) {
		slots++
	})
	assert.Equal(t, 2, slots)
}
