package wxml

import (
	"github.com/walteh/wxls/pkg/position"
)

// TokenKind classifies what sits under a cursor in a template.
type TokenKind uint8

const (
	TokenNone TokenKind = iota
	TokenStaticTextContent
	TokenStaticValuePart
	TokenAttributeStaticValue
	TokenStaticClassName
	TokenStaticID
	TokenStartTagBody
	TokenEndTagBody
	TokenScopeRef
	TokenDataField
	TokenStaticMember
	TokenAttributeKeyword
	TokenOtherKeyword
	TokenSrc
	TokenScriptModule
	TokenScriptSrc
	TokenScriptContent
	TokenTemplateName
	TokenTemplateRef
	TokenComment
	TokenUnknownMetaTag
	TokenTagName
	TokenAttributeName
	TokenModelAttributeName
	TokenChangeAttributeName
	TokenClassName
	TokenStyleName
	TokenEventHandler
	TokenGenericRef
	TokenSlotValueDefinition
	TokenSlotValueRef
	TokenSlotValueScope
	TokenSlotValueRefAndScope
	TokenDataKey
	TokenMarkKey
	TokenEventName
	TokenForItem
	TokenForIndex
	TokenForKey
)

var tokenKindNames = [...]string{
	TokenNone:                 "None",
	TokenStaticTextContent:    "StaticTextContent",
	TokenStaticValuePart:      "StaticValuePart",
	TokenAttributeStaticValue: "AttributeStaticValue",
	TokenStaticClassName:      "StaticClassName",
	TokenStaticID:             "StaticId",
	TokenStartTagBody:         "StartTagBody",
	TokenEndTagBody:           "EndTagBody",
	TokenScopeRef:             "ScopeRef",
	TokenDataField:            "DataField",
	TokenStaticMember:         "StaticMember",
	TokenAttributeKeyword:     "AttributeKeyword",
	TokenOtherKeyword:         "OtherKeyword",
	TokenSrc:                  "Src",
	TokenScriptModule:         "ScriptModule",
	TokenScriptSrc:            "ScriptSrc",
	TokenScriptContent:        "ScriptContent",
	TokenTemplateName:         "TemplateName",
	TokenTemplateRef:          "TemplateRef",
	TokenComment:              "Comment",
	TokenUnknownMetaTag:       "UnknownMetaTag",
	TokenTagName:              "TagName",
	TokenAttributeName:        "AttributeName",
	TokenModelAttributeName:   "ModelAttributeName",
	TokenChangeAttributeName:  "ChangeAttributeName",
	TokenClassName:            "ClassName",
	TokenStyleName:            "StyleName",
	TokenEventHandler:         "EventHandler",
	TokenGenericRef:           "GenericRef",
	TokenSlotValueDefinition:  "SlotValueDefinition",
	TokenSlotValueRef:         "SlotValueRef",
	TokenSlotValueScope:       "SlotValueScope",
	TokenSlotValueRefAndScope: "SlotValueRefAndScope",
	TokenDataKey:              "DataKey",
	TokenMarkKey:              "MarkKey",
	TokenEventName:            "EventName",
	TokenForItem:              "ForItem",
	TokenForIndex:             "ForIndex",
	TokenForKey:               "ForKey",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return "Unknown"
}

// Token is the construct under a cursor. Element, Attr, Node and Index are -1 when they do
// not apply. Index points into Imports, Includes, Scripts or SubTemplates depending on
// Kind. Scope is set for ScopeRef tokens.
type Token struct {
	Kind     TokenKind
	Location position.Range
	Name     string
	Element  ElementID
	Attr     int
	Node     NodeID
	Index    int
	Scope    Scope
}

func newToken(kind TokenKind, loc position.Range, name string) *Token {
	return &Token{Kind: kind, Location: loc, Name: name, Element: NoElement, Attr: -1, Node: NoNode, Index: -1}
}

// Resolve finds the innermost construct whose location contains p. Imports, includes,
// scripts and sub-templates are consulted before the main content. The returned location
// always contains p; TokenNone is returned when nothing matches.
func Resolve(t *Template, p position.Place) Token {
	r := &resolver{t: t, p: p}
	if tok := r.find(); tok != nil {
		return *tok
	}
	return *newToken(TokenNone, position.Range{Start: p, End: p}, "")
}

type resolver struct {
	t      *Template
	p      position.Place
	scopes []Scope
}

func (r *resolver) in(loc position.Range) bool {
	return loc.ContainsInclusive(r.p)
}

func (r *resolver) inside(loc position.Range) bool {
	return loc.ContainsExclusive(r.p)
}

func (r *resolver) find() *Token {
	t := r.t
	for i, imp := range t.Imports {
		if !r.in(imp.Location) {
			continue
		}
		tok := r.srcToken(imp.SrcKeyword, imp.Src, TokenSrc, imp.Location)
		tok.Index = i
		return tok
	}
	for i, inc := range t.Includes {
		if !r.in(inc.Location) {
			continue
		}
		if r.in(inc.SrcKeyword) || r.in(inc.Src.Location) {
			tok := r.srcToken(inc.SrcKeyword, inc.Src, TokenSrc, inc.Location)
			tok.Index = i
			tok.Element = inc.Element
			return tok
		}
	}
	for i, s := range t.Scripts {
		if !r.in(s.Location) {
			continue
		}
		var tok *Token
		switch {
		case !s.ModuleKeyword.IsEmpty() && r.in(s.ModuleKeyword):
			tok = newToken(TokenOtherKeyword, s.ModuleKeyword, "module")
		case r.in(s.Module.Location):
			tok = newToken(TokenScriptModule, s.Module.Location, s.Module.Name)
		case s.HasSrc && r.in(s.SrcKeyword):
			tok = newToken(TokenOtherKeyword, s.SrcKeyword, "src")
		case s.HasSrc && r.in(s.Src.Location):
			tok = newToken(TokenScriptSrc, s.Src.Location, s.Src.Name)
		case s.Inline && r.in(s.ContentLocation):
			tok = newToken(TokenScriptContent, s.ContentLocation, s.Module.Name)
		default:
			tok = newToken(TokenNone, s.Location, "")
		}
		tok.Index = i
		return tok
	}
	for i, st := range t.SubTemplates {
		if !r.in(st.Location) {
			continue
		}
		var tok *Token
		switch {
		case !st.NameKeyword.IsEmpty() && r.in(st.NameKeyword):
			tok = newToken(TokenOtherKeyword, st.NameKeyword, "name")
		case r.in(st.Name.Location):
			tok = newToken(TokenTemplateName, st.Name.Location, st.Name.Name)
		default:
			r.scopes = t.GlobalScopes()
			if tok = r.nodes(st.Content); tok != nil {
				return tok
			}
			tok = newToken(TokenNone, st.Location, "")
		}
		tok.Index = i
		return tok
	}
	r.scopes = t.GlobalScopes()
	return r.nodes(t.Content)
}

func (r *resolver) srcToken(keyword position.Range, src StrName, kind TokenKind, outer position.Range) *Token {
	switch {
	case !keyword.IsEmpty() && r.in(keyword):
		return newToken(TokenOtherKeyword, keyword, "src")
	case !keyword.IsEmpty() && r.in(src.Location):
		return newToken(kind, src.Location, src.Name)
	}
	return newToken(TokenNone, outer, "")
}

func (r *resolver) nodes(ids []NodeID) *Token {
	for _, id := range ids {
		if tok := r.node(id); tok != nil {
			return tok
		}
	}
	return nil
}

func (r *resolver) node(id NodeID) *Token {
	n := &r.t.Nodes[id]
	var tok *Token
	switch n.Kind {
	case NodeText:
		if !r.in(n.Location) {
			return nil
		}
		tok = r.value(&n.Text, RoleText)
	case NodeComment:
		if r.inside(n.Location) {
			tok = newToken(TokenComment, n.Location, n.Content)
		}
	case NodeUnknownMeta:
		if r.inside(n.Location) {
			tok = newToken(TokenUnknownMetaTag, n.Location, n.Content)
		}
	case NodeElement:
		return r.element(n.Element)
	}
	if tok != nil {
		tok.Node = id
		tok.Element = n.Parent
	}
	return tok
}

func (r *resolver) element(id ElementID) *Token {
	e := &r.t.Elements[id]
	if !r.in(e.Extent) {
		return nil
	}
	base := len(r.scopes)
	defer func() { r.scopes = r.scopes[:base] }()

	switch e.Kind {
	case ElemFor:
		tok := r.forAttributes(e.For)
		if tok == nil {
			tok = r.value(&e.For.List, RoleOther)
		}
		if tok != nil {
			tok.Element = id
			return tok
		}
		r.scopes = append(r.scopes, forScopes(id, e.For)...)
		return r.nodes(e.Children)
	case ElemIf:
		for i := range e.Branches {
			br := &e.Branches[i]
			var tok *Token
			switch {
			case r.in(br.Keyword):
				tok = newToken(TokenAttributeKeyword, br.Keyword, branchKeyword(i, br))
			case !br.IsElse:
				tok = r.value(&br.Condition, RoleOther)
			}
			if tok != nil {
				tok.Element = id
				return tok
			}
			if tok := r.nodes(br.Children); tok != nil {
				return tok
			}
		}
		return nil
	}

	r.scopes = append(r.scopes, slotValueScopes(id, e)...)
	if tok := r.tag(id, e); tok != nil {
		tok.Element = id
		return tok
	}
	return r.nodes(e.Children)
}

func branchKeyword(i int, br *Branch) string {
	switch {
	case br.IsElse:
		return "wx:else"
	case i == 0:
		return "wx:if"
	}
	return "wx:elif"
}

func (r *resolver) forAttributes(info *ForInfo) *Token {
	switch {
	case r.in(info.ListKeyword):
		return newToken(TokenAttributeKeyword, info.ListKeyword, "wx:for")
	case info.Item.Declared && r.in(info.Item.Keyword):
		return newToken(TokenAttributeKeyword, info.Item.Keyword, "wx:for-item")
	case info.Item.Declared && r.in(info.Item.Name.Location):
		return newToken(TokenForItem, info.Item.Name.Location, info.Item.Name.Name)
	case info.Index.Declared && r.in(info.Index.Keyword):
		return newToken(TokenAttributeKeyword, info.Index.Keyword, "wx:for-index")
	case info.Index.Declared && r.in(info.Index.Name.Location):
		return newToken(TokenForIndex, info.Index.Name.Location, info.Index.Name.Name)
	case info.Key.Declared && r.in(info.Key.Keyword):
		return newToken(TokenAttributeKeyword, info.Key.Keyword, "wx:key")
	case info.Key.Declared && r.in(info.Key.Name.Location):
		return newToken(TokenForKey, info.Key.Name.Location, info.Key.Name.Name)
	}
	return nil
}

// tag resolves positions on the start and end tags of a non-wrapper element.
func (r *resolver) tag(id ElementID, e *Element) *Token {
	if r.in(e.TagName.Location) {
		return newToken(TokenTagName, e.TagName.Location, e.TagName.Name)
	}
	if e.Tag.HasEnd && r.in(e.EndTagName.Location) {
		return newToken(TokenTagName, e.EndTagName.Location, e.EndTagName.Name)
	}
	if r.inside(e.Tag.StartTag()) {
		for i := range e.Attributes {
			if tok := r.attribute(&e.Attributes[i]); tok != nil {
				tok.Attr = i
				return tok
			}
		}
		return newToken(TokenStartTagBody, e.Tag.StartTag(), e.TagName.Name)
	}
	if e.Tag.HasEnd && r.inside(e.Tag.EndTag()) {
		return newToken(TokenEndTagBody, e.Tag.EndTag(), e.TagName.Name)
	}
	return nil
}

var attrNameTokens = map[AttrKind]TokenKind{
	AttrNormal:       TokenAttributeName,
	AttrModel:        TokenModelAttributeName,
	AttrChange:       TokenChangeAttributeName,
	AttrWorklet:      TokenAttributeName,
	AttrGeneric:      TokenAttributeName,
	AttrData:         TokenDataKey,
	AttrMark:         TokenMarkKey,
	AttrEvent:        TokenEventName,
	AttrID:           TokenAttributeKeyword,
	AttrSlot:         TokenAttributeKeyword,
	AttrClass:        TokenAttributeKeyword,
	AttrClassItem:    TokenClassName,
	AttrStyle:        TokenAttributeKeyword,
	AttrStyleItem:    TokenStyleName,
	AttrSlotName:     TokenAttributeKeyword,
	AttrSlotValue:    TokenSlotValueDefinition,
	AttrTemplateIs:   TokenAttributeKeyword,
	AttrTemplateData: TokenAttributeKeyword,
	AttrSrc:          TokenAttributeKeyword,
}

func (r *resolver) attribute(a *Attribute) *Token {
	if r.in(a.Name.Location) {
		kind := attrNameTokens[a.Kind]
		if a.Kind == AttrSlotValueRef {
			kind = TokenSlotValueRef
			if a.SlotAlias() == a.Name {
				kind = TokenSlotValueRefAndScope
			}
		}
		return newToken(kind, a.Name.Location, a.Name.Name)
	}
	if a.Prefix.Name != "" && r.in(a.Prefix.Location) {
		return newToken(TokenAttributeKeyword, a.Prefix.Location, a.Prefix.Name)
	}
	if !a.HasValue {
		return nil
	}
	if a.Value.Kind == ValueStatic && r.in(a.Value.Location) {
		var kind TokenKind
		switch a.Kind {
		case AttrWorklet, AttrEvent:
			kind = TokenEventHandler
		case AttrGeneric:
			kind = TokenGenericRef
		case AttrSlotValueRef:
			kind = TokenSlotValueScope
		case AttrTemplateIs:
			kind = TokenTemplateRef
		case AttrSrc:
			kind = TokenSrc
		}
		if kind != TokenNone {
			return newToken(kind, a.Value.Location, a.Value.Static)
		}
	}
	return r.value(&a.Value, roleOf(a.Kind))
}

// value resolves inside a static or interpolated value. String literals joined by + are
// reported the same way as a static value of that role.
func (r *resolver) value(v *Value, role ValueRole) *Token {
	if v.Kind == ValueStatic {
		if !r.in(v.Location) {
			return nil
		}
		return r.staticPart(v.Static, v.Location, role)
	}
	outer := position.Range{Start: v.Open.Start, End: v.Close.End}
	if v.Expr != nil {
		outer = outer.Union(v.Expr.Location)
	}
	if !r.in(outer) {
		return nil
	}
	if v.Expr != nil {
		if tok := r.expr(v.Expr, false); tok != nil {
			if tok.Kind == TokenStaticValuePart {
				return r.staticPart(tok.Name, tok.Location, role)
			}
			return tok
		}
	}
	return newToken(TokenNone, outer, "")
}

func (r *resolver) staticPart(text string, loc position.Range, role ValueRole) *Token {
	switch role {
	case RoleText:
		return newToken(TokenStaticTextContent, loc, text)
	case RoleID:
		return newToken(TokenStaticID, loc, text)
	case RoleAttribute:
		return newToken(TokenAttributeStaticValue, loc, text)
	case RoleClass:
		for _, w := range words(r.t.Index, text, loc) {
			if r.in(w.Location) {
				return newToken(TokenStaticClassName, w.Location, w.Name)
			}
		}
	}
	return newToken(TokenStaticValuePart, loc, text)
}

func (r *resolver) expr(e *Expr, staticParts bool) *Token {
	switch e.Kind {
	case ExprPlus:
		// string literals joined by + read as text, whatever encloses the chain
		for _, c := range e.Children {
			if tok := r.expr(c, true); tok != nil {
				return tok
			}
		}
		return nil
	case ExprLitStr:
		if staticParts && r.in(e.Location) {
			return newToken(TokenStaticValuePart, e.Location, e.Value)
		}
		return nil
	case ExprScopeRef:
		if !r.in(e.Location) {
			return nil
		}
		tok := newToken(TokenScopeRef, e.Location, e.Value)
		if e.Index >= 0 && e.Index < len(r.scopes) {
			tok.Scope = r.scopes[e.Index]
		}
		return tok
	case ExprDataField:
		if r.in(e.Location) {
			return newToken(TokenDataField, e.Location, e.Value)
		}
		return nil
	case ExprStaticMember:
		if tok := r.expr(e.Children[0], false); tok != nil {
			return tok
		}
		if r.in(e.FieldLocation) {
			return newToken(TokenStaticMember, e.FieldLocation, e.Value)
		}
		return nil
	}
	for _, c := range e.Children {
		if tok := r.expr(c, false); tok != nil {
			return tok
		}
	}
	return nil
}
