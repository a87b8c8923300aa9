package wxml

import (
	"github.com/walteh/wxls/pkg/position"
)

type ScopeKind uint8

const (
	ScopeScript ScopeKind = iota
	ScopeFor
	ScopeSlotValue
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeScript:
		return "Script"
	case ScopeFor:
		return "For"
	case ScopeSlotValue:
		return "SlotValue"
	}
	return "Unknown"
}

// Scope is a name binding visible to expressions. Script scopes point at Template.Scripts,
// For scopes at the For element (IsIndex selects the index name), SlotValue scopes at the
// slot: attribute on Element.
type Scope struct {
	Kind    ScopeKind
	Name    StrName
	Script  int
	Element ElementID
	Attr    int
	IsIndex bool
}

// GlobalScopes is the scope stack at the top of the template and inside sub-templates:
// one entry per script module, in declaration order.
func (t *Template) GlobalScopes() []Scope {
	out := make([]Scope, 0, len(t.Scripts))
	for i, s := range t.Scripts {
		out = append(out, Scope{Kind: ScopeScript, Name: s.Module, Script: i, Element: NoElement, Attr: -1})
	}
	return out
}

func forScopes(id ElementID, info *ForInfo) []Scope {
	return []Scope{
		{Kind: ScopeFor, Name: info.Item.Name, Element: id, Attr: -1, Script: -1},
		{Kind: ScopeFor, Name: info.Index.Name, Element: id, Attr: -1, Script: -1, IsIndex: true},
	}
}

func slotValueScopes(id ElementID, e *Element) []Scope {
	var out []Scope
	if e.Kind != ElemNormal && e.Kind != ElemPure {
		return nil
	}
	for i := range e.Attributes {
		if e.Attributes[i].Kind == AttrSlotValueRef {
			out = append(out, Scope{Kind: ScopeSlotValue, Name: e.Attributes[i].SlotAlias(), Element: id, Attr: i, Script: -1})
		}
	}
	return out
}

// ValueRole tells how the static parts of a value are interpreted.
type ValueRole uint8

const (
	RoleText ValueRole = iota
	RoleAttribute
	RoleClass
	RoleID
	RoleTemplateData
	RoleOther
)

func roleOf(kind AttrKind) ValueRole {
	switch kind {
	case AttrNormal:
		return RoleAttribute
	case AttrClass:
		return RoleClass
	case AttrID:
		return RoleID
	case AttrTemplateData:
		return RoleTemplateData
	}
	return RoleOther
}

// ValueOwner locates a value. Attr and Branch are -1 when they do not apply; Node is only
// set for text content.
type ValueOwner struct {
	Node    NodeID
	Element ElementID
	Attr    int
	Branch  int
	Role    ValueRole
}

type visitor struct {
	node    func(id NodeID, scopes []Scope)
	element func(id ElementID, scopes []Scope)
	value   func(v *Value, owner ValueOwner, scopes []Scope)
}

type walker struct {
	t      *Template
	v      *visitor
	scopes []Scope
}

// walk visits the main content and then each sub-template in document order. The scopes
// slice handed to callbacks is reused and only valid during the call.
func walk(t *Template, v *visitor) {
	w := &walker{t: t, v: v}
	w.scopes = t.GlobalScopes()
	w.nodes(t.Content)
	for _, st := range t.SubTemplates {
		w.scopes = t.GlobalScopes()
		w.nodes(st.Content)
	}
}

func (w *walker) nodes(ids []NodeID) {
	for _, id := range ids {
		w.node(id)
	}
}

func (w *walker) node(id NodeID) {
	n := &w.t.Nodes[id]
	if w.v.node != nil {
		w.v.node(id, w.scopes)
	}
	switch n.Kind {
	case NodeText:
		w.visitValue(&n.Text, ValueOwner{Node: id, Element: n.Parent, Attr: -1, Branch: -1, Role: RoleText})
	case NodeElement:
		w.element(n.Element)
	}
}

func (w *walker) visitValue(v *Value, owner ValueOwner) {
	if w.v.value != nil {
		w.v.value(v, owner, w.scopes)
	}
}

func (w *walker) element(id ElementID) {
	e := &w.t.Elements[id]
	base := len(w.scopes)
	defer func() { w.scopes = w.scopes[:base] }()

	switch e.Kind {
	case ElemFor:
		if w.v.element != nil {
			w.v.element(id, w.scopes)
		}
		w.visitValue(&e.For.List, ValueOwner{Node: NoNode, Element: id, Attr: -1, Branch: -1, Role: RoleOther})
		w.scopes = append(w.scopes, forScopes(id, e.For)...)
		w.nodes(e.Children)
	case ElemIf:
		if w.v.element != nil {
			w.v.element(id, w.scopes)
		}
		for i := range e.Branches {
			br := &e.Branches[i]
			if !br.IsElse {
				w.visitValue(&br.Condition, ValueOwner{Node: NoNode, Element: id, Attr: -1, Branch: i, Role: RoleOther})
			}
			w.nodes(br.Children)
		}
	default:
		w.scopes = append(w.scopes, slotValueScopes(id, e)...)
		if w.v.element != nil {
			w.v.element(id, w.scopes)
		}
		for i := range e.Attributes {
			w.visitValue(&e.Attributes[i].Value, ValueOwner{Node: NoNode, Element: id, Attr: i, Branch: -1, Role: roleOf(e.Attributes[i].Kind)})
		}
		w.nodes(e.Children)
	}
}

func ForEachNode(t *Template, fn func(id NodeID, scopes []Scope)) {
	walk(t, &visitor{node: fn})
}

func ForEachElement(t *Template, fn func(id ElementID, scopes []Scope)) {
	walk(t, &visitor{element: fn})
}

func ForEachValue(t *Template, fn func(v *Value, owner ValueOwner, scopes []Scope)) {
	walk(t, &visitor{value: fn})
}

// ForEachExpressionRoot visits the expression of every dynamic value.
func ForEachExpressionRoot(t *Template, fn func(e *Expr, owner ValueOwner, scopes []Scope)) {
	ForEachValue(t, func(v *Value, owner ValueOwner, scopes []Scope) {
		if v.Kind == ValueDynamic && v.Expr != nil {
			fn(v.Expr, owner, scopes)
		}
	})
}

// ForEachExpression visits every expression node, parents before children.
func ForEachExpression(t *Template, fn func(e *Expr, scopes []Scope)) {
	ForEachExpressionRoot(t, func(root *Expr, _ ValueOwner, scopes []Scope) {
		walkExpr(root, func(e *Expr) { fn(e, scopes) })
	})
}

func walkExpr(e *Expr, fn func(*Expr)) {
	fn(e)
	for _, c := range e.Children {
		walkExpr(c, fn)
	}
}

// ForEachScopeRef visits every use of a scope name together with the scope it binds to.
func ForEachScopeRef(t *Template, fn func(loc position.Range, scope Scope)) {
	ForEachExpression(t, func(e *Expr, scopes []Scope) {
		if e.Kind == ExprScopeRef && e.Index >= 0 && e.Index < len(scopes) {
			fn(e.Location, scopes[e.Index])
		}
	})
}

func ForEachSlot(t *Template, fn func(id ElementID, scopes []Scope)) {
	ForEachElement(t, func(id ElementID, scopes []Scope) {
		if t.Elements[id].Kind == ElemSlot {
			fn(id, scopes)
		}
	})
}

// ForEachTagName visits the start and end tag names of ordinary elements.
func ForEachTagName(t *Template, fn func(name StrName, id ElementID)) {
	ForEachElement(t, func(id ElementID, _ []Scope) {
		e := &t.Elements[id]
		if e.Kind != ElemNormal {
			return
		}
		fn(e.TagName, id)
		if e.Tag.HasEnd {
			fn(e.EndTagName, id)
		}
	})
}

// ForEachStaticClassName visits the literal class names of class attributes, including the
// literal parts of interpolated ones, and class:name attributes.
func ForEachStaticClassName(t *Template, fn func(name StrName, id ElementID)) {
	ForEachElement(t, func(id ElementID, _ []Scope) {
		e := &t.Elements[id]
		for i := range e.Attributes {
			a := &e.Attributes[i]
			switch a.Kind {
			case AttrClassItem:
				fn(a.Name, id)
			case AttrClass:
				for _, lit := range staticParts(&a.Value) {
					for _, w := range words(t.Index, lit.Value, lit.Location) {
						fn(w, id)
					}
				}
			}
		}
	})
}

// staticParts returns the literal pieces of a value: the whole text for a static value, or
// the string literals joined by + anywhere in its expression.
func staticParts(v *Value) []*Expr {
	if v.Kind == ValueStatic {
		return []*Expr{{Kind: ExprLitStr, Value: v.Static, Location: v.Location}}
	}
	if v.Expr == nil {
		return nil
	}
	var out []*Expr
	var collect func(e *Expr, joined bool)
	collect = func(e *Expr, joined bool) {
		if e.Kind == ExprLitStr {
			if joined {
				out = append(out, e)
			}
			return
		}
		for _, c := range e.Children {
			collect(c, e.Kind == ExprPlus)
		}
	}
	collect(v.Expr, false)
	return out
}

// literalSpan returns the source text of a literal and where it sits. A quoted literal
// yields the raw text between its quotes so offsets stay exact.
func literalSpan(ix *position.Index, text string, loc position.Range) (string, int) {
	start, end := ix.OffsetFor(loc.Start), ix.OffsetFor(loc.End)
	src := ix.Text()
	if start < 0 || end > len(src) || start > end {
		return text, start
	}
	raw := src[start:end]
	if raw == text {
		return text, start
	}
	if len(raw) >= 2 && (raw[0] == '\'' || raw[0] == '"') && raw[len(raw)-1] == raw[0] {
		return raw[1 : len(raw)-1], start + 1
	}
	return text, start
}

// words splits text written at loc into whitespace separated names.
func words(ix *position.Index, text string, loc position.Range) []StrName {
	text, base := literalSpan(ix, text, loc)
	var out []StrName
	i := 0
	for i < len(text) {
		for i < len(text) && isSpace(text[i]) {
			i++
		}
		start := i
		for i < len(text) && !isSpace(text[i]) {
			i++
		}
		if i > start {
			out = append(out, StrName{Name: text[start:i], Location: ix.RangeFor(base+start, base+i)})
		}
	}
	return out
}

// ClassNames returns the class names written in a class attribute value.
func (t *Template) ClassNames(v *Value) []StrName {
	var out []StrName
	for _, lit := range staticParts(v) {
		out = append(out, words(t.Index, lit.Value, lit.Location)...)
	}
	return out
}
