package wxml

import (
	"github.com/walteh/wxls/pkg/position"
)

// ElementID and NodeID index Template.Elements and Template.Nodes. They stay valid for the
// lifetime of the Template they came from.
type (
	ElementID int32
	NodeID    int32
)

const (
	NoElement ElementID = -1
	NoNode    NodeID    = -1
)

// Template is a parsed template file stored as an arena.
type Template struct {
	Path         string
	Elements     []Element
	Nodes        []Node
	Content      []NodeID
	Imports      []Import
	Includes     []Include
	Scripts      []Script
	SubTemplates []SubTemplate
	Warnings     []ParseWarning
	Index        *position.Index
}

func (t *Template) Element(id ElementID) *Element {
	return &t.Elements[id]
}

func (t *Template) Node(id NodeID) *Node {
	return &t.Nodes[id]
}

// StrName is a static name together with where it was written.
type StrName struct {
	Name     string
	Location position.Range
}

type NodeKind uint8

const (
	NodeText NodeKind = iota
	NodeElement
	NodeComment
	NodeUnknownMeta
)

type Node struct {
	Kind     NodeKind
	Parent   ElementID
	Element  ElementID
	Text     Value
	Location position.Range
	// Content is the comment body or the raw text of an unknown <! ... > tag.
	Content string
}

type ElementKind uint8

const (
	ElemNormal ElementKind = iota
	ElemPure
	ElemSlot
	ElemIf
	ElemFor
	ElemTemplateRef
	ElemInclude
)

var elementKindNames = [...]string{
	ElemNormal:      "Normal",
	ElemPure:        "Pure",
	ElemSlot:        "Slot",
	ElemIf:          "If",
	ElemFor:         "For",
	ElemTemplateRef: "TemplateRef",
	ElemInclude:     "Include",
}

func (k ElementKind) String() string {
	return elementKindNames[k]
}

// TagLocation records the delimiters of an element. StartOpen covers "<name", StartClose
// covers ">" or "/>". The end tag fields are only meaningful when HasEnd is set.
type TagLocation struct {
	StartOpen  position.Range
	StartClose position.Range
	EndOpen    position.Range
	EndClose   position.Range
	HasEnd     bool
	SelfClose  bool
}

// StartTag spans "<name ... >".
func (t TagLocation) StartTag() position.Range {
	return position.Range{Start: t.StartOpen.Start, End: t.StartClose.End}
}

// EndTag spans "</name>"; it is empty without an end tag.
func (t TagLocation) EndTag() position.Range {
	if !t.HasEnd {
		return position.Range{Start: t.StartClose.End, End: t.StartClose.End}
	}
	return position.Range{Start: t.EndOpen.Start, End: t.EndClose.End}
}

// Extent spans the whole element.
func (t TagLocation) Extent() position.Range {
	if !t.HasEnd {
		return t.StartTag()
	}
	return position.Range{Start: t.StartOpen.Start, End: t.EndClose.End}
}

// Element is one arena entry. If and For elements wrap the element that carried the
// control attributes; their Tag is copied from it.
type Element struct {
	Kind       ElementKind
	Parent     ElementID
	TagName    StrName
	EndTagName StrName
	Tag        TagLocation
	Extent     position.Range
	Attributes []Attribute
	Children   []NodeID
	Branches   []Branch
	For        *ForInfo
}

// Attr returns the first attribute of the given kind and name, or nil.
func (e *Element) Attr(kind AttrKind, name string) (*Attribute, int) {
	for i := range e.Attributes {
		if e.Attributes[i].Kind == kind && e.Attributes[i].Name.Name == name {
			return &e.Attributes[i], i
		}
	}
	return nil, -1
}

// Branch is one arm of an If element. Else branches carry no condition.
type Branch struct {
	Keyword   position.Range
	Condition Value
	IsElse    bool
	Children  []NodeID
}

// ForName is an optional wx:for-* attribute. Undeclared item and index names default to
// "item" and "index" and have empty locations.
type ForName struct {
	Keyword  position.Range
	Name     StrName
	Declared bool
}

type ForInfo struct {
	ListKeyword position.Range
	List        Value
	Item        ForName
	Index       ForName
	Key         ForName
}

type AttrKind uint8

const (
	AttrNormal AttrKind = iota
	AttrModel
	AttrChange
	AttrWorklet
	AttrGeneric
	AttrData
	AttrMark
	AttrEvent
	AttrSlotValueRef
	AttrID
	AttrSlot
	AttrClass
	AttrClassItem
	AttrStyle
	AttrStyleItem
	AttrSlotName
	AttrSlotValue
	AttrTemplateIs
	AttrTemplateData
	AttrSrc
)

// Attribute is one attribute. For prefixed forms such as "bind:tap" or "model:value",
// Prefix holds "bind" or "model" and Name holds the rest.
type Attribute struct {
	Kind     AttrKind
	Prefix   StrName
	Name     StrName
	Value    Value
	HasValue bool
	Location position.Range
}

// NameLocation spans the prefix and the name.
func (a *Attribute) NameLocation() position.Range {
	if a.Prefix.Name == "" {
		return a.Name.Location
	}
	return a.Prefix.Location.Union(a.Name.Location)
}

// SlotAlias is the scope name introduced by a slot:name="alias" reference.
func (a *Attribute) SlotAlias() StrName {
	if a.HasValue && a.Value.Kind == ValueStatic && a.Value.Static != "" {
		return StrName{Name: a.Value.Static, Location: a.Value.Location}
	}
	return a.Name
}

type ValueKind uint8

const (
	ValueStatic ValueKind = iota
	ValueDynamic
)

// Value is an attribute value or text content. Dynamic values hold the compiled
// expression and the spans of the first "{{" and the last "}}".
type Value struct {
	Kind     ValueKind
	Static   string
	Location position.Range
	Expr     *Expr
	Open     position.Range
	Close    position.Range

	parts []valuePart
}

type Import struct {
	Location   position.Range
	SrcKeyword position.Range
	Src        StrName
}

type Include struct {
	Element    ElementID
	Location   position.Range
	SrcKeyword position.Range
	Src        StrName
}

// Script is a <wxs> module, inline or loaded from Src.
type Script struct {
	Location        position.Range
	ModuleKeyword   position.Range
	Module          StrName
	SrcKeyword      position.Range
	Src             StrName
	HasSrc          bool
	Inline          bool
	Content         string
	ContentLocation position.Range
}

// SubTemplate is a <template name="..."> definition. Its content is not part of
// Template.Content.
type SubTemplate struct {
	Location    position.Range
	NameKeyword position.Range
	Name        StrName
	Content     []NodeID
}

type WarningKind uint8

const (
	WarnUnmatchedEndTag WarningKind = iota
	WarnUnclosedElement
	WarnUnterminatedComment
	WarnUnterminatedValue
	WarnInvalidAttribute
	WarnDuplicateAttribute
	WarnInvalidExpression
	WarnUnterminatedMoustache
	WarnMisplacedElse
	WarnMissingAttribute
)

var warningMessages = [...]string{
	WarnUnmatchedEndTag:       "end tag does not match any open element",
	WarnUnclosedElement:       "element is never closed",
	WarnUnterminatedComment:   "unterminated comment",
	WarnUnterminatedValue:     "unterminated attribute value",
	WarnInvalidAttribute:      "invalid attribute",
	WarnDuplicateAttribute:    "duplicate attribute",
	WarnInvalidExpression:     "invalid expression",
	WarnUnterminatedMoustache: "unterminated {{",
	WarnMisplacedElse:         "wx:elif or wx:else without a preceding wx:if",
	WarnMissingAttribute:      "missing required attribute",
}

func (k WarningKind) String() string {
	return warningMessages[k]
}

type ParseWarning struct {
	Kind     WarningKind
	Location position.Range
	Detail   string
}

func (w ParseWarning) Error() string {
	msg := w.Location.String() + ": " + w.Kind.String()
	if w.Detail != "" {
		msg += ": " + w.Detail
	}
	return msg
}
