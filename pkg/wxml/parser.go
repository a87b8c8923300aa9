package wxml

import (
	"strings"

	"github.com/walteh/wxls/pkg/position"
)

// Parse parses a template file. It never fails: malformed input is recovered from and
// reported through Template.Warnings.
func Parse(path, src string) *Template {
	return ParseIndexed(path, position.NewIndex(src))
}

func ParseIndexed(path string, ix *position.Index) *Template {
	p := &parser{
		src:  ix.Text(),
		ix:   ix,
		tmpl: &Template{Path: path, Index: ix},
	}
	root := p.scan()
	p.tmpl.Content = p.buildChildren(root.children, NoElement)
	p.compile()
	return p.tmpl
}

type parser struct {
	src  string
	ix   *position.Index
	tmpl *Template
}

func (p *parser) rng(start, end int) position.Range {
	return p.ix.RangeFor(start, end)
}

func (p *parser) warn(kind WarningKind, start, end int, detail string) {
	p.tmpl.Warnings = append(p.tmpl.Warnings, ParseWarning{Kind: kind, Location: p.rng(start, end), Detail: detail})
}

func (p *parser) name(s string, start, end int) StrName {
	return StrName{Name: s, Location: p.rng(start, end)}
}

type rawAttr struct {
	name       string
	start, end int

	hasValue   bool
	valueStart int
	valueEnd   int
	attrEnd    int
}

type rawElement struct {
	name string

	openStart, nameEnd    int
	closeStart, closeEnd  int
	endStart, endNameEnd  int
	endCloseStart, endCloseEnd int
	hasEnd, selfClose     bool

	attrs    []rawAttr
	children []rawNode

	bodyStart, bodyEnd int
}

func (el *rawElement) attr(name string) (rawAttr, bool) {
	for _, a := range el.attrs {
		if a.name == name {
			return a, true
		}
	}
	return rawAttr{}, false
}

type rawNode struct {
	kind       NodeKind
	start, end int
	elem       *rawElement
}

// scan builds the raw element tree. Unmatched end tags are dropped and elements that are
// never closed swallow what follows them.
func (p *parser) scan() *rawElement {
	root := &rawElement{}
	stack := []*rawElement{root}
	n := len(p.src)
	i := 0
	for i < n {
		top := stack[len(stack)-1]
		rest := p.src[i:]
		switch {
		case strings.HasPrefix(rest, "<!--"):
			stop := n
			if k := strings.Index(rest[4:], "-->"); k >= 0 {
				stop = i + 4 + k + 3
			} else {
				p.warn(WarnUnterminatedComment, i, n, "")
			}
			top.children = append(top.children, rawNode{kind: NodeComment, start: i, end: stop})
			i = stop
		case strings.HasPrefix(rest, "<!") || strings.HasPrefix(rest, "<?"):
			stop := n
			if k := strings.IndexByte(rest, '>'); k >= 0 {
				stop = i + k + 1
			}
			top.children = append(top.children, rawNode{kind: NodeUnknownMeta, start: i, end: stop})
			i = stop
		case strings.HasPrefix(rest, "</") && len(rest) > 2 && isNameStart(rest[2]):
			i = p.scanEndTag(&stack, i)
		case rest[0] == '<' && len(rest) > 1 && isNameStart(rest[1]):
			el, next := p.scanStartTag(i)
			top.children = append(top.children, rawNode{kind: NodeElement, start: i, end: next, elem: el})
			i = next
			switch {
			case el.selfClose:
			case el.name == "wxs":
				i = p.scanRawBody(el, i)
			default:
				stack = append(stack, el)
			}
		default:
			stop := p.scanText(i)
			top.children = append(top.children, rawNode{kind: NodeText, start: i, end: stop})
			i = stop
		}
	}
	for _, el := range stack[1:] {
		p.warn(WarnUnclosedElement, el.openStart, el.nameEnd, el.name)
	}
	return root
}

func (p *parser) startsMarkup(i int) bool {
	s := p.src[i:]
	if len(s) < 2 || s[0] != '<' {
		return false
	}
	switch s[1] {
	case '!', '?':
		return true
	case '/':
		return len(s) > 2 && isNameStart(s[2])
	}
	return isNameStart(s[1])
}

// skipMoustache returns the offset after the "{{ ... }}" starting at i, or i when there is
// none. A run of closing braces is kept together so "{{ {a: 1}}}" closes at the last brace.
func (p *parser) skipMoustache(i, limit int) int {
	if !strings.HasPrefix(p.src[i:limit], "{{") {
		return i
	}
	k := strings.Index(p.src[i+2:limit], "}}")
	if k < 0 {
		return i
	}
	end := i + 2 + k + 2
	for end < limit && p.src[end] == '}' {
		end++
	}
	return end
}

func (p *parser) scanText(i int) int {
	n := len(p.src)
	j := i
	for j < n {
		if j > i && p.startsMarkup(j) {
			break
		}
		if k := p.skipMoustache(j, n); k > j {
			j = k
			continue
		}
		j++
	}
	return j
}

func (p *parser) skipSpace(i int) int {
	for i < len(p.src) && isSpace(p.src[i]) {
		i++
	}
	return i
}

func (p *parser) scanStartTag(i int) (*rawElement, int) {
	n := len(p.src)
	j := i + 1
	for j < n && isNameChar(p.src[j]) {
		j++
	}
	el := &rawElement{name: p.src[i+1 : j], openStart: i, nameEnd: j}
	for {
		j = p.skipSpace(j)
		switch {
		case j >= n || p.src[j] == '<':
			p.warn(WarnUnclosedElement, i, el.nameEnd, el.name)
			el.closeStart, el.closeEnd = j, j
			el.selfClose = true
			return el, j
		case p.src[j] == '>':
			el.closeStart, el.closeEnd = j, j+1
			return el, j + 1
		case strings.HasPrefix(p.src[j:], "/>"):
			el.closeStart, el.closeEnd = j, j+2
			el.selfClose = true
			return el, j + 2
		}
		a, next := p.scanAttr(j)
		if next == j {
			p.warn(WarnInvalidAttribute, j, j+1, p.src[j:j+1])
			j++
			continue
		}
		el.attrs = append(el.attrs, a)
		j = next
	}
}

func (p *parser) scanAttr(j int) (rawAttr, int) {
	n := len(p.src)
	k := j
	for k < n && isAttrNameChar(p.src[k]) {
		k++
	}
	if k == j {
		return rawAttr{}, j
	}
	a := rawAttr{name: p.src[j:k], start: j, end: k, attrEnd: k}
	m := p.skipSpace(k)
	if m >= n || p.src[m] != '=' {
		return a, k
	}
	a.hasValue = true
	m = p.skipSpace(m + 1)
	if m >= n {
		p.warn(WarnUnterminatedValue, j, n, a.name)
		a.valueStart, a.valueEnd, a.attrEnd = n, n, n
		return a, n
	}
	if q := p.src[m]; q == '"' || q == '\'' {
		end := p.findQuote(m+1, q)
		if end < 0 {
			p.warn(WarnUnterminatedValue, m, n, a.name)
			a.valueStart, a.valueEnd, a.attrEnd = m+1, n, n
			return a, n
		}
		a.valueStart, a.valueEnd, a.attrEnd = m+1, end, end+1
		return a, end + 1
	}
	e := m
	for e < n && !isSpace(p.src[e]) && p.src[e] != '>' && !strings.HasPrefix(p.src[e:], "/>") {
		e++
	}
	a.valueStart, a.valueEnd, a.attrEnd = m, e, e
	return a, e
}

func (p *parser) findQuote(i int, q byte) int {
	n := len(p.src)
	for i < n {
		if k := p.skipMoustache(i, n); k > i {
			i = k
			continue
		}
		if p.src[i] == q {
			return i
		}
		i++
	}
	return -1
}

// scanEndTag closes the innermost open element with a matching name. Elements opened
// after it are closed implicitly.
func (p *parser) scanEndTag(stack *[]*rawElement, i int) int {
	n := len(p.src)
	j := i + 2
	for j < n && isNameChar(p.src[j]) {
		j++
	}
	name, nameEnd := p.src[i+2:j], j
	for j < n && p.src[j] != '>' && p.src[j] != '<' {
		j++
	}
	closeStart, closeEnd := j, j
	if j < n && p.src[j] == '>' {
		closeEnd = j + 1
	}

	s := *stack
	for d := len(s) - 1; d > 0; d-- {
		if s[d].name != name {
			continue
		}
		for _, el := range s[d+1:] {
			p.warn(WarnUnclosedElement, el.openStart, el.nameEnd, el.name)
		}
		el := s[d]
		el.hasEnd = true
		el.endStart, el.endNameEnd = i, nameEnd
		el.endCloseStart, el.endCloseEnd = closeStart, closeEnd
		*stack = s[:d]
		return closeEnd
	}
	p.warn(WarnUnmatchedEndTag, i, closeEnd, name)
	return closeEnd
}

// scanRawBody consumes the inline source of a <wxs> element up to its end tag.
func (p *parser) scanRawBody(el *rawElement, i int) int {
	n := len(p.src)
	el.bodyStart = i
	k := strings.Index(p.src[i:], "</wxs")
	if k < 0 {
		p.warn(WarnUnclosedElement, el.openStart, el.nameEnd, el.name)
		el.bodyEnd = n
		return n
	}
	el.bodyEnd = i + k
	stack := []*rawElement{{}, el}
	return p.scanEndTag(&stack, i+k)
}

func (p *parser) buildChildren(raw []rawNode, parent ElementID) []NodeID {
	var out []NodeID
	for i := 0; i < len(raw); i++ {
		rn := raw[i]
		switch rn.kind {
		case NodeText:
			if id, ok := p.textNode(rn, parent); ok {
				out = append(out, id)
			}
		case NodeComment:
			content := strings.TrimSuffix(strings.TrimPrefix(p.src[rn.start:rn.end], "<!--"), "-->")
			out = append(out, p.addNode(Node{Kind: NodeComment, Parent: parent, Element: NoElement, Location: p.rng(rn.start, rn.end), Content: content}))
		case NodeUnknownMeta:
			out = append(out, p.addNode(Node{Kind: NodeUnknownMeta, Parent: parent, Element: NoElement, Location: p.rng(rn.start, rn.end), Content: p.src[rn.start:rn.end]}))
		case NodeElement:
			el := rn.elem
			_, hasName := el.attr("name")
			switch {
			case el.name == "import":
				p.buildImport(el)
				continue
			case el.name == "wxs":
				p.buildScript(el)
				continue
			case el.name == "template" && hasName:
				p.buildSubTemplate(el)
				continue
			}
			_, hasIf := el.attr("wx:if")
			_, hasFor := forListAttr(el)
			if hasIf && !hasFor {
				chain := []*rawElement{el}
				for j := i + 1; j < len(raw); j++ {
					next := raw[j]
					if next.kind == NodeText && strings.TrimSpace(p.src[next.start:next.end]) == "" {
						continue
					}
					if next.kind != NodeElement {
						break
					}
					_, elif := next.elem.attr("wx:elif")
					_, els := next.elem.attr("wx:else")
					if !elif && !els {
						break
					}
					chain = append(chain, next.elem)
					i = j
					if els {
						break
					}
				}
				out = append(out, p.buildIf(chain, parent, true))
				continue
			}
			for _, ctl := range []string{"wx:elif", "wx:else"} {
				if a, ok := el.attr(ctl); ok {
					p.warn(WarnMisplacedElse, a.start, a.end, ctl)
				}
			}
			out = append(out, p.buildNode(el, parent, true, true))
		}
	}
	return out
}

func (p *parser) addNode(n Node) NodeID {
	p.tmpl.Nodes = append(p.tmpl.Nodes, n)
	return NodeID(len(p.tmpl.Nodes) - 1)
}

// reserve allocates an element slot so children can refer to their parent before the
// parent is complete.
func (p *parser) reserve() ElementID {
	p.tmpl.Elements = append(p.tmpl.Elements, Element{})
	return ElementID(len(p.tmpl.Elements) - 1)
}

func (p *parser) elementNode(id, parent ElementID) NodeID {
	return p.addNode(Node{Kind: NodeElement, Parent: parent, Element: id, Location: p.tmpl.Elements[id].Extent})
}

func (p *parser) textNode(rn rawNode, parent ElementID) (NodeID, bool) {
	start, end := rn.start, rn.end
	for start < end && isSpace(p.src[start]) {
		start++
	}
	for end > start && isSpace(p.src[end-1]) {
		end--
	}
	if start == end {
		return NoNode, false
	}
	return p.addNode(Node{
		Kind:     NodeText,
		Parent:   parent,
		Element:  NoElement,
		Text:     p.rawValue(start, end),
		Location: p.rng(start, end),
	}), true
}

func (p *parser) rawValue(start, end int) Value {
	v := Value{Kind: ValueStatic, Static: p.src[start:end], Location: p.rng(start, end)}
	v.parts = p.splitMoustache(start, end)
	for _, part := range v.parts {
		if part.moustache {
			v.Kind = ValueDynamic
			break
		}
	}
	if v.Kind == ValueStatic {
		v.parts = nil
	}
	return v
}

func (p *parser) attrValue(a rawAttr) Value {
	if !a.hasValue {
		return Value{Kind: ValueStatic, Location: p.rng(a.end, a.end)}
	}
	return p.rawValue(a.valueStart, a.valueEnd)
}

type valuePart struct {
	moustache   bool
	start, end  int
	open, close int
}

func (p *parser) splitMoustache(start, end int) []valuePart {
	var parts []valuePart
	i := start
	for i < end {
		k := strings.Index(p.src[i:end], "{{")
		if k < 0 {
			parts = append(parts, valuePart{start: i, end: end})
			break
		}
		open := i + k
		close := p.skipMoustache(open, end)
		if close == open {
			p.warn(WarnUnterminatedMoustache, open, end, "")
			parts = append(parts, valuePart{start: i, end: end})
			break
		}
		if open > i {
			parts = append(parts, valuePart{start: i, end: open})
		}
		parts = append(parts, valuePart{moustache: true, start: open + 2, end: close - 2, open: open, close: close})
		i = close
	}
	return parts
}

func (p *parser) tagLocation(el *rawElement) TagLocation {
	tag := TagLocation{
		StartOpen:  p.rng(el.openStart, el.nameEnd),
		StartClose: p.rng(el.closeStart, el.closeEnd),
		SelfClose:  el.selfClose,
		HasEnd:     el.hasEnd,
	}
	if el.hasEnd {
		tag.EndOpen = p.rng(el.endStart, el.endNameEnd)
		tag.EndClose = p.rng(el.endCloseStart, el.endCloseEnd)
	}
	return tag
}

func forListAttr(el *rawElement) (rawAttr, bool) {
	if a, ok := el.attr("wx:for"); ok {
		return a, true
	}
	return el.attr("wx:for-items")
}

// buildNode builds el, wrapping it in For and If elements for the control attributes that
// are still allowed. wx:for is applied outside wx:if.
func (p *parser) buildNode(el *rawElement, parent ElementID, allowFor, allowIf bool) NodeID {
	if _, ok := forListAttr(el); ok && allowFor {
		return p.buildFor(el, parent, allowIf)
	}
	if _, ok := el.attr("wx:if"); ok && allowIf {
		return p.buildIf([]*rawElement{el}, parent, false)
	}
	return p.buildPlain(el, parent)
}

func (p *parser) buildFor(el *rawElement, parent ElementID, allowIf bool) NodeID {
	list, _ := forListAttr(el)
	id := p.reserve()
	info := &ForInfo{
		ListKeyword: p.rng(list.start, list.end),
		List:        p.attrValue(list),
	}
	info.Item = p.forName(el, "wx:for-item", "item", info.ListKeyword)
	info.Index = p.forName(el, "wx:for-index", "index", info.ListKeyword)
	info.Key = p.forName(el, "wx:key", "", info.ListKeyword)

	child := p.buildNode(el, id, false, allowIf)
	inner := p.tmpl.Elements[p.tmpl.Nodes[child].Element]
	p.tmpl.Elements[id] = Element{
		Kind:       ElemFor,
		Parent:     parent,
		TagName:    inner.TagName,
		EndTagName: inner.EndTagName,
		Tag:        inner.Tag,
		Extent:     inner.Extent,
		Children:   []NodeID{child},
		For:        info,
	}
	return p.elementNode(id, parent)
}

func (p *parser) forName(el *rawElement, attr, def string, fallback position.Range) ForName {
	a, ok := el.attr(attr)
	if !ok {
		return ForName{Name: StrName{Name: def, Location: fallback}}
	}
	v := p.attrValue(a)
	if v.Kind == ValueDynamic {
		p.warn(WarnInvalidAttribute, a.start, a.attrEnd, attr+" must be a static name")
	}
	return ForName{
		Keyword:  p.rng(a.start, a.end),
		Name:     StrName{Name: v.Static, Location: v.Location},
		Declared: true,
	}
}

func (p *parser) buildIf(chain []*rawElement, parent ElementID, allowFor bool) NodeID {
	id := p.reserve()
	e := Element{Kind: ElemIf, Parent: parent}
	for k, el := range chain {
		var br Branch
		for _, ctl := range []string{"wx:if", "wx:elif", "wx:else"} {
			a, ok := el.attr(ctl)
			if !ok {
				continue
			}
			br.Keyword = p.rng(a.start, a.end)
			br.IsElse = ctl == "wx:else"
			if !br.IsElse {
				br.Condition = p.attrValue(a)
			}
			break
		}
		child := p.buildNode(el, id, allowFor, false)
		br.Children = []NodeID{child}
		inner := p.tmpl.Elements[p.tmpl.Nodes[child].Element]
		if k == 0 {
			e.TagName, e.EndTagName, e.Tag, e.Extent = inner.TagName, inner.EndTagName, inner.Tag, inner.Extent
		} else {
			e.Extent = e.Extent.Union(inner.Extent)
		}
		e.Branches = append(e.Branches, br)
	}
	p.tmpl.Elements[id] = e
	return p.elementNode(id, parent)
}

func (p *parser) buildPlain(el *rawElement, parent ElementID) NodeID {
	id := p.reserve()
	e := Element{
		Parent:  parent,
		TagName: p.name(el.name, el.openStart+1, el.nameEnd),
		Tag:     p.tagLocation(el),
	}
	e.Extent = e.Tag.Extent()
	if el.hasEnd {
		e.EndTagName = p.name(el.name, el.endStart+2, el.endNameEnd)
	}
	switch el.name {
	case "block":
		e.Kind = ElemPure
	case "slot":
		e.Kind = ElemSlot
	case "template":
		e.Kind = ElemTemplateRef
	case "include":
		e.Kind = ElemInclude
	}
	e.Attributes = p.attributes(el, e.Kind)

	switch e.Kind {
	case ElemTemplateRef:
		if a, _ := e.Attr(AttrTemplateIs, "is"); a == nil {
			p.warn(WarnMissingAttribute, el.openStart, el.nameEnd, "is")
		}
	case ElemInclude:
		inc := Include{Element: id, Location: e.Extent}
		if a, _ := e.Attr(AttrSrc, "src"); a != nil {
			inc.SrcKeyword = a.Name.Location
			inc.Src = StrName{Name: a.Value.Static, Location: a.Value.Location}
		} else {
			p.warn(WarnMissingAttribute, el.openStart, el.nameEnd, "src")
		}
		p.tmpl.Includes = append(p.tmpl.Includes, inc)
	}

	e.Children = p.buildChildren(el.children, id)
	p.tmpl.Elements[id] = e
	return p.elementNode(id, parent)
}

func isControlAttr(name string) bool {
	switch name {
	case "wx:if", "wx:elif", "wx:else", "wx:for", "wx:for-items", "wx:for-item", "wx:for-index", "wx:key":
		return true
	}
	return false
}

func (p *parser) attributes(el *rawElement, kind ElementKind) []Attribute {
	seen := map[string]bool{}
	var out []Attribute
	for _, ra := range el.attrs {
		if isControlAttr(ra.name) {
			continue
		}
		if seen[ra.name] {
			p.warn(WarnDuplicateAttribute, ra.start, ra.attrEnd, ra.name)
			continue
		}
		seen[ra.name] = true
		out = append(out, p.attribute(ra, kind))
	}
	return out
}

var eventPrefixes = []string{"capture-bind", "capture-catch", "mut-bind", "bind", "catch"}

var colonPrefixes = map[string]AttrKind{
	"model":         AttrModel,
	"change":        AttrChange,
	"worklet":       AttrWorklet,
	"generic":       AttrGeneric,
	"data":          AttrData,
	"mark":          AttrMark,
	"slot":          AttrSlotValueRef,
	"class":         AttrClassItem,
	"style":         AttrStyleItem,
	"bind":          AttrEvent,
	"catch":         AttrEvent,
	"capture-bind":  AttrEvent,
	"capture-catch": AttrEvent,
	"mut-bind":      AttrEvent,
}

func (p *parser) attribute(ra rawAttr, kind ElementKind) Attribute {
	a := Attribute{
		Name:     p.name(ra.name, ra.start, ra.end),
		HasValue: ra.hasValue,
		Value:    p.attrValue(ra),
		Location: p.rng(ra.start, ra.attrEnd),
	}
	name := ra.name

	switch {
	case kind == ElemSlot && name == "name":
		a.Kind = AttrSlotName
		return a
	case kind == ElemTemplateRef && name == "is":
		a.Kind = AttrTemplateIs
		return a
	case kind == ElemTemplateRef && name == "data":
		a.Kind = AttrTemplateData
		return a
	case kind == ElemInclude && name == "src":
		a.Kind = AttrSrc
		return a
	}

	switch name {
	case "id":
		a.Kind = AttrID
		return a
	case "slot":
		a.Kind = AttrSlot
		return a
	case "class":
		a.Kind = AttrClass
		return a
	case "style":
		a.Kind = AttrStyle
		return a
	}
	if kind == ElemSlot {
		a.Kind = AttrSlotValue
		return a
	}

	split := func(k AttrKind, prefix string, sep int) {
		a.Kind = k
		a.Prefix = p.name(prefix, ra.start, ra.start+len(prefix))
		a.Name = p.name(name[len(prefix)+sep:], ra.start+len(prefix)+sep, ra.end)
	}
	if prefix, _, ok := strings.Cut(name, ":"); ok {
		if k, known := colonPrefixes[prefix]; known {
			split(k, prefix, 1)
			return a
		}
		if prefix == "wx" {
			p.warn(WarnInvalidAttribute, ra.start, ra.end, name)
		}
		return a
	}
	if strings.HasPrefix(name, "data-") && len(name) > len("data-") {
		split(AttrData, "data", 1)
		return a
	}
	for _, prefix := range eventPrefixes {
		if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
			split(AttrEvent, prefix, 0)
			return a
		}
	}
	return a
}

func (p *parser) staticAttr(el *rawElement, name string) (position.Range, StrName, bool) {
	a, ok := el.attr(name)
	if !ok {
		return position.Range{}, StrName{}, false
	}
	v := p.attrValue(a)
	return p.rng(a.start, a.end), StrName{Name: v.Static, Location: v.Location}, true
}

func (p *parser) extent(el *rawElement) position.Range {
	return p.tagLocation(el).Extent()
}

func (p *parser) buildImport(el *rawElement) {
	imp := Import{Location: p.extent(el)}
	var ok bool
	if imp.SrcKeyword, imp.Src, ok = p.staticAttr(el, "src"); !ok {
		p.warn(WarnMissingAttribute, el.openStart, el.nameEnd, "src")
	}
	p.tmpl.Imports = append(p.tmpl.Imports, imp)
}

func (p *parser) buildScript(el *rawElement) {
	s := Script{Location: p.extent(el)}
	var ok bool
	if s.ModuleKeyword, s.Module, ok = p.staticAttr(el, "module"); !ok {
		p.warn(WarnMissingAttribute, el.openStart, el.nameEnd, "module")
	}
	s.SrcKeyword, s.Src, s.HasSrc = p.staticAttr(el, "src")
	if !el.selfClose {
		s.Content = p.src[el.bodyStart:el.bodyEnd]
		s.ContentLocation = p.rng(el.bodyStart, el.bodyEnd)
		s.Inline = !s.HasSrc
	}
	p.tmpl.Scripts = append(p.tmpl.Scripts, s)
}

func (p *parser) buildSubTemplate(el *rawElement) {
	st := SubTemplate{Location: p.extent(el)}
	st.NameKeyword, st.Name, _ = p.staticAttr(el, "name")
	st.Content = p.buildChildren(el.children, NoElement)
	p.tmpl.SubTemplates = append(p.tmpl.SubTemplates, st)
}

// compile turns the pending moustache parts of every dynamic value into expressions,
// binding names against the scopes visible at that value.
func (p *parser) compile() {
	walk(p.tmpl, &visitor{
		value: func(v *Value, owner ValueOwner, scopes []Scope) {
			p.compileValue(v, owner.Role == RoleTemplateData, scopes)
		},
	})
}

func (p *parser) compileValue(v *Value, objectBody bool, scopes []Scope) {
	parts := v.parts
	v.parts = nil
	if v.Kind != ValueDynamic || len(parts) == 0 {
		return
	}
	var first, last *valuePart
	for i := range parts {
		if parts[i].moustache {
			if first == nil {
				first = &parts[i]
			}
			last = &parts[i]
		}
	}
	v.Open = p.rng(first.open, first.open+2)
	v.Close = p.rng(last.close-2, last.close)

	if len(parts) == 1 {
		v.Expr = p.compileMoustache(parts[0], objectBody, scopes)
		return
	}
	var chain *Expr
	for _, part := range parts {
		var e *Expr
		if part.moustache {
			e = &Expr{
				Kind:     ExprToString,
				Location: p.rng(part.open, part.close),
				Children: []*Expr{p.compileMoustache(part, false, scopes)},
			}
		} else {
			e = &Expr{Kind: ExprLitStr, Value: p.src[part.start:part.end], Location: p.rng(part.start, part.end)}
		}
		if chain == nil {
			chain = e
			continue
		}
		chain = &Expr{Kind: ExprPlus, Op: "+", Location: chain.Location.Union(e.Location), Children: []*Expr{chain, e}}
	}
	v.Expr = chain
}

func (p *parser) compileMoustache(part valuePart, objectBody bool, scopes []Scope) *Expr {
	body := p.src[part.start:part.end]
	if strings.TrimSpace(body) == "" {
		p.warn(WarnInvalidExpression, part.open, part.close, "empty expression")
		return &Expr{Kind: ExprUnknown, Location: p.rng(part.open, part.close)}
	}
	base := part.start
	if objectBody {
		body = "{" + body + "}"
		base--
	}
	e, err := parseExpr(p.ix, body, base, scopes)
	if err != nil {
		p.warn(WarnInvalidExpression, part.open, part.close, err.Error())
		return &Expr{Kind: ExprUnknown, Location: p.rng(part.open, part.close)}
	}
	return e
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isNameStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isNameChar(c byte) bool {
	return isNameStart(c) || c >= '0' && c <= '9' || c == '-' || c == ':' || c == '.'
}

func isAttrNameChar(c byte) bool {
	switch c {
	case '=', '>', '<', '/', '"', '\'':
		return false
	}
	return !isSpace(c)
}
