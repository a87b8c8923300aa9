package project

import (
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/wxls/pkg/position"
	"github.com/walteh/wxls/pkg/wxml"
	"github.com/walteh/wxls/pkg/wxss"
)

// Location is a range in a file. A zero Range points at the start of the file.
type Location struct {
	Path  string
	Range position.Range
}

// TemplateToken is a resolved template token. Component is the template of the custom
// component named by a tag, when the manifests know it.
type TemplateToken struct {
	wxml.Token
	Component string
}

func (p *Project) template(path string) (*Document, error) {
	doc, ok := p.Document(path)
	if !ok {
		return nil, errors.Errorf("%s: %w", path, ErrDocumentNotFound)
	}
	if doc.Template == nil {
		return nil, errors.Errorf("%s is %s: %w", path, doc.Lang, ErrWrongLang)
	}
	return doc, nil
}

func (p *Project) sheet(path string) (*Document, error) {
	doc, ok := p.Document(path)
	if !ok {
		return nil, errors.Errorf("%s: %w", path, ErrDocumentNotFound)
	}
	if doc.Sheet == nil {
		return nil, errors.Errorf("%s is %s: %w", path, doc.Lang, ErrWrongLang)
	}
	return doc, nil
}

func (p *Project) TemplateTokenAt(path string, place position.Place) (TemplateToken, error) {
	doc, err := p.template(path)
	if err != nil {
		return TemplateToken{}, err
	}
	tok := TemplateToken{Token: wxml.Resolve(doc.Template, place)}
	if tok.Kind == wxml.TokenTagName {
		tok.Component, _ = p.componentPath(doc.Path, tok.Name)
	}
	return tok, nil
}

func (p *Project) StyleTokenAt(path string, place position.Place) (wxss.Token, error) {
	doc, err := p.sheet(path)
	if err != nil {
		return wxss.Token{}, err
	}
	return wxss.Resolve(doc.Sheet, place), nil
}

// componentPath looks the tag up in the template's own manifest, then in app.json.
// Unreadable manifests are skipped.
func (p *Project) componentPath(tmplPath, tag string) (string, bool) {
	for _, manifestPath := range []string{withExt(tmplPath, ".json"), filepath.Join(p.root, "app.json")} {
		doc, ok := p.docs[manifestPath]
		if !ok || doc.Manifest == nil {
			continue
		}
		if target, ok := doc.Manifest.ComponentPath(p.root, manifestPath, tag); ok {
			return target, true
		}
	}
	return "", false
}

// resolvePath resolves a src attribute or import url written in from. ext is added when
// the reference has none.
func (p *Project) resolvePath(from, ref, ext string) string {
	var path string
	if strings.HasPrefix(ref, "/") {
		path = filepath.Join(p.root, ref)
	} else {
		path = filepath.Join(filepath.Dir(from), ref)
	}
	if ext != "" && filepath.Ext(path) == "" {
		path += ext
	}
	return path
}

// ImportAndIncludeTemplates lists the templates reachable from path through imports and
// includes, in breadth first order, without path itself.
func (p *Project) ImportAndIncludeTemplates(path string) []string {
	path = filepath.Clean(path)
	visited := map[string]bool{path: true}
	var out []string
	queue := []string{path}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		doc, ok := p.docs[cur]
		if !ok || doc.Template == nil {
			continue
		}
		var refs []string
		for _, imp := range doc.Template.Imports {
			refs = append(refs, imp.Src.Name)
		}
		for _, inc := range doc.Template.Includes {
			refs = append(refs, inc.Src.Name)
		}
		for _, ref := range refs {
			if ref == "" {
				continue
			}
			target := p.resolvePath(cur, ref, ".wxml")
			if visited[target] {
				continue
			}
			visited[target] = true
			out = append(out, target)
			queue = append(queue, target)
		}
	}
	return out
}

// ImportStyleSheets lists the stylesheets that apply to path. For a template this starts
// at its sibling stylesheet; for a stylesheet it starts at its own imports.
func (p *Project) ImportStyleSheets(path string) []string {
	path = filepath.Clean(path)
	visited := map[string]bool{path: true}
	var out, queue []string
	if doc, ok := p.docs[path]; ok && doc.Template != nil {
		for _, ext := range []string{".wxss", ".css", ".less", ".scss"} {
			sibling := withExt(path, ext)
			if d, ok := p.docs[sibling]; ok && d.Sheet != nil {
				visited[sibling] = true
				out = append(out, sibling)
				queue = append(queue, sibling)
				break
			}
		}
	} else {
		queue = append(queue, path)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		doc, ok := p.docs[cur]
		if !ok || doc.Sheet == nil {
			continue
		}
		for _, imp := range wxss.Imports(doc.Sheet) {
			target := p.resolvePath(cur, imp.URLText(), ".wxss")
			if visited[target] {
				continue
			}
			visited[target] = true
			out = append(out, target)
			queue = append(queue, target)
		}
	}
	return out
}

// TemplateNames lists the sub-templates usable from path: its own, then those of its
// imports, recursively. The first definition of a name wins.
func (p *Project) TemplateNames(path string) []Location {
	seen := map[string]bool{}
	var out []Location
	p.walkImports(filepath.Clean(path), map[string]bool{}, func(cur string, st *wxml.SubTemplate) bool {
		if !seen[st.Name.Name] {
			seen[st.Name.Name] = true
			out = append(out, Location{Path: cur, Range: st.Name.Location})
		}
		return false
	})
	return out
}

func (p *Project) findSubTemplate(path, name string) []Location {
	var out []Location
	p.walkImports(filepath.Clean(path), map[string]bool{}, func(cur string, st *wxml.SubTemplate) bool {
		if st.Name.Name == name {
			out = append(out, Location{Path: cur, Range: st.Name.Location})
			return true
		}
		return false
	})
	return out
}

// walkImports visits the sub-templates of path and then of its imports, depth first,
// until fn returns true.
func (p *Project) walkImports(path string, visited map[string]bool, fn func(path string, st *wxml.SubTemplate) bool) bool {
	if visited[path] {
		return false
	}
	visited[path] = true
	doc, ok := p.docs[path]
	if !ok || doc.Template == nil {
		return false
	}
	for i := range doc.Template.SubTemplates {
		if fn(path, &doc.Template.SubTemplates[i]) {
			return true
		}
	}
	for _, imp := range doc.Template.Imports {
		if imp.Src.Name == "" {
			continue
		}
		if p.walkImports(p.resolvePath(path, imp.Src.Name, ".wxml"), visited, fn) {
			return true
		}
	}
	return false
}

// FindDeclaration returns where the thing at place is declared. Unsupported positions
// yield no locations and no error.
func (p *Project) FindDeclaration(path string, place position.Place) ([]Location, error) {
	doc, ok := p.Document(path)
	if !ok {
		return nil, errors.Errorf("%s: %w", path, ErrDocumentNotFound)
	}
	switch {
	case doc.Template != nil:
		return p.templateDeclaration(doc, place)
	case doc.Sheet != nil:
		return p.styleDeclaration(doc, place), nil
	}
	return nil, nil
}

func (p *Project) templateDeclaration(doc *Document, place position.Place) ([]Location, error) {
	tok, err := p.TemplateTokenAt(doc.Path, place)
	if err != nil {
		return nil, err
	}
	here := func(r position.Range) []Location {
		return []Location{{Path: doc.Path, Range: r}}
	}
	switch tok.Kind {
	case wxml.TokenScopeRef:
		return here(tok.Scope.Name.Location), nil
	case wxml.TokenForItem, wxml.TokenForIndex, wxml.TokenSlotValueScope, wxml.TokenSlotValueRefAndScope,
		wxml.TokenScriptModule, wxml.TokenTemplateName:
		return here(tok.Location), nil
	case wxml.TokenTemplateRef:
		return p.findSubTemplate(doc.Path, tok.Name), nil
	case wxml.TokenSrc:
		return []Location{{Path: p.resolvePath(doc.Path, tok.Name, ".wxml")}}, nil
	case wxml.TokenScriptSrc:
		return []Location{{Path: p.resolvePath(doc.Path, tok.Name, ".wxs")}}, nil
	case wxml.TokenTagName:
		if tok.Component != "" {
			return []Location{{Path: tok.Component}}, nil
		}
	case wxml.TokenStaticClassName, wxml.TokenClassName:
		return p.classDeclarations(doc.Path, tok.Name), nil
	}
	return nil, nil
}

func (p *Project) styleDeclaration(doc *Document, place position.Place) []Location {
	tok := wxss.Resolve(doc.Sheet, place)
	switch tok.Kind {
	case wxss.TokenClass:
		return p.classUses(tok.Name)
	case wxss.TokenImportURL:
		return []Location{{Path: p.resolvePath(doc.Path, tok.Name, ".wxss")}}
	}
	return nil
}

// classDeclarations finds selectors for a class in the stylesheets that apply to a
// template, including the app wide ones.
func (p *Project) classDeclarations(tmplPath, name string) []Location {
	sheets := p.ImportStyleSheets(tmplPath)
	app := filepath.Join(p.root, "app.wxss")
	if _, ok := p.docs[app]; ok {
		sheets = append(sheets, app)
		sheets = append(sheets, p.ImportStyleSheets(app)...)
	}
	seen := map[string]bool{}
	var out []Location
	for _, path := range sheets {
		if seen[path] {
			continue
		}
		seen[path] = true
		doc, ok := p.docs[path]
		if !ok || doc.Sheet == nil {
			continue
		}
		wxss.ForEachClassName(doc.Sheet, func(n string, loc position.Range) {
			if n == name {
				out = append(out, Location{Path: path, Range: loc})
			}
		})
	}
	return out
}

// classUses finds the literal uses of a class in every template of the project.
func (p *Project) classUses(name string) []Location {
	var out []Location
	for _, path := range p.Paths() {
		doc := p.docs[path]
		if doc.Template == nil {
			continue
		}
		wxml.ForEachStaticClassName(doc.Template, func(n wxml.StrName, _ wxml.ElementID) {
			if n.Name == name {
				out = append(out, Location{Path: path, Range: n.Location})
			}
		})
	}
	return out
}

// scopeKey identifies a scope independent of the stack it was found on.
type scopeKey struct {
	kind    wxml.ScopeKind
	script  int
	element wxml.ElementID
	attr    int
	isIndex bool
}

func keyOf(s wxml.Scope) scopeKey {
	switch s.Kind {
	case wxml.ScopeScript:
		return scopeKey{kind: s.Kind, script: s.Script, element: wxml.NoElement, attr: -1}
	case wxml.ScopeFor:
		return scopeKey{kind: s.Kind, script: -1, element: s.Element, attr: -1, isIndex: s.IsIndex}
	}
	return scopeKey{kind: s.Kind, script: -1, element: s.Element, attr: s.Attr}
}

// FindReferences lists the uses of the scope or class at place.
func (p *Project) FindReferences(path string, place position.Place, includeDeclaration bool) ([]Location, error) {
	doc, ok := p.Document(path)
	if !ok {
		return nil, errors.Errorf("%s: %w", path, ErrDocumentNotFound)
	}
	if doc.Sheet != nil {
		tok := wxss.Resolve(doc.Sheet, place)
		if tok.Kind != wxss.TokenClass {
			return nil, nil
		}
		return p.classReferences(tok.Name, includeDeclaration), nil
	}
	if doc.Template == nil {
		return nil, nil
	}

	tok := wxml.Resolve(doc.Template, place)
	var key scopeKey
	decl := tok.Location
	switch tok.Kind {
	case wxml.TokenScopeRef:
		key = keyOf(tok.Scope)
		decl = tok.Scope.Name.Location
	case wxml.TokenForItem, wxml.TokenForIndex:
		key = keyOf(wxml.Scope{Kind: wxml.ScopeFor, Element: tok.Element, IsIndex: tok.Kind == wxml.TokenForIndex})
	case wxml.TokenSlotValueScope, wxml.TokenSlotValueRefAndScope:
		key = keyOf(wxml.Scope{Kind: wxml.ScopeSlotValue, Element: tok.Element, Attr: tok.Attr})
	case wxml.TokenScriptModule:
		key = keyOf(wxml.Scope{Kind: wxml.ScopeScript, Script: tok.Index})
	case wxml.TokenStaticClassName, wxml.TokenClassName:
		return p.classReferences(tok.Name, includeDeclaration), nil
	default:
		return nil, nil
	}

	var out []Location
	if includeDeclaration {
		out = append(out, Location{Path: doc.Path, Range: decl})
	}
	wxml.ForEachScopeRef(doc.Template, func(loc position.Range, scope wxml.Scope) {
		if keyOf(scope) == key {
			out = append(out, Location{Path: doc.Path, Range: loc})
		}
	})
	return out, nil
}

func (p *Project) classReferences(name string, includeDeclaration bool) []Location {
	out := p.classUses(name)
	if !includeDeclaration {
		return out
	}
	for _, path := range p.Paths() {
		doc := p.docs[path]
		if doc.Sheet == nil {
			continue
		}
		wxss.ForEachClassName(doc.Sheet, func(n string, loc position.Range) {
			if n == name {
				out = append(out, Location{Path: path, Range: loc})
			}
		})
	}
	return out
}
