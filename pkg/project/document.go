package project

import (
	"github.com/walteh/wxls/pkg/position"
	"github.com/walteh/wxls/pkg/wxml"
	"github.com/walteh/wxls/pkg/wxss"
)

// Document is one file of a project. It is never mutated after creation; content
// changes replace it.
type Document struct {
	Path    string
	Lang    Lang
	Content string
	Index   *position.Index
	Opened  bool
	Version int32

	Template    *wxml.Template
	Sheet       *wxss.StyleSheet
	Manifest    *Manifest
	ManifestErr error
}

func newDocument(path string, lang Lang, content string) *Document {
	doc := &Document{
		Path:    path,
		Lang:    lang,
		Content: content,
		Index:   position.NewIndex(content),
	}
	switch {
	case lang == LangTemplate:
		doc.Template = wxml.ParseIndexed(path, doc.Index)
	case lang.IsStyleSheet():
		doc.Sheet = wxss.ParseIndexed(content, doc.Index)
	case lang == LangManifest:
		doc.Manifest, doc.ManifestErr = ParseManifest(content)
	}
	return doc
}
