package project

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Lang is the dialect of a file, decided by its path alone.
type Lang uint8

const (
	LangUnknown Lang = iota
	LangTemplate
	LangStyleSheet
	LangOtherStyleSheet
	LangManifest
)

func (l Lang) String() string {
	switch l {
	case LangTemplate:
		return "wxml"
	case LangStyleSheet:
		return "wxss"
	case LangOtherStyleSheet:
		return "other-stylesheet"
	case LangManifest:
		return "json"
	}
	return "unknown"
}

// IsStyleSheet reports whether documents of this dialect carry a parsed stylesheet.
func (l Lang) IsStyleSheet() bool {
	return l == LangStyleSheet || l == LangOtherStyleSheet
}

// Classify returns the dialect of path. Plain css, less and scss files only count as
// stylesheets when enabled and a template with the same base name sits next to them.
func Classify(fs afero.Fs, path string, enableOther bool) Lang {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wxml":
		return LangTemplate
	case ".wxss":
		return LangStyleSheet
	case ".json":
		return LangManifest
	case ".css", ".less", ".scss":
		if !enableOther {
			return LangUnknown
		}
		if ok, _ := afero.Exists(fs, strings.TrimSuffix(path, filepath.Ext(path))+".wxml"); ok {
			return LangOtherStyleSheet
		}
	}
	return LangUnknown
}

// withExt swaps the extension of path.
func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
