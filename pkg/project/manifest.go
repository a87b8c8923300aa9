package project

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// Manifest is the part of a component or app json file that affects templates.
type Manifest struct {
	Component       bool              `json:"component"`
	UsingComponents map[string]string `json:"usingComponents"`
}

func ParseManifest(content string) (*Manifest, error) {
	var m Manifest
	if strings.TrimSpace(content) == "" {
		return &m, nil
	}
	if err := json.Unmarshal([]byte(content), &m); err != nil {
		return nil, errors.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

// ComponentPath returns the template of the component registered under tag. Paths
// starting with "/" are relative to root, others to the directory of the manifest.
func (m *Manifest) ComponentPath(root, manifestPath, tag string) (string, bool) {
	if m == nil {
		return "", false
	}
	target, ok := m.UsingComponents[tag]
	if !ok || target == "" || strings.HasPrefix(target, "plugin://") {
		return "", false
	}
	var path string
	if strings.HasPrefix(target, "/") {
		path = filepath.Join(root, target)
	} else {
		path = filepath.Join(filepath.Dir(manifestPath), target)
	}
	if filepath.Ext(path) != ".wxml" {
		path += ".wxml"
	}
	return path, true
}
