package project

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/wxls/pkg/config"
)

var (
	ErrDocumentNotFound = errors.Base("document not found")
	ErrWrongLang        = errors.Base("document has the wrong dialect")
)

// Project owns the documents below one root. It has no locking: all access goes through
// the project's actor.
type Project struct {
	root string
	fs   afero.Fs
	cfg  *config.Config
	docs map[string]*Document
}

func New(fs afero.Fs, root string, cfg *config.Config) *Project {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Project{
		root: filepath.Clean(root),
		fs:   fs,
		cfg:  cfg,
		docs: map[string]*Document{},
	}
}

func (p *Project) Root() string {
	return p.root
}

func (p *Project) Document(path string) (*Document, bool) {
	doc, ok := p.docs[filepath.Clean(path)]
	return doc, ok
}

// Paths lists the documents in lexical order.
func (p *Project) Paths() []string {
	out := make([]string, 0, len(p.docs))
	for path := range p.docs {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func (p *Project) classify(path string) Lang {
	return Classify(p.fs, path, p.cfg.EnableOtherStyleSheets)
}

func (p *Project) set(path, content string, opened bool, version int32) *Document {
	path = filepath.Clean(path)
	doc := newDocument(path, p.classify(path), content)
	doc.Opened = opened
	doc.Version = version
	p.docs[path] = doc
	return doc
}

func (p *Project) OpenFile(path, content string, version int32) *Document {
	return p.set(path, content, true, version)
}

// UpdateFile replaces the content of an opened document.
func (p *Project) UpdateFile(path, content string, version int32) *Document {
	return p.set(path, content, true, version)
}

// CloseFile hands the document back to the disk: it is reloaded when the file still
// exists and dropped otherwise.
func (p *Project) CloseFile(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			delete(p.docs, path)
			return nil
		}
		return errors.Errorf("reloading %s: %w", path, err)
	}
	p.set(path, string(data), false, 0)
	zerolog.Ctx(ctx).Debug().Str("path", path).Msg("document closed")
	return nil
}

// FileCreatedOrChanged reloads a file from disk unless it is opened in the editor.
func (p *Project) FileCreatedOrChanged(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	if doc, ok := p.docs[path]; ok && doc.Opened {
		return nil
	}
	if p.classify(path) == LangUnknown || p.ignored(path) {
		return nil
	}
	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return errors.Errorf("reading %s: %w", path, err)
	}
	p.set(path, string(data), false, 0)
	zerolog.Ctx(ctx).Debug().Str("path", path).Msg("document loaded from disk")
	return nil
}

// FileRemoved drops a document unless it is opened in the editor.
func (p *Project) FileRemoved(path string) {
	path = filepath.Clean(path)
	if doc, ok := p.docs[path]; ok && doc.Opened {
		return
	}
	delete(p.docs, path)
}

func (p *Project) ignored(path string) bool {
	return Ignored(p.cfg, p.root, path)
}

// Ignored reports whether path matches one of the ignore globs, relative to root.
func Ignored(cfg *config.Config, root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range cfg.IgnorePaths {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		// a directory glob such as "dist/**" also covers the directory itself
		if ok, _ := doublestar.Match(pattern, rel+"/"); ok {
			return true
		}
	}
	return false
}

// LoadAll reads every known file below the root. Files are read concurrently and
// inserted afterwards; read failures are collected and do not stop the others.
func (p *Project) LoadAll(ctx context.Context) error {
	var paths []string
	err := afero.Walk(p.fs, p.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != p.root && (skipDir(info.Name()) || p.ignored(path)) {
				return filepath.SkipDir
			}
			return nil
		}
		if p.classify(path) != LangUnknown && !p.ignored(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return errors.Errorf("walking %s: %w", p.root, err)
	}

	contents := make([]string, len(paths))
	failures := make([]error, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := afero.ReadFile(p.fs, path)
			if err != nil {
				failures[i] = errors.Errorf("reading %s: %w", path, err)
				return nil
			}
			contents[i] = string(data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Errorf("loading %s: %w", p.root, err)
	}

	var result *multierror.Error
	loaded := 0
	for i, path := range paths {
		if failures[i] != nil {
			result = multierror.Append(result, failures[i])
			continue
		}
		if doc, ok := p.docs[filepath.Clean(path)]; ok && doc.Opened {
			continue
		}
		p.set(path, contents[i], false, 0)
		loaded++
	}
	zerolog.Ctx(ctx).Debug().Str("root", p.root).Int("documents", loaded).Msg("project loaded")
	return result.ErrorOrNil()
}

func skipDir(name string) bool {
	return name == "node_modules" || strings.HasPrefix(name, ".")
}

// Discover finds project roots below dir: directories holding one of the manifest
// markers. Discovered roots are not searched further.
func Discover(ctx context.Context, fs afero.Fs, dir string, cfg *config.Config) ([]string, error) {
	var roots []string
	dir = filepath.Clean(dir)
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir && (skipDir(info.Name()) || Ignored(cfg, dir, path)) {
			return filepath.SkipDir
		}
		for _, marker := range cfg.ManifestMarkers {
			if ok, _ := afero.Exists(fs, filepath.Join(path, marker)); ok {
				roots = append(roots, path)
				zerolog.Ctx(ctx).Debug().Str("root", path).Str("marker", marker).Msg("discovered project")
				return filepath.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("discovering projects in %s: %w", dir, err)
	}
	return roots, nil
}

// FindRoot returns the nearest directory at or above the directory of path that holds a
// manifest marker.
func FindRoot(fs afero.Fs, path string, cfg *config.Config) (string, bool) {
	dir := filepath.Dir(filepath.Clean(path))
	for {
		for _, marker := range cfg.ManifestMarkers {
			if ok, _ := afero.Exists(fs, filepath.Join(dir, marker)); ok {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
