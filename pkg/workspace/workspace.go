// Package workspace routes editor events and queries to the project that owns a file.
package workspace

import (
	"context"
	"path/filepath"
	"sync"
	"weak"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"

	"github.com/walteh/wxls/pkg/actor"
	"github.com/walteh/wxls/pkg/config"
	"github.com/walteh/wxls/pkg/diagnostic"
	"github.com/walteh/wxls/pkg/lsp/protocol"
	"github.com/walteh/wxls/pkg/position"
	"github.com/walteh/wxls/pkg/project"
)

type Workspace struct {
	fs  afero.Fs
	cfg *config.Config
	dir *actor.Directory[*project.Project]

	mu       sync.Mutex
	notifier weak.Pointer[protocol.Notifier]
	watcher  *Watcher
}

// New creates an empty workspace. cfg is shared by every project and must not be
// modified afterwards.
func New(fs afero.Fs, cfg *config.Config) *Workspace {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Workspace{
		fs:  fs,
		cfg: cfg,
		dir: actor.NewDirectory[*project.Project](),
	}
}

func (w *Workspace) Config() *config.Config {
	return w.cfg
}

// SetNotifier points diagnostics at n without keeping it alive.
func (w *Workspace) SetNotifier(n *protocol.Notifier) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notifier = weak.Make(n)
}

// AddFolder discovers the projects below dir and loads them. It returns the new roots.
func (w *Workspace) AddFolder(ctx context.Context, dir string) ([]string, error) {
	roots, err := project.Discover(ctx, w.fs, dir, w.cfg)
	if err != nil {
		return nil, err
	}
	known := map[string]bool{}
	for _, r := range w.dir.Roots() {
		known[r] = true
	}
	var added []string
	for _, root := range roots {
		if known[root] {
			continue
		}
		w.AddProject(ctx, root)
		added = append(added, root)
	}
	return added, nil
}

// AddProject loads root and starts its actor, replacing any project already there.
// Files that fail to load are logged and skipped.
func (w *Workspace) AddProject(ctx context.Context, root string) {
	root = filepath.Clean(root)
	p := project.New(w.fs, root, w.cfg)
	if err := p.LoadAll(ctx); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("root", root).Msg("some project files could not be loaded")
	}
	a := actor.New(ctx, p)
	if prev := w.dir.Register(root, a); prev != nil {
		if err := prev.Close(ctx); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("root", root).Msg("closing replaced project")
		}
	}
	zerolog.Ctx(ctx).Info().Str("root", root).Str("actor_id", a.ID()).Int("documents", len(p.Paths())).Msg("project added")

	w.mu.Lock()
	watcher := w.watcher
	w.mu.Unlock()
	if watcher != nil {
		if err := watcher.addTree(ctx, root); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("root", root).Msg("watching project")
		}
	}
}

func (w *Workspace) Roots() []string {
	return w.dir.Roots()
}

func (w *Workspace) route(path string) (*actor.Actor[*project.Project], error) {
	a, _, err := w.dir.Lookup(path)
	return a, err
}

// run executes fn on the project owning path.
func run[R any](ctx context.Context, w *Workspace, path string, fn func(ctx context.Context, p *project.Project) (R, error)) (R, error) {
	a, err := w.route(path)
	if err != nil {
		var zero R
		return zero, err
	}
	return actor.Do(ctx, a, fn)
}

func (w *Workspace) OpenFile(ctx context.Context, path, text string, version int32) error {
	diags, err := run(ctx, w, path, func(ctx context.Context, p *project.Project) ([]diagnostic.Diagnostic, error) {
		return diagnostic.ForDocument(p.OpenFile(path, text, version)), nil
	})
	if err != nil {
		return errors.Errorf("opening %s: %w", path, err)
	}
	w.publish(ctx, path, version, diags)
	return nil
}

func (w *Workspace) ChangeFile(ctx context.Context, path, text string, version int32) error {
	diags, err := run(ctx, w, path, func(ctx context.Context, p *project.Project) ([]diagnostic.Diagnostic, error) {
		return diagnostic.ForDocument(p.UpdateFile(path, text, version)), nil
	})
	if err != nil {
		return errors.Errorf("changing %s: %w", path, err)
	}
	w.publish(ctx, path, version, diags)
	return nil
}

// CloseFile hands the file back to the disk and clears its diagnostics.
func (w *Workspace) CloseFile(ctx context.Context, path string) error {
	_, err := run(ctx, w, path, func(ctx context.Context, p *project.Project) (struct{}, error) {
		return struct{}{}, p.CloseFile(ctx, path)
	})
	if err != nil {
		return errors.Errorf("closing %s: %w", path, err)
	}
	w.publish(ctx, path, 0, nil)
	return nil
}

// FileChanged applies a change seen on disk. Paths no project claims are ignored.
func (w *Workspace) FileChanged(ctx context.Context, path string, removed bool) error {
	_, err := run(ctx, w, path, func(ctx context.Context, p *project.Project) (struct{}, error) {
		if removed {
			p.FileRemoved(path)
			return struct{}{}, nil
		}
		return struct{}{}, p.FileCreatedOrChanged(ctx, path)
	})
	if errors.Is(err, actor.ErrNoProject) {
		return nil
	}
	return err
}

// Document returns the current document for path. Documents are immutable, so the
// result can be read outside the project.
func (w *Workspace) Document(ctx context.Context, path string) (*project.Document, error) {
	return run(ctx, w, path, func(ctx context.Context, p *project.Project) (*project.Document, error) {
		doc, ok := p.Document(path)
		if !ok {
			return nil, errors.Errorf("%s: %w", path, project.ErrDocumentNotFound)
		}
		return doc, nil
	})
}

func (w *Workspace) Definition(ctx context.Context, path string, place position.Place) ([]project.Location, error) {
	return run(ctx, w, path, func(ctx context.Context, p *project.Project) ([]project.Location, error) {
		return p.FindDeclaration(path, place)
	})
}

func (w *Workspace) References(ctx context.Context, path string, place position.Place, includeDeclaration bool) ([]project.Location, error) {
	return run(ctx, w, path, func(ctx context.Context, p *project.Project) ([]project.Location, error) {
		return p.FindReferences(path, place, includeDeclaration)
	})
}

// TokenInfo describes the token under a position in either dialect.
type TokenInfo struct {
	Kind      string         `yaml:"kind" json:"kind"`
	Name      string         `yaml:"name,omitempty" json:"name,omitempty"`
	Range     position.Range `yaml:"range" json:"range"`
	Component string         `yaml:"component,omitempty" json:"component,omitempty"`
}

func (w *Workspace) TokenAt(ctx context.Context, path string, place position.Place) (TokenInfo, error) {
	return run(ctx, w, path, func(ctx context.Context, p *project.Project) (TokenInfo, error) {
		doc, ok := p.Document(path)
		if !ok {
			return TokenInfo{}, errors.Errorf("%s: %w", path, project.ErrDocumentNotFound)
		}
		if doc.Lang.IsStyleSheet() {
			tok, err := p.StyleTokenAt(path, place)
			if err != nil {
				return TokenInfo{}, err
			}
			return TokenInfo{Kind: tok.Kind.String(), Name: tok.Name, Range: tok.Location}, nil
		}
		tok, err := p.TemplateTokenAt(path, place)
		if err != nil {
			return TokenInfo{}, err
		}
		return TokenInfo{Kind: tok.Kind.String(), Name: tok.Name, Range: tok.Location, Component: tok.Component}, nil
	})
}

func (w *Workspace) publish(ctx context.Context, path string, version int32, diags []diagnostic.Diagnostic) {
	w.mu.Lock()
	ptr := w.notifier
	w.mu.Unlock()

	params := &protocol.PublishDiagnosticsParams{
		URI:         protocol.URIFromPath(path),
		Version:     version,
		Diagnostics: make([]protocol.Diagnostic, 0, len(diags)),
	}
	for _, d := range diags {
		params.Diagnostics = append(params.Diagnostics, protocol.Diagnostic{
			Range:    protocol.FromRange(d.Range),
			Severity: protocol.DiagnosticSeverity(d.Severity),
			Code:     d.Code,
			Source:   diagnostic.Source,
			Message:  d.Message,
		})
	}
	sent, err := protocol.NotifyWeak(ctx, ptr, protocol.MethodPublishDiagnostics, params)
	switch {
	case err != nil:
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("publishing diagnostics")
	case !sent:
		zerolog.Ctx(ctx).Debug().Str("path", path).Msg("no client for diagnostics")
	}
}

// Close stops the watcher and every project.
func (w *Workspace) Close(ctx context.Context) error {
	w.mu.Lock()
	watcher := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	var err error
	if watcher != nil {
		err = multierr.Append(err, watcher.Close())
	}
	return multierr.Append(err, w.dir.Close(ctx))
}
