package workspace_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/wxls/pkg/actor"
	"github.com/walteh/wxls/pkg/config"
	"github.com/walteh/wxls/pkg/lsp/protocol"
	"github.com/walteh/wxls/pkg/position"
	"github.com/walteh/wxls/pkg/workspace"
)

type published struct {
	mu     sync.Mutex
	params []*protocol.PublishDiagnosticsParams
}

func (p *published) notify(ctx context.Context, method string, params any) error {
	if method != protocol.MethodPublishDiagnostics {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.params = append(p.params, params.(*protocol.PublishDiagnosticsParams))
	return nil
}

func (p *published) last() *protocol.PublishDiagnosticsParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.params) == 0 {
		return nil
	}
	return p.params[len(p.params)-1]
}

func newWorkspace(t *testing.T) (afero.Fs, *workspace.Workspace) {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/ws/app/app.json":         `{}`,
		"/ws/app/pages/a.wxml":     `<view wx:for="{{list}}">{{item}}</view>`,
		"/ws/app/pages/a.wxss":     `.x { color: red; }`,
		"/ws/other/app.wxss":       ``,
		"/ws/other/index.wxml":     `<view/>`,
		"/ws/loose/unclaimed.wxml": `<view/>`,
	}
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	ws := workspace.New(fs, config.Default())
	roots, err := ws.AddFolder(context.Background(), "/ws")
	require.NoError(t, err)
	require.Equal(t, []string{"/ws/app", "/ws/other"}, roots)
	t.Cleanup(func() { require.NoError(t, ws.Close(context.Background())) })
	return fs, ws
}

func TestAddFolderIsIdempotent(t *testing.T) {
	_, ws := newWorkspace(t)
	roots, err := ws.AddFolder(context.Background(), "/ws")
	require.NoError(t, err)
	assert.Empty(t, roots)
	assert.Equal(t, []string{"/ws/app", "/ws/other"}, ws.Roots())
}

func TestOpenPublishesDiagnostics(t *testing.T) {
	ctx := context.Background()
	_, ws := newWorkspace(t)
	pub := &published{}
	n := protocol.NewNotifier(pub.notify)
	ws.SetNotifier(n)

	require.NoError(t, ws.OpenFile(ctx, "/ws/app/pages/a.wxml", `<view><text></view>`, 3))
	got := pub.last()
	require.NotNil(t, got)
	assert.Equal(t, protocol.URIFromPath("/ws/app/pages/a.wxml"), got.URI)
	assert.Equal(t, int32(3), got.Version)
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, "element is never closed: text", got.Diagnostics[0].Message)

	require.NoError(t, ws.ChangeFile(ctx, "/ws/app/pages/a.wxml", `<view><text/></view>`, 4))
	got = pub.last()
	assert.Equal(t, int32(4), got.Version)
	assert.Empty(t, got.Diagnostics)

	require.NoError(t, ws.CloseFile(ctx, "/ws/app/pages/a.wxml"))
	got = pub.last()
	assert.Empty(t, got.Diagnostics)
	assert.NotNil(t, got.Diagnostics, "cleared diagnostics are sent as an empty list")

	doc, err := ws.Document(ctx, "/ws/app/pages/a.wxml")
	require.NoError(t, err)
	assert.False(t, doc.Opened)
	assert.Equal(t, `<view wx:for="{{list}}">{{item}}</view>`, doc.Content)

	runtime.KeepAlive(n)
}

func TestNotifierIsHeldWeakly(t *testing.T) {
	ctx := context.Background()
	_, ws := newWorkspace(t)
	pub := &published{}
	ws.SetNotifier(protocol.NewNotifier(pub.notify))
	runtime.GC()
	runtime.GC()

	require.NoError(t, ws.OpenFile(ctx, "/ws/app/pages/a.wxml", `<view>`, 1))
	assert.Nil(t, pub.last())
}

func TestRouting(t *testing.T) {
	ctx := context.Background()
	_, ws := newWorkspace(t)

	err := ws.OpenFile(ctx, "/ws/loose/unclaimed.wxml", "<view/>", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, actor.ErrNoProject))

	assert.NoError(t, ws.FileChanged(ctx, "/ws/loose/unclaimed.wxml", false), "unclaimed disk events are ignored")

	doc, err := ws.Document(ctx, "/ws/other/index.wxml")
	require.NoError(t, err)
	assert.Equal(t, "/ws/other/index.wxml", doc.Path)
}

func TestFileChanged(t *testing.T) {
	ctx := context.Background()
	fs, ws := newWorkspace(t)

	require.NoError(t, afero.WriteFile(fs, "/ws/app/pages/b.wxml", []byte("<text/>"), 0o644))
	require.NoError(t, ws.FileChanged(ctx, "/ws/app/pages/b.wxml", false))
	doc, err := ws.Document(ctx, "/ws/app/pages/b.wxml")
	require.NoError(t, err)
	assert.Equal(t, "<text/>", doc.Content)

	require.NoError(t, ws.FileChanged(ctx, "/ws/app/pages/b.wxml", true))
	_, err = ws.Document(ctx, "/ws/app/pages/b.wxml")
	assert.Error(t, err)
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	_, ws := newWorkspace(t)
	src := `<view wx:for="{{list}}">{{item}}</view>`
	item := position.NewIndex(src).PlaceFor(len(`<view wx:for="{{list}}">{{`) + 1)

	tok, err := ws.TokenAt(ctx, "/ws/app/pages/a.wxml", item)
	require.NoError(t, err)
	assert.Equal(t, "ScopeRef", tok.Kind)
	assert.Equal(t, "item", tok.Name)

	defs, err := ws.Definition(ctx, "/ws/app/pages/a.wxml", item)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, position.Place{Line: 0, Character: 6}, defs[0].Range.Start)

	refs, err := ws.References(ctx, "/ws/app/pages/a.wxml", item, true)
	require.NoError(t, err)
	assert.Len(t, refs, 2)

	styleTok, err := ws.TokenAt(ctx, "/ws/app/pages/a.wxss", position.Place{Line: 0, Character: 1})
	require.NoError(t, err)
	assert.Equal(t, "Class", styleTok.Kind)
	assert.Equal(t, "x", styleTok.Name)
}

func TestWatcher(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("paths below use forward slashes")
	}
	ctx := context.Background()
	dir := t.TempDir()
	root := filepath.Join(dir, "app")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pages"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.json"), []byte("{}"), 0o644))

	ws := workspace.New(afero.NewOsFs(), config.Default())
	defer ws.Close(ctx)
	_, err := ws.AddFolder(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, ws.Watch(ctx))

	path := filepath.Join(root, "pages", "a.wxml")
	require.NoError(t, os.WriteFile(path, []byte("<view/>"), 0o644))
	require.Eventually(t, func() bool {
		doc, err := ws.Document(ctx, path)
		return err == nil && doc.Content == "<view/>"
	}, 5*time.Second, 10*time.Millisecond)

	nested := filepath.Join(root, "components", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	// the new directory is watched asynchronously
	time.Sleep(100 * time.Millisecond)
	cpath := filepath.Join(nested, "c.wxml")
	require.NoError(t, os.WriteFile(cpath, []byte("<text/>"), 0o644))
	require.Eventually(t, func() bool {
		doc, err := ws.Document(ctx, cpath)
		return err == nil && doc.Content == "<text/>"
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		_, err := ws.Document(ctx, path)
		return err != nil
	}, 5*time.Second, 10*time.Millisecond)
}
