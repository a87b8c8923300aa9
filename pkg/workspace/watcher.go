package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/wxls/pkg/project"
)

// Watcher feeds file system events for the project trees into the workspace.
type Watcher struct {
	ws   *Workspace
	fsw  *fsnotify.Watcher
	done chan struct{}
}

// Watch starts watching every project root, and roots added later. It needs the
// workspace to be backed by the real file system.
func (w *Workspace) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Errorf("creating file watcher: %w", err)
	}
	watcher := &Watcher{ws: w, fsw: fsw, done: make(chan struct{})}

	for _, root := range w.Roots() {
		if err := watcher.addTree(ctx, root); err != nil {
			fsw.Close()
			return err
		}
	}

	w.mu.Lock()
	if w.watcher != nil {
		w.mu.Unlock()
		fsw.Close()
		return errors.New("workspace is already watching")
	}
	w.watcher = watcher
	w.mu.Unlock()

	go watcher.loop(context.WithoutCancel(ctx))
	return nil
}

// addTree watches dir and the directories below it that projects would load from.
func (wt *Watcher) addTree(ctx context.Context, dir string) error {
	err := afero.Walk(wt.ws.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir && (strings.HasPrefix(info.Name(), ".") || info.Name() == "node_modules" || project.Ignored(wt.ws.cfg, dir, path)) {
			return filepath.SkipDir
		}
		return wt.fsw.Add(path)
	})
	if err != nil {
		return errors.Errorf("watching %s: %w", dir, err)
	}
	zerolog.Ctx(ctx).Debug().Str("dir", dir).Msg("watching directory tree")
	return nil
}

func (wt *Watcher) loop(ctx context.Context) {
	defer close(wt.done)
	logger := zerolog.Ctx(ctx)
	for {
		select {
		case event, ok := <-wt.fsw.Events:
			if !ok {
				return
			}
			wt.handle(ctx, event)
		case err, ok := <-wt.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("file watcher error")
		}
	}
}

func (wt *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	logger := zerolog.Ctx(ctx).With().Str("path", event.Name).Str("op", event.Op.String()).Logger()

	var err error
	switch {
	case event.Has(fsnotify.Create):
		if info, statErr := wt.ws.fs.Stat(event.Name); statErr == nil && info.IsDir() {
			err = wt.addTree(ctx, event.Name)
			break
		}
		err = wt.ws.FileChanged(ctx, event.Name, false)
	case event.Has(fsnotify.Write):
		err = wt.ws.FileChanged(ctx, event.Name, false)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		err = wt.ws.FileChanged(ctx, event.Name, true)
	default:
		return
	}
	if err != nil {
		logger.Debug().Err(err).Msg("applying file event")
		return
	}
	logger.Trace().Msg("file event applied")
}

// Close stops the watcher and waits for its loop to finish.
func (wt *Watcher) Close() error {
	if err := wt.fsw.Close(); err != nil {
		return errors.Errorf("closing file watcher: %w", err)
	}
	<-wt.done
	return nil
}
