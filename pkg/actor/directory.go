package actor

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
)

var ErrNoProject = errors.Base("no project claims path")

// Directory routes paths to the actor of the project whose root is the path's longest
// ancestor.
type Directory[S any] struct {
	mu     sync.RWMutex
	actors map[string]*Actor[S]
}

func NewDirectory[S any]() *Directory[S] {
	return &Directory[S]{actors: map[string]*Actor[S]{}}
}

// Register adds an actor for root, replacing and returning any previous one.
func (d *Directory[S]) Register(root string, a *Actor[S]) *Actor[S] {
	d.mu.Lock()
	defer d.mu.Unlock()
	root = filepath.Clean(root)
	prev := d.actors[root]
	d.actors[root] = a
	return prev
}

func (d *Directory[S]) Lookup(path string) (*Actor[S], string, error) {
	path = filepath.Clean(path)
	d.mu.RLock()
	defer d.mu.RUnlock()

	best := ""
	for root := range d.actors {
		if !within(root, path) {
			continue
		}
		if len(root) > len(best) {
			best = root
		}
	}
	if best == "" {
		return nil, "", errors.Errorf("%s: %w", path, ErrNoProject)
	}
	return d.actors[best], best, nil
}

func within(root, path string) bool {
	if root == path {
		return true
	}
	if root == string(os.PathSeparator) {
		return strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(os.PathSeparator))
}

// Roots lists the registered roots in lexical order.
func (d *Directory[S]) Roots() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.actors))
	for root := range d.actors {
		out = append(out, root)
	}
	sort.Strings(out)
	return out
}

// Close shuts every actor down and forgets them.
func (d *Directory[S]) Close(ctx context.Context) error {
	d.mu.Lock()
	actors := d.actors
	d.actors = map[string]*Actor[S]{}
	d.mu.Unlock()

	var err error
	for _, a := range actors {
		err = multierr.Append(err, a.Close(ctx))
	}
	return err
}
