package actor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/wxls/pkg/actor"
)

func TestDirectoryLookup(t *testing.T) {
	ctx := context.Background()
	dir := actor.NewDirectory[*store]()
	outer := actor.New(ctx, newStore())
	inner := actor.New(ctx, newStore())
	sibling := actor.New(ctx, newStore())
	dir.Register("/ws/app", outer)
	dir.Register("/ws/app/sub", inner)
	dir.Register("/ws/app-2", sibling)
	defer func() { require.NoError(t, dir.Close(ctx)) }()

	tests := []struct {
		name     string
		path     string
		want     *actor.Actor[*store]
		wantRoot string
		wantErr  bool
	}{
		{name: "test_outer", path: "/ws/app/pages/index.wxml", want: outer, wantRoot: "/ws/app"},
		{name: "test_longest_ancestor", path: "/ws/app/sub/a.wxml", want: inner, wantRoot: "/ws/app/sub"},
		{name: "test_root_itself", path: "/ws/app/sub", want: inner, wantRoot: "/ws/app/sub"},
		{name: "test_prefix_is_not_ancestor", path: "/ws/app-2/a.wxml", want: sibling, wantRoot: "/ws/app-2"},
		{name: "test_unclean_path", path: "/ws/app/sub/../b.wxml", want: outer, wantRoot: "/ws/app"},
		{name: "test_unclaimed", path: "/elsewhere/a.wxml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, root, err := dir.Lookup(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, actor.ErrNoProject))
				assert.Contains(t, err.Error(), tt.path)
				return
			}
			require.NoError(t, err)
			assert.Same(t, tt.want, got)
			assert.Equal(t, tt.wantRoot, root)
		})
	}

	assert.Equal(t, []string{"/ws/app", "/ws/app-2", "/ws/app/sub"}, dir.Roots())
}

func TestDirectoryClose(t *testing.T) {
	ctx := context.Background()
	dir := actor.NewDirectory[*store]()
	a := actor.New(ctx, newStore())
	prev := dir.Register("/p", a)
	assert.Nil(t, prev)

	require.NoError(t, dir.Close(ctx))
	assert.Empty(t, dir.Roots())
	assert.Equal(t, actor.StateShutDown, a.State())

	_, _, err := dir.Lookup("/p/a.wxml")
	assert.True(t, errors.Is(err, actor.ErrNoProject))
}
