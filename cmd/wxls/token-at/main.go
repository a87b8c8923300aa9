package token_at

import (
	"context"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/walteh/wxls/pkg/config"
	"github.com/walteh/wxls/pkg/debug"
	"github.com/walteh/wxls/pkg/position"
	"github.com/walteh/wxls/pkg/project"
	"github.com/walteh/wxls/pkg/workspace"
)

type Handler struct {
	configPath string
	fs         afero.Fs
}

func NewTokenAtCommand() *cobra.Command {
	me := &Handler{fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "token-at <file> <line> <column>",
		Short: "print the token at a zero-based line and utf-16 column as yaml",
		Args:  cobra.ExactArgs(3),
	}

	cmd.Flags().StringVar(&me.configPath, "config", "", "path to a wxls.yaml or wxls.hcl file")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		line, err := strconv.Atoi(args[1])
		if err != nil {
			return errors.Errorf("parsing line %q: %w", args[1], err)
		}
		col, err := strconv.Atoi(args[2])
		if err != nil {
			return errors.Errorf("parsing column %q: %w", args[2], err)
		}
		return me.Run(cmd.Context(), cmd.OutOrStdout(), args[0], position.Place{Line: line, Character: col})
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context, out io.Writer, file string, place position.Place) error {
	path, err := filepath.Abs(file)
	if err != nil {
		return errors.Errorf("resolving %s: %w", file, err)
	}

	root, ok := "", false
	cfg := config.Default()
	if me.configPath != "" {
		if cfg, err = config.Load(me.fs, me.configPath); err != nil {
			return err
		}
	}
	if root, ok = project.FindRoot(me.fs, path, cfg); !ok {
		root = filepath.Dir(path)
	} else if me.configPath == "" {
		if cfg, err = config.Find(me.fs, root); err != nil {
			return err
		}
	}

	logger := debug.NewLogger(io.Discard, cfg.Level(), false)
	ctx = logger.WithContext(ctx)

	ws := workspace.New(me.fs, cfg)
	defer ws.Close(ctx)
	ws.AddProject(ctx, root)

	tok, err := ws.TokenAt(ctx, path, place)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(tok); err != nil {
		return errors.Errorf("encoding token: %w", err)
	}
	return enc.Close()
}
