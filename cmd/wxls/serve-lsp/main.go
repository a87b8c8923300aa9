package serve_lsp

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/wxls/pkg/config"
	"github.com/walteh/wxls/pkg/debug"
	"github.com/walteh/wxls/pkg/lsp"
	"github.com/walteh/wxls/pkg/workspace"
)

type Handler struct {
	debug      bool
	configPath string
	noWatch    bool
	version    string
}

func NewServeLSPCommand(version string) *cobra.Command {
	me := &Handler{version: version}

	cmd := &cobra.Command{
		Use:   "serve-lsp",
		Short: "start the language server on stdio",
	}

	cmd.Flags().BoolVar(&me.debug, "debug", false, "enable debug logging and forward logs to the client")
	cmd.Flags().StringVar(&me.configPath, "config", "", "path to a wxls.yaml or wxls.hcl file")
	cmd.Flags().BoolVar(&me.noWatch, "no-watch", false, "do not watch the workspace for file changes")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return me.Run(cmd.Context())
	}

	return cmd
}

func (me *Handler) loadConfig(fs afero.Fs) (*config.Config, error) {
	if me.configPath != "" {
		return config.Load(fs, me.configPath)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Errorf("getting working directory: %w", err)
	}
	return config.Find(fs, wd)
}

func (me *Handler) Run(ctx context.Context) error {
	fs := afero.NewOsFs()
	cfg, err := me.loadConfig(fs)
	if err != nil {
		return err
	}

	level := cfg.Level()
	if me.debug {
		level = zerolog.DebugLevel
	}
	// stdout carries the protocol, so logs go to stderr
	logger := debug.NewLogger(os.Stderr, level, false)
	ctx = logger.WithContext(ctx)

	server := lsp.NewServer(workspace.New(fs, cfg), lsp.Options{
		Watch:       !me.noWatch,
		ForwardLogs: me.debug,
		Version:     me.version,
	})

	if err := server.ServeStreams(ctx, os.Stdin, os.Stdout); err != nil {
		return errors.Errorf("error running language server: %w", err)
	}

	return nil
}
