package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	serve_lsp "github.com/walteh/wxls/cmd/wxls/serve-lsp"
	token_at "github.com/walteh/wxls/cmd/wxls/token-at"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand(buildVersion()).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, errors.Errorf("wxls: %w", err))
		os.Exit(1)
	}
}

// buildVersion reports the module version stamped by the go tool, "(devel)" for local builds.
func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "unknown"
	}
	return info.Main.Version
}

func newRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "wxls",
		Short:         "language server for wxml templates and wxss stylesheets",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(&cobra.Command{
		Use:    "raw-version",
		Hidden: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	})
	root.AddCommand(serve_lsp.NewServeLSPCommand(version))
	root.AddCommand(token_at.NewTokenAtCommand())

	return root
}
