package debug_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/wxls/pkg/debug"
)

func TestSplitFuncName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantPkg string
		wantFn  string
	}{
		{name: "test_function", in: "github.com/walteh/wxls/pkg/lsp.New", wantPkg: "github.com/walteh/wxls/pkg/lsp", wantFn: "New"},
		{name: "test_method", in: "github.com/walteh/wxls/pkg/lsp.(*Server).Serve", wantPkg: "github.com/walteh/wxls/pkg/lsp", wantFn: "(*Server).Serve"},
		{name: "test_main", in: "main.main", wantPkg: "main", wantFn: "main"},
		{name: "test_no_dot", in: "runtime", wantPkg: "runtime", wantFn: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, fn := debug.SplitFuncName(tt.in)
			assert.Equal(t, tt.wantPkg, pkg)
			assert.Equal(t, tt.wantFn, fn)
		})
	}
}

func TestFormatCaller(t *testing.T) {
	assert.Equal(t, "pkg/x:file.go:12", debug.FormatCaller("pkg/x", "/a/b/file.go", 12, false))
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := debug.NewLogger(&buf, zerolog.InfoLevel, false)
	logger.Debug().Msg("hidden")
	logger.Info().Str("k", "v").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "v", entry["k"])
	assert.NotEmpty(t, entry["caller"])
	assert.NotEmpty(t, entry["time"])
}
