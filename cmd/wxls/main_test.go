package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "test_raw_version", args: []string{"raw-version"}, want: "v1.2.3\n"},
		{name: "test_version_flag", args: []string{"--version"}, want: "wxls version v1.2.3\n"},
		{name: "test_token_at_needs_args", args: []string{"token-at", "a.wxml"}, wantErr: true},
		{name: "test_token_at_bad_line", args: []string{"token-at", "a.wxml", "x", "1"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCommand("v1.2.3")
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetErr(&out)
			root.SetArgs(tt.args)
			err := root.Execute()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.String())
		})
	}
}
