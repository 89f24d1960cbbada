package cmd_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onronder/p-958660-sub000/cmd"
)

func TestVersion(t *testing.T) {
	t.Parallel()

	root := cmd.NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Equal(t, "extractor version dev\n", out.String())
}

func TestCommandTree(t *testing.T) {
	t.Parallel()

	root := cmd.NewRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "preview", "extract", "test-connection", "migrate", "version"})
}

func TestPreview_FlagValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"missing source", []string{"preview", "--template", "recent_orders"}},
		{"no selection", []string{"preview", "--source", "src-1"}},
		{"two selections", []string{"preview", "--source", "src-1", "--template", "recent_orders", "--query", "{ shop { name } }"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			root := cmd.NewRootCommand()
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			root.SetArgs(tt.args)
			assert.Error(t, root.ExecuteContext(context.Background()))
		})
	}
}

func TestMigrate_ArgumentValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"force needs a version", []string{"migrate", "force"}},
		{"force rejects non-numeric", []string{"migrate", "force", "abc"}},
		{"up takes no args", []string{"migrate", "up", "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			root := cmd.NewRootCommand()
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			root.SetArgs(tt.args)
			assert.Error(t, root.ExecuteContext(context.Background()))
		})
	}
}
