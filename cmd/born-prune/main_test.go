package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "born-prune "+version+"\n", out)
}

func TestRunCmd(t *testing.T) {
	dir := t.TempDir()
	runFile := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(runFile, []byte("prune:\n  sparsity: 0.25\n"), 0o600))
	export := filepath.Join(dir, "out.safetensors")

	out, err := execute(t, "run", "--config", runFile, "--output", export, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "sparsity_level: 0.25")
	assert.FileExists(t, export)
}

func TestRunCmd_InvalidFlagOverride(t *testing.T) {
	_, err := execute(t, "run", "--log-level", "loud")
	assert.Error(t, err)
}
