package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConfigValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: test\naudit:\n  backends: [memory]\n"), 0o600))

	out, err := runCLI(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "config ok: env=test instruments=2")
}

func TestConfigValidateRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("audit:\n  backends: [kafka]\n"), 0o600))

	_, err := runCLI(t, "config", "validate", "--config", path)
	assert.ErrorContains(t, err, "kafka.brokers is required")
}
