package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestHashCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o600))

	out, err := run(t, "hash", path)

	require.NoError(t, err)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", out)
}

func TestHashCmd_MissingFile(t *testing.T) {
	_, err := run(t, "hash", filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestSignerCmd(t *testing.T) {
	seed := strings.Repeat("01", 32)

	first, err := run(t, "signer-pubkey", "--seed", seed)
	require.NoError(t, err)
	second, err := run(t, "signer-pubkey", "--seed", "0x"+seed)
	require.NoError(t, err)

	assert.Len(t, first, 64)
	assert.Equal(t, first, second)
}

func TestSignerCmd_RequiresSeed(t *testing.T) {
	t.Setenv("AGENT_SIGNING_KEY", "")

	_, err := run(t, "signer-pubkey")
	assert.ErrorContains(t, err, "no signing key")
}

func TestTopicEnsure_MemoryBackend(t *testing.T) {
	t.Setenv("NOTARY_BACKEND", "memory")
	t.Setenv("LOG_TOPIC_ID", "")

	out, err := run(t, "topic", "ensure")

	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestResumeUploads_MemoryBackend(t *testing.T) {
	t.Setenv("NOTARY_BACKEND", "memory")

	out, err := run(t, "resume-uploads")

	require.NoError(t, err)
	assert.Equal(t, "resumed 0 upload(s)", out)
}
