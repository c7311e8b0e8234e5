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

func TestReadPayload(t *testing.T) {
	file := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"from":"file"}`), 0o600))

	t.Run("inline flag wins", func(t *testing.T) {
		cmd := enqueueCmd()
		require.NoError(t, cmd.Flags().Set("data", `{"from":"flag"}`))

		got, err := readPayload(cmd, []string{file})
		require.NoError(t, err)
		assert.JSONEq(t, `{"from":"flag"}`, string(got))
	})

	t.Run("file", func(t *testing.T) {
		got, err := readPayload(enqueueCmd(), []string{file})
		require.NoError(t, err)
		assert.JSONEq(t, `{"from":"file"}`, string(got))
	})

	t.Run("stdin", func(t *testing.T) {
		cmd := enqueueCmd()
		cmd.SetIn(strings.NewReader(`{"from":"stdin"}`))

		got, err := readPayload(cmd, []string{"-"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"from":"stdin"}`, string(got))
	})

	t.Run("missing", func(t *testing.T) {
		_, err := readPayload(enqueueCmd(), nil)
		assert.Error(t, err)
	})
}

func TestRoutesCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := routesCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Contains(t, lines, "messaging_platform/inbound_text: [upsert_lead enqueue_intent_command]")
	assert.True(t, strings.HasPrefix(lines[0], "cms_platform/"), lines[0])
}
