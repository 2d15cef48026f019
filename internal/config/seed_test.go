package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadControllerSeedMissingPathIsNotAnError(t *testing.T) {
	entries, err := LoadControllerSeed("")
	require.NoError(t, err)
	assert.Nil(t, entries)

	entries, err = LoadControllerSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestLoadControllerSeedParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "controllers.yaml")
	content := []byte(`
controllers:
  - dsl_filter: bandwidth
    method: SSYNC
    poll_schedule: "@every 10s"
    enabled: true
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	entries, err := LoadControllerSeed(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bandwidth", entries[0].DSLFilter)
	assert.Equal(t, "SSYNC", entries[0].Method)
	assert.True(t, entries[0].Enabled)

	c := entries[0].ToDomain()
	assert.Equal(t, "@every 10s", c.PollSchedule)
}

func TestLoadObjectTypeSeedParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "object_types.yaml")
	content := []byte(`
object_types:
  - name: image
    extensions: [".jpg", ".png"]
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	entries, err := LoadObjectTypeSeed(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "image", entries[0].Name)
	assert.Equal(t, []string{".jpg", ".png"}, entries[0].Extensions)
}
