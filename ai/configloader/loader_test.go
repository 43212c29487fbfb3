package configloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type promptFile struct {
	SystemPrompt string `yaml:"system_prompt"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "prompt.yaml", "system_prompt: |\n  Be kind.\n  Be brief.\n")
	var got promptFile
	require.NoError(t, Load(path, &got))
	assert.Equal(t, "Be kind.\nBe brief.\n", got.SystemPrompt)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "prompt.yml", "sytem_prompt: typo\n")
	var got promptFile
	require.Error(t, Load(path, &got))
}

func TestLoadMissingFile(t *testing.T) {
	var got promptFile
	require.Error(t, Load(filepath.Join(t.TempDir(), "nope.yaml"), &got))
}

func TestIsYAML(t *testing.T) {
	assert.True(t, IsYAML("a/b.YAML"))
	assert.True(t, IsYAML("b.yml"))
	assert.False(t, IsYAML("prompt.txt"))
}
