package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileService_JSONRoundTrip(t *testing.T) {
	fs := NewFileService()
	path := filepath.Join(t.TempDir(), "nested", "pins.json")

	exists, err := fs.IsFileExists(path)
	require.NoError(t, err)
	assert.False(t, exists)

	in := map[string]any{"id": "a", "note": "hello"}
	require.NoError(t, fs.WriteJsonFile(path, in))

	exists, err = fs.IsFileExists(path)
	require.NoError(t, err)
	assert.True(t, exists)

	var out map[string]any
	require.NoError(t, fs.ReadJsonFile(path, &out))
	assert.Equal(t, in, out)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileService_RawAndRemove(t *testing.T) {
	fs := NewFileService()
	path := filepath.Join(t.TempDir(), "export.json")

	require.NoError(t, fs.WriteFileRaw(path, []byte("[]")))
	data, err := fs.ReadFileRaw(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	require.NoError(t, fs.RemoveFile(path))
	require.NoError(t, fs.RemoveFile(path))

	_, err = fs.ReadFileRaw(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileService_ReadYamlFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\nlocation:\n  deadline: 10s\n"), 0o600))

	var cfg struct {
		LogLevel string `yaml:"log_level"`
		Location struct {
			Deadline string `yaml:"deadline"`
		} `yaml:"location"`
	}
	require.NoError(t, NewFileService().ReadYamlFile(path, &cfg))
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "10s", cfg.Location.Deadline)
}
