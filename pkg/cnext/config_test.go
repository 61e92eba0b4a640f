package cnext

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Config_Defaults(t *testing.T) {
	config, err := LoadProjectConfig(filepath.Join(t.TempDir(), "main.cnx"))
	require.NoError(t, err)
	//
	assert.Equal(t, "c", config.Mode)
	assert.False(t, config.Debug)
	assert.False(t, config.Atomic)
	assert.Equal(t, "default", config.Overflow)
}

func Test_Config_ProjectFile(t *testing.T) {
	dir := t.TempDir()
	//
	yaml := "mode: cpp\ndebug: true\noverflow: clamp\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigFile), []byte(yaml), 0644))
	//
	config, err := LoadProjectConfig(filepath.Join(dir, "main.cnx"))
	require.NoError(t, err)
	//
	assert.Equal(t, "cpp", config.Mode)
	assert.True(t, config.Debug)
	assert.False(t, config.Atomic)
	assert.Equal(t, "clamp", config.Overflow)
}

func Test_Config_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigFile), []byte("mode: [unclosed"), 0644))
	//
	_, err := LoadProjectConfig(filepath.Join(dir, "main.cnx"))
	assert.Error(t, err)
}

func Test_Config_UnknownMode(t *testing.T) {
	config := DefaultConfig()
	config.Mode = "rust"
	//
	_, err := config.genConfig()
	assert.Error(t, err)
}

func Test_Config_UnknownOverflow(t *testing.T) {
	config := DefaultConfig()
	config.Overflow = "saturate"
	//
	_, err := config.genConfig()
	assert.Error(t, err)
}
