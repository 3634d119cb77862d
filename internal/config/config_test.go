package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsNotDirty(t *testing.T) {
	assert.False(t, Dirty(Default()))
}

func TestDirtyDetectsOverride(t *testing.T) {
	cfg := Default()
	cfg.ClozeToken.Open = "[["
	assert.True(t, Dirty(cfg))
}

func TestSeparatorLookupAndFallback(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "::", cfg.Separator(false, false))
	assert.Equal(t, ":::", cfg.Separator(true, false))
	assert.Equal(t, "\n??\n", cfg.Separator(false, true))
	assert.Equal(t, "\n???\n", cfg.Separator(true, true))

	delete(cfg.FlashcardSeparators, SeparatorKey{Reversible: true, Multiline: true})
	assert.Equal(t, "::", cfg.Separator(true, true))
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesClozeTokenAndSeparators(t *testing.T) {
	dir := t.TempDir()
	content := `cloze_token {
    open "((("
    close ")))"
}
separators {
    singleline "|"
    reversible_singleline "||"
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, overrideFile), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "(((", cfg.ClozeToken.Open)
	assert.Equal(t, ")))", cfg.ClozeToken.Close)
	assert.Equal(t, "|", cfg.Separator(false, false))
	assert.Equal(t, "||", cfg.Separator(true, false))
	assert.Equal(t, "\n??\n", cfg.Separator(false, true))
}
