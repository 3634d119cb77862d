package writer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weavedoc/textgen/internal/section"
)

func writeTwoSections(t *testing.T, dir, bodyX, bodyY string) string {
	t.Helper()
	path := filepath.Join(dir, "doc.md")
	doc := "before\n" +
		"<!--" + section.Marker + ` generate section="x"-->` + bodyX + "<!--/" + section.Marker + "-->" +
		"\nmiddle\n" +
		"<!--" + section.Marker + ` generate section="y"-->` + bodyY + "<!--/" + section.Marker + "-->" +
		"\nafter\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestClearContentTruncatesEverySection(t *testing.T) {
	dir := t.TempDir()
	reg := section.NewRegistry()
	path := writeTwoSections(t, dir, "<!-- The following content is generated at 2024-01-02T03:04:05.000000+00:00. Any edits will be overridden! -->payload-x", "payload-y")

	w := NewClear(reg, path, ClearOpts{Types: ClearContent})
	require.NoError(t, w.Write())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "payload-x")
	assert.NotContains(t, string(content), "payload-y")
	assert.NotContains(t, string(content), "generated at")
	assert.Contains(t, string(content), "before")
	assert.Contains(t, string(content), "middle")
	assert.Contains(t, string(content), "after")
}

func TestClearContentIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	reg := section.NewRegistry()
	path := writeTwoSections(t, dir, "payload-x", "payload-y")

	w := NewClear(reg, path, ClearOpts{Types: ClearContent})
	require.NoError(t, w.Write())
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, w.Write())
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestClearFlashcardStateStripsStateAnnotationsOnly(t *testing.T) {
	dir := t.TempDir()
	reg := section.NewRegistry()
	path := writeTwoSections(t, dir, "front::back <!--SR:!2024-01-02,1,250-->", "q::a")

	w := NewClear(reg, path, ClearOpts{Types: ClearFlashcardState})
	require.NoError(t, w.Write())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "front::back")
	assert.NotContains(t, string(content), "<!--SR:")
	assert.Contains(t, string(content), "q::a")
}
