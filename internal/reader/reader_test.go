package reader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weavedoc/textgen/internal/executor"
	"github.com/weavedoc/textgen/internal/section"
)

// fakeExecutor compiles by returning the source verbatim, so tests can
// assert on Code.Source without depending on the real script engine.
type fakeExecutor struct{}

func (fakeExecutor) Compile(source string, opts executor.CompileOptions) (executor.Code, error) {
	return executor.Code{Source: source, Filename: opts.Filename}, nil
}

func (fakeExecutor) Prepare(init []executor.Code, ns executor.Namespace) (executor.Namespace, error) {
	return ns, nil
}

func (fakeExecutor) Run(program executor.Code, ns executor.Namespace) (interface{}, error) {
	return executor.Result{Location: section.NullLocation{}, Text: program.Source}, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadExtractsDataAndModuleBlocks(t *testing.T) {
	dir := t.TempDir()
	doc := "intro\n\n```ugo\n// " + section.Marker + " generate module\nexport := {greet: func() { return \"hi\" }}\n```\n\nmore text\n\n```ugo\n// " + section.Marker + " generate data\nresult\n```\n"
	path := writeFile(t, dir, "doc.md", doc)

	reg := NewRegistry(fakeExecutor{})
	r, err := reg.Cached(path)
	require.NoError(t, err)

	assert.Len(t, r.codes, 1)
	assert.Len(t, r.dataBlocks, 1)
	assert.Contains(t, r.dataBlocks[0].code.Source, "result")
}

func TestReadPreservesBlankLineCountForLineNumbers(t *testing.T) {
	dir := t.TempDir()
	doc := "\n\n\n```ugo\n// " + section.Marker + " generate data\nbody\n```\n"
	path := writeFile(t, dir, "doc.md", doc)

	reg := NewRegistry(fakeExecutor{})
	r, err := reg.Cached(path)
	require.NoError(t, err)

	require.Len(t, r.dataBlocks, 1)
	source := r.dataBlocks[0].code.Source

	// "body" sits on the line after three blanks, the fence, and the
	// directive; the compiled program must place it on the same line.
	bodyLine := strings.Count(doc[:strings.Index(doc, "body")], "\n") + 1
	require.Equal(t, 6, bodyLine)
	assert.Equal(t, bodyLine-1, countLeadingNewlines(source))
}

func TestReadZeroBlankPrefixKeepsLineNumbers(t *testing.T) {
	dir := t.TempDir()
	doc := "```ugo\n// " + section.Marker + " generate data\nbody\n```\n"
	path := writeFile(t, dir, "doc.md", doc)

	reg := NewRegistry(fakeExecutor{})
	r, err := reg.Cached(path)
	require.NoError(t, err)

	// Fence on line 1, directive on line 2, so "body" is source line 3.
	require.Len(t, r.dataBlocks, 1)
	assert.Equal(t, 2, countLeadingNewlines(r.dataBlocks[0].code.Source))
}

func countLeadingNewlines(s string) int {
	n := 0
	for n < len(s) && s[n] == '\n' {
		n++
	}
	return n
}

func TestImportResolvesAndDedupsInitCodes(t *testing.T) {
	dir := t.TempDir()
	libDoc := "```ugo\n// " + section.Marker + " generate module\nlib_code\n```\n"
	writeFile(t, dir, "lib.md", libDoc)

	mainDoc := "```ugo\n// " + section.Marker + " generate data\n# import lib.md\n# import lib.md\nuse_lib\n```\n"
	mainPath := writeFile(t, dir, "main.md", mainDoc)

	reg := NewRegistry(fakeExecutor{})
	r, err := reg.Cached(mainPath)
	require.NoError(t, err)

	require.Len(t, r.dataBlocks, 1)
	assert.Len(t, r.dataBlocks[0].initCodes, 1)
	assert.Contains(t, r.dataBlocks[0].initCodes[0].Source, "lib_code")
}

func TestCyclicImportIsParseError(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.md")
	bPath := filepath.Join(dir, "b.md")

	aDoc := "```ugo\n// " + section.Marker + " generate module\n# import b.md\na_code\n```\n"
	bDoc := "```ugo\n// " + section.Marker + " generate module\n# import a.md\nb_code\n```\n"
	require.NoError(t, os.WriteFile(aPath, []byte(aDoc), 0o644))
	require.NoError(t, os.WriteFile(bPath, []byte(bDoc), 0o644))

	reg := NewRegistry(fakeExecutor{})
	_, err := reg.Cached(aPath)
	require.Error(t, err)
}

func TestCachedReaderIsReusedAcrossImporters(t *testing.T) {
	dir := t.TempDir()
	libDoc := "```ugo\n// " + section.Marker + " generate module\nshared\n```\n"
	writeFile(t, dir, "shared.md", libDoc)

	docA := "```ugo\n// " + section.Marker + " generate data\n# import shared.md\na\n```\n"
	docB := "```ugo\n// " + section.Marker + " generate data\n# import shared.md\nb\n```\n"
	pathA := writeFile(t, dir, "a.md", docA)
	pathB := writeFile(t, dir, "b.md", docB)

	reg := NewRegistry(fakeExecutor{})
	ra, err := reg.Cached(pathA)
	require.NoError(t, err)
	shared, err := reg.Cached(filepath.Join(dir, "shared.md"))
	require.NoError(t, err)

	rb, err := reg.Cached(pathB)
	require.NoError(t, err)
	sharedAfterB, err := reg.Cached(filepath.Join(dir, "shared.md"))
	require.NoError(t, err)

	assert.Len(t, ra.dataBlocks[0].initCodes, 1)
	assert.Len(t, rb.dataBlocks[0].initCodes, 1)
	assert.Same(t, shared, sharedAfterB)
	_ = ra
	_ = rb
}

func TestPipeBuildsOneWriterSpecPerDataBlock(t *testing.T) {
	dir := t.TempDir()
	doc := "```ugo\n// " + section.Marker + " generate data\nfirst\n```\n\n```ugo\n// " + section.Marker + " generate data\nsecond\n```\n"
	path := writeFile(t, dir, "doc.md", doc)

	reg := NewRegistry(fakeExecutor{})
	r, err := reg.Cached(path)
	require.NoError(t, err)

	specs := r.Pipe(PipeOptions{SectionRegistry: section.NewRegistry()})
	require.Len(t, specs, 2)
	assert.Equal(t, path, specs[0].Env.CWF)
	assert.Equal(t, dir, specs[0].Env.CWD)
}

func TestUnrecognizedBlockTagIsValidationError(t *testing.T) {
	dir := t.TempDir()
	doc := "```ugo\n// " + section.Marker + " generate bogus\nbody\n```\n"
	path := writeFile(t, dir, "doc.md", doc)

	reg := NewRegistry(fakeExecutor{})
	_, err := reg.Cached(path)
	require.Error(t, err)
}
