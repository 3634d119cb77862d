package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weavedoc/textgen/internal/config"
	"github.com/weavedoc/textgen/internal/section"
)

// fakeExecutor is a minimal in-memory Executor used to exercise
// Environment.Exec without depending on the real script engine.
type fakeExecutor struct {
	runs      []Namespace
	rawResult interface{}
	onRun     func(ns Namespace) interface{}
}

func (f *fakeExecutor) Compile(source string, opts CompileOptions) (Code, error) {
	return Code{Source: source, Filename: opts.Filename, Compiled: source}, nil
}

func (f *fakeExecutor) Prepare(init []Code, ns Namespace) (Namespace, error) {
	for _, c := range init {
		ns[c.Source] = true
	}
	return ns, nil
}

func (f *fakeExecutor) Run(program Code, ns Namespace) (interface{}, error) {
	f.runs = append(f.runs, ns)
	if f.onRun != nil {
		return f.onRun(ns), nil
	}
	if f.rawResult != nil {
		return f.rawResult, nil
	}
	return Result{Location: section.NullLocation{}, Text: program.Source}, nil
}

func TestNormalizeResultsSingleton(t *testing.T) {
	results, err := NormalizeResults("f.md", Result{Text: "x"})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestNormalizeResultsSlice(t *testing.T) {
	results, err := NormalizeResults("f.md", []Result{{Text: "a"}, {Text: "b"}})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestNormalizeResultsRejectsOtherTypes(t *testing.T) {
	_, err := NormalizeResults("f.md", "not a result")
	require.Error(t, err)
}

func TestNormalizeResultsRejectsMixedSlice(t *testing.T) {
	_, err := NormalizeResults("f.md", []interface{}{Result{Text: "a"}, "oops"})
	require.Error(t, err)
}

func TestEnvironmentExecInjectsCapabilities(t *testing.T) {
	fe := &fakeExecutor{}
	env := &Environment{
		Executor: fe,
		Registry: section.NewRegistry(),
		Config:   config.Default(),
		CWF:      "/docs/note.md",
		CWD:      "/docs",
	}

	program := Code{Source: "payload"}
	results, err := env.Exec(program, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "payload", results[0].Text)

	require.Len(t, fe.runs, 1)
	assert.Equal(t, "/docs/note.md", fe.runs[0]["cwf"])
	assert.Equal(t, "/docs", fe.runs[0]["cwd"])
	assert.NotNil(t, fe.runs[0]["cwf_sect"])
	assert.NotNil(t, fe.runs[0]["render_policy"])
}

func TestEnvironmentDecodesResultMaps(t *testing.T) {
	fe := &fakeExecutor{}
	env := &Environment{
		Executor: fe,
		Registry: section.NewRegistry(),
		Config:   config.Default(),
		CWF:      "/docs/note.md",
		CWD:      "/docs",
	}

	fe.rawResult = map[string]interface{}{"location": "", "text": "into the null sink"}
	results, err := env.Exec(Code{Source: "p"}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.IsType(t, section.NullLocation{}, results[0].Location)
	assert.Equal(t, "into the null sink", results[0].Text)

	fe.rawResult = []interface{}{
		map[string]interface{}{"location": "out.txt", "text": "a"},
		map[string]interface{}{"text": "b"},
	}
	results, err = env.Exec(Code{Source: "p"}, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, section.PathLocation{Path: "/docs/out.txt"}, results[0].Location)
	assert.IsType(t, section.NullLocation{}, results[1].Location)
}

func TestEnvironmentResolvesSectionTokens(t *testing.T) {
	fe := &fakeExecutor{}
	env := &Environment{
		Executor: fe,
		Registry: section.NewRegistry(),
		Config:   config.Default(),
		CWF:      "/docs/note.md",
		CWD:      "/docs",
	}

	fe.onRun = func(ns Namespace) interface{} {
		sect := ns["cwf_sect"].(func(string) string)
		return map[string]interface{}{"location": sect("intro"), "text": "payload"}
	}
	results, err := env.Exec(Code{Source: "p"}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	loc, ok := results[0].Location.(section.FileSectionLocation)
	require.True(t, ok)
	assert.Equal(t, "/docs/note.md", loc.Path)
	assert.Equal(t, "intro", loc.Name)
}

func TestEnvironmentRejectsMalformedResultMap(t *testing.T) {
	fe := &fakeExecutor{}
	env := &Environment{
		Executor: fe,
		Registry: section.NewRegistry(),
		Config:   config.Default(),
		CWF:      "/docs/note.md",
		CWD:      "/docs",
	}

	fe.rawResult = map[string]interface{}{"location": "x"}
	_, err := env.Exec(Code{Source: "p"}, nil)
	require.Error(t, err)

	fe.rawResult = map[string]interface{}{"location": "loc:99", "text": "x"}
	_, err = env.Exec(Code{Source: "p"}, nil)
	require.Error(t, err)
}

func TestEnvironmentLibraryMemoizedUntilConfigDirty(t *testing.T) {
	fe := &fakeExecutor{}
	cfg := config.Default()
	env := &Environment{Executor: fe, Registry: section.NewRegistry(), Config: cfg, CWF: "a.md", CWD: "."}

	first := env.library()
	second := env.library()
	assert.Equal(t, first["cwf"], second["cwf"])
	assert.Equal(t, first["cwd"], second["cwd"])

	cfg.ClozeToken.Open = "[["
	dirty := env.library()
	assert.Equal(t, "a.md", dirty["cwf"])
}
