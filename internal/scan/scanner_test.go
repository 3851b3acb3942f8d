package scan

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/codegraph/internal/ast"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestScanner_FindsSupportedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/main.py", "def main():\n    pass\n")
	writeFile(t, root, "lib/util.go", "package util\n")
	writeFile(t, root, "web/app.tsx", "export function App() {}\n")
	writeFile(t, root, "README.md", "# readme\n")
	writeFile(t, root, "node_modules/dep/index.ts", "export {}\n")

	s, err := New(Options{Repo: "repo", Root: root, Log: slog.Default()})
	require.NoError(t, err)

	inputs, err := s.Scan(context.Background())
	require.NoError(t, err)

	paths := make([]string, 0, len(inputs))
	for _, in := range inputs {
		paths = append(paths, in.Meta.Path)
	}
	assert.Equal(t, []string{"app/main.py", "lib/util.go", "web/app.tsx"}, paths)

	for _, in := range inputs {
		assert.Equal(t, "repo", in.Meta.Repo)
		assert.NotEmpty(t, in.Source)
		assert.False(t, in.Meta.ModTime.IsZero())
	}
}

func TestScanner_HonorsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "generated/\n*.gen.py\n")
	writeFile(t, root, "app.py", "x = 1\n")
	writeFile(t, root, "schema.gen.py", "x = 1\n")
	writeFile(t, root, "generated/out.py", "x = 1\n")

	s, err := New(Options{Repo: "repo", Root: root})
	require.NoError(t, err)

	inputs, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, "app.py", inputs[0].Meta.Path)
}

func TestScanner_LanguageFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "x = 1\n")
	writeFile(t, root, "b.rs", "fn b() {}\n")

	s, err := New(Options{Repo: "repo", Root: root, Languages: []ast.Language{ast.LangRust}})
	require.NoError(t, err)

	inputs, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, ast.LangRust, inputs[0].Meta.Language)
}

func TestScanner_ExcludeDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a.py", "x = 1\n")
	writeFile(t, root, "examples/b.py", "x = 1\n")

	s, err := New(Options{Repo: "repo", Root: root, ExcludeDirs: []string{"examples"}})
	require.NoError(t, err)

	inputs, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, "src/a.py", inputs[0].Meta.Path)
}

func TestScanner_RejectsMissingRoot(t *testing.T) {
	_, err := New(Options{Repo: "repo", Root: filepath.Join(t.TempDir(), "absent")})
	assert.Error(t, err)
}

func TestScanner_Load(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/m.py", "x = 1\n")

	s, err := New(Options{Repo: "repo", Root: root})
	require.NoError(t, err)

	in, err := s.Load("pkg/m.py")
	require.NoError(t, err)
	assert.Equal(t, "pkg/m.py", in.Meta.Path)
	assert.Equal(t, ast.LangPython, in.Meta.Language)

	_, err = s.Load("pkg/missing.py")
	assert.Error(t, err)
}
