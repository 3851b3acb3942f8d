// Package scan walks repository trees, filters them down to supported
// source files, and watches them for changes.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/dusk-indust/codegraph/internal/ast"
	"github.com/dusk-indust/codegraph/internal/graph"
)

// extLanguages maps file extensions to their grammar.
var extLanguages = map[string]ast.Language{
	".go":  ast.LangGo,
	".py":  ast.LangPython,
	".rs":  ast.LangRust,
	".ts":  ast.LangTypeScript,
	".tsx": ast.LangTypeScript,
}

// defaultExcludeDirs are directory names skipped in every scan.
var defaultExcludeDirs = []string{
	".git", "node_modules", "vendor", "target", "dist",
	"__pycache__", ".venv", ".idea", ".vscode",
}

// Options configures a Scanner.
type Options struct {
	Repo   string // repository name recorded on every node
	Root   string // filesystem root to walk
	Commit string
	Branch string

	// Languages restricts the scan; empty means every supported language.
	Languages []ast.Language

	// ExcludeDirs adds directory names to the default exclusion list.
	ExcludeDirs []string

	Log *slog.Logger
}

// Scanner walks a repository root and yields FileInput values for supported
// source files. It honors the root .gitignore and the exclusion list.
type Scanner struct {
	opts     Options
	langs    map[ast.Language]bool
	excludes map[string]bool
	ignore   *gitignore.GitIgnore
	log      *slog.Logger
}

// New returns a Scanner for the given root.
func New(opts Options) (*Scanner, error) {
	info, err := os.Stat(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan: %s is not a directory", opts.Root)
	}

	langs := make(map[ast.Language]bool)
	if len(opts.Languages) == 0 {
		for _, l := range ast.SupportedLanguages {
			langs[l] = true
		}
	} else {
		for _, l := range opts.Languages {
			langs[l] = true
		}
	}

	excludes := make(map[string]bool)
	for _, d := range defaultExcludeDirs {
		excludes[d] = true
	}
	for _, d := range opts.ExcludeDirs {
		excludes[d] = true
	}

	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	s := &Scanner{opts: opts, langs: langs, excludes: excludes, log: log}

	// A missing .gitignore is the common case, not an error.
	if ign, err := gitignore.CompileIgnoreFile(filepath.Join(opts.Root, ".gitignore")); err == nil {
		s.ignore = ign
	}
	return s, nil
}

// Root returns the scanned filesystem root.
func (s *Scanner) Root() string { return s.opts.Root }

// Repo returns the repository name recorded on scanned files.
func (s *Scanner) Repo() string { return s.opts.Repo }

// LanguageOf maps a path to its language, reporting whether the scan accepts
// the file.
func (s *Scanner) LanguageOf(path string) (ast.Language, bool) {
	lang, ok := extLanguages[strings.ToLower(filepath.Ext(path))]
	if !ok || !s.langs[lang] {
		return "", false
	}
	return lang, true
}

// Excluded reports whether a repo-relative path falls under an excluded
// directory or a .gitignore rule.
func (s *Scanner) Excluded(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if s.excludes[part] {
			return true
		}
	}
	return s.ignore != nil && s.ignore.MatchesPath(rel)
}

// Scan walks the root and returns one FileInput per accepted source file,
// sorted by path for deterministic processing.
func (s *Scanner) Scan(ctx context.Context) ([]graph.FileInput, error) {
	var inputs []graph.FileInput

	err := filepath.WalkDir(s.opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.log.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, relErr := filepath.Rel(s.opts.Root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if s.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.Excluded(rel) {
			return nil
		}

		lang, ok := s.LanguageOf(path)
		if !ok {
			return nil
		}

		in, err := s.load(path, rel, lang)
		if err != nil {
			s.log.Warn("skipping unreadable file", "path", rel, "error", err)
			return nil
		}
		inputs = append(inputs, in)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.opts.Root, err)
	}

	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Meta.Path < inputs[j].Meta.Path })
	s.log.Info("scan complete", "root", s.opts.Root, "files", len(inputs))
	return inputs, nil
}

// Load reads one file under the root into a FileInput. The path may be
// absolute or repo-relative.
func (s *Scanner) Load(path string) (graph.FileInput, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(s.opts.Root, path)
	}
	rel, err := filepath.Rel(s.opts.Root, abs)
	if err != nil {
		return graph.FileInput{}, fmt.Errorf("scan: %w", err)
	}
	lang, ok := s.LanguageOf(abs)
	if !ok {
		return graph.FileInput{}, fmt.Errorf("scan: unsupported file %s", rel)
	}
	return s.load(abs, rel, lang)
}

func (s *Scanner) load(abs, rel string, lang ast.Language) (graph.FileInput, error) {
	source, err := os.ReadFile(abs)
	if err != nil {
		return graph.FileInput{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return graph.FileInput{}, err
	}
	return graph.FileInput{
		Meta: graph.FileMeta{
			Repo:     s.opts.Repo,
			Path:     filepath.ToSlash(rel),
			Language: lang,
			Commit:   s.opts.Commit,
			Branch:   s.opts.Branch,
			ModTime:  info.ModTime(),
		},
		Source: source,
	}, nil
}

// Rel converts an absolute path under the root to the repo-relative slash
// form used as FileMeta.Path.
func (s *Scanner) Rel(abs string) (string, bool) {
	rel, err := filepath.Rel(s.opts.Root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
