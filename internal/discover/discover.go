// Package discover enumerates candidate source files under a project root.
package discover

import (
	"bufio"
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Options configures discovery.
type Options struct {
	// Extensions to match, with or without the leading dot. Matching is case-sensitive.
	Extensions []string
	// ExcludeDirs are directory base names that are never descended into.
	ExcludeDirs []string
	// OnError is called for paths that could not be read. They are skipped.
	OnError func(path string, err error)
}

// Walker yields files under Root that pass the extension and ignore filters.
type Walker struct {
	Root    string
	opts    Options
	exts    map[string]bool
	exclude map[string]bool
	ignore  *ignore.GitIgnore
}

// New creates a Walker for root. The root's .gitignore, when present, is honoured.
func New(root string, opts Options) *Walker {
	w := &Walker{
		Root:    root,
		opts:    opts,
		exts:    map[string]bool{},
		exclude: map[string]bool{},
		ignore:  ignoreRules(root),
	}
	for _, e := range opts.Extensions {
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		w.exts[e] = true
	}
	for _, d := range opts.ExcludeDirs {
		w.exclude[d] = true
	}
	return w
}

// Files walks the tree lazily in lexical order. Stopping the range loop early
// stops the walk; so does cancelling ctx.
func (w *Walker) Files(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return filepath.SkipAll
			}
			if err != nil {
				w.report(path, err)
				if d != nil && d.IsDir() && path != w.Root {
					return filepath.SkipDir
				}
				return nil
			}

			rel, _ := filepath.Rel(w.Root, path)
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if path == w.Root {
					return nil
				}
				if w.exclude[d.Name()] || w.ignored(rel+"/") {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if !w.exts[filepath.Ext(path)] || w.ignored(rel) {
				return nil
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// Collect returns every matching file. Intended for callers that need a count up front.
func (w *Walker) Collect(ctx context.Context) []string {
	var files []string
	for f := range w.Files(ctx) {
		files = append(files, f)
	}
	return files
}

func (w *Walker) ignored(rel string) bool {
	return w.ignore != nil && w.ignore.MatchesPath(rel)
}

func (w *Walker) report(path string, err error) {
	if w.opts.OnError != nil {
		w.opts.OnError(path, err)
	}
}

// ignoreRules reads the root .gitignore and returns a matcher, or nil if there are no rules.
func ignoreRules(root string) *ignore.GitIgnore {
	lines, err := readIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil || len(lines) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(lines...)
}

func readIgnoreFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
