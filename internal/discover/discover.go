// Package discover walks a repository and enumerates candidate Python source
// files, honoring a fixed excluded-directory set plus caller-supplied
// skip-dir basenames.
package discover

import (
	"context"
	"os"
	"path/filepath"

	"github.com/crv/py-callscan/internal/lang"
)

// fixedExcludedDirs are always skipped regardless of --skip-dir.
var fixedExcludedDirs = map[string]bool{
	"__pycache__": true,
	".git":        true,
	".venv":       true,
	"env":         true,
	"venv":        true,
	"build":       true,
	"dist":        true,
}

// FileInfo represents a discovered source file.
type FileInfo struct {
	Path     string        // absolute path
	RelPath  string        // relative to repo root, slash-separated
	Language lang.Language // detected language
}

// Options configures file discovery.
type Options struct {
	// SkipDirs are additional directory basenames to exclude, on top of the
	// fixed excluded set.
	SkipDirs []string
}

func shouldSkipDir(name string, extraSkip map[string]bool) bool {
	return fixedExcludedDirs[name] || extraSkip[name]
}

// Discover walks root and returns every file whose extension maps to a
// registered language, skipping excluded directories. Files are returned in
// the order filepath.Walk visits them (lexical, depth-first); callers that
// need a stable order should sort RelPath themselves.
func Discover(ctx context.Context, root string, opts *Options) ([]FileInfo, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	extraSkip := map[string]bool{}
	if opts != nil {
		for _, d := range opts.SkipDirs {
			extraSkip[d] = true
		}
	}

	var files []FileInfo
	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return filepath.SkipDir
		}

		if info.IsDir() {
			if path != root && shouldSkipDir(info.Name(), extraSkip) {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		ext := filepath.Ext(path)
		l, ok := lang.LanguageForExtension(ext)
		if !ok {
			return nil
		}

		files = append(files, FileInfo{
			Path:     path,
			RelPath:  filepath.ToSlash(rel),
			Language: l,
		})
		return nil
	})

	return files, err
}
