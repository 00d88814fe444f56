// Package discover enumerates extractable files in a repository subtree.
package discover

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// FileEntry is one discovered source file.
type FileEntry struct {
	Path     string // relative to the root
	Language string
}

var skipDirs = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	"dist":         {},
	"build":        {},
	".git":         {},
	".terraform":   {},
	"__pycache__":  {},
}

// extLanguages maps file extensions to language identifiers.
var extLanguages = map[string]string{
	".js":  "javascript",
	".mjs": "javascript",
	".cjs": "javascript",
	".jsx": "javascript",
	".ts":  "typescript",
	".mts": "typescript",
	".cts": "typescript",
	".tsx": "tsx",
	".tf":  "terraform",
}

// Files walks root and returns the files whose language is in languages
// (all supported languages when the list is empty). Entries matched by a
// root .gitignore are skipped, as are hidden and dependency directories.
func Files(root string, languages []string) ([]FileEntry, error) {
	langSet := make(map[string]struct{}, len(languages))
	for _, l := range languages {
		langSet[l] = struct{}{}
	}

	gi := loadGitignore(root)

	var results []FileEntry
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}

		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") || d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		lang, ok := extLanguages[strings.ToLower(filepath.Ext(name))]
		if !ok {
			return nil
		}
		if len(langSet) > 0 {
			if _, ok := langSet[lang]; !ok {
				return nil
			}
		}

		results = append(results, FileEntry{Path: rel, Language: lang})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
