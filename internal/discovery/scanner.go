package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// Scanner scans for test files in a directory
type Scanner struct {
	skipSuffixes []string
	pattern      string
}

// NewScanner creates a new Scanner. Directories whose name ends with one of
// skipDirs are not descended into; files are kept when their slash path
// relative to the scan root matches pattern.
func NewScanner(skipDirs []string, pattern string) *Scanner {
	return &Scanner{skipSuffixes: skipDirs, pattern: pattern}
}

// IsTestFile reports whether rel, a path relative to a scan root, names a test source
func (s *Scanner) IsTestFile(rel string) bool {
	ok, err := doublestar.Match(s.pattern, filepath.ToSlash(rel))
	return err == nil && ok
}

// Skips reports whether a directory name is a dependency folder
func (s *Scanner) Skips(name string) bool {
	if strings.HasPrefix(name, ".") && name != "." && name != ".." {
		return true
	}
	for _, suffix := range s.skipSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Scan finds all test files in the given root directory, in walk order
func (s *Scanner) Scan(root string) ([]string, error) {
	var testfiles []string

	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("test path does not exist: %s", root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("test path is not a directory: %s", root)
	}

	gi := loadGitignore(root)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if s.Skips(d.Name()) || (gi != nil && gi.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}

		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if s.IsTestFile(rel) {
			testfiles = append(testfiles, path)
		}
		return nil
	})

	return testfiles, err
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
