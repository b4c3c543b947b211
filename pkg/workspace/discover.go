package workspace

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

var generatedRe = regexp.MustCompile(`(?i)^\s*//\s*Code generated`)

var skipDirs = map[string]bool{
	"vendor":       true,
	"testdata":     true,
	"node_modules": true,
}

// Discover returns the absolute paths of every repairable Go source file
// under root, sorted lexicographically. Generated files, vendored code, and
// anything matched by the project's .gitignore are excluded; _test.go files
// are excluded when skipTests is set.
func Discover(root string, skipTests bool) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	rules := ignoreRules(absRoot)

	var files []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != absRoot && (skipDirs[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, ".go") {
			return nil
		}
		if skipTests && strings.HasSuffix(name, "_test.go") {
			return nil
		}
		rel, relErr := filepath.Rel(absRoot, path)
		if relErr == nil && rules != nil && rules.MatchesPath(rel) {
			return nil
		}
		if isGenerated(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ignoreRules reads .gitignore and .agentic-typer/.ignore, when present.
func ignoreRules(root string) *ignore.GitIgnore {
	var allRules []string
	for _, name := range []string{
		filepath.Join(root, ".gitignore"),
		filepath.Join(root, ".agentic-typer", ".ignore"),
	} {
		if rules, err := readIgnoreFile(name); err == nil {
			allRules = append(allRules, rules...)
		}
	}
	if len(allRules) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(allRules...)
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

// isGenerated checks the first few lines for the canonical generated-code
// marker.
func isGenerated(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for i := 0; i < 5 && scanner.Scan(); i++ {
		if generatedRe.MatchString(scanner.Text()) {
			return true
		}
	}
	return false
}
