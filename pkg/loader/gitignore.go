// Package loader contains project-directory plumbing shared by init and the
// editor. This file keeps the local tree state out of version control: the
// config is meant to be committed, the database and UI state are not.
package loader

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// localStatePatterns are the .taggrove files that must never be committed.
var localStatePatterns = []string{
	".taggrove/*.db",
	".taggrove/ui-state.json",
	".taggrove/*.log",
}

// EnsureStateIgnored makes sure the project's .gitignore covers the local
// tree state. It is idempotent: patterns already present (in any of their
// usual spellings) are not added again, and existing content is preserved.
func EnsureStateIgnored(projectDir string) error {
	if projectDir == "" {
		var err error
		projectDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	gitignorePath := filepath.Join(projectDir, ".gitignore")

	missing, err := missingPatterns(gitignorePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if len(missing) == 0 {
		return nil
	}
	return appendToGitignore(gitignorePath, missing)
}

// missingPatterns returns the local-state patterns not yet covered by the
// .gitignore file.
func missingPatterns(path string) ([]string, error) {
	covered := make(map[string]bool)

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return localStatePatterns, nil
		}
		return nil, err
	}
	defer file.Close()

	wholeDir := false
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if coversWholeDir(line) {
			wholeDir = true
			break
		}
		covered[strings.TrimPrefix(line, "/")] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if wholeDir {
		return nil, nil
	}

	var missing []string
	for _, p := range localStatePatterns {
		if !covered[p] {
			missing = append(missing, p)
		}
	}
	return missing, nil
}

// coversWholeDir reports whether a gitignore line ignores all of .taggrove/,
// which makes the per-file patterns redundant.
func coversWholeDir(line string) bool {
	normalized := strings.TrimPrefix(line, "/")
	switch normalized {
	case ".taggrove", ".taggrove/", ".taggrove/*", ".taggrove/**", ".taggrove/**/*":
		return true
	}
	return false
}

// appendToGitignore appends the given patterns, creating the file if needed
// and keeping a blank-line separation from existing content.
func appendToGitignore(path string, patterns []string) error {
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	block := "# taggrove local state\n" + strings.Join(patterns, "\n") + "\n"

	var toWrite string
	if len(content) == 0 {
		toWrite = block
	} else {
		if content[len(content)-1] != '\n' {
			toWrite = "\n"
		}
		toWrite += "\n" + block
	}

	_, err = file.WriteString(toWrite)
	return err
}
