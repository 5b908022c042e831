package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// SystemPath is consulted when the user has no pattern file of their own.
const SystemPath = "/etc/loggy"

// UserPath returns the per-user pattern file location.
func UserPath(home string) string {
	return filepath.Join(home, ".config", "loggy")
}

// Pattern is one compiled line of the pattern file.
type Pattern struct {
	Line   int
	Source string
	re     *regexp.Regexp
}

// Patterns is the loaded pattern file. The first pattern that matches a
// command line decides how much of it names the log file; a command line
// that matches no pattern is not logged at all.
type Patterns struct {
	Path     string
	Patterns []Pattern
}

// Find returns the first existing pattern file, or "" when there is none.
func Find(home string) (string, error) {
	for _, path := range []string{UserPath(home), SystemPath} {
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to stat config file %s: %w", path, err)
		}
	}
	return "", nil
}

// LoadFromFile reads and compiles a pattern file. Blank lines and lines
// starting with '#' are skipped.
func LoadFromFile(path string) (*Patterns, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	defer file.Close()

	p := &Patterns{Path: path}
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p.Patterns = append(p.Patterns, Pattern{Line: lineNo, Source: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Load finds and loads the pattern file for home. It returns nil without
// error when no pattern file exists.
func Load(home string) (*Patterns, error) {
	path, err := Find(home)
	if err != nil || path == "" {
		return nil, err
	}
	return LoadFromFile(path)
}

// Validate compiles every pattern and returns user-friendly error messages
func (p *Patterns) Validate() error {
	for i := range p.Patterns {
		pat := &p.Patterns[i]
		re, err := regexp.Compile(pat.Source)
		if err != nil {
			return fmt.Errorf("configuration error: %s:%d: could not compile pattern %q: %w\n\nHint: each non-comment line is a Go regular expression matched against the full command line", p.Path, pat.Line, pat.Source, err)
		}
		pat.re = re
	}
	return nil
}

// Match returns the end offset of the first pattern match in command and
// true, or false when no pattern matches.
func (p *Patterns) Match(command string) (int, bool) {
	for _, pat := range p.Patterns {
		if loc := pat.re.FindStringIndex(command); loc != nil {
			return loc[1], true
		}
	}
	return 0, false
}
