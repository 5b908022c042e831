// Package identity derives the name of a command's log file from its
// command line. The flattened command line is matched against the optional
// pattern file; the match length decides how many leading arguments name
// the file, and later arguments that are existing paths are always kept so
// the file being worked on shows up in the log name.
package identity

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/iambrandonn/loggy/internal/config"
)

// ErrNotLogged is returned when a pattern file exists but none of its
// patterns match the command line.
var ErrNotLogged = errors.New("command not selected for logging")

// MaxPrefixLen keeps log names well below the usual 255 byte name limit.
const MaxPrefixLen = 200

// unsafeChars are replaced by '-' in prefixes.
const unsafeChars = " \t\n!\"#$&'()*;<=>?[\\]^`{|}/"

// Identity names one invocation's log file.
type Identity struct {
	// Command is the argument list joined by single spaces, unescaped.
	Command string
	// Prefix is the sanitized log file name prefix.
	Prefix string
}

// Resolver computes identities.
type Resolver struct {
	// Patterns is the loaded pattern file, nil when there is none.
	Patterns *config.Patterns
	// Exists reports whether a path exists. Defaults to os.Stat.
	Exists func(path string) bool
}

// Flatten joins args with single spaces.
func Flatten(args []string) string {
	return strings.Join(args, " ")
}

// Resolve computes the identity for args, where args[0] is the program name
// as invoked.
func (r *Resolver) Resolve(args []string) (Identity, error) {
	if len(args) == 0 {
		return Identity{}, errors.New("identity: empty command line")
	}

	command := Flatten(args)
	name := filepath.Base(args[0])

	limit := len(name)
	if r.Patterns != nil {
		end, ok := r.Patterns.Match(command)
		if !ok || end == 0 {
			return Identity{}, ErrNotLogged
		}
		// The prefix starts from the base name, so discount any directory
		// part of args[0] that the pattern consumed.
		limit = end - (len(args[0]) - len(name))
	}

	exists := r.Exists
	if exists == nil {
		exists = pathExists
	}

	var b strings.Builder
	b.WriteString(name)
	for _, arg := range args[1:] {
		if b.Len()+1 < limit || (!strings.HasPrefix(arg, "-") && exists(arg)) {
			b.WriteByte('-')
			b.WriteString(strings.Trim(arg, "-"))
		}
	}

	return Identity{Command: command, Prefix: Sanitize(b.String())}, nil
}

// Sanitize replaces shell, glob and path separator characters with '-' and
// bounds the length to MaxPrefixLen.
func Sanitize(prefix string) string {
	// Bytes, not runes: file names need not be valid UTF-8 and every unsafe
	// character is ASCII.
	b := []byte(prefix)
	for i, c := range b {
		if strings.IndexByte(unsafeChars, c) >= 0 {
			b[i] = '-'
		}
	}
	if len(b) > MaxPrefixLen {
		cut := MaxPrefixLen
		if utf8.Valid(b) {
			for cut > 0 && !utf8.RuneStart(b[cut]) {
				cut--
			}
		}
		b = b[:cut]
	}
	return string(b)
}

func pathExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
