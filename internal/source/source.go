// Package source reads documentation inputs and scans Python-style module
// docstrings out of them.
package source

import (
	"fmt"
	"os"
	"strings"
)

// FileAccessError reports a source, example or figure file that could not be
// opened or read.
type FileAccessError struct {
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("cannot read %s: %v", e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

// ReadFile returns the whole file as text.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &FileAccessError{Path: path, Err: err}
	}
	return string(data), nil
}

const tripleQuote = `"""`

// StripDocstring removes the first minimal `"""...."""` block that is
// immediately followed by a newline, together with that newline. Text
// without such a block is returned unchanged.
func StripDocstring(text string) string {
	start := strings.Index(text, tripleQuote)
	if start < 0 {
		return text
	}
	bodyStart := start + len(tripleQuote)
	end := strings.Index(text[bodyStart:], tripleQuote+"\n")
	if end < 0 {
		return text
	}
	end = bodyStart + end + len(tripleQuote) + 1
	return text[:start] + text[end:]
}

// LeadingDocstring returns the body of the docstring that opens a module,
// skipping blank lines, comments and a shebang/encoding line before it.
// Triple double and triple single quotes are both accepted.
func LeadingDocstring(text string) (string, bool) {
	rest := text
	for rest != "" {
		line, tail, _ := strings.Cut(rest, "\n")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			rest = tail
			continue
		}
		break
	}
	rest = strings.TrimLeft(rest, " \t")

	// String prefixes such as r""" are legal for module docstrings.
	if len(rest) > 0 && strings.ContainsRune("rRuU", rune(rest[0])) {
		if len(rest) > 1 && (rest[1] == '"' || rest[1] == '\'') {
			rest = rest[1:]
		}
	}

	for _, q := range []string{`"""`, `'''`} {
		if !strings.HasPrefix(rest, q) {
			continue
		}
		body := rest[len(q):]
		end := strings.Index(body, q)
		if end < 0 {
			return "", false
		}
		return body[:end], true
	}
	return "", false
}
