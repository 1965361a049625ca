// Package argv converts between shell-style option strings and the raw
// option format stored with a session, which holds one option per line.
package argv

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnterminatedQuote is returned by Split for a quote that is never closed.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// Split breaks s into words using POSIX shell quoting, without expansion.
//
// Unquoted spaces, tabs and newlines separate words. Single quotes keep
// their contents literally. Double quotes keep their contents, except that a
// backslash escapes $, `, ", \ and newline. Outside quotes a backslash
// escapes any rune, and a backslash-newline is removed. Quotes may appear
// anywhere in a word, so -DMSG="a b" is the single word -DMSG=a b.
func Split(s string) ([]string, error) {
	var (
		words  []string
		word   strings.Builder
		inWord bool
		quote  rune
		esc    bool
	)
	for _, r := range s {
		switch {
		case esc:
			esc = false
			if r == '\n' {
				continue
			}
			if quote == '"' && !strings.ContainsRune("$`\"\\", r) {
				word.WriteByte('\\')
			}
			word.WriteRune(r)
			inWord = true
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				word.WriteRune(r)
			}
		case r == '\\':
			esc = true
		case quote == '"':
			if r == '"' {
				quote = 0
			} else {
				word.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n':
			if inWord {
				words = append(words, word.String())
				word.Reset()
				inWord = false
			}
		default:
			word.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("%w: missing closing %c", ErrUnterminatedQuote, quote)
	}
	if esc {
		// A trailing backslash has nothing to escape.
		word.WriteByte('\\')
		inWord = true
	}
	if inWord {
		words = append(words, word.String())
	}
	return words, nil
}

// ToRaw joins options into the stored raw format. Options must not contain
// newlines.
func ToRaw(options []string) (string, error) {
	for _, o := range options {
		if strings.ContainsAny(o, "\r\n") {
			return "", fmt.Errorf("option %q contains a line break", o)
		}
	}
	return strings.Join(options, "\n"), nil
}

// FromRaw splits the stored raw format into options. Blank lines are
// ignored.
func FromRaw(raw string) []string {
	var options []string
	for line := range strings.Lines(raw) {
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) != "" {
			options = append(options, line)
		}
	}
	return options
}

// Join quotes each word as needed and joins them with spaces, such that
// Split(Join(words)) returns words.
func Join(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = Quote(w)
	}
	return strings.Join(quoted, " ")
}

// Quote returns w single-quoted if it holds anything the shell would
// interpret, and unchanged otherwise.
func Quote(w string) string {
	if w == "" {
		return "''"
	}
	if !strings.ContainsAny(w, " \t\n'\"\\$`*?[]{}()<>|&;#~!") {
		return w
	}
	return "'" + strings.ReplaceAll(w, "'", `'\''`) + "'"
}

// SplitRaw parses a shell-style option string straight into the stored raw
// format.
func SplitRaw(s string) (string, error) {
	words, err := Split(s)
	if err != nil {
		return "", err
	}
	return ToRaw(words)
}
