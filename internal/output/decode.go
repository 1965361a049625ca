package output

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode"
)

// Decode reads fragments from r, which holds either a JSON array of fragment
// objects or a sequence of fragment objects (typically one per line, as the
// compile service streams them). Unknown types are an error.
func Decode(r io.Reader) ([]Fragment, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return []Fragment{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fragments: %w", err)
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var fragments []Fragment
		if err := dec.Decode(&fragments); err != nil {
			return nil, fmt.Errorf("decode fragment array: %w", err)
		}
		for i, f := range fragments {
			if f.Type == "" {
				return nil, fmt.Errorf("decode fragment %d: missing type", i+1)
			}
		}
		if fragments == nil {
			fragments = []Fragment{}
		}
		return fragments, nil
	}

	fragments := []Fragment{}
	for n := 1; ; n++ {
		var f Fragment
		err := dec.Decode(&f)
		if errors.Is(err, io.EOF) {
			return fragments, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode fragment %d: %w", n, err)
		}
		if f.Type == "" {
			return nil, fmt.Errorf("decode fragment %d: missing type", n)
		}
		fragments = append(fragments, f)
	}
}

// Encode writes fragments as one JSON object per line.
func Encode(w io.Writer, fragments []Fragment) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, f := range fragments {
		if err := enc.Encode(f); err != nil {
			return err
		}
	}
	return nil
}

func peekNonSpace(br *bufio.Reader) (rune, error) {
	for {
		r, _, err := br.ReadRune()
		if err != nil {
			return 0, err
		}
		if !unicode.IsSpace(r) {
			return r, br.UnreadRune()
		}
	}
}
