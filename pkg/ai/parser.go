package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrNoJSON means no decodable JSON value of the requested kind was found.
var ErrNoJSON = errors.New("no JSON value found in model output")

// ExtractObject decodes the first JSON object in text that fits v.
func ExtractObject(text string, v any) error {
	return extract(text, '{', '}', v)
}

// ExtractArray decodes the first JSON array in text that fits v. Prose such
// as "on a scale [0, 100]" ahead of the real array is skipped.
func ExtractArray(text string, v any) error {
	return extract(text, '[', ']', v)
}

// extract runs two stages:
//  1. strict parse of the whole reply (after dropping a Markdown code fence);
//  2. balanced-delimiter scan: every open delimiter is tried in order and the
//     first candidate that decodes into v's type wins.
//
// Candidates decode into a fresh value so a rejected one leaves v untouched.
func extract(text string, open, close byte, v any) error {
	trimmed := stripCodeFence(strings.TrimSpace(text))
	if len(trimmed) > 0 && trimmed[0] == open && json.Valid([]byte(trimmed)) {
		if err := json.Unmarshal([]byte(trimmed), v); err != nil {
			return fmt.Errorf("decode reply: %w", err)
		}
		return nil
	}

	var lastErr error
	for start := strings.IndexByte(text, open); start != -1; {
		end, err := balancedEnd(text, start, open, close)
		if err != nil {
			lastErr = err
		} else if candidate := text[start:end]; json.Valid([]byte(candidate)) {
			if err := decodeInto(candidate, v); err != nil {
				lastErr = fmt.Errorf("decode extracted value: %w", err)
			} else {
				return nil
			}
		} else {
			lastErr = fmt.Errorf("candidate at offset %d is not valid JSON", start)
		}

		next := strings.IndexByte(text[start+1:], open)
		if next == -1 {
			break
		}
		start += next + 1
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %v", ErrNoJSON, lastErr)
	}
	return ErrNoJSON
}

// decodeInto unmarshals data into a new value of v's type and copies it to v
// only on success.
func decodeInto(data string, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return json.Unmarshal([]byte(data), v)
	}
	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal([]byte(data), fresh.Interface()); err != nil {
		return err
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

// balancedEnd returns the offset just past the delimiter that closes the one
// at start. Delimiters inside JSON strings are ignored.
func balancedEnd(s string, start int, open, close byte) (int, error) {
	level := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			level++
		case close:
			level--
			if level == 0 {
				return i + 1, nil
			}
		}
	}
	return -1, fmt.Errorf("unbalanced %q starting at offset %d", open, start)
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl != -1 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
