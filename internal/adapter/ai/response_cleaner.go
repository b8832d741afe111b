// Package ai contains the language-model gateway, its providers' shared
// resilience pieces, and the cleanup applied to raw model output.
package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/pkg/textx"
)

var (
	codeFenceRe    = regexp.MustCompile("```[A-Za-z0-9_+-]*")
	quotedNumberRe = regexp.MustCompile(`:(\s*)"(-?\d+(?:\.\d+)?)"`)
)

// SanitizeJSON turns near-JSON model output into the best-effort text of a single
// JSON object. It does not repair structurally broken documents.
func SanitizeJSON(raw string) string { return sanitize(raw, '{', '}') }

// SanitizeJSONArray is SanitizeJSON for replies whose top level is an array.
func SanitizeJSONArray(raw string) string { return sanitize(raw, '[', ']') }

func sanitize(raw string, open, closing byte) string {
	// trim and drop control characters
	s := textx.SanitizeText(raw)
	s = strings.TrimSpace(codeFenceRe.ReplaceAllString(s, ""))
	if start := strings.IndexByte(s, open); start >= 0 {
		if end := strings.LastIndexByte(s, closing); end > start {
			s = s[start : end+1]
		}
	}
	s = quoteBareKeys(s)
	return quotedNumberRe.ReplaceAllString(s, ":$1$2")
}

// ParseJSON sanitizes raw and decodes it into T.
func ParseJSON[T any](raw string) (T, error) {
	return decode[T](SanitizeJSON(raw))
}

// ParseJSONArray sanitizes raw as an array and decodes it into []T.
func ParseJSONArray[T any](raw string) ([]T, error) {
	return decode[[]T](SanitizeJSONArray(raw))
}

func decode[T any](cleaned string) (T, error) {
	var out T
	if cleaned == "" {
		return out, fmt.Errorf("%w: empty response", domain.ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return out, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	return out, nil
}

// quoteBareKeys wraps identifier-like object keys in double quotes. Text inside
// string literals is left alone except for raw line breaks and tabs, which are
// escaped so the literal stays valid.
func quoteBareKeys(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	inString, escaped := false, false
	var last byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				last = '"'
			case c == '\n':
				b.WriteString(`\n`)
				continue
			case c == '\r':
				b.WriteString(`\r`)
				continue
			case c == '\t':
				b.WriteString(`\t`)
				continue
			}
			b.WriteByte(c)
			continue
		}

		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case isIdentStart(c):
			j := i + 1
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			k := j
			for k < len(s) && isSpace(s[k]) {
				k++
			}
			if k < len(s) && s[k] == ':' && (last == '{' || last == ',') {
				b.WriteByte('"')
				b.WriteString(s[i:j])
				b.WriteByte('"')
			} else {
				b.WriteString(s[i:j])
			}
			last = s[j-1]
			i = j - 1
		default:
			b.WriteByte(c)
			if !isSpace(c) {
				last = c
			}
		}
	}
	return b.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
