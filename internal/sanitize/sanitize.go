// Package sanitize reduces free text to a small allow-list of inline formatting.
package sanitize

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultMaxLength bounds every sanitized field, counted in characters.
const DefaultMaxLength = 5000

var allowedElements = []string{"b", "i", "u", "br", "p", "strong", "em"}

// Sanitizer strips every tag and attribute outside allowedElements. It is safe for concurrent use.
type Sanitizer struct {
	policy    *bluemonday.Policy
	maxLength int
}

// New returns a Sanitizer bounded by DefaultMaxLength.
func New() *Sanitizer {
	return WithMaxLength(DefaultMaxLength)
}

// WithMaxLength returns a Sanitizer bounded by maxLength characters.
func WithMaxLength(maxLength int) *Sanitizer {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	p := bluemonday.NewPolicy()
	p.AllowElements(allowedElements...)
	return &Sanitizer{policy: p, maxLength: maxLength}
}

// MaxLength reports the configured bound.
func (s *Sanitizer) MaxLength() int { return s.maxLength }

// Sanitize truncates text and filters it through the policy.
// The result never exceeds MaxLength characters and Sanitize(Sanitize(x)) == Sanitize(x).
func (s *Sanitizer) Sanitize(text string) string {
	if text == "" {
		return text
	}
	out := s.policy.Sanitize(truncate(text, s.maxLength))
	// Escaping can grow the text past the bound; cut on a markup boundary and filter again.
	for utf8.RuneCountInString(out) > s.maxLength {
		out = s.policy.Sanitize(cutOutsideMarkup(out, s.maxLength))
	}
	return out
}

func truncate(text string, maxLength int) string {
	if utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxLength])
}

// cutOutsideMarkup truncates to maxLength characters and then backs off any trailing
// partial tag or entity so the prefix re-sanitizes to itself.
func cutOutsideMarkup(text string, maxLength int) string {
	cut := truncate(text, maxLength)
	if i := strings.LastIndexByte(cut, '<'); i >= 0 && !strings.Contains(cut[i:], ">") {
		cut = cut[:i]
	}
	if i := strings.LastIndexByte(cut, '&'); i >= 0 && !strings.Contains(cut[i:], ";") {
		cut = cut[:i]
	}
	return cut
}
