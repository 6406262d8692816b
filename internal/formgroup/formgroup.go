// Package formgroup rebuilds repeating record groups from flat form fields named prefix[INDEX][field].
package formgroup

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Record holds the trimmed field values of one group instance, keyed by field name.
type Record map[string]string

// Field describes one named member of a group. Sanitize marks text-bearing fields.
type Field struct {
	Name     string
	Sanitize bool
}

// Schema describes a repeating group. Anchor is the field whose presence reveals an index token.
// Keep decides whether a decoded record is retained.
type Schema struct {
	Prefix string
	Anchor string
	Fields []Field
	Keep   func(Record) bool
}

// TextFilter cleans free text, typically a *sanitize.Sanitizer.
type TextFilter interface {
	Sanitize(string) string
}

// Decode returns one record per discovered index token that satisfies schema.Keep.
// Tokens are ordered numerically when all are non-negative integers and lexicographically otherwise.
func Decode(values url.Values, schema Schema, filter TextFilter) []Record {
	tokens := indexTokens(values, schema.Prefix, schema.Anchor)
	records := make([]Record, 0, len(tokens))
	for _, token := range tokens {
		rec := make(Record, len(schema.Fields))
		for _, f := range schema.Fields {
			v := strings.TrimSpace(values.Get(FieldName(schema.Prefix, token, f.Name)))
			if f.Sanitize && filter != nil {
				v = filter.Sanitize(v)
			}
			rec[f.Name] = v
		}
		if schema.Keep == nil || schema.Keep(rec) {
			records = append(records, rec)
		}
	}
	return records
}

// FieldName formats prefix[token][field].
func FieldName(prefix, token, field string) string {
	return prefix + "[" + token + "][" + field + "]"
}

func indexTokens(values url.Values, prefix, anchor string) []string {
	head := prefix + "["
	tail := "][" + anchor + "]"
	seen := make(map[string]struct{})
	for key := range values {
		if !strings.HasPrefix(key, head) || !strings.HasSuffix(key, tail) {
			continue
		}
		token := key[len(head) : len(key)-len(tail)]
		if token == "" || strings.ContainsAny(token, "[]") {
			continue
		}
		seen[token] = struct{}{}
	}

	tokens := make([]string, 0, len(seen))
	for t := range seen {
		tokens = append(tokens, t)
	}
	sortTokens(tokens)
	return tokens
}

func sortTokens(tokens []string) {
	numeric := make(map[string]uint64, len(tokens))
	for _, t := range tokens {
		n, err := strconv.ParseUint(t, 10, 64)
		if err != nil {
			sort.Strings(tokens)
			return
		}
		numeric[t] = n
	}
	sort.Slice(tokens, func(i, j int) bool {
		a, b := numeric[tokens[i]], numeric[tokens[j]]
		if a != b {
			return a < b
		}
		return tokens[i] < tokens[j]
	})
}

// Any reports whether at least one of the named fields is non-empty.
func Any(names ...string) func(Record) bool {
	return func(r Record) bool {
		for _, n := range names {
			if r[n] != "" {
				return true
			}
		}
		return false
	}
}
