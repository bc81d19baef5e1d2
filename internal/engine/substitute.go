// Package engine holds the two pure cores of the task pipeline: placeholder
// substitution and cross-template custom-field aggregation. No I/O here.
package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"LT-FLOW/internal/models"
)

// wrappedPlaceholderRe matches the markup-wrapped placeholder form, e.g.
// <span class="field-placeholder">{{full_name}}</span>. The whole element is
// replaced, tags included.
var wrappedPlaceholderRe = regexp.MustCompile(
	`<([A-Za-z][A-Za-z0-9]*)\b[^>]*"field-placeholder"[^>]*>\s*\{\{([^{}]+)\}\}\s*</([A-Za-z][A-Za-z0-9]*)>`)

// barePlaceholderRe matches the bare {{name}} form. The name is treated as
// an opaque key, not validated against identifier syntax.
var barePlaceholderRe = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

type SubstitutionResult struct {
	Rendered      string   `json:"rendered"`
	ResolvedCount int      `json:"resolved_count"`
	Unresolved    []string `json:"unresolved"`
}

// token is one placeholder occurrence found in the source content.
type token struct {
	start, end int    // byte span in the source, element tags included for wrapped form
	name       string // inner field name, verbatim
	value      string
	resolved   bool
}

// Substitute replaces every placeholder occurrence in content with its value
// from values, in a single structural pass over the source. Values are never
// re-scanned, so a value containing "{{" is inert. Unmatched tokens fall
// through a fuzzy normalized pass and finally a visible sentinel; the output
// contains no {{...}} token that the input syntax recognized.
//
// The merged values map is final truth: precedence between client
// attributes, computed fields and task values is the caller's job.
func Substitute(content string, values map[string]string, defs []models.CustomFieldDefinition) SubstitutionResult {
	tokens := scanPlaceholders(content)

	exact := exactIndex(values)
	resolveExact(tokens, values, exact)
	resolveFuzzy(tokens, values)

	resolvedCount := 0
	var unresolved []string
	seenUnresolved := make(map[string]bool)

	var out strings.Builder
	last := 0
	for i := range tokens {
		t := &tokens[i]
		out.WriteString(content[last:t.start])
		if t.resolved {
			out.WriteString(t.value)
			resolvedCount++
		} else {
			out.WriteString(sentinelFor(t.name, defs))
			if !seenUnresolved[t.name] {
				seenUnresolved[t.name] = true
				unresolved = append(unresolved, t.name)
			}
		}
		last = t.end
	}
	out.WriteString(content[last:])

	return SubstitutionResult{
		Rendered:      out.String(),
		ResolvedCount: resolvedCount,
		Unresolved:    unresolved,
	}
}

// scanPlaceholders finds every placeholder occurrence, wrapped form first so
// a bare match inside a wrapped element is not double-counted. Result is
// ordered by position.
func scanPlaceholders(content string) []token {
	var tokens []token
	covered := make([]bool, len(content))

	for _, m := range wrappedPlaceholderRe.FindAllStringSubmatchIndex(content, -1) {
		tokens = append(tokens, token{start: m[0], end: m[1], name: content[m[4]:m[5]]})
		for i := m[0]; i < m[1]; i++ {
			covered[i] = true
		}
	}

	for _, m := range barePlaceholderRe.FindAllStringSubmatchIndex(content, -1) {
		if covered[m[0]] {
			continue
		}
		tokens = append(tokens, token{start: m[0], end: m[1], name: content[m[2]:m[3]]})
	}

	sort.Slice(tokens, func(i, j int) bool { return tokens[i].start < tokens[j].start })
	return tokens
}

// exactIndex maps lower-cased value keys to their original key so field
// names match case-insensitively. Keys are visited in sorted order so a
// casing collision resolves the same way every run.
func exactIndex(values map[string]string) map[string]string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	index := make(map[string]string, len(keys))
	for _, k := range keys {
		lower := strings.ToLower(k)
		if _, ok := index[lower]; !ok {
			index[lower] = k
		}
	}
	return index
}

func resolveExact(tokens []token, values map[string]string, exact map[string]string) {
	for i := range tokens {
		t := &tokens[i]
		if v, ok := values[t.name]; ok {
			t.value = v
			t.resolved = true
			continue
		}
		if k, ok := exact[strings.ToLower(t.name)]; ok {
			t.value = values[k]
			t.resolved = true
		}
	}
}

// resolveFuzzy is the second-chance pass: both sides are lower-cased and
// stripped of non-alphanumerics before comparison. Kept separate from the
// exact pass so exact behavior stays testable on its own.
func resolveFuzzy(tokens []token, values map[string]string) {
	pending := false
	for i := range tokens {
		if !tokens[i].resolved {
			pending = true
			break
		}
	}
	if !pending {
		return
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	normalized := make(map[string]string, len(keys))
	for _, k := range keys {
		n := normalizeKey(k)
		if n == "" {
			continue
		}
		if _, ok := normalized[n]; !ok {
			normalized[n] = k
		}
	}

	for i := range tokens {
		t := &tokens[i]
		if t.resolved {
			continue
		}
		if k, ok := normalized[normalizeKey(t.name)]; ok {
			t.value = values[k]
			t.resolved = true
		}
	}
}

func normalizeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DetectPlaceholders lists the unique placeholder names in content, in
// first-appearance order, both wrapped and bare forms.
func DetectPlaceholders(content string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, t := range scanPlaceholders(content) {
		if !seen[t.name] {
			seen[t.name] = true
			names = append(names, t.name)
		}
	}
	return names
}

// sentinelFor flags an unresolved placeholder for human review. A field the
// template declared but nobody filled in reads differently from a name the
// system has never heard of.
func sentinelFor(name string, defs []models.CustomFieldDefinition) string {
	for _, d := range defs {
		if strings.EqualFold(d.Name, name) {
			label := d.Label
			if label == "" {
				label = d.Name
			}
			return fmt.Sprintf("[%s - NO VALUE PROVIDED]", label)
		}
	}
	return fmt.Sprintf("[%s_NOT_FOUND]", strings.ToUpper(name))
}
