// Package program holds the parsed form of an lf source file and its two
// serialized forms: the LSF document and the .lfp package archive.
package program

import (
	"strings"

	"lf/internal/lexer"
)

// Directive is a `#key value` line.
type Directive struct {
	Line  uint32 `json:"line"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Fragment is one logical unit of code in one language, after merging.
type Fragment struct {
	Line    uint32 `json:"line"`
	Lang    string `json:"lang"`
	Content string `json:"content"`
}

// Stats are aggregate counts of a parsed source.
type Stats struct {
	TotalLines     int            `json:"total_lines"`
	DirectiveCount int            `json:"directive_count"`
	FragmentCount  int            `json:"fragment_count"`
	Languages      map[string]int `json:"languages"`
}

// Model is the parsed program. Directives keep insertion order and fragments
// keep strict source order.
type Model struct {
	Directives []Directive `json:"directives"`
	Fragments  []Fragment  `json:"fragments"`
	SourceHash string      `json:"source_hash"`
	Stats      Stats       `json:"stats"`
}

// Lookup returns the last value given for key. Keys compare case-insensitively.
func (m *Model) Lookup(key string) (string, bool) {
	for i := len(m.Directives) - 1; i >= 0; i-- {
		if strings.EqualFold(m.Directives[i].Key, key) {
			return m.Directives[i].Value, true
		}
	}
	return "", false
}

// Values returns every value given for key, in source order.
func (m *Model) Values(key string) []string {
	var out []string
	for _, d := range m.Directives {
		if strings.EqualFold(d.Key, key) {
			out = append(out, d.Value)
		}
	}
	return out
}

// Name is the #name directive, if any.
func (m *Model) Name() string {
	v, _ := m.Lookup(lexer.KeyName)
	return v
}

// SecurityLevel is the #security directive, "advisory" when absent or unknown.
func (m *Model) SecurityLevel() string {
	v, _ := m.Lookup(lexer.KeySecurity)
	switch v = strings.ToLower(v); v {
	case "strict", "off":
		return v
	}
	return "advisory"
}

// Minimal reports `#package minimal`.
func (m *Model) Minimal() bool {
	v, _ := m.Lookup(lexer.KeyPackage)
	return strings.EqualFold(v, "minimal")
}

// PythonImports lists modules requested with #python_import, deduplicated.
func (m *Model) PythonImports() []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range m.Values(lexer.KeyPythonImport) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// FragmentsFor returns the fragments of one language in source order.
func (m *Model) FragmentsFor(tag string) []Fragment {
	var out []Fragment
	for _, f := range m.Fragments {
		if f.Lang == tag {
			out = append(out, f)
		}
	}
	return out
}

func computeStats(totalLines int, dirs []Directive, frags []Fragment) Stats {
	st := Stats{
		TotalLines:     totalLines,
		DirectiveCount: len(dirs),
		FragmentCount:  len(frags),
		Languages:      make(map[string]int),
	}
	for _, f := range frags {
		st.Languages[f.Lang]++
	}
	return st
}
