// Package lang describes the languages that may appear in an lf source file.
package lang

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Language is one registered fragment language.
type Language struct {
	Tag     string // префикс строки без точки: py, cpp, ...
	Name    string
	Ext     string // расширение файла без точки
	Primary bool   // привязки этого языка переживают фрагмент
}

// Prefix returns the line prefix, e.g. "py.".
func (l Language) Prefix() string {
	return l.Tag + "."
}

// FileName returns the per-language file name used inside a package.
func (l Language) FileName() string {
	return "code." + l.Ext
}

// Builtin languages, in registry order.
var (
	Python     = Language{Tag: "py", Name: "Python", Ext: "py", Primary: true}
	Cpp        = Language{Tag: "cpp", Name: "C++", Ext: "cpp"}
	JavaScript = Language{Tag: "js", Name: "JavaScript", Ext: "js"}
	Java       = Language{Tag: "java", Name: "Java", Ext: "java"}
	PHP        = Language{Tag: "php", Name: "PHP", Ext: "php"}
	Rust       = Language{Tag: "rust", Name: "Rust", Ext: "rs"}
)

// Registry is an ordered, extensible set of languages.
type Registry struct {
	mu      sync.RWMutex
	langs   []Language
	byTag   map[string]int
	byExt   map[string]int
	primary string
	// длинные теги проверяются раньше коротких
	matchOrder []string
}

// NewRegistry builds a registry from the given languages. Exactly one may be primary.
func NewRegistry(langs ...Language) (*Registry, error) {
	r := &Registry{
		byTag: make(map[string]int),
		byExt: make(map[string]int),
	}
	for _, l := range langs {
		if err := r.Register(l); err != nil {
			return nil, err
		}
	}
	return r, nil
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the shared registry with the six builtin languages.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := NewRegistry(Python, Cpp, JavaScript, Java, PHP, Rust)
		if err != nil {
			panic(err)
		}
		defaultReg = reg
	})
	return defaultReg
}

// Register adds a language. Tags must be lowercase identifiers and unique.
func (r *Registry) Register(l Language) error {
	if !validTag(l.Tag) {
		return fmt.Errorf("invalid language tag %q", l.Tag)
	}
	if l.Ext == "" {
		l.Ext = l.Tag
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byTag[l.Tag]; dup {
		return fmt.Errorf("language %q already registered", l.Tag)
	}
	if l.Primary && r.primary != "" {
		return fmt.Errorf("language %q: primary language is already %q", l.Tag, r.primary)
	}
	r.byTag[l.Tag] = len(r.langs)
	if _, ok := r.byExt[l.Ext]; !ok {
		r.byExt[l.Ext] = len(r.langs)
	}
	r.langs = append(r.langs, l)
	if l.Primary {
		r.primary = l.Tag
	}

	r.matchOrder = append(r.matchOrder, l.Tag)
	sort.SliceStable(r.matchOrder, func(i, j int) bool {
		return len(r.matchOrder[i]) > len(r.matchOrder[j])
	})
	return nil
}

// Lookup returns the language with the given tag.
func (r *Registry) Lookup(tag string) (Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byTag[tag]
	if !ok {
		return Language{}, false
	}
	return r.langs[idx], true
}

// ByExt returns the language stored under code.<ext>.
func (r *Registry) ByExt(ext string) (Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byExt[strings.TrimPrefix(ext, ".")]
	if !ok {
		return Language{}, false
	}
	return r.langs[idx], true
}

// Primary returns the primary language, if one is registered.
func (r *Registry) Primary() (Language, bool) {
	r.mu.RLock()
	tag := r.primary
	r.mu.RUnlock()
	if tag == "" {
		return Language{}, false
	}
	return r.Lookup(tag)
}

// IsPrimary reports whether tag names the primary language.
func (r *Registry) IsPrimary(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return tag != "" && tag == r.primary
}

// All returns the languages in registration order.
func (r *Registry) All() []Language {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Language(nil), r.langs...)
}

// Tags returns the tags in registration order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, len(r.langs))
	for i, l := range r.langs {
		tags[i] = l.Tag
	}
	return tags
}

// MatchPrefix checks whether s (already stripped of indentation) starts with a
// registered "<tag>." prefix and returns the language and the text after it.
func (r *Registry) MatchPrefix(s string) (Language, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, tag := range r.matchOrder {
		if len(s) > len(tag) && s[len(tag)] == '.' && s[:len(tag)] == tag {
			return r.langs[r.byTag[tag]], s[len(tag)+1:], true
		}
	}
	return Language{}, "", false
}

// CandidatePrefix returns the identifier before the first dot when s looks like
// "<ident>.<rest>". Used to tell a mistyped language prefix from garbage.
func CandidatePrefix(s string) (string, bool) {
	dot := strings.IndexByte(s, '.')
	if dot <= 0 || dot == len(s)-1 {
		return "", false
	}
	if !validTag(s[:dot]) {
		return "", false
	}
	return s[:dot], true
}

// Closest returns the registered tag with the smallest edit distance to tag,
// provided the distance is at most 2.
func (r *Registry) Closest(tag string) (string, bool) {
	best, bestDist := "", 3
	for _, t := range r.Tags() {
		if d := editDistance(tag, t); d < bestDist {
			best, bestDist = t, d
		}
	}
	return best, best != ""
}

func validTag(tag string) bool {
	if tag == "" {
		return false
	}
	for i := 0; i < len(tag); i++ {
		c := tag[i]
		switch {
		case c >= 'a' && c <= 'z':
		case i > 0 && (c >= '0' && c <= '9' || c == '_'):
		default:
			return false
		}
	}
	return true
}

func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
