// Package merge groups primary-language lines into logical fragments.
//
// The rules are line based on purpose: a unit starts at a block keyword, a
// trailing colon or an assignment that opens a bracket, and it absorbs the
// following lines until one comes back to the opener's indentation outside of
// any open bracket or continuation. Guest-language lines are always single-line
// fragments.
package merge

import (
	"fmt"
	"strings"

	"lf/internal/diag"
	"lf/internal/lang"
	"lf/internal/lexer"
	"lf/internal/source"
)

// Fragment is one logical unit of code in one language.
type Fragment struct {
	Line    uint32 // строка открывающей строки
	EndLine uint32
	Lang    string
	Content string
	Span    source.Span
	// Merged is true when the fragment was produced by block merging.
	Merged bool
}

// ItemKind tells what an Item carries.
type ItemKind uint8

const (
	ItemFragment ItemKind = iota
	ItemDirective
	ItemUnparseable
)

// Item is one element of the merged line stream, in source order. Blank and
// comment lines are dropped.
type Item struct {
	Kind     ItemKind
	Fragment Fragment   // ItemFragment
	Line     lexer.Line // ItemDirective, ItemUnparseable
}

var blockKeywords = map[string]bool{
	"def": true, "class": true, "if": true, "elif": true, "else": true,
	"for": true, "while": true, "with": true, "try": true, "except": true,
	"finally": true, "async": true, "match": true,
}

// softKeywords открывают блок только если строка заканчивается двоеточием.
var softKeywords = map[string]bool{"match": true}

// continuation keywords keep a unit alive at the opener's indentation.
var continuationKeywords = map[string]bool{
	"elif": true, "else": true, "except": true, "finally": true,
}

// StartsUnit reports whether trimmed primary-language code opens a multi-line
// unit. Keyword detection is checked first and wins over the bracket heuristic.
func StartsUnit(trimmed string) bool {
	if trimmed == "" || trimmed[0] == '#' {
		return false
	}
	if trimmed[0] == '@' {
		return true
	}
	code := stripComment(trimmed)
	if word := leadingWord(code); blockKeywords[word] && keywordBoundary(code, len(word)) {
		if !softKeywords[word] || strings.HasSuffix(code, ":") {
			return true
		}
	}
	if strings.HasSuffix(code, ":") {
		return true
	}
	return assignmentOpensBracket(code)
}

func keywordBoundary(s string, n int) bool {
	if n == len(s) {
		return true
	}
	switch s[n] {
	case ' ', '\t', ':', '(', '[':
		return true
	}
	return false
}

// Merge walks classified lines and returns directives, merged fragments and
// unparseable lines in source order. Merge warnings go to r.
func Merge(lines []lexer.Line, reg *lang.Registry, r diag.Reporter) []Item {
	if reg == nil {
		reg = lang.Default()
	}
	if r == nil {
		r = diag.NopReporter{}
	}
	items := make([]Item, 0, len(lines))
	for i := 0; i < len(lines); {
		l := lines[i]
		switch l.Kind {
		case lexer.KindBlank, lexer.KindComment:
			i++
		case lexer.KindDirective:
			items = append(items, Item{Kind: ItemDirective, Line: l})
			i++
		case lexer.KindUnparseable:
			items = append(items, Item{Kind: ItemUnparseable, Line: l})
			i++
		case lexer.KindCode:
			if reg.IsPrimary(l.Lang) && StartsUnit(l.Trimmed()) {
				frag, next := collectUnit(lines, i, r)
				items = append(items, Item{Kind: ItemFragment, Fragment: frag})
				i = next
				continue
			}
			items = append(items, Item{Kind: ItemFragment, Fragment: Fragment{
				Line:    l.Num,
				EndLine: l.Num,
				Lang:    l.Lang,
				Content: l.Content,
				Span:    l.Span,
			}})
			i++
		default:
			i++
		}
	}
	return items
}

// Fragments is Merge without the directive and unparseable items.
func Fragments(lines []lexer.Line, reg *lang.Registry, r diag.Reporter) []Fragment {
	items := Merge(lines, reg, r)
	out := make([]Fragment, 0, len(items))
	for _, it := range items {
		if it.Kind == ItemFragment {
			out = append(out, it.Fragment)
		}
	}
	return out
}

type unit struct {
	base        int
	lines       []string
	scanner     bracketScanner
	afterDecor  bool
	first, last lexer.Line
}

func (u *unit) continued() bool {
	return u.scanner.open() || endsWithContinuation(u.lines[len(u.lines)-1])
}

func (u *unit) add(l lexer.Line, text string) {
	line := dedent(text, u.base)
	u.lines = append(u.lines, line)
	u.scanner.feed(line)
	u.last = l
}

func collectUnit(lines []lexer.Line, start int, r diag.Reporter) (Fragment, int) {
	opener := lines[start]
	u := &unit{
		base:       opener.EffectiveIndent(),
		first:      opener,
		last:       opener,
		afterDecor: strings.HasPrefix(opener.Trimmed(), "@"),
	}
	u.lines = append(u.lines, opener.Trimmed())
	u.scanner.feed(opener.Trimmed())

	j := start + 1
scan:
	for ; j < len(lines); j++ {
		l := lines[j]
		cont := u.continued()

		switch l.Kind {
		case lexer.KindBlank:
			continue
		case lexer.KindComment:
			// `//` всегда поглощается; `#` глубже базы уходит в код как комментарий Python
			if strings.HasPrefix(strings.TrimSpace(l.Raw), "#") && (l.Indent > u.base || cont) {
				u.add(l, l.Raw)
			}
			continue
		case lexer.KindDirective:
			if l.Indent > u.base || cont {
				u.add(l, l.Raw)
				continue
			}
			break scan
		case lexer.KindCode:
			if l.Lang != opener.Lang {
				break scan
			}
			trimmed := l.Trimmed()
			if trimmed == "" {
				continue
			}
			if trimmed[0] == '#' {
				if l.EffectiveIndent() > u.base || cont {
					u.add(l, l.Normalized())
				}
				continue
			}
			if !u.accepts(l.EffectiveIndent(), trimmed, cont) {
				break scan
			}
			u.add(l, l.Normalized())
		case lexer.KindUnparseable:
			if !u.accepts(l.Indent, l.Content, cont) {
				break scan
			}
			u.add(l, l.Raw)
		}
	}

	frag := Fragment{
		Line:    opener.Num,
		EndLine: u.last.Num,
		Lang:    opener.Lang,
		Content: strings.Join(u.lines, "\n"),
		Span:    opener.Span.Cover(u.last.Span),
		Merged:  true,
	}

	if j >= len(lines) {
		switch {
		case u.scanner.open():
			diag.ReportWarning(r, diag.MrgUnbalancedOpen, frag.Span,
				fmt.Sprintf("block starting at line %d leaves a bracket or string open at the end of the source", opener.Num)).
				AtLine(opener.Num).
				ForLang(opener.Lang).
				Emit()
		case endsWithContinuation(u.lines[len(u.lines)-1]) || len(u.lines) == 1 && strings.HasSuffix(stripComment(u.lines[0]), ":"):
			diag.ReportInfo(r, diag.MrgUnitAtEOF, frag.Span,
				fmt.Sprintf("block starting at line %d runs to the end of the source", opener.Num)).
				AtLine(opener.Num).
				ForLang(opener.Lang).
				Emit()
		}
	}
	return frag, j
}

// accepts decides whether a same-language line at indent continues the unit.
func (u *unit) accepts(indent int, trimmed string, cont bool) bool {
	if indent > u.base || cont {
		if indent <= u.base {
			u.afterDecor = false
		}
		return true
	}
	word := leadingWord(trimmed)
	switch {
	case continuationKeywords[word] && keywordBoundary(trimmed, len(word)):
		u.afterDecor = false
		return true
	case u.afterDecor && (trimmed[0] == '@' || word == "def" || word == "class" || word == "async"):
		u.afterDecor = trimmed[0] == '@'
		return true
	}
	return false
}
