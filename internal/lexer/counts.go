package lexer

// Counts tallies classified lines by kind; Code is keyed by language tag.
type Counts struct {
	Total       int            `json:"total" yaml:"total"`
	Blank       int            `json:"blank" yaml:"blank"`
	Comments    int            `json:"comments" yaml:"comments"`
	Directives  int            `json:"directives" yaml:"directives"`
	Unparseable int            `json:"unparseable" yaml:"unparseable"`
	Code        map[string]int `json:"code" yaml:"code"`
}

// Count tallies lines. Unparseable lines absorbed into a primary-language
// block are still counted as unparseable here.
func Count(lines []Line) Counts {
	c := Counts{Total: len(lines), Code: make(map[string]int)}
	for _, l := range lines {
		switch l.Kind {
		case KindBlank:
			c.Blank++
		case KindComment:
			c.Comments++
		case KindDirective:
			c.Directives++
		case KindCode:
			c.Code[l.Lang]++
		default:
			c.Unparseable++
		}
	}
	return c
}
