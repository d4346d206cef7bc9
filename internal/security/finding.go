// Package security screens fragments for dangerous constructs before they run.
// Screening is advisory: it matches text and syntax, it does not sandbox.
package security

import (
	"fmt"
	"strings"

	"lf/internal/diag"
)

// Kind classifies a finding.
type Kind uint8

const (
	KindPattern      Kind = iota // language-agnostic denylist
	KindImport                   // dangerous Python import
	KindCall                     // dangerous Python call by bare name
	KindSyntax                   // fragment does not parse as Python
	KindLanguageRule             // guest-language rule
)

func (k Kind) String() string {
	switch k {
	case KindPattern:
		return "dangerous_pattern"
	case KindImport:
		return "dangerous_import"
	case KindCall:
		return "dangerous_function_call"
	case KindSyntax:
		return "syntax_error"
	case KindLanguageRule:
		return "dangerous_language_pattern"
	}
	return "unknown"
}

// Code maps the kind onto its diagnostic code.
func (k Kind) Code() diag.Code {
	switch k {
	case KindPattern:
		return diag.SecDangerousPattern
	case KindImport:
		return diag.SecDangerousImport
	case KindCall:
		return diag.SecDangerousCall
	case KindSyntax:
		return diag.SecSyntaxError
	case KindLanguageRule:
		return diag.SecLanguageRule
	}
	return diag.UnknownCode
}

// Level is the severity of a finding.
type Level uint8

const (
	LevelMedium Level = iota
	LevelHigh
)

func (l Level) String() string {
	if l == LevelHigh {
		return "high"
	}
	return "medium"
}

// MarshalText keeps JSON/YAML output readable.
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// MarshalText keeps JSON/YAML output readable.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Finding is one screening hit. Line is the absolute source line.
type Finding struct {
	Kind   Kind   `json:"kind" yaml:"kind"`
	Level  Level  `json:"severity" yaml:"severity"`
	Rule   string `json:"rule" yaml:"rule"`
	Line   uint32 `json:"line" yaml:"line"`
	Lang   string `json:"lang" yaml:"lang"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

func (f Finding) String() string {
	s := fmt.Sprintf("%s:%d %s [%s] %s", f.Lang, f.Line, f.Kind, f.Level, f.Rule)
	if f.Detail != "" {
		s += ": " + f.Detail
	}
	return s
}

func (f Finding) message() string {
	switch f.Kind {
	case KindImport:
		return fmt.Sprintf("dangerous import %q", f.Detail)
	case KindCall:
		return fmt.Sprintf("dangerous call %s()", f.Detail)
	case KindSyntax:
		return "fragment is not valid Python; screening is incomplete"
	}
	if f.Detail != "" {
		return fmt.Sprintf("dangerous pattern %s: %s", f.Rule, f.Detail)
	}
	return "dangerous pattern " + f.Rule
}

// Diagnostic converts the finding. Strict policy turns it into an error.
func (f Finding) Diagnostic(policy Policy) diag.Diagnostic {
	sev := diag.SevWarning
	if policy == PolicyStrict {
		sev = diag.SevError
	} else if f.Level == LevelMedium {
		sev = diag.SevInfo
	}
	return diag.AtLine(sev, f.Kind.Code(), f.Line, f.message()).WithLang(f.Lang)
}

// Policy decides what findings do.
type Policy uint8

const (
	PolicyAdvisory Policy = iota // log and continue
	PolicyStrict                 // any finding aborts the run before execution
	PolicyOff                    // no screening
)

func (p Policy) String() string {
	switch p {
	case PolicyStrict:
		return "strict"
	case PolicyOff:
		return "off"
	}
	return "advisory"
}

// ParsePolicy accepts advisory, strict and off, case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "advisory":
		return PolicyAdvisory, nil
	case "strict":
		return PolicyStrict, nil
	case "off", "none":
		return PolicyOff, nil
	}
	return PolicyAdvisory, fmt.Errorf("unknown security policy %q (want advisory, strict or off)", s)
}

// PolicyError aborts a strict run.
type PolicyError struct {
	Findings []Finding
}

func (e *PolicyError) Error() string {
	if len(e.Findings) == 0 {
		return "security policy violation"
	}
	first := e.Findings[0]
	return fmt.Sprintf("security policy violation: %d finding(s), first at %s:%d (%s)",
		len(e.Findings), first.Lang, first.Line, first.Rule)
}

// Enforce returns a *PolicyError when policy is strict and findings is non-empty.
func Enforce(policy Policy, findings []Finding) error {
	if policy != PolicyStrict || len(findings) == 0 {
		return nil
	}
	return &PolicyError{Findings: findings}
}

// Report emits one diagnostic per finding.
func Report(r diag.Reporter, policy Policy, findings []Finding) {
	if r == nil {
		return
	}
	for _, f := range findings {
		r.Report(f.Diagnostic(policy))
	}
}
