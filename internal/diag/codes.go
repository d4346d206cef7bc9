package diag

import (
	"fmt"
)

// Code is a compact numeric diagnostic identifier. The thousands digit selects the
// family prefix used by ID.
type Code uint16

const (
	// Неизвестная ошибка
	UnknownCode Code = 0

	// Лексер и директивы
	LexInfo                  Code = 1000
	LexUnparseableLine       Code = 1001
	LexUnterminatedQuote     Code = 1002
	LexInvalidIdentifier     Code = 1003
	LexEmptyDirective        Code = 1004
	LexInvalidDirectiveValue Code = 1005
	LexDuplicateDirective    Code = 1006
	LexUnknownLanguagePrefix Code = 1007

	// Склейка многострочных блоков
	MrgInfo           Code = 2000
	MrgUnitAtEOF      Code = 2001
	MrgUnbalancedOpen Code = 2002

	// Проверки безопасности
	SecInfo             Code = 3000
	SecDangerousPattern Code = 3001
	SecDangerousImport  Code = 3002
	SecDangerousCall    Code = 3003
	SecSyntaxError      Code = 3004
	SecLanguageRule     Code = 3005
	SecPolicyViolation  Code = 3010

	// Исполнение фрагментов
	ExeInfo             Code = 4000
	ExeToolchainMissing Code = 4001
	ExeCompileFailed    Code = 4002
	ExeTimeout          Code = 4003
	ExeRuntimeFailed    Code = 4004
	ExeStderr           Code = 4005
	ExeInterrupted      Code = 4006
	ExeCleanupFailed    Code = 4010

	// Документ и пакет
	PkgInfo            Code = 5000
	PkgReadFailed      Code = 5001
	PkgWriteFailed     Code = 5002
	PkgBadFormat       Code = 5003
	PkgMissingEntry    Code = 5004
	PkgVersionMismatch Code = 5005

	// Наблюдаемость
	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

var (
	codeDescription = map[Code]string{
		UnknownCode:              "Unknown error",
		LexInfo:                  "Lexical information",
		LexUnparseableLine:       "Line is neither a directive nor a code line",
		LexUnterminatedQuote:     "Unterminated quoted directive value",
		LexInvalidIdentifier:     "Directive value is not a valid identifier",
		LexEmptyDirective:        "Directive without a key",
		LexInvalidDirectiveValue: "Directive value is not recognised",
		LexDuplicateDirective:    "Directive repeated with a different value",
		LexUnknownLanguagePrefix: "Unknown language prefix",
		MrgInfo:                  "Block merge information",
		MrgUnitAtEOF:             "Block runs to the end of the source",
		MrgUnbalancedOpen:        "Bracket left open at the end of a block",
		SecInfo:                  "Security information",
		SecDangerousPattern:      "Dangerous code pattern",
		SecDangerousImport:       "Import of a dangerous module",
		SecDangerousCall:         "Call of a dangerous function",
		SecSyntaxError:           "Fragment does not parse",
		SecLanguageRule:          "Dangerous language API",
		SecPolicyViolation:       "Strict security policy violated",
		ExeInfo:                  "Execution information",
		ExeToolchainMissing:      "Toolchain not found",
		ExeCompileFailed:         "Compilation failed",
		ExeTimeout:               "Execution timed out",
		ExeRuntimeFailed:         "Fragment failed at runtime",
		ExeStderr:                "Fragment wrote to stderr",
		ExeInterrupted:           "Run interrupted",
		ExeCleanupFailed:         "Temporary artifact cleanup failed",
		PkgInfo:                  "Package information",
		PkgReadFailed:            "Failed to read artifact",
		PkgWriteFailed:           "Failed to write artifact",
		PkgBadFormat:             "Malformed artifact",
		PkgMissingEntry:          "Package entry missing",
		PkgVersionMismatch:       "Unsupported format version",
		ObsInfo:                  "Observability information",
		ObsTimings:               "Pipeline timings",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("LEX%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("MRG%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("SEC%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("EXE%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("PKG%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
