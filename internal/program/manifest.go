package program

import (
	"github.com/mattn/go-runewidth"

	"lf/internal/lang"
)

// PackageFormat is the format_version of manifest.json.
const PackageFormat = "LF-Package-3.0"

// PreviewWidth is the display width of execution order previews.
const PreviewWidth = 100

// Names of the fixed package entries.
const (
	ManifestName = "manifest.json"
	DocumentName = "program.lsf"
)

// Manifest describes a package archive.
type Manifest struct {
	FormatVersion  string           `json:"format_version"`
	Metadata       ManifestMetadata `json:"metadata"`
	Files          []ManifestFile   `json:"files"`
	ExecutionOrder []ExecutionEntry `json:"execution_order"`
	Stats          Stats            `json:"stats"`
	Security       ManifestSecurity `json:"security"`
	Minimal        bool             `json:"minimal,omitempty"`
}

// ManifestMetadata mirrors the document metadata plus the source hash.
type ManifestMetadata struct {
	Compiler      string `json:"compiler"`
	SourceFile    string `json:"source_file"`
	SourceHash    string `json:"source_hash"`
	BuildTime     string `json:"build_time"`
	SecurityLevel string `json:"security_level"`
}

// ManifestFile is one per-language source file.
type ManifestFile struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int    `json:"size"`
}

// ExecutionEntry is one fragment in execution order.
type ExecutionEntry struct {
	Type           string `json:"type"`
	Line           uint32 `json:"line"`
	ContentPreview string `json:"content_preview"`
}

// ManifestSecurity lists the safeguards the toolchain applies.
type ManifestSecurity struct {
	CompiledWith string   `json:"compiled_with"`
	Features     []string `json:"features"`
}

// securityFeatures are fixed for this toolchain.
var securityFeatures = []string{
	"static_screening",
	"directive_validation",
	"bounded_execution",
	"temp_cleanup",
}

type languageFile struct {
	lang    lang.Language
	content string
}

// languageFiles groups fragments per language in registry order; fragment
// contents are joined with newlines in source order.
func languageFiles(m *Model, reg *lang.Registry) []languageFile {
	var out []languageFile
	known := make(map[string]bool)
	for _, l := range reg.All() {
		known[l.Tag] = true
		if frags := m.FragmentsFor(l.Tag); len(frags) > 0 {
			out = append(out, languageFile{lang: l, content: joinFragments(frags)})
		}
	}
	// языки из документа, которых нет в реестре, идут в конце в порядке появления
	for _, frag := range m.Fragments {
		if known[frag.Lang] {
			continue
		}
		known[frag.Lang] = true
		l := lang.Language{Tag: frag.Lang, Ext: frag.Lang}
		out = append(out, languageFile{lang: l, content: joinFragments(m.FragmentsFor(frag.Lang))})
	}
	return out
}

func joinFragments(frags []Fragment) string {
	if len(frags) == 0 {
		return ""
	}
	size := 0
	for _, f := range frags {
		size += len(f.Content) + 1
	}
	buf := make([]byte, 0, size)
	for i, f := range frags {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, f.Content...)
	}
	return string(buf)
}

func buildManifest(doc *Document, files []languageFile) Manifest {
	m := doc.Program
	man := Manifest{
		FormatVersion: PackageFormat,
		Metadata: ManifestMetadata{
			Compiler:      doc.Metadata.Compiler,
			SourceFile:    doc.Metadata.SourceFile,
			SourceHash:    m.SourceHash,
			BuildTime:     doc.Metadata.BuildTime,
			SecurityLevel: doc.Metadata.SecurityLevel,
		},
		Files:          make([]ManifestFile, 0, len(files)),
		ExecutionOrder: make([]ExecutionEntry, 0, len(m.Fragments)),
		Stats:          m.Stats,
		Security: ManifestSecurity{
			CompiledWith: doc.Metadata.Compiler,
			Features:     append([]string(nil), securityFeatures...),
		},
		Minimal: m.Minimal(),
	}
	if !man.Minimal {
		for _, f := range files {
			man.Files = append(man.Files, ManifestFile{
				Name: f.lang.FileName(),
				Type: f.lang.Ext,
				Size: len(f.content),
			})
		}
	}
	for _, frag := range m.Fragments {
		man.ExecutionOrder = append(man.ExecutionOrder, ExecutionEntry{
			Type:           frag.Lang,
			Line:           frag.Line,
			ContentPreview: Preview(frag.Content),
		})
	}
	return man
}

// Preview truncates content to PreviewWidth display cells.
func Preview(content string) string {
	return runewidth.Truncate(content, PreviewWidth, "")
}
