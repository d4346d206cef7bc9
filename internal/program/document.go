package program

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"lf/internal/diag"
	"lf/internal/source"
)

// DocumentFormat is the format_version of the intermediate document.
const DocumentFormat = "LSF-3.0"

// Metadata describes how a document was produced.
type Metadata struct {
	Compiler      string `json:"compiler"`
	SourceFile    string `json:"source_file"`
	SourcePath    string `json:"source_path"`
	BuildTime     string `json:"build_time"`
	SecurityLevel string `json:"security_level"`
}

// Document is the intermediate JSON form of a Model.
type Document struct {
	FormatVersion string   `json:"format_version"`
	Metadata      Metadata `json:"metadata"`
	Program       *Model   `json:"program"`
}

// SerializeOptions fills Metadata.
type SerializeOptions struct {
	Compiler   string
	SourcePath string
	BuildTime  time.Time // нулевое значение - time.Now()
}

// Serialize wraps the model into a Document without altering parsed content.
func Serialize(m *Model, opts SerializeOptions) *Document {
	built := opts.BuildTime
	if built.IsZero() {
		built = time.Now()
	}
	compiler := opts.Compiler
	if compiler == "" {
		compiler = "lf"
	}
	meta := Metadata{
		Compiler:      compiler,
		BuildTime:     built.UTC().Format(time.RFC3339),
		SecurityLevel: m.SecurityLevel(),
	}
	if opts.SourcePath != "" {
		meta.SourceFile = source.BaseName(opts.SourcePath)
		if abs, err := source.AbsolutePath(opts.SourcePath); err == nil {
			meta.SourcePath = abs
		} else {
			meta.SourcePath = opts.SourcePath
		}
	}
	return &Document{FormatVersion: DocumentFormat, Metadata: meta, Program: m}
}

// BuildTimeValue parses Metadata.BuildTime.
func (d *Document) BuildTimeValue() time.Time {
	t, err := time.Parse(time.RFC3339, d.Metadata.BuildTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Encode writes the document as indented JSON.
func (d *Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(d)
}

// DecodeDocument reads and validates a document.
func DecodeDocument(r io.Reader) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, buildErr("load", "", diag.PkgBadFormat, fmt.Errorf("malformed document: %w", err))
	}
	if doc.FormatVersion != DocumentFormat {
		return nil, buildErr("load", "", diag.PkgVersionMismatch,
			fmt.Errorf("unsupported document format %q (want %s)", doc.FormatVersion, DocumentFormat))
	}
	if doc.Program == nil {
		return nil, buildErr("load", "", diag.PkgBadFormat, errors.New("document has no program"))
	}
	if doc.Program.Stats.Languages == nil {
		doc.Program.Stats.Languages = make(map[string]int)
	}
	return &doc, nil
}

// WriteDocument writes the document to path atomically.
func WriteDocument(doc *Document, path string) error {
	return writeFileAtomic(path, func(w io.Writer) error { return doc.Encode(w) })
}

// ReadDocument loads a document from path.
func ReadDocument(path string) (*Document, error) {
	// #nosec G304 -- path is provided by the user
	f, err := os.Open(path)
	if err != nil {
		return nil, buildErr("load", path, diag.PkgReadFailed, err)
	}
	defer f.Close()
	doc, err := DecodeDocument(f)
	if err != nil {
		var be *BuildError
		if errors.As(err, &be) {
			be.Path = path
		}
		return nil, err
	}
	return doc, nil
}

// writeFileAtomic пишет во временный файл рядом и переименовывает.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return buildErr("write", path, diag.PkgWriteFailed, err)
	}
	f, err := os.CreateTemp(dir, ".lf-tmp-*")
	if err != nil {
		return buildErr("write", path, diag.PkgWriteFailed, err)
	}
	tmp := f.Name()
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return buildErr("write", path, diag.PkgWriteFailed, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return buildErr("write", path, diag.PkgWriteFailed, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return buildErr("write", path, diag.PkgWriteFailed, err)
	}
	return nil
}
