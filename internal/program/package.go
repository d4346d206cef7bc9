package program

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"lf/internal/diag"
	"lf/internal/lang"
)

// Package is an opened .lfp archive.
type Package struct {
	Manifest Manifest
	Document *Document
	// Sources maps entry names (code.py, ...) to their contents.
	Sources map[string]string
}

// Model is shorthand for the embedded program.
func (p *Package) Model() *Model { return p.Document.Program }

// BuildPackage writes doc as a zip archive into w. Per-language source
// files are omitted when the program asks for a minimal package.
func BuildPackage(w io.Writer, doc *Document, reg *lang.Registry) (Manifest, error) {
	if reg == nil {
		reg = lang.Default()
	}
	files := languageFiles(doc.Program, reg)
	man := buildManifest(doc, files)

	modified := doc.BuildTimeValue()
	if modified.IsZero() {
		modified = time.Now()
	}

	zw := zip.NewWriter(w)
	put := func(name string, data []byte) error {
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified}
		ew, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		_, err = ew.Write(data)
		return err
	}

	if !man.Minimal {
		for _, f := range files {
			if err := put(f.lang.FileName(), []byte(f.content)); err != nil {
				return man, buildErr("package", "", diag.PkgWriteFailed, err)
			}
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(man); err != nil {
		return man, buildErr("package", "", diag.PkgWriteFailed, err)
	}
	if err := put(ManifestName, buf.Bytes()); err != nil {
		return man, buildErr("package", "", diag.PkgWriteFailed, err)
	}

	buf.Reset()
	if err := doc.Encode(&buf); err != nil {
		return man, buildErr("package", "", diag.PkgWriteFailed, err)
	}
	if err := put(DocumentName, buf.Bytes()); err != nil {
		return man, buildErr("package", "", diag.PkgWriteFailed, err)
	}

	if err := zw.Close(); err != nil {
		return man, buildErr("package", "", diag.PkgWriteFailed, err)
	}
	return man, nil
}

// WritePackage writes the archive to path atomically.
func WritePackage(doc *Document, path string, reg *lang.Registry) (Manifest, error) {
	var man Manifest
	err := writeFileAtomic(path, func(w io.Writer) error {
		var err error
		man, err = BuildPackage(w, doc, reg)
		return err
	})
	if err != nil {
		var be *BuildError
		if errors.As(err, &be) && be.Path == "" {
			be.Path = path
		}
		return man, err
	}
	return man, nil
}

// maxEntrySize ограничивает распаковку одной записи.
const maxEntrySize = 64 << 20

// ReadPackage opens an archive from memory.
func ReadPackage(r io.ReaderAt, size int64) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, buildErr("load", "", diag.PkgBadFormat, fmt.Errorf("not a package archive: %w", err))
	}
	pkg := &Package{Sources: make(map[string]string)}
	var manData, docData []byte
	for _, f := range zr.File {
		data, err := readEntry(f)
		if err != nil {
			return nil, buildErr("load", "", diag.PkgReadFailed, fmt.Errorf("%s: %w", f.Name, err))
		}
		switch f.Name {
		case ManifestName:
			manData = data
		case DocumentName:
			docData = data
		default:
			pkg.Sources[f.Name] = string(data)
		}
	}
	if docData == nil {
		return nil, buildErr("load", "", diag.PkgMissingEntry, fmt.Errorf("missing %s", DocumentName))
	}
	if manData == nil {
		return nil, buildErr("load", "", diag.PkgMissingEntry, fmt.Errorf("missing %s", ManifestName))
	}
	if err := json.Unmarshal(manData, &pkg.Manifest); err != nil {
		return nil, buildErr("load", "", diag.PkgBadFormat, fmt.Errorf("malformed %s: %w", ManifestName, err))
	}
	if pkg.Manifest.FormatVersion != PackageFormat {
		return nil, buildErr("load", "", diag.PkgVersionMismatch,
			fmt.Errorf("unsupported package format %q (want %s)", pkg.Manifest.FormatVersion, PackageFormat))
	}
	doc, err := DecodeDocument(bytes.NewReader(docData))
	if err != nil {
		return nil, err
	}
	pkg.Document = doc
	return pkg, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxEntrySize {
		return nil, errors.New("entry too large")
	}
	return data, nil
}

// OpenPackage reads a .lfp file from disk.
func OpenPackage(path string) (*Package, error) {
	// #nosec G304 -- path is provided by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, buildErr("load", path, diag.PkgReadFailed, err)
	}
	pkg, err := ReadPackage(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		var be *BuildError
		if errors.As(err, &be) {
			be.Path = path
		}
		return nil, err
	}
	return pkg, nil
}
