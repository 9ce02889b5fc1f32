// Package docx opens word-processing packages and exposes their XML parts as
// parsed trees.
//
// Only the subset of the package format used by resume templates is
// supported: the main document part, header parts and the numbering and
// style metadata carried inline on paragraphs.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
)

// BodyPart is the name of the main document part.
const BodyPart = "word/document.xml"

// DefaultMaxPartSize bounds the decompressed size of a single part.
const DefaultMaxPartSize = 50 << 20

// Package is an opened document package. It is not safe for concurrent use;
// each extraction opens its own.
type Package struct {
	zr          *zip.Reader
	closer      io.Closer
	files       map[string]*zip.File
	parsed      map[string]*Node
	MaxPartSize int64
}

// Open opens the package at path.
func Open(p string) (*Package, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", p, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}
	pkg, err := newPackage(f, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	pkg.closer = f
	return pkg, nil
}

// OpenBytes opens a package held in memory.
func OpenBytes(data []byte) (*Package, error) {
	return newPackage(bytes.NewReader(data), int64(len(data)))
}

// OpenReader opens a package from r, which must hold size bytes.
func OpenReader(r io.ReaderAt, size int64) (*Package, error) {
	return newPackage(r, size)
}

func newPackage(r io.ReaderAt, size int64) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[strings.TrimPrefix(f.Name, "/")] = f
	}
	if _, ok := files[BodyPart]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequiredPart, BodyPart)
	}

	return &Package{
		zr:          zr,
		files:       files,
		parsed:      make(map[string]*Node),
		MaxPartSize: DefaultMaxPartSize,
	}, nil
}

// Close releases the underlying file, if any.
func (p *Package) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// Has reports whether the named part exists.
func (p *Package) Has(name string) bool {
	_, ok := p.files[name]
	return ok
}

// Part returns the parsed tree of the named part. ok is false when the part
// does not exist; err wraps ErrMalformedPart when it exists but cannot be
// parsed.
func (p *Package) Part(name string) (root *Node, ok bool, err error) {
	if n, cached := p.parsed[name]; cached {
		return n, true, nil
	}
	f, exists := p.files[name]
	if !exists {
		return nil, false, nil
	}

	rc, err := f.Open()
	if err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", ErrMalformedPart, name, err)
	}
	defer rc.Close()

	limit := p.MaxPartSize
	if limit <= 0 {
		limit = DefaultMaxPartSize
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", ErrMalformedPart, name, err)
	}
	if int64(len(data)) > limit {
		return nil, true, fmt.Errorf("%w: %s exceeds %d bytes", ErrMalformedPart, name, limit)
	}

	n, err := parseTree(bytes.NewReader(data))
	if err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", ErrMalformedPart, name, err)
	}
	p.parsed[name] = n
	return n, true, nil
}

// Body returns the parsed main document part. The part is known to exist
// once the package is open, so the only failure is a malformed body.
func (p *Package) Body() (*Node, error) {
	n, _, err := p.Part(BodyPart)
	return n, err
}

// HeaderParts returns the names of all header parts in a stable order
// (header1.xml, header2.xml, ..., header10.xml).
func (p *Package) HeaderParts() []string {
	var names []string
	for name := range p.files {
		dir, base := path.Split(name)
		if dir == "word/" && strings.HasPrefix(base, "header") && strings.HasSuffix(base, ".xml") {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}
