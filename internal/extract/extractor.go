// Package extract recovers a structured CV from the XML parts of a resume
// document using layout heuristics: paragraph styles, list numbering and text
// patterns described by a Profile.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/kalambet/cvextract/internal/cv"
	"github.com/kalambet/cvextract/internal/docx"
)

// ErrTooLarge is returned for inputs over the extractor's MaxFileSize.
var ErrTooLarge = errors.New("file too large")

// Error wraps a fatal extraction failure with the input it concerns and the
// stage that failed ("open", "body").
type Error struct {
	Path string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.Path, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Result is one extracted document and the heuristic gaps found on the way.
type Result struct {
	CV       cv.Document `json:"cv"`
	Warnings []Warning   `json:"warnings"`
}

// Extractor runs extractions with one compiled profile. It holds no
// per-document state and is safe for concurrent use.
type Extractor struct {
	rules       *Rules
	logger      *slog.Logger
	maxFileSize int64
}

type Option func(*Extractor)

// WithLogger sets the logger used for per-document diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithMaxFileSize rejects inputs larger than n bytes. Zero disables the check.
func WithMaxFileSize(n int64) Option {
	return func(e *Extractor) { e.maxFileSize = n }
}

// New returns an Extractor for rules, or for the default profile if rules is
// nil.
func New(rules *Rules, opts ...Option) *Extractor {
	if rules == nil {
		rules = DefaultProfile().MustCompile()
	}
	e := &Extractor{rules: rules, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the compiled profile the extractor uses.
func (e *Extractor) Rules() *Rules {
	return e.rules
}

// ExtractFile extracts the document at path.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Path: path, Op: "open", Err: err}
	}
	if e.maxFileSize > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, &Error{Path: path, Op: "open", Err: err}
		}
		if info.Size() > e.maxFileSize {
			return nil, &Error{Path: path, Op: "open", Err: fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size())}
		}
	}

	pkg, err := docx.Open(path)
	if err != nil {
		return nil, &Error{Path: path, Op: "open", Err: err}
	}
	defer pkg.Close()
	return e.extract(path, pkg)
}

// ExtractBytes extracts a document held in memory; name identifies it in
// errors and logs.
func (e *Extractor) ExtractBytes(ctx context.Context, name string, data []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Path: name, Op: "open", Err: err}
	}
	if e.maxFileSize > 0 && int64(len(data)) > e.maxFileSize {
		return nil, &Error{Path: name, Op: "open", Err: fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))}
	}

	pkg, err := docx.OpenBytes(data)
	if err != nil {
		return nil, &Error{Path: name, Op: "open", Err: err}
	}
	return e.extract(name, pkg)
}

func (e *Extractor) extract(name string, pkg *docx.Package) (*Result, error) {
	body, err := pkg.Body()
	if err != nil {
		return nil, &Error{Path: name, Op: "body", Err: err}
	}

	nodes := docx.BodyParagraphs(body)
	paras := make([]RawParagraph, 0, len(nodes))
	for _, n := range nodes {
		paras = append(paras, rawParagraph(docx.ReadParagraph(n)))
	}

	header, warnings := e.rules.parseHeaders(pkg)
	routed := e.rules.route(paras)
	experiences, segWarnings := e.rules.segment(routed.experience)
	warnings = append(warnings, segWarnings...)

	if header.identity.FullName == "" {
		warnings = append(warnings, warnf(WarnNoIdentity, "no name found in header text"))
	}
	if routed.labelsMatched == 0 {
		warnings = append(warnings, warnf(WarnUnrecognizedStructure, "no section heading matched the profile"))
	}
	if len(experiences) == 0 {
		warnings = append(warnings, warnf(WarnNoExperience, "no experience entries found"))
	}

	for _, w := range warnings {
		e.logger.Debug("extraction warning", "path", name, "code", w.Code, "message", w.Message)
	}

	doc := assemble(header, routed.overview, experiences)
	e.logger.Debug("extracted document", "path", name,
		"experiences", len(doc.Experiences), "warnings", len(warnings))

	if warnings == nil {
		warnings = []Warning{}
	}
	return &Result{CV: doc, Warnings: warnings}, nil
}
