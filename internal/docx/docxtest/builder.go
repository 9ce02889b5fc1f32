// Package docxtest builds small in-memory document packages for tests.
package docxtest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const nsDecl = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006" ` +
	`xmlns:wps="http://schemas.microsoft.com/office/word/2010/wordprocessingShape" ` +
	`xmlns:v="urn:schemas-microsoft-com:vml" ` +
	`mc:Ignorable="wps"`

// P describes one paragraph.
type P struct {
	Text  string
	Style string
	NumID string
	Level int
}

func Para(text string) P          { return P{Text: text} }
func Styled(style, text string) P { return P{Text: text, Style: style} }
func Bullet(text string) P        { return P{Text: text, NumID: "1"} }

// Header describes a header part: loose paragraphs plus text boxes.
// Alternate wraps each text box in mc:AlternateContent with a VML fallback
// carrying the same paragraphs, the way Word writes them.
type Header struct {
	Loose     []P
	Boxes     [][]P
	Alternate bool
}

// Doc is a package under construction.
type Doc struct {
	Body    []P
	headers []namedHeader
	extra   map[string]string
	noBody  bool
}

type namedHeader struct {
	name string
	h    Header
	raw  string
}

// New returns a Doc with the given body paragraphs.
func New(body ...P) *Doc {
	return &Doc{Body: body, extra: map[string]string{}}
}

// WithHeader adds word/<name> built from h.
func (d *Doc) WithHeader(name string, h Header) *Doc {
	d.headers = append(d.headers, namedHeader{name: name, h: h})
	return d
}

// WithRawHeader adds word/<name> with verbatim content.
func (d *Doc) WithRawHeader(name, content string) *Doc {
	d.headers = append(d.headers, namedHeader{name: name, raw: content})
	return d
}

// WithPart adds an arbitrary part.
func (d *Doc) WithPart(name, content string) *Doc {
	d.extra[name] = content
	return d
}

// WithoutBody omits word/document.xml.
func (d *Doc) WithoutBody() *Doc {
	d.noBody = true
	return d
}

// Bytes serializes the package.
func (d *Doc) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(name, content string) error {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = w.Write([]byte(content))
		return err
	}

	if err := write("[Content_Types].xml", contentTypes); err != nil {
		return nil, err
	}
	if !d.noBody {
		if err := write("word/document.xml", BodyXML(d.Body...)); err != nil {
			return nil, err
		}
	}
	for _, h := range d.headers {
		content := h.raw
		if content == "" {
			content = HeaderXML(h.h)
		}
		if err := write("word/"+h.name, content); err != nil {
			return nil, err
		}
	}
	for name, content := range d.extra {
		if err := write(name, content); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustBytes serializes the package or fails the test.
func (d *Doc) MustBytes(t testing.TB) []byte {
	t.Helper()
	data, err := d.Bytes()
	if err != nil {
		t.Fatalf("building docx: %v", err)
	}
	return data
}

// WriteFile writes the package into dir and returns its path.
func (d *Doc) WriteFile(t testing.TB, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("creating fixture dir: %v", err)
	}
	if err := os.WriteFile(p, d.MustBytes(t), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return p
}

// BodyXML renders a main document part.
func BodyXML(paras ...P) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<w:document ` + nsDecl + `><w:body>`)
	for _, p := range paras {
		writePara(&sb, p)
	}
	sb.WriteString(`<w:sectPr/></w:body></w:document>`)
	return sb.String()
}

// HeaderXML renders a header part.
func HeaderXML(h Header) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<w:hdr ` + nsDecl + `>`)
	for _, box := range h.Boxes {
		sb.WriteString(`<w:p><w:r>`)
		if h.Alternate {
			sb.WriteString(`<mc:AlternateContent><mc:Choice Requires="wps"><w:drawing><wps:wsp><wps:txbx>`)
			writeBox(&sb, box)
			sb.WriteString(`</wps:txbx></wps:wsp></w:drawing></mc:Choice><mc:Fallback><w:pict><v:shape><v:textbox>`)
			writeBox(&sb, box)
			sb.WriteString(`</v:textbox></v:shape></w:pict></mc:Fallback></mc:AlternateContent>`)
		} else {
			sb.WriteString(`<w:pict><v:shape><v:textbox>`)
			writeBox(&sb, box)
			sb.WriteString(`</v:textbox></v:shape></w:pict>`)
		}
		sb.WriteString(`</w:r></w:p>`)
	}
	for _, p := range h.Loose {
		writePara(&sb, p)
	}
	sb.WriteString(`</w:hdr>`)
	return sb.String()
}

func writeBox(sb *strings.Builder, paras []P) {
	sb.WriteString(`<w:txbxContent>`)
	for _, p := range paras {
		writePara(sb, p)
	}
	sb.WriteString(`</w:txbxContent>`)
}

func writePara(sb *strings.Builder, p P) {
	sb.WriteString(`<w:p>`)
	if p.Style != "" || p.NumID != "" {
		sb.WriteString(`<w:pPr>`)
		if p.Style != "" {
			fmt.Fprintf(sb, `<w:pStyle w:val="%s"/>`, attrEscape(p.Style))
		}
		if p.NumID != "" {
			fmt.Fprintf(sb, `<w:numPr><w:ilvl w:val="%d"/><w:numId w:val="%s"/></w:numPr>`, p.Level, attrEscape(p.NumID))
		}
		sb.WriteString(`</w:pPr>`)
	}
	for i, line := range strings.Split(p.Text, "\n") {
		sb.WriteString(`<w:r>`)
		if i > 0 {
			sb.WriteString(`<w:br/>`)
		}
		for j, seg := range strings.Split(line, "\t") {
			if j > 0 {
				sb.WriteString(`<w:tab/>`)
			}
			if seg == "" {
				continue
			}
			sb.WriteString(`<w:t xml:space="preserve">`)
			xml.EscapeText(sb, []byte(seg))
			sb.WriteString(`</w:t>`)
		}
		sb.WriteString(`</w:r>`)
	}
	sb.WriteString(`</w:p>`)
}

func attrEscape(s string) string {
	var sb strings.Builder
	xml.EscapeText(&sb, []byte(s))
	return sb.String()
}

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`</Types>`
