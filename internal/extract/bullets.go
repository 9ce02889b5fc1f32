package extract

import (
	"strings"

	"github.com/kalambet/cvextract/internal/docx"
)

// RawParagraph is one body paragraph as seen by the router and segmenter.
type RawParagraph struct {
	Text        string
	StyleID     string
	NumberingID string
	IndentLevel int
}

func rawParagraph(p docx.Paragraph) RawParagraph {
	return RawParagraph{
		Text:        cleanText(p.Text),
		StyleID:     p.StyleID,
		NumberingID: p.NumID,
		IndentLevel: p.Level,
	}
}

// cleanText collapses every run of whitespace, including tabs and line
// breaks, into a single space.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// IsBullet reports whether p is a list item: it carries numbering metadata
// (numId "0" explicitly removes numbering) or its style belongs to a list
// style family.
func (r *Rules) IsBullet(p RawParagraph) bool {
	if id := strings.TrimSpace(p.NumberingID); id != "" && id != "0" {
		return true
	}
	if p.StyleID == "" {
		return false
	}
	style := normalizeStyle(p.StyleID)
	for _, prefix := range r.lists {
		if strings.HasPrefix(style, prefix) {
			return true
		}
	}
	return false
}
