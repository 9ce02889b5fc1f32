package docx

import (
	"strconv"
	"strings"
)

// Paragraph is the text and list/style metadata of one w:p element.
type Paragraph struct {
	Text    string
	StyleID string
	NumID   string
	Level   int
}

// ReadParagraph flattens a w:p element. Runs are concatenated in order,
// w:tab becomes a tab and w:br / w:cr become newlines. Text boxes anchored in
// the paragraph, deleted text, field instructions and AlternateContent
// fallbacks are not part of the paragraph's own text.
func ReadParagraph(p *Node) Paragraph {
	var out Paragraph
	var sb strings.Builder

	for _, c := range p.Children {
		if c.Is(NSWordML, "pPr") {
			readParagraphProps(c, &out)
			break
		}
	}

	p.Walk(func(n *Node) bool {
		if n == p {
			return true
		}
		switch {
		case n.IsText():
			return false
		case n.Is(NSWordML, "pPr"), n.Is(NSWordML, "txbxContent"), n.Is(NSMarkup, "Fallback"),
			n.Is(NSWordML, "delText"), n.Is(NSWordML, "instrText"):
			return false
		case n.Is(NSWordML, "t"):
			for _, c := range n.Children {
				if c.IsText() {
					sb.WriteString(c.Text)
				}
			}
			return false
		case n.Is(NSWordML, "tab"):
			sb.WriteByte('\t')
			return false
		case n.Is(NSWordML, "br"), n.Is(NSWordML, "cr"):
			sb.WriteByte('\n')
			return false
		}
		return true
	})

	out.Text = sb.String()
	return out
}

func readParagraphProps(pPr *Node, out *Paragraph) {
	if s := pPr.Child("pStyle"); s != nil {
		out.StyleID, _ = s.Attr("val")
	}
	numPr := pPr.Child("numPr")
	if numPr == nil {
		return
	}
	if n := numPr.Child("numId"); n != nil {
		out.NumID, _ = n.Attr("val")
	}
	if l := numPr.Child("ilvl"); l != nil {
		if v, ok := l.Attr("val"); ok {
			out.Level, _ = strconv.Atoi(v)
		}
	}
}

// BodyParagraphs returns the w:p elements of a main document part in document
// order, including paragraphs inside table cells. Paragraphs inside text boxes
// and AlternateContent fallbacks are skipped.
func BodyParagraphs(root *Node) []*Node {
	body := root
	if b := root.Find("body"); b != nil {
		body = b
	}
	var out []*Node
	body.Walk(func(n *Node) bool {
		switch {
		case n.Is(NSWordML, "txbxContent"), n.Is(NSMarkup, "Fallback"):
			return false
		case n.Is(NSWordML, "p"):
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

// TextBoxes returns the w:txbxContent elements of a part in document order.
// Text boxes nested in another text box are reported as part of their parent.
func TextBoxes(root *Node) []*Node {
	var out []*Node
	root.Walk(func(n *Node) bool {
		switch {
		case n.Is(NSMarkup, "Fallback"):
			return false
		case n.Is(NSWordML, "txbxContent"):
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

// LooseParagraphs returns the paragraphs of a part that are not inside a text
// box, in document order.
func LooseParagraphs(root *Node) []*Node {
	var out []*Node
	root.Walk(func(n *Node) bool {
		switch {
		case n.Is(NSWordML, "txbxContent"), n.Is(NSMarkup, "Fallback"):
			return false
		case n.Is(NSWordML, "p"):
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

// ChildParagraphs returns the paragraphs directly inside a text box,
// including those in tables placed in it.
func ChildParagraphs(box *Node) []*Node {
	var out []*Node
	for _, c := range box.Children {
		c.Walk(func(n *Node) bool {
			switch {
			case n.Is(NSMarkup, "Fallback"):
				return false
			case n.Is(NSWordML, "p"):
				out = append(out, n)
				return false
			}
			return true
		})
	}
	return out
}
