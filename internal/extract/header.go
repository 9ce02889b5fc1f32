package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kalambet/cvextract/internal/cv"
	"github.com/kalambet/cvextract/internal/docx"
)

// headerLine is one line of header text and whether the sidebar parser left
// it unclaimed (free lines are identity candidates).
type headerLine struct {
	text  string
	block int
	free  bool
}

type headerResult struct {
	identity cv.Identity
	sidebar  cv.Sidebar
}

// parseHeaders reads identity and sidebar categories from every header part.
// Text boxes are authoritative; loose header paragraphs are consulted only to
// backfill the identity when the text boxes yield no name. A header part that
// cannot be parsed is skipped with a warning.
func (r *Rules) parseHeaders(pkg *docx.Package) (headerResult, []Warning) {
	var res headerResult
	var warnings []Warning
	var boxes [][]string
	var loose []string
	seen := make(map[string]bool)

	for _, name := range pkg.HeaderParts() {
		root, ok, err := pkg.Part(name)
		if err != nil {
			warnings = append(warnings, warnf(WarnMalformedHeader, "%v", err))
			continue
		}
		if !ok {
			continue
		}
		for _, box := range docx.TextBoxes(root) {
			lines := paragraphLines(docx.ChildParagraphs(box))
			key := strings.Join(lines, "\n")
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			boxes = append(boxes, lines)
		}
		loose = append(loose, paragraphLines(docx.LooseParagraphs(root))...)
	}

	var lines []headerLine
	for i, box := range boxes {
		lines = append(lines, r.parseSidebarBlock(i, box, &res.sidebar)...)
	}
	res.identity = r.identity(lines)

	if res.identity.FullName == "" && len(loose) > 0 {
		backfill := make([]headerLine, 0, len(loose))
		for _, l := range loose {
			backfill = append(backfill, headerLine{text: l, free: true})
		}
		res.identity = r.identity(backfill)
	}
	return res, warnings
}

// paragraphLines flattens paragraphs into non-empty lines; a manual line
// break inside a paragraph starts a new line.
func paragraphLines(paras []*docx.Node) []string {
	var out []string
	for _, p := range paras {
		for _, line := range strings.Split(docx.ReadParagraph(p).Text, "\n") {
			if line = cleanText(line); line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}

// parseSidebarBlock assigns the lines of one text box to sidebar categories.
// A category label opens a run; following list-like lines are its items until
// the next label, a line too long to be an item, or the end of the box.
func (r *Rules) parseSidebarBlock(block int, lines []string, sb *cv.Sidebar) []headerLine {
	out := make([]headerLine, 0, len(lines))
	current := ""

	for _, line := range lines {
		if category, rest, ok := r.matchSidebarLabel(line); ok {
			current = category
			if rest != "" {
				r.appendItems(sb, category, rest)
			}
			out = append(out, headerLine{text: line, block: block})
			continue
		}
		if current != "" && utf8.RuneCountInString(line) <= r.profile.MaxItemLength {
			r.appendItems(sb, current, line)
			out = append(out, headerLine{text: line, block: block})
			continue
		}
		current = ""
		out = append(out, headerLine{text: line, block: block, free: true})
	}
	return out
}

func (r *Rules) appendItems(sb *cv.Sidebar, category, line string) {
	dst := sb.Category(category)
	if category == cv.CategoryAcademicBackground {
		*dst = append(*dst, line)
		return
	}
	for _, item := range strings.FieldsFunc(line, isItemSeparator) {
		if item = strings.TrimSpace(item); item != "" {
			*dst = append(*dst, item)
		}
	}
}

func isItemSeparator(r rune) bool {
	switch r {
	case ',', ';', '|', '•', '·':
		return true
	}
	return false
}

// matchSidebarLabel reports whether line is a category label. In prefix mode
// the longest label the line starts with wins and the remainder of the line
// (after a colon, or after the label words) is returned as rest.
func (r *Rules) matchSidebarLabel(line string) (category, rest string, ok bool) {
	norm := normalizeLabel(line)
	if norm == "" {
		return "", "", false
	}

	best := -1
	for i, l := range r.sidebar {
		switch {
		case norm == l.norm:
			return l.category, "", true
		case r.profile.LabelMatch == MatchPrefix && strings.HasPrefix(norm, l.norm):
			next := norm[len(l.norm)]
			if next != ' ' && next != ':' {
				continue
			}
			if best < 0 || len(l.norm) > len(r.sidebar[best].norm) {
				best = i
			}
		}
	}
	if best < 0 {
		return "", "", false
	}

	if i := strings.IndexByte(line, ':'); i >= 0 {
		rest = line[i+1:]
	} else {
		words := strings.Fields(line)
		rest = strings.Join(words[len(strings.Fields(r.sidebar[best].norm)):], " ")
	}
	return r.sidebar[best].category, strings.TrimSpace(rest), true
}

// isLabel reports whether line is any heading the profile knows about.
func (r *Rules) isLabel(line string) bool {
	norm := normalizeLabel(line)
	if r.overview[norm] || r.experience[norm] || r.end[norm] {
		return true
	}
	_, _, ok := r.matchSidebarLabel(line)
	return ok
}

// identity picks the first name-like free line as the full name and the free
// line right after it in the same text box, if it reads like a job title.
func (r *Rules) identity(lines []headerLine) cv.Identity {
	var id cv.Identity
	for i, l := range lines {
		if !l.free || !r.nameLike(l.text) {
			continue
		}
		id.FullName = l.text
		words := strings.Fields(l.text)
		id.FirstName = words[0]
		id.LastName = strings.Join(words[1:], " ")

		if i+1 < len(lines) {
			next := lines[i+1]
			if next.free && next.block == l.block && r.titleLike(next.text) {
				id.Title = next.text
			}
		}
		return id
	}
	return id
}

// nameLike: up to MaxNameWords words, no digits, and no punctuation other
// than the hyphens, apostrophes and periods that occur in names. A single
// word must be capitalized and not all caps.
func (r *Rules) nameLike(s string) bool {
	words := strings.Fields(s)
	if len(words) == 0 || len(words) > r.profile.MaxNameWords {
		return false
	}
	if len(words) == 1 && !capitalizedWord(words[0]) {
		return false
	}
	if utf8.RuneCountInString(s) > r.profile.MaxNameLength || r.isLabel(s) {
		return false
	}
	marks := 0
	for _, c := range s {
		switch {
		case unicode.IsDigit(c):
			return false
		case c == '-' || c == '\'' || c == '’' || c == '.':
			marks++
		case unicode.IsPunct(c) || unicode.IsSymbol(c):
			return false
		}
	}
	return marks <= 2
}

func capitalizedWord(w string) bool {
	first, _ := utf8.DecodeRuneInString(w)
	if !unicode.IsUpper(first) || utf8.RuneCountInString(w) < 2 {
		return false
	}
	return strings.IndexFunc(w, unicode.IsLower) >= 0
}

// titleLike: a short phrase without contact details or sentence punctuation.
func (r *Rules) titleLike(s string) bool {
	words := strings.Fields(s)
	if len(words) == 0 || len(words) > r.profile.MaxTitleWords {
		return false
	}
	if utf8.RuneCountInString(s) > r.profile.MaxTitleLength || r.isLabel(s) {
		return false
	}
	if strings.ContainsAny(s, "@:") || strings.Contains(strings.ToLower(s), "http") || strings.HasSuffix(s, ".") {
		return false
	}
	digits := 0
	for _, c := range s {
		if unicode.IsDigit(c) {
			digits++
		}
	}
	return digits <= 2
}
