package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/kalambet/cvextract/internal/cv"
)

type boundaryKind int

const (
	boundaryNone boundaryKind = iota
	boundaryDateRange
	boundaryHeadingStyle
)

// boundaryDetector recognizes the first paragraph of an experience entry.
type boundaryDetector struct {
	kind  boundaryKind
	match func(RawParagraph) bool
}

// detectors returns the boundary detectors in priority order. The first
// detector that matches names the boundary, so a line that is both styled as
// a heading and contains a date range counts as a date-range boundary.
func (r *Rules) detectors() []boundaryDetector {
	return []boundaryDetector{
		{kind: boundaryDateRange, match: r.hasDateRange},
		{kind: boundaryHeadingStyle, match: r.hasHeadingStyle},
	}
}

// hasDateRange reports whether p is a heading carrying a date range. A range
// that opens or closes the line always counts. A range in the middle counts
// only on a short line that does not end like a sentence.
func (r *Rules) hasDateRange(p RawParagraph) bool {
	for _, re := range r.dateRanges {
		for _, loc := range re.FindAllStringIndex(p.Text, -1) {
			if atLineEdge(p.Text, loc) || !r.proseLike(p.Text) {
				return true
			}
		}
	}
	return false
}

const edgeCutset = " \t,;:|()[]-–—."

func atLineEdge(s string, loc []int) bool {
	return strings.Trim(s[:loc[0]], edgeCutset) == "" || strings.Trim(s[loc[1]:], edgeCutset) == ""
}

func (r *Rules) proseLike(s string) bool {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") {
		return true
	}
	limit := r.profile.MaxHeadingWords
	return limit > 0 && len(strings.Fields(s)) > limit
}

func (r *Rules) hasHeadingStyle(p RawParagraph) bool {
	return p.StyleID != "" && r.headings[normalizeStyle(p.StyleID)]
}

// boundary classifies p as an entry boundary. List items and overlong
// paragraphs never start an entry.
func (r *Rules) boundary(p RawParagraph, detectors []boundaryDetector) boundaryKind {
	if utf8.RuneCountInString(p.Text) > r.profile.MaxHeadingLength {
		return boundaryNone
	}
	for _, d := range detectors {
		if d.match(p) {
			return d.kind
		}
	}
	return boundaryNone
}

type segState int

const (
	awaitHeading segState = iota
	inDescription
	inBullets
	afterEnvironment
)

// entry accumulates one experience while the segmenter walks the section.
type entry struct {
	heading     []string
	kinds       map[boundaryKind]bool
	description []string
	bullets     []string
	environment *[]string
}

func (e *entry) headingOnly() bool {
	return len(e.description) == 0 && len(e.bullets) == 0 && e.environment == nil
}

func (e *entry) experience() cv.Experience {
	return cv.Experience{
		Heading:     strings.Join(e.heading, "\n"),
		Description: strings.Join(e.description, " "),
		Bullets:     e.bullets,
		Environment: e.environment,
	}
}

// segmenter is the state of one walk over an experience section. It lives on
// the caller's stack; nothing is shared between extractions.
type segmenter struct {
	rules     *Rules
	detectors []boundaryDetector
	state     segState
	cur       *entry
	done      []cv.Experience
	warnings  []Warning
}

// segment groups experience-section paragraphs into entries.
func (r *Rules) segment(paras []RawParagraph) ([]cv.Experience, []Warning) {
	s := &segmenter{rules: r, detectors: r.detectors()}
	for _, p := range paras {
		s.feed(p)
	}
	s.flush()
	return s.done, s.warnings
}

func (s *segmenter) feed(p RawParagraph) {
	if p.Text == "" {
		return
	}
	bullet := s.rules.IsBullet(p)

	if !bullet {
		if kind := s.rules.boundary(p, s.detectors); kind != boundaryNone {
			s.startOrExtend(p.Text, kind)
			return
		}
	}

	switch s.state {
	case awaitHeading:
		// section decoration before the first entry

	case inDescription:
		if bullet {
			s.state = inBullets
			s.cur.bullets = append(s.cur.bullets, p.Text)
			return
		}
		s.cur.description = append(s.cur.description, p.Text)

	case inBullets:
		if bullet {
			s.cur.bullets = append(s.cur.bullets, p.Text)
			return
		}
		if tags, ok := s.rules.tagLine(p.Text); ok {
			s.cur.environment = tags
			s.state = afterEnvironment
			return
		}
		s.unplaced(p)

	case afterEnvironment:
		if bullet {
			s.cur.bullets = append(s.cur.bullets, p.Text)
			return
		}
		s.unplaced(p)
	}
}

// startOrExtend opens a new entry, unless the current entry has nothing but
// a heading produced by a different detector. In that case p is the second
// line of the same heading (for example a job title styled as a heading
// followed by its date range).
func (s *segmenter) startOrExtend(text string, kind boundaryKind) {
	if s.cur != nil && s.cur.headingOnly() && !s.cur.kinds[kind] {
		s.cur.heading = append(s.cur.heading, text)
		s.cur.kinds[kind] = true
		return
	}
	s.flush()
	s.cur = &entry{
		heading: []string{text},
		kinds:   map[boundaryKind]bool{kind: true},
	}
	s.state = inDescription
}

func (s *segmenter) flush() {
	if s.cur == nil {
		return
	}
	s.done = append(s.done, s.cur.experience())
	s.cur = nil
	s.state = awaitHeading
}

func (s *segmenter) unplaced(p RawParagraph) {
	s.warnings = append(s.warnings, warnf(WarnUnplacedParagraph,
		"paragraph after bullets of %q dropped: %q", firstLine(s.cur.heading), truncate(p.Text, 60)))
}

// tagLine parses a technology tag line. A line with a configured prefix
// ("Environment: Go, AWS") is always a tag line, even when nothing follows
// the prefix. Without a prefix the line must hold at least two short tokens
// separated by commas or slashes and must not read like a sentence.
func (r *Rules) tagLine(text string) (*[]string, bool) {
	if i := strings.IndexByte(text, ':'); i > 0 && r.envPrefix[normalizeLabel(text[:i])] {
		return cv.Tags(splitTags(text[i+1:])...), true
	}

	if !strings.ContainsAny(text, ",/") || strings.HasSuffix(strings.TrimSpace(text), ".") {
		return nil, false
	}
	tokens := splitTags(text)
	if len(tokens) < 2 {
		return nil, false
	}
	for _, t := range tokens {
		if utf8.RuneCountInString(t) > r.profile.MaxTagLength || len(strings.Fields(t)) > 4 {
			return nil, false
		}
	}
	return cv.Tags(tokens...), true
}

func splitTags(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '/' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func firstLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
