package extract

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/kalambet/cvextract/internal/cv"
)

// LabelMatch selects how sidebar category labels are recognized.
type LabelMatch string

const (
	// MatchExact requires the whole line to equal a label, ignoring case,
	// repeated whitespace and a trailing colon.
	MatchExact LabelMatch = "exact"
	// MatchPrefix accepts a line that starts with a label; text after the
	// label on the same line becomes the first items of the category.
	MatchPrefix LabelMatch = "prefix"
)

// Profile holds the layout heuristics for one template family. Everything
// the extractor recognizes by text or style name comes from here.
type Profile struct {
	OverviewLabels      []string            `yaml:"overview_labels"`
	ExperienceLabels    []string            `yaml:"experience_labels"`
	EndLabels           []string            `yaml:"end_labels"`
	DateRangePatterns   []string            `yaml:"date_range_patterns"`
	EntryHeadingStyles  []string            `yaml:"entry_heading_styles"`
	ListStyles          []string            `yaml:"list_styles"`
	EnvironmentPrefixes []string            `yaml:"environment_prefixes"`
	SidebarLabels       map[string][]string `yaml:"sidebar_labels"`
	LabelMatch          LabelMatch          `yaml:"label_match"`

	MaxNameWords     int `yaml:"max_name_words"`
	MaxNameLength    int `yaml:"max_name_length"`
	MaxTitleWords    int `yaml:"max_title_words"`
	MaxTitleLength   int `yaml:"max_title_length"`
	MaxItemLength    int `yaml:"max_item_length"`
	MaxTagLength     int `yaml:"max_tag_length"`
	MaxHeadingLength int `yaml:"max_heading_length"`
	// MaxHeadingWords bounds a line whose date range sits mid-line; longer
	// lines read as prose.
	MaxHeadingWords int `yaml:"max_heading_words"`
}

const (
	monthExpr = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sept?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?`
	yearExpr  = `(?:19|20)\d{2}`
	sepExpr   = `\s*(?:–|—|-|to|until)\s*`
	openExpr  = `(?:present|current|now|today|ongoing)`
)

// DefaultProfile returns the heuristics tuned for the English resume
// template family the tool was built for.
func DefaultProfile() Profile {
	monthYear := monthExpr + `\s+` + yearExpr
	numeric := `(?:0?[1-9]|1[0-2])/` + yearExpr

	return Profile{
		OverviewLabels: []string{
			"Profile", "Summary", "Professional Summary", "Career Summary",
			"Executive Summary", "Overview", "About Me", "About",
		},
		ExperienceLabels: []string{
			"Experience", "Professional Experience", "Work Experience",
			"Employment History", "Career History", "Relevant Experience",
		},
		EndLabels: []string{
			"Education", "Certifications", "References", "Projects", "Interests",
			"Hobbies", "Awards", "Publications", "Additional Information",
		},
		DateRangePatterns: []string{
			`(?i)\b` + monthYear + sepExpr + `(?:` + monthYear + `|` + openExpr + `)\b`,
			`(?i)\b` + numeric + sepExpr + `(?:` + numeric + `|` + openExpr + `)\b`,
			`(?i)\b` + yearExpr + sepExpr + `(?:` + yearExpr + `|` + openExpr + `)\b`,
		},
		EntryHeadingStyles: []string{
			"Heading2", "Heading3", "JobTitle", "ExperienceHeading", "ExperienceTitle", "Position",
		},
		ListStyles: []string{
			"ListParagraph", "ListBullet", "ListNumber", "Bullet",
		},
		EnvironmentPrefixes: []string{
			"Environment", "Technical Environment", "Technologies", "Tech Stack", "Stack", "Tools",
		},
		SidebarLabels: map[string][]string{
			cv.CategoryLanguages:          {"Languages", "Programming Languages", "Skills"},
			cv.CategoryTools:              {"Tools", "Tools & Technologies", "Technologies", "Frameworks"},
			cv.CategoryCertifications:     {"Certifications", "Certificates"},
			cv.CategoryIndustries:         {"Industries", "Sectors"},
			cv.CategorySpokenLanguages:    {"Spoken Languages", "Foreign Languages"},
			cv.CategoryAcademicBackground: {"Education", "Academic Background"},
		},
		LabelMatch: MatchExact,

		MaxNameWords:     5,
		MaxNameLength:    60,
		MaxTitleWords:    10,
		MaxTitleLength:   80,
		MaxItemLength:    120,
		MaxTagLength:     40,
		MaxHeadingLength: 200,
		MaxHeadingWords:  12,
	}
}

// LoadProfile reads a YAML profile and overlays it on DefaultProfile. Lists
// present in the file replace the default list; sidebar categories present in
// the file replace that category's labels only.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("reading profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile is LoadProfile for in-memory YAML.
func ParseProfile(data []byte) (Profile, error) {
	p := DefaultProfile()
	var overlay Profile
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return Profile{}, fmt.Errorf("parsing profile: %w", err)
	}

	replace := func(dst *[]string, src []string) {
		if src != nil {
			*dst = src
		}
	}
	replace(&p.OverviewLabels, overlay.OverviewLabels)
	replace(&p.ExperienceLabels, overlay.ExperienceLabels)
	replace(&p.EndLabels, overlay.EndLabels)
	replace(&p.DateRangePatterns, overlay.DateRangePatterns)
	replace(&p.EntryHeadingStyles, overlay.EntryHeadingStyles)
	replace(&p.ListStyles, overlay.ListStyles)
	replace(&p.EnvironmentPrefixes, overlay.EnvironmentPrefixes)
	for key, labels := range overlay.SidebarLabels {
		p.SidebarLabels[key] = labels
	}
	if overlay.LabelMatch != "" {
		p.LabelMatch = overlay.LabelMatch
	}

	replaceInt := func(dst *int, src int) {
		if src > 0 {
			*dst = src
		}
	}
	replaceInt(&p.MaxNameWords, overlay.MaxNameWords)
	replaceInt(&p.MaxNameLength, overlay.MaxNameLength)
	replaceInt(&p.MaxTitleWords, overlay.MaxTitleWords)
	replaceInt(&p.MaxTitleLength, overlay.MaxTitleLength)
	replaceInt(&p.MaxItemLength, overlay.MaxItemLength)
	replaceInt(&p.MaxTagLength, overlay.MaxTagLength)
	replaceInt(&p.MaxHeadingLength, overlay.MaxHeadingLength)
	replaceInt(&p.MaxHeadingWords, overlay.MaxHeadingWords)

	if _, err := p.Compile(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Rules is a compiled, read-only Profile. It is safe for concurrent use.
type Rules struct {
	profile Profile

	overview   map[string]bool
	experience map[string]bool
	end        map[string]bool
	sidebar    []sidebarLabel
	envPrefix  map[string]bool
	dateRanges []*regexp.Regexp
	headings   map[string]bool
	lists      []string
}

type sidebarLabel struct {
	norm     string
	category string
}

// Compile validates the profile and builds its lookup tables.
func (p Profile) Compile() (*Rules, error) {
	switch p.LabelMatch {
	case "", MatchExact, MatchPrefix:
	default:
		return nil, fmt.Errorf("unknown label_match %q (want %q or %q)", p.LabelMatch, MatchExact, MatchPrefix)
	}
	if p.LabelMatch == "" {
		p.LabelMatch = MatchExact
	}

	r := &Rules{
		profile:    p,
		overview:   labelSet(p.OverviewLabels),
		experience: labelSet(p.ExperienceLabels),
		end:        labelSet(p.EndLabels),
		envPrefix:  labelSet(p.EnvironmentPrefixes),
		headings:   make(map[string]bool, len(p.EntryHeadingStyles)),
	}

	for _, key := range cv.Categories {
		for _, label := range p.SidebarLabels[key] {
			if n := normalizeLabel(label); n != "" {
				r.sidebar = append(r.sidebar, sidebarLabel{norm: n, category: key})
			}
		}
	}
	for key := range p.SidebarLabels {
		if (&cv.Sidebar{}).Category(key) == nil {
			return nil, fmt.Errorf("unknown sidebar category %q", key)
		}
	}

	for _, expr := range p.DateRangePatterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compiling date range pattern %q: %w", expr, err)
		}
		r.dateRanges = append(r.dateRanges, re)
	}
	for _, s := range p.EntryHeadingStyles {
		r.headings[normalizeStyle(s)] = true
	}
	for _, s := range p.ListStyles {
		if n := normalizeStyle(s); n != "" {
			r.lists = append(r.lists, n)
		}
	}
	return r, nil
}

// MustCompile is Compile for profiles known to be valid.
func (p Profile) MustCompile() *Rules {
	r, err := p.Compile()
	if err != nil {
		panic(err)
	}
	return r
}

// Profile returns the profile the rules were compiled from.
func (r *Rules) Profile() Profile {
	return r.profile
}

func labelSet(labels []string) map[string]bool {
	m := make(map[string]bool, len(labels))
	for _, l := range labels {
		if n := normalizeLabel(l); n != "" {
			m[n] = true
		}
	}
	return m
}

// normalizeLabel case-folds s, collapses whitespace and drops a trailing
// colon so that "Work  experience :" and "WORK EXPERIENCE" compare equal.
func normalizeLabel(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, ": ")
	return cases.Fold().String(s)
}

// normalizeStyle lowercases a style id and removes spaces, so "List Bullet"
// (a style name) and "ListBullet" (its id) are the same.
func normalizeStyle(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), ""))
}
