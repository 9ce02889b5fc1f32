package extract

import (
	"testing"

	"github.com/kalambet/cvextract/internal/docx"
	"github.com/kalambet/cvextract/internal/docx/docxtest"
)

func parseHeaderDoc(t *testing.T, r *Rules, d *docxtest.Doc) (headerResult, []Warning) {
	t.Helper()
	pkg, err := docx.OpenBytes(d.MustBytes(t))
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	return r.parseHeaders(pkg)
}

func TestParseHeadersTwoBoxes(t *testing.T) {
	r := defaultRules(t)
	h := docxtest.Header{Boxes: [][]docxtest.P{
		{
			docxtest.Para("SKILLS"),
			docxtest.Para("Go | Rust • Java"),
			docxtest.Para("TOOLS"),
			docxtest.Para("Terraform"),
			docxtest.Para("Spoken Languages:"),
			docxtest.Para("English · French"),
			docxtest.Para("EDUCATION"),
			docxtest.Para("MSc Computer Science, ETH Zurich"),
		},
		{
			docxtest.Para("Jean-Luc O'Neill"),
			docxtest.Para("Cloud Architect"),
		},
	}}

	res, warnings := parseHeaderDoc(t, r, docxtest.New().WithHeader("header1.xml", h))
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	if res.identity.FullName != "Jean-Luc O'Neill" || res.identity.FirstName != "Jean-Luc" || res.identity.LastName != "O'Neill" {
		t.Errorf("identity = %+v", res.identity)
	}
	if res.identity.Title != "Cloud Architect" {
		t.Errorf("title = %q", res.identity.Title)
	}
	assertStrings(t, "languages", res.sidebar.Languages, []string{"Go", "Rust", "Java"})
	assertStrings(t, "tools", res.sidebar.Tools, []string{"Terraform"})
	assertStrings(t, "spoken_languages", res.sidebar.SpokenLanguages, []string{"English", "French"})
	assertStrings(t, "academic_background", res.sidebar.AcademicBackground, []string{"MSc Computer Science, ETH Zurich"})
}

func TestParseHeadersDedupAcrossParts(t *testing.T) {
	r := defaultRules(t)
	h := sidebarHeader("Sarah Connor", "LANGUAGES", "Python")
	h.Alternate = true
	d := docxtest.New().
		WithHeader("header1.xml", h).
		WithHeader("header2.xml", h).
		WithHeader("header3.xml", h)

	res, _ := parseHeaderDoc(t, r, d)
	assertStrings(t, "languages", res.sidebar.Languages, []string{"Python"})
}

func TestParseHeadersLooseBackfill(t *testing.T) {
	r := defaultRules(t)
	h := docxtest.Header{Loose: []docxtest.P{
		docxtest.Para("Page 1"),
		docxtest.Para("Ada Lovelace"),
		docxtest.Para("Analyst"),
	}}

	res, _ := parseHeaderDoc(t, r, docxtest.New().WithHeader("header1.xml", h))
	if res.identity.FullName != "Ada Lovelace" || res.identity.Title != "Analyst" {
		t.Errorf("identity = %+v", res.identity)
	}
}

func TestParseHeadersBoxesWinOverLoose(t *testing.T) {
	r := defaultRules(t)
	h := sidebarHeader("Sarah Connor")
	h.Loose = []docxtest.P{docxtest.Para("Ada Lovelace")}

	res, _ := parseHeaderDoc(t, r, docxtest.New().WithHeader("header1.xml", h))
	if res.identity.FullName != "Sarah Connor" {
		t.Errorf("full_name = %q, want text box name", res.identity.FullName)
	}
}

func TestParseHeadersSingleWordName(t *testing.T) {
	r := defaultRules(t)
	res, _ := parseHeaderDoc(t, r, docxtest.New().WithHeader("header1.xml", sidebarHeader("Madonna", "Singer")))
	id := res.identity
	if id.FullName != "Madonna" || id.FirstName != "Madonna" || id.LastName != "" || id.Title != "Singer" {
		t.Errorf("identity = %+v", id)
	}
}

func TestParseHeadersNoHeaders(t *testing.T) {
	res, warnings := parseHeaderDoc(t, defaultRules(t), docxtest.New())
	if res.identity.FullName != "" || len(warnings) != 0 {
		t.Errorf("expected empty result, got %+v %v", res, warnings)
	}
}

func TestParseHeadersLongLineEndsRun(t *testing.T) {
	p := DefaultProfile()
	p.MaxItemLength = 20
	r := p.MustCompile()

	h := sidebarHeader(
		"LANGUAGES",
		"Go",
		"A long line that is surely not an item",
		"Sarah Connor",
	)
	res, _ := parseHeaderDoc(t, r, docxtest.New().WithHeader("header1.xml", h))
	assertStrings(t, "languages", res.sidebar.Languages, []string{"Go"})
	if res.identity.FullName != "Sarah Connor" {
		t.Errorf("full_name = %q", res.identity.FullName)
	}
}

func TestSidebarLabelMatching(t *testing.T) {
	exact := defaultRules(t)

	prefixProfile := DefaultProfile()
	prefixProfile.LabelMatch = MatchPrefix
	prefix := prefixProfile.MustCompile()

	tests := []struct {
		name     string
		rules    *Rules
		line     string
		category string
		rest     string
		ok       bool
	}{
		{"exact uppercase", exact, "LANGUAGES", "languages", "", true},
		{"exact colon", exact, "Tools & Technologies :", "tools", "", true},
		{"exact rejects inline", exact, "Languages: Go, Rust", "", "", false},
		{"prefix inline colon", prefix, "Languages: Go, Rust", "languages", "Go, Rust", true},
		{"prefix longest label", prefix, "Spoken Languages: English", "spoken_languages", "English", true},
		{"prefix without colon", prefix, "Industries Banking", "industries", "Banking", true},
		{"prefix needs word boundary", prefix, "Toolsmith", "", "", false},
		{"prefix exact line", prefix, "Certificates", "certifications", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, rest, ok := tt.rules.matchSidebarLabel(tt.line)
			if ok != tt.ok || category != tt.category || rest != tt.rest {
				t.Errorf("matchSidebarLabel(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.line, category, rest, ok, tt.category, tt.rest, tt.ok)
			}
		})
	}
}

func TestNameAndTitleHeuristics(t *testing.T) {
	r := defaultRules(t)

	names := map[string]bool{
		"Sarah Connor":                      true,
		"Mary-Jane van der Berg":            true,
		"Sarah":                             true,
		"Madonna":                           true,
		"madonna":                           false,
		"CONTACT":                           false,
		"X":                                 false,
		"sarah@example.com":                 false,
		"+1 555 0100":                       false,
		"One Two Three Four Five Six":       false,
		"Languages":                         false,
		"Professional Experience":           false,
		"Senior Engineer (Backend), Remote": false,
	}
	for line, want := range names {
		if got := r.nameLike(line); got != want {
			t.Errorf("nameLike(%q) = %v, want %v", line, got, want)
		}
	}

	titles := map[string]bool{
		"Senior Software Engineer": true,
		"CTO":                      true,
		"https://example.com":      false,
		"Phone: 555 0100":          false,
		"I build reliable systems.": false,
	}
	for line, want := range titles {
		if got := r.titleLike(line); got != want {
			t.Errorf("titleLike(%q) = %v, want %v", line, got, want)
		}
	}
}
