// Package cv defines the canonical structured resume produced by extraction
// and consumed by verification, storage and adjustment.
package cv

// Sidebar category keys, in the order they are serialized.
const (
	CategoryLanguages          = "languages"
	CategoryTools              = "tools"
	CategoryCertifications     = "certifications"
	CategoryIndustries         = "industries"
	CategorySpokenLanguages    = "spoken_languages"
	CategoryAcademicBackground = "academic_background"
)

// Categories lists every sidebar category key.
var Categories = []string{
	CategoryLanguages,
	CategoryTools,
	CategoryCertifications,
	CategoryIndustries,
	CategorySpokenLanguages,
	CategoryAcademicBackground,
}

// Document is the extraction result. Every key is always present once the
// document has gone through Normalize.
type Document struct {
	Identity    Identity     `json:"identity"`
	Sidebar     Sidebar      `json:"sidebar"`
	Overview    string       `json:"overview"`
	Experiences []Experience `json:"experiences"`
}

type Identity struct {
	Title     string `json:"title"`
	FullName  string `json:"full_name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type Sidebar struct {
	Languages          []string `json:"languages"`
	Tools              []string `json:"tools"`
	Certifications     []string `json:"certifications"`
	Industries         []string `json:"industries"`
	SpokenLanguages    []string `json:"spoken_languages"`
	AcademicBackground []string `json:"academic_background"`
}

// Experience is one work-experience entry.
//
// Environment is nil when no technology tag line was found; a non-nil pointer
// to an empty slice means a tag line was found but carried no tokens.
type Experience struct {
	Heading     string    `json:"heading"`
	Description string    `json:"description"`
	Bullets     []string  `json:"bullets"`
	Environment *[]string `json:"environment,omitempty"`
}

// Category returns a pointer to the slice backing the named category, or nil
// for an unknown key.
func (s *Sidebar) Category(key string) *[]string {
	switch key {
	case CategoryLanguages:
		return &s.Languages
	case CategoryTools:
		return &s.Tools
	case CategoryCertifications:
		return &s.Certifications
	case CategoryIndustries:
		return &s.Industries
	case CategorySpokenLanguages:
		return &s.SpokenLanguages
	case CategoryAcademicBackground:
		return &s.AcademicBackground
	}
	return nil
}

// Tags returns a non-nil environment holding tags.
func Tags(tags ...string) *[]string {
	out := make([]string, 0, len(tags))
	out = append(out, tags...)
	return &out
}

// Normalize replaces nil slices with empty ones so that every list key
// serializes as [] rather than null.
func (d *Document) Normalize() {
	for _, key := range Categories {
		if p := d.Sidebar.Category(key); *p == nil {
			*p = []string{}
		}
	}
	if d.Experiences == nil {
		d.Experiences = []Experience{}
	}
	for i := range d.Experiences {
		if d.Experiences[i].Bullets == nil {
			d.Experiences[i].Bullets = []string{}
		}
		if env := d.Experiences[i].Environment; env != nil && *env == nil {
			*env = []string{}
		}
	}
}

// Empty returns a key-complete document with no content.
func Empty() Document {
	var d Document
	d.Normalize()
	return d
}
