package cv

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEmptyDocumentJSON(t *testing.T) {
	data, err := json.Marshal(Empty())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"identity":{"title":"","full_name":"","first_name":"","last_name":""},` +
		`"sidebar":{"languages":[],"tools":[],"certifications":[],"industries":[],"spoken_languages":[],"academic_background":[]},` +
		`"overview":"","experiences":[]}`
	if string(data) != want {
		t.Errorf("Empty() JSON =\n%s\nwant\n%s", data, want)
	}
}

func TestEnvironmentAbsentVersusEmpty(t *testing.T) {
	d := Document{Experiences: []Experience{
		{Heading: "a"},
		{Heading: "b", Environment: Tags()},
		{Heading: "c", Environment: Tags("Go")},
	}}
	d.Normalize()

	data, err := json.Marshal(d.Experiences)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := string(data)
	for _, want := range []string{
		`{"heading":"a","description":"","bullets":[]}`,
		`{"heading":"b","description":"","bullets":[],"environment":[]}`,
		`{"heading":"c","description":"","bullets":[],"environment":["Go"]}`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %s in %s", want, got)
		}
	}

	var back []Experience
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back[0].Environment != nil {
		t.Error("absent environment decoded as present")
	}
	if back[1].Environment == nil || len(*back[1].Environment) != 0 {
		t.Error("empty environment not preserved")
	}
}

func TestSidebarCategory(t *testing.T) {
	var s Sidebar
	for _, key := range Categories {
		p := s.Category(key)
		if p == nil {
			t.Fatalf("Category(%q) = nil", key)
		}
		*p = append(*p, key)
	}
	if s.SpokenLanguages[0] != CategorySpokenLanguages || s.AcademicBackground[0] != CategoryAcademicBackground {
		t.Errorf("categories wired to wrong fields: %+v", s)
	}
	if s.Category("hobbies") != nil {
		t.Error("unknown category should be nil")
	}
}
