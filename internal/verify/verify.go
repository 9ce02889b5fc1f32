// Package verify checks CV JSON documents: that every required key is present
// with the right type, where the heuristics left gaps, that a document
// survives a JSON roundtrip and that an adjusted document kept its shape.
package verify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/kalambet/cvextract/internal/cv"
)

// Severity of an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding. Path is a dotted JSON path such as
// "experiences[2].bullets".
type Issue struct {
	Severity Severity `json:"severity"`
	Path     string   `json:"path"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

type kind int

const (
	kindString kind = iota
	kindStringList
	kindObject
	kindObjectList
)

func (k kind) String() string {
	switch k {
	case kindString:
		return "string"
	case kindStringList:
		return "array of strings"
	case kindObject:
		return "object"
	default:
		return "array of objects"
	}
}

type field struct {
	name     string
	kind     kind
	optional bool
	children []field
}

var experienceFields = []field{
	{name: "heading", kind: kindString},
	{name: "description", kind: kindString},
	{name: "bullets", kind: kindStringList},
	{name: "environment", kind: kindStringList, optional: true},
}

var documentFields = []field{
	{name: "identity", kind: kindObject, children: []field{
		{name: "title", kind: kindString},
		{name: "full_name", kind: kindString},
		{name: "first_name", kind: kindString},
		{name: "last_name", kind: kindString},
	}},
	{name: "sidebar", kind: kindObject, children: sidebarFields()},
	{name: "overview", kind: kindString},
	{name: "experiences", kind: kindObjectList, children: experienceFields},
}

func sidebarFields() []field {
	out := make([]field, 0, len(cv.Categories))
	for _, key := range cv.Categories {
		out = append(out, field{name: key, kind: kindStringList})
	}
	return out
}

// CheckJSON validates raw CV JSON against the document schema. Missing keys,
// wrong types and null values are errors; unknown keys are warnings.
func CheckJSON(data []byte) []Issue {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return []Issue{{Severity: SeverityError, Path: "$", Message: "not a JSON object: " + err.Error()}}
	}
	return checkObject("", root, documentFields)
}

func checkObject(prefix string, obj map[string]json.RawMessage, fields []field) []Issue {
	var issues []Issue
	known := make(map[string]bool, len(fields))

	for _, f := range fields {
		known[f.name] = true
		path := joinPath(prefix, f.name)
		raw, ok := obj[f.name]
		if !ok {
			if !f.optional {
				issues = append(issues, Issue{SeverityError, path, "missing key"})
			}
			continue
		}
		issues = append(issues, checkValue(path, raw, f)...)
	}

	for key := range obj {
		if !known[key] {
			issues = append(issues, Issue{SeverityWarning, joinPath(prefix, key), "unknown key"})
		}
	}
	return issues
}

func checkValue(path string, raw json.RawMessage, f field) []Issue {
	wrongType := []Issue{{SeverityError, path, "expected " + f.kind.String()}}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return wrongType
	}

	switch f.kind {
	case kindString:
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return wrongType
		}
	case kindStringList:
		var list []string
		if json.Unmarshal(raw, &list) != nil {
			return wrongType
		}
	case kindObject:
		var obj map[string]json.RawMessage
		if json.Unmarshal(raw, &obj) != nil {
			return wrongType
		}
		return checkObject(path, obj, f.children)
	case kindObjectList:
		var list []map[string]json.RawMessage
		if json.Unmarshal(raw, &list) != nil {
			return wrongType
		}
		var issues []Issue
		for i, obj := range list {
			issues = append(issues, checkObject(fmt.Sprintf("%s[%d]", path, i), obj, f.children)...)
		}
		return issues
	}
	return nil
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// Check runs CheckJSON and, when the schema holds, CheckDocument.
func Check(data []byte) []Issue {
	issues := CheckJSON(data)
	if HasErrors(issues) {
		return issues
	}
	var doc cv.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return append(issues, Issue{Severity: SeverityError, Path: "$", Message: err.Error()})
	}
	return append(issues, CheckDocument(doc)...)
}

// CheckDocument reports heuristic gaps in a decoded document as warnings.
func CheckDocument(d cv.Document) []Issue {
	var issues []Issue
	warn := func(path, format string, args ...any) {
		issues = append(issues, Issue{SeverityWarning, path, fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(d.Identity.FullName) == "" {
		warn("identity.full_name", "empty name")
	}
	if strings.TrimSpace(d.Identity.Title) == "" {
		warn("identity.title", "empty title")
	}
	if strings.TrimSpace(d.Overview) == "" {
		warn("overview", "empty overview")
	}
	empty := 0
	for _, key := range cv.Categories {
		if len(*d.Sidebar.Category(key)) == 0 {
			empty++
		}
	}
	if empty == len(cv.Categories) {
		warn("sidebar", "all sidebar categories are empty")
	}
	if len(d.Experiences) == 0 {
		warn("experiences", "no experiences")
	}
	for i, e := range d.Experiences {
		path := fmt.Sprintf("experiences[%d]", i)
		if strings.TrimSpace(e.Heading) == "" {
			warn(path+".heading", "empty heading")
		}
		if strings.TrimSpace(e.Description) == "" && len(e.Bullets) == 0 {
			warn(path, "entry has neither description nor bullets")
		}
	}
	return issues
}

// Roundtrip marshals d, decodes it again and requires the result to equal
// the normalized input.
func Roundtrip(d cv.Document) error {
	d.Normalize()
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	if issues := CheckJSON(data); HasErrors(issues) {
		return fmt.Errorf("encoded document fails schema check: %v", issues[0])
	}
	var back cv.Document
	if err := json.Unmarshal(data, &back); err != nil {
		return fmt.Errorf("decoding: %w", err)
	}
	back.Normalize()
	if !reflect.DeepEqual(d, back) {
		return errors.New("document changed across a JSON roundtrip")
	}
	return nil
}

// ErrShapeChanged is returned by SameShape.
var ErrShapeChanged = errors.New("document shape changed")

// SameShape requires b to have the structure of a: the same number of
// experiences, and an environment on exactly the entries of a that had one.
// Text content may differ.
func SameShape(a, b cv.Document) error {
	if len(a.Experiences) != len(b.Experiences) {
		return fmt.Errorf("%w: %d experiences, want %d", ErrShapeChanged, len(b.Experiences), len(a.Experiences))
	}
	for i := range a.Experiences {
		if (a.Experiences[i].Environment == nil) != (b.Experiences[i].Environment == nil) {
			return fmt.Errorf("%w: experiences[%d].environment presence differs", ErrShapeChanged, i)
		}
	}
	return nil
}
