package extract

import "strings"

type section int

const (
	sectionPreamble section = iota
	sectionOverview
	sectionExperience
)

// routed is the body split into the parts later stages consume.
type routed struct {
	overview      string
	experience    []RawParagraph
	labelsMatched int
}

// route walks body paragraphs through PREAMBLE -> OVERVIEW -> EXPERIENCE ->
// DONE, where DONE is reached on an end-section label and stops the walk.
// Transitions only move forward; OVERVIEW may be skipped when the body
// has no overview heading. Section heading lines are not content.
func (r *Rules) route(paras []RawParagraph) routed {
	var out routed
	var overview []string
	state := sectionPreamble

walk:
	for _, p := range paras {
		if p.Text == "" {
			continue
		}
		label := normalizeLabel(p.Text)

		switch state {
		case sectionPreamble:
			switch {
			case r.overview[label]:
				state = sectionOverview
				out.labelsMatched++
			case r.experience[label]:
				state = sectionExperience
				out.labelsMatched++
			}

		case sectionOverview:
			if r.experience[label] {
				state = sectionExperience
				out.labelsMatched++
				continue
			}
			overview = append(overview, p.Text)

		case sectionExperience:
			if r.end[label] {
				out.labelsMatched++
				break walk
			}
			out.experience = append(out.experience, p)
		}
	}

	out.overview = strings.TrimSpace(strings.Join(overview, " "))
	return out
}
