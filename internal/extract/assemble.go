package extract

import "github.com/kalambet/cvextract/internal/cv"

// assemble merges the stage outputs into one key-complete document. Every
// string is sanitized here, after sidebar items and tags have been split.
func assemble(h headerResult, overview string, experiences []cv.Experience) cv.Document {
	doc := cv.Document{
		Identity: cv.Identity{
			Title:     Sanitize(h.identity.Title),
			FullName:  Sanitize(h.identity.FullName),
			FirstName: Sanitize(h.identity.FirstName),
			LastName:  Sanitize(h.identity.LastName),
		},
		Overview:    Sanitize(overview),
		Experiences: make([]cv.Experience, 0, len(experiences)),
	}

	for _, key := range cv.Categories {
		*doc.Sidebar.Category(key) = sanitizeAll(*h.sidebar.Category(key))
	}

	for _, e := range experiences {
		out := cv.Experience{
			Heading:     Sanitize(e.Heading),
			Description: Sanitize(e.Description),
			Bullets:     sanitizeAll(e.Bullets),
		}
		if e.Environment != nil {
			out.Environment = cv.Tags(sanitizeAll(*e.Environment)...)
		}
		doc.Experiences = append(doc.Experiences, out)
	}

	doc.Normalize()
	return doc
}

func sanitizeAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		out = append(out, Sanitize(s))
	}
	return out
}
