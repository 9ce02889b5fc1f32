// Package adjust rewrites the text of an extracted CV with a language model
// while keeping its JSON structure intact.
package adjust

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/cvextract/internal/cv"
	"github.com/kalambet/cvextract/internal/verify"
)

// ErrInvalidReply is returned when the model reply is not a CV document of
// the same shape as the input.
var ErrInvalidReply = errors.New("invalid model reply")

const systemPrompt = `You edit resumes stored as JSON.
Apply the user's instructions to the text values only.
Return the complete JSON document and nothing else.
Keep every key, keep the number and order of "experiences", and keep "environment" exactly on the entries that have it.
Do not invent employers, dates or certifications.`

// Adjuster tailors CV documents.
type Adjuster struct {
	llm    ChatCompleter
	model  string
	logger *slog.Logger
}

// New creates an Adjuster. An empty model selects DefaultModel.
func New(llm ChatCompleter, model string) *Adjuster {
	if model == "" {
		model = DefaultModel
	}
	return &Adjuster{llm: llm, model: model, logger: slog.Default()}
}

// Adjust applies instructions to doc and returns the rewritten document.
func (a *Adjuster) Adjust(ctx context.Context, doc cv.Document, instructions string) (cv.Document, error) {
	if strings.TrimSpace(instructions) == "" {
		return cv.Document{}, errors.New("instructions are required")
	}
	doc.Normalize()

	input, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return cv.Document{}, fmt.Errorf("encoding cv: %w", err)
	}

	temp := 0.2
	reply, err := a.llm.Complete(ctx, ChatRequest{
		Model: a.model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Instructions:\n" + instructions + "\n\nCV JSON:\n" + string(input)},
		},
		Temperature:    &temp,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return cv.Document{}, fmt.Errorf("calling model: %w", err)
	}

	raw := []byte(stripCodeFence(reply))
	if issues := verify.CheckJSON(raw); verify.HasErrors(issues) {
		a.logger.Warn("model reply failed schema check", "issues", len(issues), "first", issues[0].String())
		return cv.Document{}, fmt.Errorf("%w: %s", ErrInvalidReply, issues[0])
	}

	var out cv.Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return cv.Document{}, fmt.Errorf("%w: %v", ErrInvalidReply, err)
	}
	out.Normalize()
	if err := verify.SameShape(doc, out); err != nil {
		return cv.Document{}, fmt.Errorf("%w: %v", ErrInvalidReply, err)
	}
	return out, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
