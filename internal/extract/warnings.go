package extract

import "fmt"

// Warning codes. None of them is fatal; they describe where a heuristic did
// not find what it was looking for.
const (
	WarnMalformedHeader       = "malformed_header"
	WarnNoIdentity            = "no_identity"
	WarnUnrecognizedStructure = "unrecognized_structure"
	WarnNoExperience          = "no_experience"
	WarnUnplacedParagraph     = "unplaced_paragraph"
)

// Warning reports a recoverable extraction gap.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return w.Code + ": " + w.Message
}

func warnf(code, format string, args ...any) Warning {
	return Warning{Code: code, Message: fmt.Sprintf(format, args...)}
}
