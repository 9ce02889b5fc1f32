package docx

import "errors"

var (
	// ErrCorruptArchive is returned when the input is not a readable ZIP container.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrMissingRequiredPart is returned when word/document.xml is absent.
	ErrMissingRequiredPart = errors.New("missing required part")

	// ErrMalformedPart is returned when a part exists but is not well-formed XML.
	ErrMalformedPart = errors.New("malformed part")
)
