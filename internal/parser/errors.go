package parser

import (
	"errors"
	"fmt"
)

// Conditions that abort a whole parse. Anything else malformed degrades to
// literal text.
var (
	ErrMissingProperty      = errors.New("missing property")
	ErrInvalidPropertyValue = errors.New("invalid property value")
	ErrUnknownElementType   = errors.New("unknown element type")
	ErrMathRender           = errors.New("math render failure")
)

// ParseError locates a fatal condition in the source file
type ParseError struct {
	Element int // ordinal of the element in the file
	Line    int // 1-based line of the element header, 0 for the implicit leading box
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("element %d: %v", e.Element, e.Err)
	}
	return fmt.Sprintf("element %d (line %d): %v", e.Element, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
