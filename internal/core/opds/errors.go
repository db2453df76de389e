package opds

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedXML       = errors.New("malformed xml")
	ErrMissingElement     = errors.New("missing required element")
	ErrMalformedAttribute = errors.New("malformed attribute")
)

// ParseError is returned for every entry that could not be parsed. It wraps the
// underlying cause.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("opds: parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// MissingElementError reports an absent required child element.
type MissingElementError struct {
	Namespace string
	Name      string
}

func (e *MissingElementError) Error() string {
	return fmt.Sprintf("%s: {%s}%s", ErrMissingElement, e.Namespace, e.Name)
}

func (e *MissingElementError) Is(target error) bool {
	return target == ErrMissingElement
}

// AttributeError reports a value that is present but cannot be parsed. Attr is
// empty when the value is the element's text.
type AttributeError struct {
	Element string
	Attr    string
	Value   string
	Err     error
}

func (e *AttributeError) Error() string {
	if e.Attr == "" {
		return fmt.Sprintf("%s: <%s> %q: %v", ErrMalformedAttribute, e.Element, e.Value, e.Err)
	}
	return fmt.Sprintf("%s: <%s %s=%q>: %v", ErrMalformedAttribute, e.Element, e.Attr, e.Value, e.Err)
}

func (e *AttributeError) Unwrap() error {
	return e.Err
}

func (e *AttributeError) Is(target error) bool {
	return target == ErrMalformedAttribute
}

func malformedXML(err error) error {
	return &ParseError{Err: fmt.Errorf("%w: %w", ErrMalformedXML, err)}
}
