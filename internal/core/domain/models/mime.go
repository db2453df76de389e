package models

import (
	"fmt"
	"mime"
	"sort"
	"strings"
)

// MIMEType is a parsed media type such as application/epub+zip.
type MIMEType struct {
	Type       string            `json:"type"`
	Subtype    string            `json:"subtype"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// ParseMIMEType parses a media type and requires both a type and a subtype.
func ParseMIMEType(text string) (MIMEType, error) {
	full, params, err := mime.ParseMediaType(text)
	if err != nil {
		return MIMEType{}, fmt.Errorf("invalid media type %q: %w", text, err)
	}
	major, minor, ok := strings.Cut(full, "/")
	if !ok || major == "" || minor == "" {
		return MIMEType{}, fmt.Errorf("invalid media type %q: missing subtype", text)
	}
	if len(params) == 0 {
		params = nil
	}
	return MIMEType{Type: major, Subtype: minor, Parameters: params}, nil
}

// FullType returns type/subtype without parameters.
func (m MIMEType) FullType() string {
	return m.Type + "/" + m.Subtype
}

func (m MIMEType) String() string {
	if len(m.Parameters) == 0 {
		return m.FullType()
	}
	keys := make([]string, 0, len(m.Parameters))
	for k := range m.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(m.FullType())
	for _, k := range keys {
		b.WriteString(";")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(m.Parameters[k])
	}
	return b.String()
}
