package opds

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
)

// Namespace-aware lookups over an etree DOM. Names are matched exactly on
// namespace URI and local name; the first match in document order wins.

func hasName(e *etree.Element, ns, local string) bool {
	return e.Tag == local && e.NamespaceURI() == ns
}

// Children returns every child element of e named {ns}local, in document order.
func Children(e *etree.Element, ns, local string) []*etree.Element {
	var out []*etree.Element
	for _, child := range e.ChildElements() {
		if hasName(child, ns, local) {
			out = append(out, child)
		}
	}
	return out
}

// FirstChild returns the first child element of e named {ns}local, or nil.
func FirstChild(e *etree.Element, ns, local string) *etree.Element {
	for _, child := range e.ChildElements() {
		if hasName(child, ns, local) {
			return child
		}
	}
	return nil
}

// RequireChild is FirstChild that fails with a MissingElementError.
func RequireChild(e *etree.Element, ns, local string) (*etree.Element, error) {
	if child := FirstChild(e, ns, local); child != nil {
		return child, nil
	}
	return nil, &MissingElementError{Namespace: ns, Name: local}
}

// ChildText returns the trimmed text content of the first {ns}local child,
// including the text of nested elements such as Atom xhtml content.
func ChildText(e *etree.Element, ns, local string) (string, bool) {
	child := FirstChild(e, ns, local)
	if child == nil {
		return "", false
	}
	return strings.TrimSpace(textContent(child)), true
}

// RequireChildText is ChildText that fails with a MissingElementError.
func RequireChildText(e *etree.Element, ns, local string) (string, error) {
	child, err := RequireChild(e, ns, local)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(textContent(child)), nil
}

// textContent concatenates every character data token below e in document
// order.
func textContent(e *etree.Element) string {
	var b strings.Builder
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		for _, tok := range el.Child {
			switch t := tok.(type) {
			case *etree.CharData:
				b.WriteString(t.Data)
			case *etree.Element:
				walk(t)
			}
		}
	}
	walk(e)
	return b.String()
}

// ChildRFC3339 parses the text of the first {ns}local child as an RFC 3339
// timestamp. It returns nil when the child is absent.
func ChildRFC3339(e *etree.Element, ns, local string) (*time.Time, error) {
	text, ok := ChildText(e, ns, local)
	if !ok {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, text)
	if err != nil {
		return nil, &AttributeError{Element: local, Value: text, Err: err}
	}
	return &t, nil
}

// Attr returns the value of the unprefixed attribute name.
func Attr(e *etree.Element, name string) (string, bool) {
	for _, a := range e.Attr {
		if a.Space == "" && a.Key == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrNS returns the value of the attribute name in namespace ns.
func AttrNS(e *etree.Element, ns, name string) (string, bool) {
	for i := range e.Attr {
		a := &e.Attr[i]
		if a.Key == name && a.Space != "" && a.NamespaceURI() == ns {
			return a.Value, true
		}
	}
	return "", false
}

// AttrInt parses the unprefixed attribute name as an integer. It returns nil
// when the attribute is absent.
func AttrInt(e *etree.Element, name string) (*int, error) {
	text, ok := Attr(e, name)
	if !ok {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return nil, &AttributeError{Element: e.Tag, Attr: name, Value: text, Err: err}
	}
	return &n, nil
}

// AttrRFC3339 parses the unprefixed attribute name as an RFC 3339 timestamp.
// It returns nil when the attribute is absent.
func AttrRFC3339(e *etree.Element, name string) (*time.Time, error) {
	text, ok := Attr(e, name)
	if !ok {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(text))
	if err != nil {
		return nil, &AttributeError{Element: e.Tag, Attr: name, Value: text, Err: err}
	}
	return &t, nil
}

// AttrURI parses the unprefixed attribute name as a URI reference. It returns
// nil when the attribute is absent.
func AttrURI(e *etree.Element, name string) (*url.URL, error) {
	text, ok := Attr(e, name)
	if !ok {
		return nil, nil
	}
	u, err := url.Parse(strings.TrimSpace(text))
	if err != nil {
		return nil, &AttributeError{Element: e.Tag, Attr: name, Value: text, Err: err}
	}
	return u, nil
}
