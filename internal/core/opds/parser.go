package opds

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/beevik/etree"

	"opdscore/internal/core/domain/models"
)

// ParseEntry builds a FeedEntry from an Atom entry element. It performs no I/O
// and keeps no state, so it is safe for concurrent use. Every failure is a
// *ParseError.
func ParseEntry(element *etree.Element) (*models.FeedEntry, error) {
	if element == nil {
		return nil, &ParseError{Err: fmt.Errorf("%w: no entry element", ErrMalformedXML)}
	}
	entry, err := parseEntry(element)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return entry, nil
}

// ParseEntryStream parses a standalone XML document whose root is an entry.
func ParseEntryStream(r io.Reader) (*models.FeedEntry, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, malformedXML(err)
	}
	root := doc.Root()
	if root == nil {
		return nil, malformedXML(fmt.Errorf("document has no root element"))
	}
	return ParseEntry(root)
}

// ParseEntryBytes is ParseEntryStream over a byte slice.
func ParseEntryBytes(data []byte) (*models.FeedEntry, error) {
	return ParseEntryStream(bytes.NewReader(data))
}

// entryParser collects entry options in document order; they are applied to
// the entry once every child has been examined.
type entryParser struct {
	opts   []models.EntryOption
	revoke *url.URL
}

func (p *entryParser) add(opt models.EntryOption) {
	p.opts = append(p.opts, opt)
}

type consumeFunc func(p *entryParser, link *etree.Element, rel string) error

// linkClassifier claims a link for one field of the entry. Classifiers are
// tried in order and the first match consumes the link.
type linkClassifier struct {
	name    string
	match   func(link *etree.Element, rel string) bool
	consume consumeFunc
}

var linkClassifiers = []linkClassifier{
	{"group", relEquals(RelGroup), (*entryParser).consumeGroup},
	{"issues", relEquals(RelIssues), setURI(models.WithIssues)},
	{"alternate", relEquals(RelAlternate), setURI(models.WithAlternate)},
	{"analytics", relEquals(RelAnalyticsOpenBook), setURI(models.WithAnalytics)},
	{"related", relWithHref(RelRelated), setURI(models.WithRelated)},
	{"annotation", relWithHref(RelAnnotation), setURI(models.WithAnnotations)},
	{"thumbnail", relWithHref(RelThumbnail), setURI(models.WithThumbnail)},
	{"cover", relWithHref(RelCover), setURI(models.WithCover)},
	{"acquisition", relHasPrefix(RelAcquisitionPrefix), (*entryParser).consumeAcquisition},
}

func relEquals(want string) func(*etree.Element, string) bool {
	return func(_ *etree.Element, rel string) bool { return rel == want }
}

func relWithHref(want string) func(*etree.Element, string) bool {
	return func(link *etree.Element, rel string) bool {
		if rel != want {
			return false
		}
		_, ok := Attr(link, "href")
		return ok
	}
}

func relHasPrefix(prefix string) func(*etree.Element, string) bool {
	return func(_ *etree.Element, rel string) bool { return strings.HasPrefix(rel, prefix) }
}

func setURI(option func(*url.URL) models.EntryOption) consumeFunc {
	return func(p *entryParser, link *etree.Element, _ string) error {
		u, err := AttrURI(link, "href")
		if err != nil {
			return err
		}
		p.add(option(u))
		return nil
	}
}

func parseEntry(e *etree.Element) (*models.FeedEntry, error) {
	id, err := RequireChildText(e, AtomNS, "id")
	if err != nil {
		return nil, err
	}
	title, err := RequireChildText(e, AtomNS, "title")
	if err != nil {
		return nil, err
	}
	updated, err := requireTimestamp(e, AtomNS, "updated")
	if err != nil {
		return nil, err
	}

	links := Children(e, AtomNS, "link")

	// The revocation link feeds several availability variants, so it has to be
	// known before any acquisition link is examined.
	revoke, err := findRevocation(links)
	if err != nil {
		return nil, err
	}

	p := &entryParser{revoke: revoke}

	for _, link := range links {
		rel, ok := Attr(link, "rel")
		if !ok {
			continue
		}
		if err := p.consumeLink(link, strings.TrimSpace(rel)); err != nil {
			return nil, err
		}
	}

	p.parseCategories(e)
	p.parseAuthors(e)

	if publisher, ok := ChildText(e, DublinCoreTermsNS, "publisher"); ok {
		p.add(models.WithPublisher(publisher))
	}
	if dist := FirstChild(e, BibframeNS, "distribution"); dist != nil {
		if name, ok := AttrNS(dist, BibframeNS, "ProviderName"); ok {
			p.add(models.WithDistribution(name))
		} else if name, ok := Attr(dist, "ProviderName"); ok {
			p.add(models.WithDistribution(name))
		}
	}
	published, err := ChildRFC3339(e, AtomNS, "published")
	if err != nil {
		return nil, err
	}
	if published != nil {
		p.add(models.WithPublished(*published))
	}
	if summary, ok := ChildText(e, AtomNS, "summary"); ok {
		p.add(models.WithSummary(summary))
	}

	return models.NewFeedEntry(id, title, updated, p.opts...), nil
}

func requireTimestamp(e *etree.Element, ns, local string) (time.Time, error) {
	if _, err := RequireChild(e, ns, local); err != nil {
		return time.Time{}, err
	}
	t, err := ChildRFC3339(e, ns, local)
	if err != nil {
		return time.Time{}, err
	}
	return *t, nil
}

func findRevocation(links []*etree.Element) (*url.URL, error) {
	for _, link := range links {
		if rel, _ := Attr(link, "rel"); strings.TrimSpace(rel) != RelRevoke {
			continue
		}
		if _, ok := Attr(link, "href"); ok {
			return AttrURI(link, "href")
		}
	}
	return nil, nil
}

func (p *entryParser) consumeLink(link *etree.Element, rel string) error {
	for _, c := range linkClassifiers {
		if c.match(link, rel) {
			if err := c.consume(p, link, rel); err != nil {
				return fmt.Errorf("%s link: %w", c.name, err)
			}
			return nil
		}
	}
	return nil
}

func (p *entryParser) consumeGroup(link *etree.Element, _ string) error {
	u, err := AttrURI(link, "href")
	if err != nil {
		return err
	}
	title, _ := Attr(link, "title")
	p.add(models.WithGroup(models.Group{URI: u, Title: title}))
	return nil
}

func acquisitionRelation(rel string) (models.AcquisitionRelation, bool) {
	for _, r := range models.AcquisitionRelations {
		if string(r) == rel {
			return r, true
		}
	}
	return "", false
}

func (p *entryParser) consumeAcquisition(link *etree.Element, rel string) error {
	relation, ok := acquisitionRelation(rel)
	if !ok {
		return nil
	}

	href, err := AttrURI(link, "href")
	if err != nil {
		return err
	}
	if href == nil {
		return nil
	}
	indirects, err := parseIndirects(link)
	if err != nil {
		return err
	}
	mt, err := typeAttr(link)
	if err != nil {
		return err
	}
	if mt == nil && len(indirects) == 0 {
		return nil
	}

	p.add(models.WithAcquisition(models.Acquisition{
		Relation:  relation,
		URI:       href,
		Type:      mt,
		Indirects: indirects,
	}))

	if relation == models.AcquisitionOpenAccess {
		p.add(models.WithAvailability(models.AvailabilityOpenAccess{Revoke: p.revoke}))
	} else {
		availability, err := inferAvailability(link, relation, p.revoke)
		if err != nil {
			return err
		}
		p.add(models.WithAvailability(availability))
	}

	if licensor := parseLicensor(link); licensor != nil {
		p.add(models.WithLicensor(*licensor))
	}
	return nil
}

// typeAttr parses the type attribute. Absent or empty yields nil.
func typeAttr(e *etree.Element) (*models.MIMEType, error) {
	text, ok := Attr(e, "type")
	if !ok || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	mt, err := models.ParseMIMEType(strings.TrimSpace(text))
	if err != nil {
		return nil, &AttributeError{Element: e.Tag, Attr: "type", Value: text, Err: err}
	}
	return &mt, nil
}

func parseIndirects(e *etree.Element) ([]models.IndirectAcquisition, error) {
	elements := Children(e, OPDSNS, "indirectAcquisition")
	if len(elements) == 0 {
		return nil, nil
	}
	out := make([]models.IndirectAcquisition, 0, len(elements))
	for _, el := range elements {
		text, _ := Attr(el, "type")
		mt, err := models.ParseMIMEType(strings.TrimSpace(text))
		if err != nil {
			return nil, &AttributeError{Element: el.Tag, Attr: "type", Value: text, Err: err}
		}
		nested, err := parseIndirects(el)
		if err != nil {
			return nil, err
		}
		out = append(out, models.IndirectAcquisition{Type: mt, Indirects: nested})
	}
	return out, nil
}

// parseLicensor reads drm:licensor. Vendor and client token are collected
// across all children and the licensor is only produced when both are known.
func parseLicensor(link *etree.Element) *models.DRMLicensor {
	el := FirstChild(link, DRMNS, "licensor")
	if el == nil {
		return nil
	}

	vendor, ok := AttrNS(el, DRMNS, "vendor")
	if !ok {
		vendor, _ = Attr(el, "vendor")
	}

	var token, devices string
	for _, child := range el.ChildElements() {
		switch {
		case hasName(child, DRMNS, "clientToken"):
			token = strings.TrimSpace(textContent(child))
		case hasName(child, AtomNS, "link"):
			rel, hasRel := Attr(child, "rel")
			href, hasHref := Attr(child, "href")
			if hasRel && hasHref && rel == RelDRMDevices {
				devices = href
			}
		}
	}

	if vendor == "" || token == "" {
		return nil
	}
	return &models.DRMLicensor{Vendor: vendor, ClientToken: token, DeviceManager: devices}
}

func (p *entryParser) parseCategories(e *etree.Element) {
	for _, c := range Children(e, AtomNS, "category") {
		term, hasTerm := Attr(c, "term")
		scheme, hasScheme := Attr(c, "scheme")
		if !hasTerm || !hasScheme {
			continue
		}
		label, _ := Attr(c, "label")
		p.add(models.WithCategory(models.Category{Term: term, Scheme: scheme, Label: label}))
	}
}

func (p *entryParser) parseAuthors(e *etree.Element) {
	for _, a := range Children(e, AtomNS, "author") {
		if name, ok := ChildText(a, AtomNS, "name"); ok {
			p.add(models.WithAuthors(name))
		}
	}
}
