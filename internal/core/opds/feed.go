package opds

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"runtime"
	"strings"

	"github.com/beevik/etree"
	"github.com/mmcdole/gofeed/atom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"opdscore/internal/core/domain/models"
)

// FeedParser parses whole acquisition feed documents.
type FeedParser struct {
	// Strict aborts on the first malformed entry instead of skipping it.
	Strict bool
	// Concurrency bounds the number of entries parsed at once. Zero means GOMAXPROCS.
	Concurrency int
	Logger      *zap.Logger
}

func NewFeedParser(strict bool, concurrency int, logger *zap.Logger) *FeedParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedParser{Strict: strict, Concurrency: concurrency, Logger: logger}
}

// Parse parses data fetched from feedURL. Relative links in the feed and its
// entries are resolved against feedURL when it is non-empty.
func (p *FeedParser) Parse(ctx context.Context, feedURL string, data []byte) (*models.Feed, error) {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, malformedXML(err)
	}
	root := doc.Root()
	if root == nil {
		return nil, malformedXML(fmt.Errorf("document has no root element"))
	}
	if !hasName(root, AtomNS, "feed") {
		return nil, malformedXML(fmt.Errorf("root element is <%s>, not an Atom feed", root.FullTag()))
	}

	var base *url.URL
	if feedURL != "" {
		u, err := url.Parse(feedURL)
		if err != nil {
			return nil, fmt.Errorf("invalid feed url %q: %w", feedURL, err)
		}
		base = u
	}

	feed, err := parseHeader(data, base)
	if err != nil {
		return nil, err
	}
	feed.URL = feedURL

	var entries []*etree.Element
	for _, el := range Children(root, AtomNS, "entry") {
		if nav := navigationLinks(el, base); len(nav) > 0 {
			feed.Subsections = append(feed.Subsections, nav...)
			continue
		}
		entries = append(entries, el)
	}

	parsed := make([]*models.FeedEntry, len(entries))
	errs := make([]error, len(entries))

	limit := p.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, el := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			parsed[i], errs[i] = ParseEntry(el)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, entry := range parsed {
		if errs[i] == nil {
			ResolveEntry(entry, base)
			feed.Entries = append(feed.Entries, entry)
			continue
		}
		id, _ := ChildText(entries[i], AtomNS, "id")
		if p.Strict {
			return nil, models.EntryError{Index: i, ID: id, Err: errs[i]}
		}
		log.Warn("Skipping malformed feed entry",
			zap.String("feed", feedURL),
			zap.Int("index", i),
			zap.String("id", id),
			zap.Error(errs[i]))
		feed.Skipped = append(feed.Skipped, models.EntryError{Index: i, ID: id, Err: errs[i]})
	}

	log.Debug("Parsed feed",
		zap.String("feed", feedURL),
		zap.Int("entries", len(feed.Entries)),
		zap.Int("skipped", len(feed.Skipped)),
		zap.Int("subsections", len(feed.Subsections)))
	return feed, nil
}

func parseHeader(data []byte, base *url.URL) (*models.Feed, error) {
	fp := &atom.Parser{}
	af, err := fp.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, malformedXML(err)
	}

	feed := &models.Feed{
		ID:      strings.TrimSpace(af.ID),
		Title:   strings.TrimSpace(af.Title),
		Updated: af.UpdatedParsed,
	}
	for _, link := range af.Links {
		switch link.Rel {
		case relNext:
			if feed.Next == nil {
				feed.Next = resolve(base, link.Href)
			}
		case relSearch:
			if feed.Search == nil {
				feed.Search = resolve(base, link.Href)
			}
		case relSubsection, relCatalog:
			if u := resolve(base, link.Href); u != nil {
				feed.Subsections = append(feed.Subsections, u)
			}
		}
	}
	return feed, nil
}

// navigationLinks returns the catalog links of a navigation entry. Entries
// with any acquisition link are never navigation entries.
func navigationLinks(el *etree.Element, base *url.URL) []*url.URL {
	var out []*url.URL
	for _, link := range Children(el, AtomNS, "link") {
		rel, _ := Attr(link, "rel")
		if strings.HasPrefix(rel, RelAcquisitionPrefix) {
			return nil
		}
		if rel != relSubsection && rel != relCatalog {
			continue
		}
		href, _ := Attr(link, "href")
		if u := resolve(base, href); u != nil {
			out = append(out, u)
		}
	}
	return out
}

func resolve(base *url.URL, href string) *url.URL {
	if strings.TrimSpace(href) == "" {
		return nil
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil
	}
	if base == nil {
		return ref
	}
	return base.ResolveReference(ref)
}

// ResolveEntry rewrites the relative links of e against base.
func ResolveEntry(e *models.FeedEntry, base *url.URL) {
	if base == nil {
		return
	}
	abs := func(u *url.URL) *url.URL {
		if u == nil || u.IsAbs() {
			return u
		}
		return base.ResolveReference(u)
	}

	for _, field := range []**url.URL{
		&e.Cover, &e.Thumbnail, &e.Alternate, &e.Related,
		&e.Annotations, &e.Issues, &e.Analytics,
	} {
		*field = abs(*field)
	}
	for i := range e.Groups {
		e.Groups[i].URI = abs(e.Groups[i].URI)
	}
	for i := range e.Acquisitions {
		e.Acquisitions[i].URI = abs(e.Acquisitions[i].URI)
	}

	switch v := e.Availability.(type) {
	case models.AvailabilityOpenAccess:
		v.Revoke = abs(v.Revoke)
		e.Availability = v
	case models.AvailabilityHeld:
		v.Revoke = abs(v.Revoke)
		e.Availability = v
	case models.AvailabilityHeldReady:
		v.Revoke = abs(v.Revoke)
		e.Availability = v
	case models.AvailabilityLoaned:
		v.Revoke = abs(v.Revoke)
		e.Availability = v
	}
}
