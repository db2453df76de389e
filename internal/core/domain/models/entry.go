package models

import (
	"encoding/json"
	"net/url"
	"time"
)

// FeedEntry is one parsed OPDS acquisition feed entry.
type FeedEntry struct {
	ID           string
	Title        string
	Updated      time.Time
	Authors      []string
	Publisher    string
	Distribution string
	Summary      string
	Published    *time.Time
	Categories   []Category
	Cover        *url.URL
	Thumbnail    *url.URL
	Alternate    *url.URL
	Related      *url.URL
	Annotations  *url.URL
	Issues       *url.URL
	Analytics    *url.URL
	Groups       []Group
	Acquisitions []Acquisition
	Licensor     *DRMLicensor
	Availability Availability
}

// EntryOption sets an optional field on a FeedEntry under construction.
type EntryOption func(*FeedEntry)

// NewFeedEntry returns an entry with the required fields set. The availability
// defaults to holdable.
func NewFeedEntry(id, title string, updated time.Time, opts ...EntryOption) *FeedEntry {
	e := &FeedEntry{
		ID:           id,
		Title:        title,
		Updated:      updated,
		Availability: AvailabilityHoldable{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithAvailability replaces the availability. Applied in order, the last one
// wins.
func WithAvailability(a Availability) EntryOption {
	return func(e *FeedEntry) { e.Availability = a }
}

func WithAuthors(authors ...string) EntryOption {
	return func(e *FeedEntry) { e.Authors = append(e.Authors, authors...) }
}

func WithAcquisition(a Acquisition) EntryOption {
	return func(e *FeedEntry) { e.Acquisitions = append(e.Acquisitions, a) }
}

func WithCategory(c Category) EntryOption {
	return func(e *FeedEntry) { e.Categories = append(e.Categories, c) }
}

func WithGroup(g Group) EntryOption {
	return func(e *FeedEntry) { e.Groups = append(e.Groups, g) }
}

func WithCover(u *url.URL) EntryOption {
	return func(e *FeedEntry) { e.Cover = u }
}

func WithThumbnail(u *url.URL) EntryOption {
	return func(e *FeedEntry) { e.Thumbnail = u }
}

func WithAlternate(u *url.URL) EntryOption {
	return func(e *FeedEntry) { e.Alternate = u }
}

func WithRelated(u *url.URL) EntryOption {
	return func(e *FeedEntry) { e.Related = u }
}

func WithAnnotations(u *url.URL) EntryOption {
	return func(e *FeedEntry) { e.Annotations = u }
}

func WithIssues(u *url.URL) EntryOption {
	return func(e *FeedEntry) { e.Issues = u }
}

func WithAnalytics(u *url.URL) EntryOption {
	return func(e *FeedEntry) { e.Analytics = u }
}

func WithSummary(s string) EntryOption {
	return func(e *FeedEntry) { e.Summary = s }
}

func WithPublisher(s string) EntryOption {
	return func(e *FeedEntry) { e.Publisher = s }
}

func WithDistribution(s string) EntryOption {
	return func(e *FeedEntry) { e.Distribution = s }
}

func WithPublished(t time.Time) EntryOption {
	return func(e *FeedEntry) { e.Published = &t }
}

func WithLicensor(l DRMLicensor) EntryOption {
	return func(e *FeedEntry) { e.Licensor = &l }
}

// BookID derives the entry's stable book identifier.
func (e *FeedEntry) BookID() BookID {
	return NewBookIDFromEntryID(e.ID)
}

// Author returns the first author, or the empty string.
func (e *FeedEntry) Author() string {
	if len(e.Authors) == 0 {
		return ""
	}
	return e.Authors[0]
}

// FindAcquisition returns the first acquisition with the given relation.
func (e *FeedEntry) FindAcquisition(rel AcquisitionRelation) (Acquisition, bool) {
	for _, a := range e.Acquisitions {
		if a.Relation == rel {
			return a, true
		}
	}
	return Acquisition{}, false
}

type acquisitionJSON struct {
	Relation  AcquisitionRelation   `json:"relation"`
	URI       string                `json:"uri"`
	Type      string                `json:"type,omitempty"`
	Indirects []IndirectAcquisition `json:"indirects,omitempty"`
}

type groupJSON struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

type entryJSON struct {
	ID           string            `json:"id"`
	BookID       BookID            `json:"book_id"`
	Title        string            `json:"title"`
	Updated      time.Time         `json:"updated"`
	Authors      []string          `json:"authors,omitempty"`
	Publisher    string            `json:"publisher,omitempty"`
	Distribution string            `json:"distribution,omitempty"`
	Summary      string            `json:"summary,omitempty"`
	Published    *time.Time        `json:"published,omitempty"`
	Categories   []Category        `json:"categories,omitempty"`
	Cover        string            `json:"cover,omitempty"`
	Thumbnail    string            `json:"thumbnail,omitempty"`
	Alternate    string            `json:"alternate,omitempty"`
	Related      string            `json:"related,omitempty"`
	Annotations  string            `json:"annotations,omitempty"`
	Issues       string            `json:"issues,omitempty"`
	Analytics    string            `json:"analytics,omitempty"`
	Groups       []groupJSON       `json:"groups,omitempty"`
	Acquisitions []acquisitionJSON `json:"acquisitions,omitempty"`
	Licensor     *DRMLicensor      `json:"licensor,omitempty"`
	Availability json.RawMessage   `json:"availability"`
}

func (e *FeedEntry) MarshalJSON() ([]byte, error) {
	avail, err := MarshalAvailability(e.Availability)
	if err != nil {
		return nil, err
	}

	out := entryJSON{
		ID:           e.ID,
		BookID:       e.BookID(),
		Title:        e.Title,
		Updated:      e.Updated,
		Authors:      e.Authors,
		Publisher:    e.Publisher,
		Distribution: e.Distribution,
		Summary:      e.Summary,
		Published:    e.Published,
		Categories:   e.Categories,
		Cover:        uriString(e.Cover),
		Thumbnail:    uriString(e.Thumbnail),
		Alternate:    uriString(e.Alternate),
		Related:      uriString(e.Related),
		Annotations:  uriString(e.Annotations),
		Issues:       uriString(e.Issues),
		Analytics:    uriString(e.Analytics),
		Licensor:     e.Licensor,
		Availability: avail,
	}
	for _, g := range e.Groups {
		out.Groups = append(out.Groups, groupJSON{URI: uriString(g.URI), Title: g.Title})
	}
	for _, a := range e.Acquisitions {
		aj := acquisitionJSON{Relation: a.Relation, URI: uriString(a.URI), Indirects: a.Indirects}
		if a.Type != nil {
			aj.Type = a.Type.String()
		}
		out.Acquisitions = append(out.Acquisitions, aj)
	}
	return json.Marshal(out)
}

func uriString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}
