package models

import (
	"net/url"
	"time"
)

// Feed is a parsed OPDS acquisition feed page.
type Feed struct {
	URL     string
	ID      string
	Title   string
	Updated *time.Time
	Next    *url.URL
	Search  *url.URL
	// Subsections are navigation links to other catalogs.
	Subsections []*url.URL
	Entries     []*FeedEntry
	Skipped     []EntryError
}

// EntryError records an entry that failed to parse and was left out of a feed.
type EntryError struct {
	Index int
	ID    string
	Err   error
}

func (e EntryError) Error() string {
	if e.ID != "" {
		return "entry " + e.ID + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e EntryError) Unwrap() error {
	return e.Err
}
