package opds

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"opdscore/internal/core/domain/models"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opds="http://opds-spec.org/2010/catalog">
  <id>http://library.example.com/feed</id>
  <title>All Books</title>
  <updated>2016-03-01T12:00:00Z</updated>
  <link rel="next" href="/feed?page=2"/>
  <link rel="search" href="http://library.example.com/search"/>
  <entry>
    <id>urn:book:1</id>
    <title>First</title>
    <updated>2016-03-01T12:00:00Z</updated>
    <link rel="http://opds-spec.org/acquisition/borrow" href="/borrow/1" type="application/atom+xml">
      <opds:copies total="1" available="1"/>
    </link>
  </entry>
  <entry>
    <id>urn:book:broken</id>
    <title>Broken</title>
  </entry>
  <entry>
    <id>urn:nav:fiction</id>
    <title>Fiction</title>
    <updated>2016-03-01T12:00:00Z</updated>
    <link rel="subsection" href="/groups/fiction"/>
  </entry>
  <entry>
    <id>urn:book:2</id>
    <title>Second</title>
    <updated>2016-03-02T12:00:00Z</updated>
  </entry>
</feed>`

func TestFeedParser_Lenient(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := NewFeedParser(false, 2, zap.New(core))

	feed, err := p.Parse(context.Background(), "http://library.example.com/feed", []byte(testFeed))
	require.NoError(t, err)

	assert.Equal(t, "http://library.example.com/feed", feed.ID)
	assert.Equal(t, "All Books", feed.Title)
	require.NotNil(t, feed.Updated)
	require.NotNil(t, feed.Next)
	assert.Equal(t, "http://library.example.com/feed?page=2", feed.Next.String())
	require.NotNil(t, feed.Search)

	require.Len(t, feed.Entries, 2)
	assert.Equal(t, "urn:book:1", feed.Entries[0].ID)
	assert.Equal(t, "urn:book:2", feed.Entries[1].ID)
	assert.Equal(t, models.AvailabilityLoanable{}, feed.Entries[0].Availability)
	assert.Equal(t, models.AvailabilityHoldable{}, feed.Entries[1].Availability)

	require.Len(t, feed.Subsections, 1)
	assert.Equal(t, "http://library.example.com/groups/fiction", feed.Subsections[0].String())

	require.Len(t, feed.Skipped, 1)
	assert.Equal(t, "urn:book:broken", feed.Skipped[0].ID)
	assert.ErrorIs(t, feed.Skipped[0], ErrMissingElement)

	assert.Equal(t, 1, logs.FilterMessage("Skipping malformed feed entry").Len())
}

func TestFeedParser_Strict(t *testing.T) {
	p := NewFeedParser(true, 0, nil)

	feed, err := p.Parse(context.Background(), "", []byte(testFeed))
	require.Error(t, err)
	assert.Nil(t, feed)

	var entryErr models.EntryError
	require.True(t, errors.As(err, &entryErr))
	assert.Equal(t, "urn:book:broken", entryErr.ID)
	assert.Equal(t, 1, entryErr.Index)
	assert.ErrorIs(t, err, ErrMissingElement)
}

func TestFeedParser_RejectsNonFeed(t *testing.T) {
	p := NewFeedParser(false, 0, nil)

	_, err := p.Parse(context.Background(), "", []byte(entryXML("")))
	assert.ErrorIs(t, err, ErrMalformedXML)

	_, err = p.Parse(context.Background(), "", []byte(`<feed xmlns="http://www.w3.org/2005/Atom"><id>`))
	assert.ErrorIs(t, err, ErrMalformedXML)
}

func TestFeedParser_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFeedParser(false, 1, nil).Parse(ctx, "", []byte(testFeed))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFeedParser_ResolvesRelativeLinks(t *testing.T) {
	doc := `<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opds="http://opds-spec.org/2010/catalog">
  <id>f</id><title>t</title><updated>2016-03-01T12:00:00Z</updated>
  <entry>
    <id>urn:book:1</id><title>One</title><updated>2016-03-01T12:00:00Z</updated>
    <link rel="http://librarysimplified.org/terms/rel/revoke" href="revoke/1"/>
    <link rel="http://opds-spec.org/image" href="/covers/1.jpg"/>
    <link rel="http://opds-spec.org/acquisition" href="fulfil/1" type="application/epub+zip">
      <opds:availability status="available"/>
    </link>
  </entry>
</feed>`

	feed, err := NewFeedParser(false, 0, nil).Parse(context.Background(), "http://lib.example.com/loans/", []byte(doc))
	require.NoError(t, err)
	require.Len(t, feed.Entries, 1)

	entry := feed.Entries[0]
	assert.Equal(t, "http://lib.example.com/covers/1.jpg", entry.Cover.String())
	assert.Equal(t, "http://lib.example.com/loans/fulfil/1", entry.Acquisitions[0].URI.String())
	assert.Equal(t, "http://lib.example.com/loans/revoke/1", models.RevokeURI(entry.Availability).String())
}
