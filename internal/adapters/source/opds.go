package source

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"opdscore/internal/adapters/util"
	"opdscore/internal/core/domain/models"
	"opdscore/internal/core/opds"
)

const (
	defaultMaxDepth = 3
	defaultMaxPages = 50
	// maxFeedBytes bounds a single feed document.
	maxFeedBytes = 32 << 20
)

// Limits bound the catalog walk. A MaxDepth of 0 fetches the root catalog and
// its pagination only; a negative MaxDepth selects the default depth. A
// non-positive MaxPages selects the default page budget.
type Limits struct {
	MaxDepth int
	MaxPages int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{MaxDepth: defaultMaxDepth, MaxPages: defaultMaxPages}
}

// OPDSAdapter walks an OPDS catalog breadth first and parses every acquisition
// feed page it reaches.
type OPDSAdapter struct {
	catalogURL string
	creds      util.Credentials
	client     *http.Client
	parser     *opds.FeedParser
	limits     Limits
	logger     *zap.Logger
}

func NewOPDSAdapter(
	catalogURL string,
	creds util.Credentials,
	limits Limits,
	client *http.Client,
	parser *opds.FeedParser,
	logger *zap.Logger,
) *OPDSAdapter {
	return &OPDSAdapter{
		catalogURL: catalogURL,
		creds:      creds,
		client:     client,
		parser:     parser,
		limits:     limits,
		logger:     logger,
	}
}

type pageRef struct {
	url   string
	depth int
}

func (a *OPDSAdapter) FetchFeeds(ctx context.Context) ([]*models.Feed, error) {
	if a.catalogURL == "" {
		return nil, fmt.Errorf("OPDS URL is not configured")
	}
	log := a.log()

	maxDepth, maxPages := a.limits.MaxDepth, a.limits.MaxPages
	if maxDepth < 0 {
		maxDepth = defaultMaxDepth
	}
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	var feeds []*models.Feed
	visited := make(map[string]bool)
	queue := []pageRef{{a.catalogURL, 0}}
	processedPages := 0

	for len(queue) > 0 && processedPages < maxPages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current := queue[0]
		queue = queue[1:]

		if visited[current.url] {
			continue
		}
		visited[current.url] = true
		processedPages++

		feed, err := a.FetchFeed(ctx, current.url)
		if err != nil {
			log.Warn("Skipping catalog page", zap.String("url", current.url), zap.Error(err))
			continue
		}
		if len(feed.Entries) > 0 {
			log.Debug("Found entries", zap.String("url", current.url), zap.Int("entries", len(feed.Entries)))
		}
		feeds = append(feeds, feed)

		// Pagination remains at the same depth
		if feed.Next != nil {
			if next := feed.Next.String(); !visited[next] {
				queue = append(queue, pageRef{next, current.depth})
			}
		}

		// Traversal to subsections/sub-catalogs increments depth
		if current.depth < maxDepth {
			for _, sub := range feed.Subsections {
				if s := sub.String(); !visited[s] {
					queue = append(queue, pageRef{s, current.depth + 1})
				}
			}
		}
	}

	log.Info("Catalog walk complete",
		zap.Int("pages", processedPages),
		zap.Int("feeds", len(feeds)),
		zap.Int("pending", len(queue)))
	return feeds, nil
}

// FetchFeed downloads and parses a single feed page.
func (a *OPDSAdapter) FetchFeed(ctx context.Context, targetURL string) (*models.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/atom+xml;profile=opds-catalog, application/atom+xml;q=0.9")
	a.creds.Apply(req)

	resp, err := a.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch OPDS feed from %s: %w", targetURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &util.StatusError{URL: targetURL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read OPDS feed from %s: %w", targetURL, err)
	}
	if len(data) > maxFeedBytes {
		return nil, fmt.Errorf("OPDS feed %s exceeds maximum allowed size", targetURL)
	}

	feed, err := a.feedParser().Parse(ctx, targetURL, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OPDS feed %s: %w", targetURL, err)
	}
	return feed, nil
}

func (a *OPDSAdapter) httpClient() *http.Client {
	if a.client == nil {
		return http.DefaultClient
	}
	return a.client
}

func (a *OPDSAdapter) feedParser() *opds.FeedParser {
	if a.parser == nil {
		return opds.NewFeedParser(false, 0, a.logger)
	}
	return a.parser
}

func (a *OPDSAdapter) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}
