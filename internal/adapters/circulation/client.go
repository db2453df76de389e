package circulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"opdscore/internal/adapters/util"
	"opdscore/internal/core/domain/models"
	"opdscore/internal/core/domain/ports"
	"opdscore/internal/core/opds"
)

const maxEntryBytes = 4 << 20

var (
	ErrNoBorrowLink   = errors.New("entry has no borrow acquisition")
	ErrNotRevocable   = errors.New("entry availability has no revoke link")
	ErrNoContentLink  = errors.New("entry has no content acquisition")
	ErrContentTooBig  = errors.New("book content exceeds maximum allowed size")
	ErrUnexpectedBody = errors.New("unexpected response body")
)

// Client performs loan operations against a circulation server and records
// the resulting book statuses.
type Client struct {
	client     *http.Client
	creds      util.Credentials
	statuses   ports.StatusTracker
	maxContent int64
	logger     *zap.Logger
}

func NewClient(client *http.Client, creds util.Credentials, statuses ports.StatusTracker, maxContent int64, logger *zap.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		client:     client,
		creds:      creds,
		statuses:   statuses,
		maxContent: maxContent,
		logger:     logger,
	}
}

// FetchEntry downloads and parses the standalone entry document at target.
func (c *Client) FetchEntry(ctx context.Context, target *url.URL) (*models.FeedEntry, error) {
	resp, err := c.get(ctx, target, "application/atom+xml;type=entry;profile=opds-catalog")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	entry, err := opds.ParseEntryStream(io.LimitReader(resp.Body, maxEntryBytes))
	if err != nil {
		return nil, fmt.Errorf("%w from %s: %w", ErrUnexpectedBody, target, err)
	}
	opds.ResolveEntry(entry, resp.Request.URL)
	return entry, nil
}

// Borrow follows the borrow (or generic) acquisition of entry. The book is
// marked as loan in progress while the request runs and takes the status
// implied by the returned entry afterwards. The prior status is restored on
// failure.
func (c *Client) Borrow(ctx context.Context, entry *models.FeedEntry) (*models.FeedEntry, error) {
	acq, ok := entry.FindAcquisition(models.AcquisitionBorrow)
	if !ok {
		if acq, ok = entry.FindAcquisition(models.AcquisitionGeneric); !ok {
			return nil, ErrNoBorrowLink
		}
	}

	id := entry.BookID()
	prior, hadPrior := c.statuses.Get(id)
	c.statuses.Force(models.StatusLoanInProgress{Book: id})

	updated, err := c.FetchEntry(ctx, acq.URI)
	if err != nil {
		if hadPrior {
			c.statuses.Force(prior)
		} else {
			c.statuses.Clear(id)
		}
		return nil, fmt.Errorf("borrow %q failed: %w", entry.Title, err)
	}

	status := models.StatusFromAvailability(id, updated.Availability)
	c.statuses.Force(status)
	c.logger.Info("Borrowed book",
		zap.String("title", entry.Title),
		zap.String("status", string(status.Kind())))
	return updated, nil
}

// Revoke returns a loan or cancels a hold through the revoke link carried by
// the entry's availability.
func (c *Client) Revoke(ctx context.Context, entry *models.FeedEntry) (*models.FeedEntry, error) {
	revoke := models.RevokeURI(entry.Availability)
	if revoke == nil {
		return nil, ErrNotRevocable
	}

	updated, err := c.FetchEntry(ctx, revoke)
	if err != nil {
		return nil, fmt.Errorf("revoke %q failed: %w", entry.Title, err)
	}

	status := models.StatusFromAvailability(entry.BookID(), updated.Availability)
	c.statuses.Force(status)
	c.logger.Info("Revoked book",
		zap.String("title", entry.Title),
		zap.String("status", string(status.Kind())))
	return updated, nil
}

// ContentAcquisition picks the acquisition that leads to the book content.
func ContentAcquisition(entry *models.FeedEntry) (models.Acquisition, error) {
	for _, rel := range []models.AcquisitionRelation{models.AcquisitionGeneric, models.AcquisitionOpenAccess} {
		if acq, ok := entry.FindAcquisition(rel); ok {
			return acq, nil
		}
	}
	return models.Acquisition{}, ErrNoContentLink
}

// Fetch streams the content behind acq to w, reporting progress as book
// statuses: DownloadRequesting, then Downloading ticks, then Downloaded or
// DownloadFailed. It returns the number of bytes written to w, also on failure.
// No more than the content limit is ever written.
func (c *Client) Fetch(ctx context.Context, id models.BookID, acq models.Acquisition, w io.Writer) (int64, error) {
	var (
		loanEnd    *time.Time
		returnable bool
	)
	if current, ok := c.statuses.Get(id); ok {
		loanEnd = models.LoanEnd(current)
		if loaned, ok := current.(models.StatusLoaned); ok {
			returnable = loaned.Returnable
		}
	}

	// A new fetch restarts the download sequence even after an earlier success.
	c.statuses.Force(models.StatusDownloadRequesting{Book: id, LoanEnd: loanEnd})

	fail := func(n int64, err error) (int64, error) {
		c.statuses.Update(models.StatusDownloadFailed{Book: id, Err: err, LoanEnd: loanEnd})
		c.logger.Warn("Download failed",
			zap.String("book", id.String()),
			zap.Int64("bytes", n),
			zap.Error(err))
		return n, err
	}

	accept := "*/*"
	if acq.Type != nil {
		accept = acq.Type.FullType()
	}
	resp, err := c.get(ctx, acq.URI, accept)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	expected := resp.ContentLength
	if c.maxContent > 0 && expected > c.maxContent {
		return fail(0, ErrContentTooBig)
	}

	pw := &progressWriter{
		w:        w,
		statuses: c.statuses,
		status:   models.StatusDownloading{Book: id, ExpectedBytes: expected, LoanEnd: loanEnd},
		limit:    c.maxContent,
	}
	c.statuses.Update(pw.status)

	n, err := io.Copy(pw, resp.Body)
	if errors.Is(err, ErrContentTooBig) {
		return fail(n, err)
	}
	if err != nil {
		return fail(n, fmt.Errorf("failed to copy content: %w", err))
	}

	c.statuses.Update(models.StatusDownloaded{Book: id, LoanEnd: loanEnd, Returnable: returnable})
	c.logger.Info("Downloaded book", zap.String("book", id.String()), zap.Int64("bytes", n))
	return n, nil
}

func (c *Client) get(ctx context.Context, target *url.URL, accept string) (*http.Response, error) {
	if target == nil {
		return nil, fmt.Errorf("no target url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	c.creds.Apply(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &util.StatusError{URL: target.String(), StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// progressWriter reports a Downloading status after every write. A positive
// limit caps the total bytes passed through to w.
type progressWriter struct {
	w        io.Writer
	statuses ports.StatusTracker
	status   models.StatusDownloading
	limit    int64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	var over bool
	if p.limit > 0 && p.status.CurrentBytes+int64(len(b)) > p.limit {
		b = b[:p.limit-p.status.CurrentBytes]
		over = true
	}
	n, err := p.w.Write(b)
	p.status.CurrentBytes += int64(n)
	p.statuses.Update(p.status)
	if err == nil && over {
		err = ErrContentTooBig
	}
	return n, err
}
