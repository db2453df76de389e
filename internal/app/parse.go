package app

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"opdscore/internal/core/domain/models"
	"opdscore/internal/core/opds"
)

func (a *app) newParseEntryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse-entry FILE",
		Short: "Parse a standalone OPDS entry document and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			entry, err := opds.ParseEntryStream(bytes.NewReader(data))
			if err != nil {
				return err
			}
			return a.printJSON(entry)
		},
	}
}

type skippedView struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

type feedView struct {
	URL         string              `json:"url,omitempty"`
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Next        string              `json:"next,omitempty"`
	Search      string              `json:"search,omitempty"`
	Subsections []string            `json:"subsections,omitempty"`
	Entries     []*models.FeedEntry `json:"entries"`
	Skipped     []skippedView       `json:"skipped,omitempty"`
}

func newFeedView(f *models.Feed) feedView {
	v := feedView{
		URL:     f.URL,
		ID:      f.ID,
		Title:   f.Title,
		Next:    urlString(f.Next),
		Search:  urlString(f.Search),
		Entries: f.Entries,
	}
	if v.Entries == nil {
		v.Entries = []*models.FeedEntry{}
	}
	for _, s := range f.Subsections {
		v.Subsections = append(v.Subsections, s.String())
	}
	for _, s := range f.Skipped {
		v.Skipped = append(v.Skipped, skippedView{Index: s.Index, ID: s.ID, Error: s.Err.Error()})
	}
	return v
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}

func (a *app) newParseFeedCmd() *cobra.Command {
	var (
		strict bool
		base   string
	)
	cmd := &cobra.Command{
		Use:   "parse-feed FILE",
		Short: "Parse an OPDS acquisition feed document and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			parser := opds.NewFeedParser(strict || a.cfg.Strict, a.cfg.ParseConcurrency, a.logger)
			feed, err := parser.Parse(cmd.Context(), base, data)
			if err != nil {
				return fmt.Errorf("failed to parse feed: %w", err)
			}
			return a.printJSON(newFeedView(feed))
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on the first malformed entry instead of skipping it")
	cmd.Flags().StringVar(&base, "base", "", "URL the document was fetched from, used to resolve relative links")
	return cmd
}
