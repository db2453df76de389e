package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"opdscore/internal/adapters/circulation"
	"opdscore/internal/adapters/util"
	"opdscore/internal/core/domain/models"
	"opdscore/internal/core/service"
)

func (a *app) newSyncCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Walk the catalog and reconcile tracked book statuses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.RequireCatalog(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			store, err := service.CreateStatusStore(ctx, a.cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize state: %w", err)
			}
			defer store.Close()

			src := service.CreateFeedSource(a.cfg, a.logger)
			svc := service.NewSyncService(a.cfg, src, store, service.NewStatusRegistry(), a.logger)
			report, err := svc.Run(ctx)
			if err != nil {
				return err
			}
			return a.printJSON(report)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Abort the sync after this long")
	return cmd
}

func (a *app) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [BOOK_ID]",
		Short: "Print tracked book statuses",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := service.CreateStatusStore(cmd.Context(), a.cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize state: %w", err)
			}
			defer store.Close()

			statuses, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}

			records := make([]models.StatusRecord, 0, len(statuses))
			for _, s := range statuses {
				if len(args) == 1 && s.ID().String() != args[0] {
					continue
				}
				records = append(records, models.EncodeStatus(s))
			}
			if len(args) == 1 && len(records) == 0 {
				return fmt.Errorf("no status recorded for book %s", args[0])
			}
			return a.printJSON(records)
		},
	}
}

// withClient runs fn against a circulation client whose status changes are
// persisted afterwards, also when fn fails.
func (a *app) withClient(ctx context.Context, fn func(*circulation.Client) error) error {
	store, err := service.CreateStatusStore(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize state: %w", err)
	}
	defer store.Close()

	statuses, err := store.Load(ctx)
	if err != nil {
		return err
	}
	registry := service.NewStatusRegistry()
	registry.Restore(statuses)

	cancel := registry.Subscribe(func(previous, current models.BookStatus) {
		if current != nil {
			a.logger.Debug("Status changed", zap.String("book", current.ID().String()), zap.String("status", string(current.Kind())))
		}
	})
	defer cancel()

	client := circulation.NewClient(
		util.NewHTTPClient(a.cfg.HTTPTimeout, a.cfg.HTTPRetries, a.logger),
		util.Credentials{Username: a.cfg.Username, Password: a.cfg.Password},
		registry,
		a.cfg.MaxContentBytes,
		a.logger,
	)

	runErr := fn(client)
	// Persist with a fresh context so a cancelled operation still records its failure.
	saveErr := store.Save(context.WithoutCancel(ctx), registry.Snapshot())
	return errors.Join(runErr, saveErr)
}

func parseURLArg(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid entry url %q", raw)
	}
	return u, nil
}

func (a *app) newBorrowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "borrow URL",
		Short: "Borrow (or place a hold on) the book described by the entry at URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseURLArg(args[0])
			if err != nil {
				return err
			}
			return a.withClient(cmd.Context(), func(c *circulation.Client) error {
				entry, err := c.FetchEntry(cmd.Context(), target)
				if err != nil {
					return err
				}
				updated, err := c.Borrow(cmd.Context(), entry)
				if err != nil {
					return err
				}
				return a.printJSON(updated)
			})
		},
	}
}

func (a *app) newRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke URL",
		Short: "Return the loan or cancel the hold on the book described by the entry at URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseURLArg(args[0])
			if err != nil {
				return err
			}
			return a.withClient(cmd.Context(), func(c *circulation.Client) error {
				entry, err := c.FetchEntry(cmd.Context(), target)
				if err != nil {
					return err
				}
				updated, err := c.Revoke(cmd.Context(), entry)
				if err != nil {
					return err
				}
				return a.printJSON(updated)
			})
		},
	}
}

func (a *app) newFetchCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Download the content of the book described by the entry at URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseURLArg(args[0])
			if err != nil {
				return err
			}
			return a.withClient(cmd.Context(), func(c *circulation.Client) error {
				entry, err := c.FetchEntry(cmd.Context(), target)
				if err != nil {
					return err
				}
				acq, err := circulation.ContentAcquisition(entry)
				if err != nil {
					return err
				}

				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				n, err := c.Fetch(cmd.Context(), entry.BookID(), acq, f)
				if closeErr := f.Close(); err == nil {
					err = closeErr
				}
				if err != nil {
					os.Remove(out)
					return err
				}
				return a.printJSON(map[string]any{
					"book_id": entry.BookID(),
					"path":    out,
					"bytes":   n,
				})
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Destination file")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
