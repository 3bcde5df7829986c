// Package pagination walks a provider's transaction listing backward in time.
package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

// PageSource lists one page of a wallet's transactions, newest first
type PageSource interface {
	ListTransactionPage(ctx context.Context, address string, pageSize int, before string) (*entities.TransactionPage, error)
}

// Config bounds a walk
type Config struct {
	PageSize  int
	MaxPages  int
	PageDelay time.Duration
}

// Options narrows one walk
type Options struct {
	// Limit caps the total number of transactions yielded; zero means unlimited
	Limit int
	// Until stops the walk at this transaction id, exclusive
	Until string
}

// StopReason explains why a walk ended
type StopReason string

const (
	StopExhausted StopReason = "exhausted"
	StopLimit     StopReason = "limit"
	StopMaxPages  StopReason = "max_pages"
	StopUntil     StopReason = "until"
	StopError     StopReason = "error"
	StopCancelled StopReason = "cancelled"
)

// Result summarizes a finished walk
type Result struct {
	Pages  int
	Items  int
	Reason StopReason
	// Err is set when a page after the first failed; earlier pages were already yielded
	Err error
}

// Paginator walks pages sequentially; each page's marker depends on the previous page
type Paginator struct {
	source PageSource
	config Config
	logger *zap.Logger
}

// New creates a paginator over source
func New(source PageSource, cfg Config, logger *zap.Logger) *Paginator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 100
	}
	return &Paginator{
		source: source,
		config: cfg,
		logger: logger,
	}
}

// MaxPagesFor returns the page cap of a walk: enough pages to cover limit,
// never more than the configured maximum
func (p *Paginator) MaxPagesFor(limit int) int {
	if limit <= 0 {
		return p.config.MaxPages
	}
	pages := (limit + p.config.PageSize - 1) / p.config.PageSize
	if pages > p.config.MaxPages {
		return p.config.MaxPages
	}
	return pages
}

// Walk fetches pages and hands each non-empty page to fn in order.
// A failure on the first page is returned as an error; later failures end the walk
// and are reported in Result.Err. An error from fn aborts the walk.
func (p *Paginator) Walk(ctx context.Context, address string, opts Options, fn func(ctx context.Context, items []entities.TransactionRef) error) (*Result, error) {
	result := &Result{}
	maxPages := p.MaxPagesFor(opts.Limit)
	seen := make(map[string]struct{})
	before := ""

	for {
		if result.Pages >= maxPages {
			// Pages shorter than PageSize can exhaust the page cap before the limit
			result.Reason = StopMaxPages
			return result, nil
		}

		if result.Pages > 0 && p.config.PageDelay > 0 {
			select {
			case <-ctx.Done():
				result.Reason = StopCancelled
				result.Err = ctx.Err()
				return result, nil
			case <-time.After(p.config.PageDelay):
			}
		}

		page, err := p.source.ListTransactionPage(ctx, address, p.config.PageSize, before)
		if err != nil {
			if result.Pages == 0 {
				return nil, fmt.Errorf("failed to list first page: %w", err)
			}
			reason := StopError
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				reason = StopCancelled
			}
			p.logger.Warn("Pagination stopped early",
				zap.String("address", address),
				zap.Int("pages", result.Pages),
				zap.Error(err),
			)
			result.Reason = reason
			result.Err = err
			return result, nil
		}
		result.Pages++

		if len(page.Items) == 0 {
			result.Reason = StopExhausted
			return result, nil
		}

		items := make([]entities.TransactionRef, 0, len(page.Items))
		reason := StopReason("")
		for _, item := range page.Items {
			if opts.Until != "" && item.ID == opts.Until {
				reason = StopUntil
				break
			}
			if _, dup := seen[item.ID]; dup {
				continue
			}
			if opts.Limit > 0 && result.Items+len(items) >= opts.Limit {
				reason = StopLimit
				break
			}
			seen[item.ID] = struct{}{}
			items = append(items, item)
		}

		if len(items) > 0 {
			result.Items += len(items)
			if err := fn(ctx, items); err != nil {
				return result, err
			}
		}

		if opts.Limit > 0 && result.Items >= opts.Limit && reason == "" {
			reason = StopLimit
		}
		if reason == "" && page.NextBefore == "" {
			reason = StopExhausted
		}
		if reason != "" {
			result.Reason = reason
			return result, nil
		}

		before = page.NextBefore
	}
}
