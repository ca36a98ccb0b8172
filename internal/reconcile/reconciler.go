package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/fbr"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/hscode"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/loading"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/httpx"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/rest"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/shared"
)

const (
	localMessage    = "Loading local HS codes..."
	externalMessage = "Fetching HS codes from FBR..."
)

// LocalSource lists locally tracked codes one page at a time.
type LocalSource interface {
	List(ctx context.Context, params hscode.ListParams) (rest.Page[hscode.HSCode], error)
}

// Result is the outcome of one reconciliation. A failed source leaves its
// error set while the other source's data is still reported.
type Result struct {
	Search        string         `json:"search"`
	Entries       []Entry        `json:"entries"`
	Counts        map[Status]int `json:"counts"`
	LocalCount    int            `json:"localCount"`
	ExternalCount int            `json:"externalCount"`
	Duplicates    int            `json:"externalDuplicates"`
	Truncated     bool           `json:"truncated"`
	LocalErr      error          `json:"-"`
	ExternalErr   error          `json:"-"`
}

// Partial reports whether exactly one source failed.
func (r Result) Partial() bool {
	return (r.LocalErr == nil) != (r.ExternalErr == nil)
}

// Options tunes a Reconciler.
type Options struct {
	// MaxPages bounds how many local pages are read per run.
	MaxPages int
	PageSize int
	Signal   *loading.Signal
	Logger   *slog.Logger
}

// Reconciler runs both sources concurrently and joins them by code.
type Reconciler struct {
	local    LocalSource
	external fbr.Catalog
	maxPages int
	pageSize int
	signal   *loading.Signal
	logger   *slog.Logger
}

// New constructs a Reconciler.
func New(local LocalSource, external fbr.Catalog, opts Options) *Reconciler {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10
	}
	if opts.PageSize <= 0 {
		opts.PageSize = shared.MaxPageSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Reconciler{
		local:    local,
		external: external,
		maxPages: opts.MaxPages,
		pageSize: opts.PageSize,
		signal:   opts.Signal,
		logger:   opts.Logger,
	}
}

// Reconcile compares the local codes matching search with the authority's
// catalog visible to credential. The error is non-nil only when both sources
// failed.
func (r *Reconciler) Reconcile(ctx context.Context, search, credential string) (Result, error) {
	var (
		g         errgroup.Group
		local     []hscode.HSCode
		truncated bool
		localErr  error
		external  []fbr.HSCode
		extErr    error
	)
	g.Go(func() error {
		localErr = loading.Track(r.signal, localMessage, func() error {
			var err error
			local, truncated, err = r.fetchLocal(ctx, search)
			return err
		})
		return nil
	})
	g.Go(func() error {
		external, extErr = loading.TrackValue(r.signal, externalMessage, func() ([]fbr.HSCode, error) {
			return r.external.ListHSCodes(ctx, credential)
		})
		return nil
	})
	_ = g.Wait()

	res := Result{
		Search:      search,
		LocalCount:  len(local),
		Truncated:   truncated,
		LocalErr:    localErr,
		ExternalErr: extErr,
	}
	if extErr == nil {
		res.ExternalCount = len(external)
	}

	logger := r.logger.With(slog.String("search", search))
	if localErr != nil {
		logger.Warn("reconcile: local catalog unavailable", slog.String("kind", httpx.KindName(localErr)), slog.Any("error", localErr))
	}
	if extErr != nil {
		logger.Warn("reconcile: fbr catalog unavailable", slog.String("kind", httpx.KindName(extErr)), slog.Any("error", extErr))
	}

	switch {
	case localErr != nil && extErr != nil:
		return res, errors.Join(
			fmt.Errorf("local catalog: %w", localErr),
			fmt.Errorf("fbr catalog: %w", extErr),
		)
	case localErr != nil:
		res.Entries, res.Duplicates = Unverified(nil, external, search)
	case extErr != nil:
		res.Entries, _ = Unverified(local, nil, search)
	default:
		res.Entries, res.Duplicates = Join(local, external, search)
	}
	res.Counts = countStatuses(res.Entries)

	logger.Info("reconcile: completed",
		slog.Int("local", res.LocalCount),
		slog.Int("external", res.ExternalCount),
		slog.Int("duplicates", res.Duplicates),
		slog.Int("mismatched", res.Counts[StatusDescriptionMismatch]),
		slog.Int("missing_external", res.Counts[StatusMissingExternal]))
	return res, nil
}

func (r *Reconciler) fetchLocal(ctx context.Context, search string) ([]hscode.HSCode, bool, error) {
	var out []hscode.HSCode
	for page := 1; ; page++ {
		res, err := r.local.List(ctx, hscode.ListParams{Page: page, Limit: r.pageSize, Search: search})
		if err != nil {
			return nil, false, fmt.Errorf("list page %d: %w", page, err)
		}
		out = append(out, res.Items...)
		if !res.Pagination.HasNext() || len(res.Items) == 0 {
			return out, false, nil
		}
		if page >= r.maxPages {
			return out, true, nil
		}
	}
}

func countStatuses(entries []Entry) map[Status]int {
	counts := make(map[Status]int)
	for _, e := range entries {
		counts[e.Status]++
	}
	return counts
}
