package remote

import (
	"context"
	"errors"
	"iter"
)

// ErrTooManyPages stops a listing whose cursor never runs out.
var ErrTooManyPages = errors.New("pagination exceeded page limit")

// DefaultMaxPages bounds Paginate when no limit is given.
const DefaultMaxPages = 1000

// Page is one response of a cursor-paginated listing.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// FetchFunc loads the page that starts at cursor ("" for the first page).
type FetchFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

type pageConfig struct {
	maxPages int
}

type PageOption func(*pageConfig)

// MaxPages overrides DefaultMaxPages. Zero or a negative n keeps the default.
func MaxPages(n int) PageOption {
	return func(c *pageConfig) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// Paginate yields every item of a cursor-paginated listing, calling fetch until a page
// comes back without a cursor. Pages are fetched lazily as the caller ranges; each range
// starts again from the first page. A fetch error, a cancelled context or running past
// the page limit is yielded once as the final pair.
func Paginate[T any](ctx context.Context, fetch FetchFunc[T], opts ...PageOption) iter.Seq2[T, error] {
	cfg := pageConfig{maxPages: DefaultMaxPages}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(yield func(T, error) bool) {
		var zero T
		cursor := ""
		for pages := 0; ; pages++ {
			if pages >= cfg.maxPages {
				yield(zero, ErrTooManyPages)
				return
			}
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}

			page, err := fetch(ctx, cursor)
			if err != nil {
				yield(zero, err)
				return
			}
			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
			if page.NextCursor == "" {
				return
			}
			cursor = page.NextCursor
		}
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	out := make([]T, 0)
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
