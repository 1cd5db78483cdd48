package services

import (
	"context"

	"github.com/desertthunder/skyanki/internal/models"
)

// DefaultPageSize is the page size requested from listing endpoints.
const DefaultPageSize = 100

// PageFunc fetches one page of a listing. Pages are numbered from 1.
type PageFunc[T any] func(ctx context.Context, page, pageSize int) ([]T, models.PageMeta, error)

// Paginate walks a listing from page 1 until the server reports the last page, accumulating
// items in arrival order.
//
// The first failed page aborts the walk; no partial result is returned and nothing is retried.
// A reported last page at or below the current one ends the walk, so a server answering
// lastPage=0 for an empty listing stops after one request.
func Paginate[T any](ctx context.Context, pageSize int, fetch PageFunc[T]) ([]T, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	items := []T{}
	for page := 1; ; page++ {
		batch, meta, err := fetch(ctx, page, pageSize)
		if err != nil {
			return nil, err
		}

		items = append(items, batch...)

		if meta.CurrentPage >= meta.LastPage {
			return items, nil
		}
	}
}
