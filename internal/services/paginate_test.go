package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/desertthunder/skyanki/internal/models"
)

// pagesOf serves fixed pages and records every requested page number.
func pagesOf(pages [][]int, calls *[]int) PageFunc[int] {
	return func(_ context.Context, page, pageSize int) ([]int, models.PageMeta, error) {
		*calls = append(*calls, page)
		return pages[page-1], models.PageMeta{
			CurrentPage: page,
			LastPage:    len(pages),
			PageSize:    pageSize,
		}, nil
	}
}

func TestPaginate(t *testing.T) {
	t.Run("Concatenates Pages In Order", func(t *testing.T) {
		tc := []struct {
			name  string
			pages [][]int
			want  []int
		}{
			{name: "single page", pages: [][]int{{1, 2, 3}}, want: []int{1, 2, 3}},
			{name: "two pages", pages: [][]int{{1, 2}, {3}}, want: []int{1, 2, 3}},
			{name: "five pages", pages: [][]int{{1}, {2}, {3}, {4}, {5, 6}}, want: []int{1, 2, 3, 4, 5, 6}},
			{name: "empty single page", pages: [][]int{{}}, want: []int{}},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				var calls []int
				got, err := Paginate(context.Background(), 100, pagesOf(tt.pages, &calls))
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if !reflect.DeepEqual(got, tt.want) {
					t.Errorf("Paginate() = %v, want %v", got, tt.want)
				}
				if len(calls) != len(tt.pages) {
					t.Errorf("expected %d fetches, got %d", len(tt.pages), len(calls))
				}
				for i, p := range calls {
					if p != i+1 {
						t.Errorf("fetch %d requested page %d", i, p)
					}
				}
			})
		}
	})

	t.Run("Passes Page Size", func(t *testing.T) {
		var seen int
		_, err := Paginate(context.Background(), 25, func(_ context.Context, page, pageSize int) ([]int, models.PageMeta, error) {
			seen = pageSize
			return nil, models.PageMeta{CurrentPage: 1, LastPage: 1}, nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if seen != 25 {
			t.Errorf("expected page size 25, got %d", seen)
		}
	})

	t.Run("Defaults Page Size", func(t *testing.T) {
		var seen int
		Paginate(context.Background(), 0, func(_ context.Context, page, pageSize int) ([]int, models.PageMeta, error) {
			seen = pageSize
			return nil, models.PageMeta{CurrentPage: 1, LastPage: 1}, nil
		})
		if seen != DefaultPageSize {
			t.Errorf("expected default page size %d, got %d", DefaultPageSize, seen)
		}
	})

	t.Run("Failure Aborts Without Partial Result", func(t *testing.T) {
		boom := errors.New("page 2 failed")
		calls := 0
		got, err := Paginate(context.Background(), 10, func(_ context.Context, page, _ int) ([]int, models.PageMeta, error) {
			calls++
			if page == 2 {
				return nil, models.PageMeta{}, boom
			}
			return []int{page}, models.PageMeta{CurrentPage: page, LastPage: 3}, nil
		})

		if !errors.Is(err, boom) {
			t.Fatalf("expected page error, got %v", err)
		}
		if got != nil {
			t.Errorf("expected no partial result, got %v", got)
		}
		if calls != 2 {
			t.Errorf("expected no retry and no further pages, got %d calls", calls)
		}
	})

	t.Run("Zero Last Page Stops", func(t *testing.T) {
		calls := 0
		got, err := Paginate(context.Background(), 10, func(_ context.Context, page, _ int) ([]int, models.PageMeta, error) {
			calls++
			return nil, models.PageMeta{CurrentPage: 1, LastPage: 0}, nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 0 || calls != 1 {
			t.Errorf("expected one empty fetch, got %v after %d calls", got, calls)
		}
	})
}
