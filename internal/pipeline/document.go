// Package pipeline drives tenders document by document and fans each document's pages out to the backends.
package pipeline

import (
	"context"
	"slices"

	"github.com/Lllllllleong/tenderflow/internal/dispatch"
	"github.com/Lllllllleong/tenderflow/internal/pdfdoc"
)

// PageOperation is the per-page work a document pipeline runs, producing an R per page.
type PageOperation[R any] interface {
	Lane(page pdfdoc.Page) dispatch.Lane
	Apply(ctx context.Context, page pdfdoc.Page) (R, error)
}

// PageResult is the outcome of one page.
type PageResult[R any] struct {
	Page  pdfdoc.Page
	Value R
	Err   error
}

// DocumentResult holds page results in ascending page order plus the counters the report needs.
type DocumentResult[R any] struct {
	Pages        []PageResult[R]
	ScannedPages int
	RegularPages int
	PageErrors   int
}

// Succeeded yields the results of pages that did not error, in page order.
func (r DocumentResult[R]) Succeeded() []PageResult[R] {
	ok := make([]PageResult[R], 0, len(r.Pages)-r.PageErrors)
	for _, p := range r.Pages {
		if p.Err == nil {
			ok = append(ok, p)
		}
	}
	return ok
}

// ErrorBudget is the number of page errors a document may have and still be accepted.
type ErrorBudget int

const DefaultErrorBudget ErrorBudget = 3

// Exceeded reports whether errors is over the budget.
func (b ErrorBudget) Exceeded(errors int) bool {
	return errors > int(b)
}

// ProcessPages submits every page to the dispatcher and collects the results.
// All pages run to completion; a page error never stops the others.
func ProcessPages[R any](ctx context.Context, d *dispatch.Dispatcher, op PageOperation[R], pages []pdfdoc.Page) DocumentResult[R] {
	tasks := make([]dispatch.Task[R], len(pages))
	for i, page := range pages {
		tasks[i] = dispatch.Task[R]{
			Lane: op.Lane(page),
			Run: func(ctx context.Context) (R, error) {
				return op.Apply(ctx, page)
			},
		}
	}

	outcomes := dispatch.Run(ctx, d, tasks)

	result := DocumentResult[R]{Pages: make([]PageResult[R], len(pages))}
	for i, page := range pages {
		result.Pages[i] = PageResult[R]{Page: page, Value: outcomes[i].Value, Err: outcomes[i].Err}
		if page.Scanned {
			result.ScannedPages++
		} else {
			result.RegularPages++
		}
		if outcomes[i].Err != nil {
			result.PageErrors++
		}
	}
	slices.SortStableFunc(result.Pages, func(a, b PageResult[R]) int {
		return a.Page.Number - b.Page.Number
	})
	return result
}
