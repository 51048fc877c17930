package gopool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Group runs functions in goroutines with an optional concurrency limit and
// keeps the first error.
type Group = errgroup.Group

// WithContext returns a Group whose context is canceled on the first error.
func WithContext(ctx context.Context) (*Group, context.Context) {
	return errgroup.WithContext(ctx)
}

func AllWithLimit(max int, fns ...func() (e error)) (e error) {
	var g Group
	g.SetLimit(max)
	for _, v := range fns {
		g.Go(v)
	}
	return g.Wait()
}

func All(fns ...func() (e error)) (e error) {
	return AllWithLimit(-1, fns...)
}
