package notify

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Result is one channel's outcome in a broadcast.
type Result struct {
	Provider string
	Receipt  *Receipt
	Err      error
}

// Broadcast sends msg to every notifier concurrently. Results follow the
// order of notifiers. A failing channel never cancels the others; the
// returned error joins every channel failure.
func Broadcast(ctx context.Context, notifiers []Notifier, msg Message) ([]Result, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	results := make([]Result, len(notifiers))
	var g errgroup.Group
	for i, n := range notifiers {
		g.Go(func() error {
			receipt, err := n.Send(ctx, msg)
			results[i] = Result{Provider: n.Name(), Receipt: receipt, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Provider, r.Err))
		}
	}
	return results, errors.Join(errs...)
}
