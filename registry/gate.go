package registry

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"runtime/debug"
	"time"
)

// Gate runs contributed code (module loaders, readiness probes and
// constructors) with panic recovery and an optional time limit.
//
// A call that exceeds Timeout is abandoned: its goroutine keeps running until
// the contributed code returns, but its result is discarded. A provider built
// after its constructor was abandoned is closed if it implements io.Closer.
type Gate struct {
	Timeout time.Duration
}

// Ready calls probe and reports whether the candidate may be constructed.
// A panic or a timeout means "not ready" and is returned as the error.
func (g Gate) Ready(ctx context.Context, probe func() bool) (bool, error) {
	if probe == nil {
		return false, ErrNotConfigured
	}
	v, err := run(ctx, g.Timeout, func() (bool, error) {
		return probe(), nil
	}, nil)
	if err != nil {
		return false, err
	}
	return v, nil
}

// Load imports a module and returns its exported symbols.
func (g Gate) Load(ctx context.Context, load LoadFunc) ([]any, error) {
	if load == nil {
		return nil, fmt.Errorf("nil module loader")
	}
	return run(ctx, g.Timeout, load, nil)
}

// Construct calls a constructor. The instance's Name is read inside the
// guard as well since it is contributed code too.
func (g Gate) Construct(ctx context.Context, newFn func() (Provider, error)) (Provider, string, error) {
	type built struct {
		p    Provider
		name string
	}
	b, err := run(ctx, g.Timeout, func() (built, error) {
		p, err := newFn()
		if err != nil {
			return built{}, err
		}
		if isNil(p) {
			return built{}, fmt.Errorf("constructor returned nil provider")
		}
		name := p.Name()
		if name == "" {
			return built{}, fmt.Errorf("provider has empty name")
		}
		return built{p: p, name: name}, nil
	}, func(late built) {
		if c, ok := late.p.(io.Closer); ok {
			_ = c.Close()
		}
	})
	if err != nil {
		return nil, "", err
	}
	return b.p, b.name, nil
}

// isNil also catches a typed nil pointer wrapped in the interface.
func isNil(p Provider) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// run executes fn inline when there is nothing to wait on, otherwise on its
// own goroutine so that the deadline can be enforced. discard, when set,
// receives a successful result that arrives after run gave up on it.
func run[V any](ctx context.Context, timeout time.Duration, fn func() (V, error), discard func(V)) (V, error) {
	var zero V
	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("%w: %w", ErrCandidateTimeout, err)
	}
	if timeout <= 0 && ctx.Done() == nil {
		return protect(fn)
	}

	type result struct {
		v   V
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := protect(fn)
		done <- result{v: v, err: err}
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var err error
	select {
	case r := <-done:
		return r.v, r.err
	case <-expired:
		err = fmt.Errorf("%w after %s", ErrCandidateTimeout, timeout)
	case <-ctx.Done():
		err = fmt.Errorf("%w: %w", ErrCandidateTimeout, ctx.Err())
	}
	if discard != nil {
		go func() {
			if r := <-done; r.err == nil {
				_, _ = protect(func() (struct{}, error) {
					discard(r.v)
					return struct{}{}, nil
				})
			}
		}()
	}
	return zero, err
}

func protect[V any](fn func() (V, error)) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
