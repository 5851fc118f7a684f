package registry

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/pulseboard/pulse/registry"

// Registry discovers providers once and serves lookups afterwards.
//
// Discover populates the registry on the calling goroutine. Once it returns,
// the registry is immutable and every read method is safe for concurrent use
// without locking. Reads issued before discovery completes see no providers.
type Registry struct {
	table    Table
	scanner  Scanner
	logger   Logger
	observer Observer
	tracer   trace.Tracer
	gate     Gate

	started atomic.Bool
	done    atomic.Bool

	// states is keyed by every table domain at construction and never
	// mutated afterwards; only the values change.
	states map[string]*atomic.Int32

	// Written once by Discover before done is set.
	providers map[string][]Provider
	names     map[string][]string
}

// New creates a registry for the given domain table. A malformed table is a
// programming defect in the host and is reported as ErrInvalidDomainTable.
func New(table Table, opts ...Option) (*Registry, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	r := &Registry{
		table:    slices.Clone(table),
		scanner:  CatalogScanner{},
		logger:   NoOpLogger{},
		observer: noOpObserver{},
		tracer:   otel.Tracer(tracerName),
		states:   make(map[string]*atomic.Int32, len(table)),
	}
	for _, d := range table {
		r.states[d.Key] = new(atomic.Int32)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// MustNew is like New but panics on a malformed table.
func MustNew(table Table, opts ...Option) *Registry {
	r, err := New(table, opts...)
	if err != nil {
		panic(fmt.Sprintf("registry: %v", err))
	}
	return r
}

// Discover scans every domain, activates each ready candidate exactly once
// and records the first activated provider per domain as its primary.
//
// Failures of individual modules, candidates and domains are logged and
// reported to the observer; they never surface here. The only error is
// ErrAlreadyDiscovered on a second call.
func (r *Registry) Discover(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyDiscovered
	}

	run := &discovery{Registry: r, id: uuid.NewString()}
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "registry.Discover", trace.WithAttributes(
		attribute.String("discovery.id", run.id),
		attribute.Int("discovery.domains", len(r.table)),
	))
	defer span.End()

	r.logger.Info("Starting provider discovery", map[string]interface{}{
		"discovery_id": run.id,
		"domains":      r.table.Keys(),
		"timeout":      r.gate.Timeout.String(),
	})

	providers := make(map[string][]Provider, len(r.table))
	names := make(map[string][]string, len(r.table))
	total := 0
	for _, d := range r.table {
		active := run.domain(ctx, d)
		providers[d.Key] = make([]Provider, len(active))
		names[d.Key] = make([]string, len(active))
		for i, a := range active {
			providers[d.Key][i] = a.provider
			names[d.Key][i] = a.name
		}
		total += len(active)
	}

	r.providers = providers
	r.names = names
	r.done.Store(true)

	span.SetAttributes(attribute.Int("discovery.providers", total))
	r.logger.Info("Provider discovery complete", map[string]interface{}{
		"discovery_id": run.id,
		"providers":    total,
		"failures":     run.failures,
		"duration_ms":  time.Since(start).Milliseconds(),
	})
	return nil
}

// Discovered reports whether Discover has completed.
func (r *Registry) Discovered() bool {
	return r.done.Load()
}

// Get returns the domain's primary provider, or nil when none qualified or
// the domain is unknown.
func (r *Registry) Get(domain string) Provider {
	if !r.done.Load() {
		return nil
	}
	active := r.providers[domain]
	if len(active) == 0 {
		return nil
	}
	return active[0]
}

// GetAll returns every activated provider for the domain in discovery order.
// The result is a fresh slice and is never nil.
func (r *Registry) GetAll(domain string) []Provider {
	if !r.done.Load() {
		return []Provider{}
	}
	active := r.providers[domain]
	out := make([]Provider, len(active))
	copy(out, active)
	return out
}

// Status maps every table domain to the names of its activated providers.
// Domains without providers map to an empty, non-nil slice.
func (r *Registry) Status() map[string][]string {
	status := make(map[string][]string, len(r.table))
	for _, d := range r.table {
		names := []string{}
		if r.done.Load() {
			names = append(names, r.names[d.Key]...)
		}
		status[d.Key] = names
	}
	return status
}

// State returns the discovery state of a domain. Unknown domains report
// StateUnscanned.
func (r *Registry) State(domain string) DomainState {
	s, ok := r.states[domain]
	if !ok {
		return StateUnscanned
	}
	return DomainState(s.Load())
}

// Domains returns the domain keys in table order.
func (r *Registry) Domains() []string {
	return r.table.Keys()
}

// Primary returns the domain's primary provider as contract T.
func Primary[T Provider](r *Registry, domain string) (T, bool) {
	t, ok := r.Get(domain).(T)
	return t, ok
}

// All returns the domain's providers that implement contract T.
func All[T Provider](r *Registry, domain string) []T {
	active := r.GetAll(domain)
	out := make([]T, 0, len(active))
	for _, p := range active {
		if t, ok := p.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// activated pairs a provider with the name it reported at construction.
type activated struct {
	provider Provider
	name     string
}

// discovery carries per-run bookkeeping.
type discovery struct {
	*Registry
	id       string
	failures int
}

func (d *discovery) domain(ctx context.Context, dom Domain) []activated {
	state := d.states[dom.Key]
	state.Store(int32(StateScanning))

	ctx, span := d.tracer.Start(ctx, "registry.domain", trace.WithAttributes(
		attribute.String("domain", dom.Key),
		attribute.String("namespace", dom.Namespace),
	))
	defer span.End()

	if err := dom.contractError(); err != nil {
		state.Store(int32(StateSkipped))
		span.SetStatus(codes.Error, err.Error())
		event := Event{Domain: dom.Key, Outcome: OutcomeContractFailed}
		d.report(event, newDiscoveryError(KindContractFailure, event, err))
		return nil
	}

	var active []activated
	seen := make(map[string]struct{})

	modules, err := d.scanner.Scan(dom.Namespace)
	if err != nil {
		event := Event{Domain: dom.Key, Outcome: OutcomeScanFailed}
		d.report(event, newDiscoveryError(KindScanFailure, event, err))
	}
	if modules != nil {
		d.eachModule(dom, modules, func(m Module) {
			for _, a := range d.module(ctx, dom, m) {
				if _, dup := seen[a.name]; dup {
					d.logger.Warn("Duplicate provider name in domain", map[string]interface{}{
						"discovery_id": d.id,
						"domain":       dom.Key,
						"provider":     a.name,
						"module":       m.ID,
					})
				}
				seen[a.name] = struct{}{}
				active = append(active, a)
			}
		})
	}

	state.Store(int32(StatePopulated))
	span.SetAttributes(attribute.Int("domain.providers", len(active)))

	names := make([]string, len(active))
	for i, a := range active {
		names[i] = a.name
	}
	d.logger.Info("Domain populated", map[string]interface{}{
		"discovery_id": d.id,
		"domain":       dom.Key,
		"providers":    names,
	})
	return active
}

// eachModule ranges over a scanner sequence. A panicking scanner is treated
// as a scan failure; modules already processed are kept.
func (d *discovery) eachModule(dom Domain, modules iter.Seq[Module], fn func(Module)) {
	defer func() {
		if rec := recover(); rec != nil {
			event := Event{Domain: dom.Key, Outcome: OutcomeScanFailed}
			d.report(event, newDiscoveryError(KindScanFailure, event, &PanicError{Value: rec}))
		}
	}()
	for m := range modules {
		fn(m)
	}
}

func (d *discovery) module(ctx context.Context, dom Domain, m Module) []activated {
	start := time.Now()
	symbols, err := d.gate.Load(ctx, m.Load)
	if err != nil {
		event := Event{Domain: dom.Key, Module: m.ID, Outcome: outcomeFor(err, OutcomeImportFailed), Duration: time.Since(start)}
		d.report(event, newDiscoveryError(KindImportFailure, event, err))
		return nil
	}

	var active []activated
	for _, c := range dom.conform(symbols) {
		if a, ok := d.activate(ctx, dom, m, c); ok {
			active = append(active, a)
		}
	}
	return active
}

func (d *discovery) activate(ctx context.Context, dom Domain, m Module, c candidate) (activated, bool) {
	start := time.Now()
	event := Event{Domain: dom.Key, Module: m.ID, Provider: c.name}

	ready, err := d.gate.Ready(ctx, c.probe)
	if err != nil {
		event.Outcome, event.Duration = outcomeFor(err, OutcomeProbeFailed), time.Since(start)
		d.report(event, newDiscoveryError(KindProbeFailure, event, err))
		return activated{}, false
	}
	if !ready {
		event.Outcome, event.Duration = OutcomeNotConfigured, time.Since(start)
		d.observer.Observe(d.stamp(event))
		d.logger.Debug("Provider not configured", map[string]interface{}{
			"discovery_id": d.id,
			"domain":       dom.Key,
			"provider":     c.name,
		})
		return activated{}, false
	}

	p, name, err := d.gate.Construct(ctx, c.construct)
	if err != nil {
		event.Outcome, event.Duration = outcomeFor(err, OutcomeConstructFailed), time.Since(start)
		d.report(event, newDiscoveryError(KindConstructFailure, event, err))
		return activated{}, false
	}

	event.Outcome, event.Duration = OutcomeActivated, time.Since(start)
	d.observer.Observe(d.stamp(event))
	d.logger.Info("Provider activated", map[string]interface{}{
		"discovery_id": d.id,
		"domain":       dom.Key,
		"provider":     name,
		"display_name": c.displayName,
		"module":       m.ID,
		"duration_ms":  event.Duration.Milliseconds(),
	})
	return activated{provider: p, name: name}, true
}

// report logs an isolated failure and forwards it to the observer.
func (d *discovery) report(event Event, err *DiscoveryError) {
	d.failures++
	event.Err = err
	d.observer.Observe(d.stamp(event))

	fields := map[string]interface{}{
		"discovery_id": d.id,
		"domain":       err.Domain,
		"kind":         err.Kind,
		"outcome":      string(event.Outcome),
		"error":        err.Err.Error(),
	}
	if err.Module != "" {
		fields["module"] = err.Module
	}
	if err.Provider != "" {
		fields["provider"] = err.Provider
	}
	var pe *PanicError
	if errors.As(err, &pe) && len(pe.Stack) > 0 {
		fields["stack"] = string(pe.Stack)
	}

	switch err.Kind {
	case KindContractFailure:
		d.logger.Error("Skipping domain: contract unavailable", fields)
	case KindScanFailure:
		d.logger.Warn("Extension namespace could not be scanned", fields)
	case KindImportFailure:
		d.logger.Warn("Skipping extension module", fields)
	default:
		d.logger.Warn("Skipping provider candidate", fields)
	}
}

func (d *discovery) stamp(e Event) Event {
	e.DiscoveryID = d.id
	return e
}

func outcomeFor(err error, fallback Outcome) Outcome {
	if errors.Is(err, ErrCandidateTimeout) {
		return OutcomeTimeout
	}
	return fallback
}
