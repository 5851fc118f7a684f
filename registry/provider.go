package registry

import (
	"cmp"
	"slices"
)

// Provider is the identity every capability contract embeds.
type Provider interface {
	// Name is the stable, non-empty key used in logs and status output.
	Name() string

	// DisplayName is a human readable label.
	DisplayName() string
}

// Candidate describes a provider type before it is activated.
//
// IsConfigured is the static readiness probe: it must be callable without an
// instance and should only perform local checks such as reading environment
// variables. New constructs the single instance the registry keeps. A
// candidate without a constructor is abstract and never activated.
type Candidate[T Provider] struct {
	Name         string
	DisplayName  string
	IsConfigured func() bool
	New          func() (T, error)
}

// Prioritized is implemented by providers that advertise a preference.
// The registry ignores it; see ByPriority.
type Prioritized interface {
	Priority() int
}

// ByPriority returns a copy of providers ordered by descending Priority.
// Providers that do not implement Prioritized rank as 0. The sort is stable,
// so discovery order breaks ties.
func ByPriority[T Provider](providers []T) []T {
	sorted := slices.Clone(providers)
	slices.SortStableFunc(sorted, func(a, b T) int {
		return cmp.Compare(priorityOf(b), priorityOf(a))
	})
	return sorted
}

func priorityOf(p Provider) int {
	if pp, ok := p.(Prioritized); ok {
		return pp.Priority()
	}
	return 0
}
