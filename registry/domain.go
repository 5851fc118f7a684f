package registry

import (
	"fmt"
	"reflect"
)

// DomainState tracks a domain through discovery.
type DomainState int32

const (
	StateUnscanned DomainState = iota
	StateScanning
	StatePopulated
	StateSkipped
)

func (s DomainState) String() string {
	switch s {
	case StateUnscanned:
		return "unscanned"
	case StateScanning:
		return "scanning"
	case StatePopulated:
		return "populated"
	case StateSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("DomainState(%d)", int32(s))
	}
}

// Domain is one row of the compiled-in domain table: a key mapped to a
// contract type and the extension namespace that providers contribute to.
type Domain struct {
	Key       string
	Namespace string
	Contract  reflect.Type

	// conform narrows a module's symbols to this domain's candidates.
	// Only Bind sets it.
	conform func(symbols []any) []candidate
}

// candidate is a Candidate[T] with the contract type erased.
type candidate struct {
	name        string
	displayName string
	probe       func() bool
	construct   func() (Provider, error)
}

// Bind declares a domain whose providers implement contract T.
func Bind[T Provider](key, namespace string) Domain {
	return Domain{
		Key:       key,
		Namespace: namespace,
		Contract:  reflect.TypeFor[T](),
		conform: func(symbols []any) []candidate {
			typed := Conforming[T](symbols)
			out := make([]candidate, 0, len(typed))
			for _, c := range typed {
				newFn := c.New
				out = append(out, candidate{
					name:        c.Name,
					displayName: c.DisplayName,
					probe:       c.IsConfigured,
					construct: func() (Provider, error) {
						p, err := newFn()
						if err != nil {
							return nil, err
						}
						return p, nil
					},
				})
			}
			return out
		},
	}
}

// contractError reports why a domain's contract cannot be used, or nil.
func (d Domain) contractError() error {
	switch {
	case d.Contract == nil || d.conform == nil:
		return fmt.Errorf("%w: domain %q was not declared with Bind", ErrContractUnavailable, d.Key)
	case d.Contract.Kind() != reflect.Interface:
		return fmt.Errorf("%w: %s is not an interface type", ErrContractUnavailable, d.Contract)
	}
	return nil
}

// Table is the ordered domain table compiled into the host application.
type Table []Domain

// Validate checks the table for host wiring defects.
func (t Table) Validate() error {
	seen := make(map[string]struct{}, len(t))
	for i, d := range t {
		if d.Key == "" {
			return fmt.Errorf("%w: entry %d has an empty key", ErrInvalidDomainTable, i)
		}
		if d.Namespace == "" {
			return fmt.Errorf("%w: domain %q has an empty namespace", ErrInvalidDomainTable, d.Key)
		}
		if _, dup := seen[d.Key]; dup {
			return fmt.Errorf("%w: duplicate domain %q", ErrInvalidDomainTable, d.Key)
		}
		seen[d.Key] = struct{}{}
	}
	return nil
}

// Keys returns the domain keys in table order.
func (t Table) Keys() []string {
	keys := make([]string, len(t))
	for i, d := range t {
		keys[i] = d.Key
	}
	return keys
}
