package registry

import (
	"fmt"
	"iter"
	"path"
	"strings"
)

// Scanner enumerates the modules of an extension namespace without loading
// them, so the caller can isolate each module's load failure.
type Scanner interface {
	// Scan returns a lazy, finite sequence of modules. When the namespace
	// cannot be enumerated it returns an empty sequence and an error.
	Scan(namespace string) (iter.Seq[Module], error)
}

// CatalogScanner resolves namespaces created with NewNamespace.
type CatalogScanner struct{}

// Scan implements Scanner.
func (CatalogScanner) Scan(namespace string) (iter.Seq[Module], error) {
	ns, ok := LookupNamespace(namespace)
	if !ok {
		return emptyModules, fmt.Errorf("%w: %s", ErrNamespaceNotFound, namespace)
	}
	return modulesOf(ns.Modules()), nil
}

// StaticScanner serves a fixed namespace → modules mapping. It is useful for
// hosts that assemble their extension list by hand and for tests.
type StaticScanner map[string][]Module

// Scan implements Scanner.
func (s StaticScanner) Scan(namespace string) (iter.Seq[Module], error) {
	modules, ok := s[namespace]
	if !ok {
		return emptyModules, fmt.Errorf("%w: %s", ErrNamespaceNotFound, namespace)
	}
	return modulesOf(modules), nil
}

// IsReservedModule reports whether a module ID names a contract-definition
// module or a namespace initializer. Scanners never yield reserved modules.
func IsReservedModule(id string) bool {
	base := path.Base(id)
	return base == "contract" || base == "init" || strings.HasPrefix(base, "_")
}

func modulesOf(modules []Module) iter.Seq[Module] {
	return func(yield func(Module) bool) {
		for _, m := range modules {
			if IsReservedModule(m.ID) {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

func emptyModules(func(Module) bool) {}
