package registry

import (
	"fmt"
	"sort"
	"sync"
)

// LoadFunc loads a contributed module and returns its exported symbols.
// It runs contributed code and may fail or panic; the registry isolates both.
type LoadFunc func() ([]any, error)

// Module is one contributed extension module inside a namespace.
type Module struct {
	// ID identifies the module in logs, e.g. "providers/finance/stripe".
	ID   string
	Load LoadFunc
}

// Namespace is a named extension point that provider packages contribute
// modules to. Contributions happen from init() functions, before main runs.
type Namespace struct {
	name string

	mu      sync.RWMutex
	modules []Module
	ids     map[string]struct{}
}

// catalog holds every namespace created with NewNamespace.
var catalog = struct {
	mu         sync.RWMutex
	namespaces map[string]*Namespace
}{namespaces: make(map[string]*Namespace)}

// NewNamespace creates a namespace and records it in the process catalog so
// scanners can resolve it by name. Creating the same name twice is a
// programming error and panics, as with database/sql.Register.
func NewNamespace(name string) *Namespace {
	if name == "" {
		panic("registry: namespace name cannot be empty")
	}

	catalog.mu.Lock()
	defer catalog.mu.Unlock()

	if _, exists := catalog.namespaces[name]; exists {
		panic(fmt.Sprintf("registry: namespace %q already exists", name))
	}

	ns := &Namespace{name: name, ids: make(map[string]struct{})}
	catalog.namespaces[name] = ns
	return ns
}

// LookupNamespace resolves a catalog namespace by name.
func LookupNamespace(name string) (*Namespace, bool) {
	catalog.mu.RLock()
	defer catalog.mu.RUnlock()

	ns, ok := catalog.namespaces[name]
	return ns, ok
}

// Namespaces returns the names of all catalog namespaces, sorted.
func Namespaces() []string {
	catalog.mu.RLock()
	defer catalog.mu.RUnlock()

	names := make([]string, 0, len(catalog.namespaces))
	for name := range catalog.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Name returns the namespace name.
func (n *Namespace) Name() string {
	return n.name
}

// Contribute adds a module to the namespace. The module ID is prefixed with
// the namespace name. Contribution order is preserved and becomes scan order.
// A duplicate ID or a nil loader panics: both are programmer errors that
// should surface the first time the binary starts.
func (n *Namespace) Contribute(id string, load LoadFunc) {
	if id == "" {
		panic(fmt.Sprintf("registry: empty module id in namespace %q", n.name))
	}
	if load == nil {
		panic(fmt.Sprintf("registry: nil loader for module %q in namespace %q", id, n.name))
	}

	full := n.name + "/" + id

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.ids[full]; exists {
		panic(fmt.Sprintf("registry: module %q already contributed", full))
	}
	n.ids[full] = struct{}{}
	n.modules = append(n.modules, Module{ID: full, Load: load})
}

// Modules returns a snapshot of the contributed modules in contribution order.
func (n *Namespace) Modules() []Module {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]Module, len(n.modules))
	copy(out, n.modules)
	return out
}
