// Package registry discovers, gates and activates capability providers.
//
// A host application compiles in a domain table that maps each domain key
// (finance, ads, analytics, ...) to a contract interface and an extension
// namespace. Provider packages contribute modules to those namespaces from
// their init() functions. At startup the host builds a Registry and calls
// Discover exactly once:
//
//	reg, err := registry.New(providers.Table(), registry.WithLogger(log))
//	if err != nil {
//	    return err // malformed domain table, a wiring defect
//	}
//	_ = reg.Discover(ctx)
//
// Discover scans every namespace, loads each module, keeps the symbols that
// are complete candidates of the domain contract, asks each candidate's
// static readiness probe whether it is configured and constructs exactly one
// instance of every ready candidate. Every step that runs contributed code is
// isolated: an error, a panic or a timeout in one module or candidate is
// logged and skipped, and the rest of discovery carries on.
//
// After Discover returns, the registry is read-only. Get, GetAll and Status
// never fail and are safe for concurrent use without locking:
//
//	if n, ok := registry.Primary[notify.Notifier](reg, "notifications"); ok {
//	    _, _ = n.Send(ctx, msg)
//	}
//
// Primary selection is "first configured wins" in discovery order. Callers
// that need a preference apply ByPriority on top of GetAll.
package registry
