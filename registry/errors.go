package registry

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for comparison using errors.Is().
var (
	// Lifecycle errors
	ErrAlreadyDiscovered  = errors.New("discovery already ran")
	ErrInvalidDomainTable = errors.New("invalid domain table")

	// Wiring errors
	ErrNamespaceNotFound   = errors.New("extension namespace not found")
	ErrContractUnavailable = errors.New("contract type unavailable")

	// Candidate errors
	ErrCandidateTimeout = errors.New("candidate timed out")
	ErrNotConfigured    = errors.New("provider not configured")
)

// Error kinds reported in DiscoveryError.Kind.
const (
	KindScanFailure      = "scan_failure"
	KindImportFailure    = "import_failure"
	KindProbeFailure     = "probe_failure"
	KindConstructFailure = "construct_failure"
	KindContractFailure  = "contract_failure"
)

// DiscoveryError describes one isolated failure during discovery. Discover
// never returns it; it is handed to the logger and the observer.
type DiscoveryError struct {
	Op       string // e.g. "registry.import"
	Kind     string // one of the Kind constants
	Domain   string
	Module   string
	Provider string
	Err      error
}

func (e *DiscoveryError) Error() string {
	subject := e.Domain
	switch {
	case e.Provider != "":
		subject = e.Domain + "/" + e.Provider
	case e.Module != "":
		subject = e.Module
	}
	if subject != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Op, subject, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// PanicError is a recovered panic from contributed code.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsCandidateFailure reports whether err came from a single module or
// candidate and was therefore isolated.
func IsCandidateFailure(err error) bool {
	var de *DiscoveryError
	if !errors.As(err, &de) {
		return false
	}
	switch de.Kind {
	case KindImportFailure, KindProbeFailure, KindConstructFailure:
		return true
	}
	return false
}

// IsWiringError reports whether err points at a defect in the host's own
// wiring rather than at a contributed extension.
func IsWiringError(err error) bool {
	return errors.Is(err, ErrInvalidDomainTable) ||
		errors.Is(err, ErrNamespaceNotFound) ||
		errors.Is(err, ErrContractUnavailable)
}

// newDiscoveryError builds the error for a failure of the given kind while
// processing the subject of e. Op is derived from the kind, so
// KindProbeFailure gives "registry.probe".
func newDiscoveryError(kind string, e Event, err error) *DiscoveryError {
	return &DiscoveryError{
		Op:       "registry." + strings.TrimSuffix(kind, "_failure"),
		Kind:     kind,
		Domain:   e.Domain,
		Module:   e.Module,
		Provider: e.Provider,
		Err:      err,
	}
}
