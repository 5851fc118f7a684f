package registry

import "time"

// Outcome is the result of processing one candidate, module or domain.
type Outcome string

const (
	OutcomeActivated       Outcome = "activated"
	OutcomeNotConfigured   Outcome = "not_configured"
	OutcomeProbeFailed     Outcome = "probe_failed"
	OutcomeConstructFailed Outcome = "construct_failed"
	OutcomeImportFailed    Outcome = "import_failed"
	OutcomeTimeout         Outcome = "timeout"
	OutcomeScanFailed      Outcome = "scan_failed"
	OutcomeContractFailed  Outcome = "contract_failed"
)

// Event is reported to the Observer once per outcome.
type Event struct {
	DiscoveryID string
	Domain      string
	Module      string
	Provider    string
	Outcome     Outcome
	Err         error
	Duration    time.Duration
}

// Observer receives discovery events. Implementations must not block;
// Observe is called synchronously from Discover.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

type noOpObserver struct{}

func (noOpObserver) Observe(Event) {}

// Logger is the structured logger the registry writes to.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

func (NoOpLogger) Info(string, map[string]interface{})  {}
func (NoOpLogger) Error(string, map[string]interface{}) {}
func (NoOpLogger) Warn(string, map[string]interface{})  {}
func (NoOpLogger) Debug(string, map[string]interface{}) {}
