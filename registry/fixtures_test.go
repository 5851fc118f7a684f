package registry

import (
	"errors"
	"fmt"
	"sync"
)

type financeProvider interface {
	Provider
	Revenue() int
}

type adsProvider interface {
	Provider
	Spend() int
}

type stubProvider struct {
	name string
}

func (s *stubProvider) Name() string        { return s.name }
func (s *stubProvider) DisplayName() string { return "Stub " + s.name }
func (s *stubProvider) Revenue() int        { return 100 }
func (s *stubProvider) Spend() int          { return 42 }

// ready builds a candidate whose probe returns configured.
func ready[T Provider](name string, configured bool, build func(string) T) Candidate[T] {
	return Candidate[T]{
		Name:         name,
		DisplayName:  name,
		IsConfigured: func() bool { return configured },
		New:          func() (T, error) { return build(name), nil },
	}
}

func newFinance(name string) financeProvider { return &stubProvider{name: name} }
func newAds(name string) adsProvider         { return &stubProvider{name: name} }

func failing[T Provider](name string) Candidate[T] {
	return Candidate[T]{
		Name:         name,
		IsConfigured: func() bool { return true },
		New: func() (T, error) {
			var zero T
			return zero, errors.New("constructor exploded")
		},
	}
}

func module(id string, symbols ...any) Module {
	return Module{ID: id, Load: func() ([]any, error) { return symbols, nil }}
}

func brokenModule(id string) Module {
	return Module{ID: id, Load: func() ([]any, error) {
		panic(fmt.Sprintf("import of %s failed", id))
	}}
}

// recordingObserver collects events for assertions.
type recordingObserver struct {
	mu     sync.Mutex
	events []Event
}

func (o *recordingObserver) Observe(e Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func (o *recordingObserver) outcomes(domain string) []Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []Outcome
	for _, e := range o.events {
		if e.Domain == domain {
			out = append(out, e.Outcome)
		}
	}
	return out
}

// recordingLogger keeps log lines per level.
type recordingLogger struct {
	mu    sync.Mutex
	lines []logLine
}

type logLine struct {
	level  string
	msg    string
	fields map[string]interface{}
}

func (l *recordingLogger) log(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, logLine{level: level, msg: msg, fields: fields})
}

func (l *recordingLogger) Info(msg string, f map[string]interface{})  { l.log("info", msg, f) }
func (l *recordingLogger) Warn(msg string, f map[string]interface{})  { l.log("warn", msg, f) }
func (l *recordingLogger) Error(msg string, f map[string]interface{}) { l.log("error", msg, f) }
func (l *recordingLogger) Debug(msg string, f map[string]interface{}) { l.log("debug", msg, f) }

func (l *recordingLogger) byLevel(level string) []logLine {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logLine
	for _, line := range l.lines {
		if line.level == level {
			out = append(out, line)
		}
	}
	return out
}

func testTable() Table {
	return Table{
		Bind[financeProvider]("finance", "test/finance"),
		Bind[adsProvider]("ads", "test/ads"),
	}
}
