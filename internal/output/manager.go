package output

import (
	"errors"
	"fmt"
)

// Sink is a destination for run lifecycle events.
type Sink interface {
	Write(e Event) error
	Close() error
}

// Manager fans events out to every registered sink. A nil Manager is valid
// and drops everything, so callers never need to guard emission sites.
type Manager struct {
	sinks []Sink
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) AddSink(s Sink) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	if s == nil {
		return fmt.Errorf("sink must not be nil")
	}
	m.sinks = append(m.sinks, s)
	return nil
}

func (m *Manager) Write(e Event) {
	if m == nil {
		return
	}
	for _, s := range m.sinks {
		// A broken sink must not disturb the scan; drop its error.
		_ = s.Write(e)
	}
}

func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing sinks: %w", errors.Join(errs...))
	}
	return nil
}
