package inject

import (
	"fmt"
	"sync"
	"time"
)

type MockCapability struct {
	mu       sync.Mutex
	Events   []KeyEvent
	Modes    []Mode
	Fail     bool
	Panic    bool
	Clock    Clock
	MaxAge   time.Duration
	Attempts int
}

func (m *MockCapability) Inject(ev KeyEvent, mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Attempts++
	if m.Panic {
		panic("mock capability exploded")
	}
	if m.Fail {
		return fmt.Errorf("mock injection rejected")
	}
	if m.Clock != nil && m.MaxAge > 0 {
		if age := ev.Age(m.Clock.Now()); age > m.MaxAge {
			return fmt.Errorf("%w: %s old", ErrStaleEvent, age)
		}
	}
	m.Events = append(m.Events, ev)
	m.Modes = append(m.Modes, mode)
	return nil
}

// Ensure MockCapability satisfies the Capability interface
var _ Capability = &MockCapability{}

type MockClock struct {
	mu      sync.Mutex
	Current time.Duration
}

func (m *MockClock) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Current
}

func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Current += d
}
