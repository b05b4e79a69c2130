package proc

import (
	"sync"
	"time"
)

// Manager tracks started processes and can stop them all on cleanup.
type Manager struct {
	mu    sync.Mutex
	procs []*Process
}

func NewManager() *Manager { return &Manager{} }

// Track registers a process for later cleanup.
func (m *Manager) Track(p *Process) {
	m.mu.Lock()
	m.procs = append(m.procs, p)
	m.mu.Unlock()
}

// StopAll terminates all tracked processes, most recent first. It proceeds
// best-effort and returns the first error encountered.
func (m *Manager) StopAll(grace time.Duration) error {
	m.mu.Lock()
	procs := append([]*Process(nil), m.procs...)
	m.procs = nil
	m.mu.Unlock()
	var first error
	for i := len(procs) - 1; i >= 0; i-- {
		if procs[i] == nil {
			continue
		}
		if err := procs[i].Stop(grace); err != nil && first == nil {
			first = err
		}
	}
	return first
}
