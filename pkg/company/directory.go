package company

import (
	"errors"
	"sort"
	"sync"

	"github.com/sojinmm/lux-sub007/pkg/runner"
	"github.com/sojinmm/lux-sub007/pkg/signal"
)

// ErrAgentNotFound is returned when a dispatch targets an unknown agent.
var ErrAgentNotFound = errors.New("agent not found in directory")

// Directory maps agent identities to their runners and routes signals
// between coordinators and members. It implements Dispatcher.
type Directory struct {
	agents map[string]*runner.Runner
	mu     sync.RWMutex
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{agents: make(map[string]*runner.Runner)}
}

// Add registers a runner under its agent id, replacing any prior entry.
func (d *Directory) Add(r *runner.Runner) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.agents[r.ID()] = r
}

// Remove drops the agent from the directory. Unknown ids are a no-op.
func (d *Directory) Remove(agentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.agents, agentID)
}

// Lookup returns the runner bound to an agent id.
func (d *Directory) Lookup(agentID string) (*runner.Runner, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.agents[agentID]
	return r, ok
}

// IDs returns the registered agent ids in sorted order.
func (d *Directory) IDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.agents))
	for id := range d.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dispatch delivers a signal to the named agent's mailbox.
func (d *Directory) Dispatch(agentID string, sig signal.Signal) error {
	r, ok := d.Lookup(agentID)
	if !ok {
		return ErrAgentNotFound
	}
	return r.Deliver(sig)
}
