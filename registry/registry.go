package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/vinayprograms/coordkit/logging"
)

// Common errors.
var (
	ErrNotFound          = errors.New("agent not found")
	ErrClosed            = errors.New("registry closed")
	ErrInvalidID         = errors.New("invalid agent ID")
	ErrInvalidLoad       = errors.New("load must be between 0 and 100")
	ErrInvalidStatus     = errors.New("invalid agent status")
	ErrInvalidCapability = errors.New("invalid capability")
)

// Status represents an agent's operational state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// Valid returns true if the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusBusy, StatusOffline:
		return true
	default:
		return false
	}
}

// Available returns true if agents in this state can take work.
func (s Status) Available() bool {
	return s == StatusIdle || s == StatusBusy
}

// AgentInfo contains registration information for an agent.
type AgentInfo struct {
	// ID uniquely identifies the agent.
	ID string

	// Name is a human-readable name for the agent.
	Name string

	// Type classifies the agent (e.g., "worker", "orchestrator").
	Type string

	// Capabilities lists what the agent can do.
	Capabilities []Capability

	// Status is the agent's current operational state.
	Status Status

	// Load is the agent's current load (0-100).
	Load int

	// LastSeen is when the agent last updated its registration.
	LastSeen time.Time

	// Metadata contains additional key-value pairs.
	Metadata map[string]string
}

// clone returns a deep enough copy that callers cannot mutate registry state.
func (a AgentInfo) clone() AgentInfo {
	out := a
	if a.Capabilities != nil {
		out.Capabilities = make([]Capability, len(a.Capabilities))
		copy(out.Capabilities, a.Capabilities)
	}
	if a.Metadata != nil {
		out.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// ValidateAgentInfo checks if agent info is valid.
func ValidateAgentInfo(info AgentInfo) error {
	if info.ID == "" {
		return ErrInvalidID
	}
	if info.Load < 0 || info.Load > 100 {
		return ErrInvalidLoad
	}
	if info.Status != "" && !info.Status.Valid() {
		return ErrInvalidStatus
	}
	for _, c := range info.Capabilities {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// EventType represents the type of registry event.
type EventType string

const (
	EventAdded   EventType = "added"
	EventUpdated EventType = "updated"
	EventRemoved EventType = "removed"
)

// Event represents a change in the registry.
type Event struct {
	// Type indicates what happened.
	Type EventType

	// Agent contains the agent information.
	// For removal events, this contains the last known state.
	Agent AgentInfo
}

// Config configures the registry.
type Config struct {
	// StaleAfter marks agents offline when LastSeen ages past this.
	// Zero means agents never go stale.
	StaleAfter time.Duration

	// Search optionally indexes capability descriptions for discovery.
	Search *CapabilityIndex

	// Logger for lifecycle events. Default: a new logger.
	Logger *logging.Logger
}

// Registry tracks agent profiles and indexes them by capability name.
//
// The capability index preserves registration order, which is the
// tie-break order for BestAgent and the candidate order handed to load
// balancing strategies.
type Registry struct {
	mu       sync.RWMutex
	agents   map[string]AgentInfo
	capIndex map[string][]string
	watchers []chan Event
	search   *CapabilityIndex
	log      *logging.Logger
	closed   bool

	staleAfter time.Duration
	done       chan struct{}
}

// New creates a new registry.
func New(cfg Config) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}

	r := &Registry{
		agents:     make(map[string]AgentInfo),
		capIndex:   make(map[string][]string),
		search:     cfg.Search,
		log:        cfg.Logger.WithComponent("registry"),
		staleAfter: cfg.StaleAfter,
		done:       make(chan struct{}),
	}

	if cfg.StaleAfter > 0 {
		go r.staleLoop()
	}

	return r
}

// Register stores or overwrites the profile by ID and indexes it under
// every capability name it declares. LastSeen is stamped on entry.
func (r *Registry) Register(info AgentInfo) error {
	if err := ValidateAgentInfo(info); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	if info.Status == "" {
		info.Status = StatusIdle
	}
	info.LastSeen = time.Now()
	info = info.clone()

	prev, exists := r.agents[info.ID]
	if exists {
		r.unindex(prev)
	}

	r.agents[info.ID] = info
	for _, c := range info.Capabilities {
		r.capIndex[c.Name] = append(r.capIndex[c.Name], info.ID)
	}

	if r.search != nil {
		if exists {
			r.search.removeAgent(prev)
		}
		if err := r.search.indexAgent(info); err != nil {
			r.log.Warn("capability_index_failed", map[string]interface{}{
				"agent": info.ID,
				"error": err.Error(),
			})
		}
	}

	eventType := EventAdded
	if exists {
		eventType = EventUpdated
	}
	r.notifyWatchers(Event{Type: eventType, Agent: info.clone()})

	return nil
}

// Deregister removes the profile and every capability index entry for it.
// Returns ErrNotFound if the agent is unknown; the registry is unchanged.
func (r *Registry) Deregister(id string) error {
	if id == "" {
		return ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	agent, exists := r.agents[id]
	if !exists {
		return ErrNotFound
	}

	delete(r.agents, id)
	r.unindex(agent)
	if r.search != nil {
		r.search.removeAgent(agent)
	}
	r.notifyWatchers(Event{Type: EventRemoved, Agent: agent})

	return nil
}

// unindex removes the agent's capability index entries.
// Must be called with lock held.
func (r *Registry) unindex(agent AgentInfo) {
	for _, c := range agent.Capabilities {
		ids := r.capIndex[c.Name]
		for i, cid := range ids {
			if cid == agent.ID {
				r.capIndex[c.Name] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		if len(r.capIndex[c.Name]) == 0 {
			delete(r.capIndex, c.Name)
		}
	}
}

// UpdateStatus mutates status, load, and LastSeen in place. A negative
// load leaves the current load unchanged.
func (r *Registry) UpdateStatus(id string, status Status, load int) error {
	if id == "" {
		return ErrInvalidID
	}
	if !status.Valid() {
		return ErrInvalidStatus
	}
	if load > 100 {
		return ErrInvalidLoad
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	agent, exists := r.agents[id]
	if !exists {
		return ErrNotFound
	}

	agent.Status = status
	if load >= 0 {
		agent.Load = load
	}
	agent.LastSeen = time.Now()
	r.agents[id] = agent

	r.notifyWatchers(Event{Type: EventUpdated, Agent: agent.clone()})

	return nil
}

// FindByCapability returns the registered profiles indexed under name
// whose status is not offline, in registration order.
func (r *Registry) FindByCapability(name string) []AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []AgentInfo
	for _, id := range r.capIndex[name] {
		agent, ok := r.agents[id]
		if !ok || agent.Status == StatusOffline {
			continue
		}
		result = append(result, agent.clone())
	}
	return result
}

// BestAgent returns the available agent with the lowest load among those
// advertising the capability. Ties go to the earliest-registered agent.
// Returns ErrNotFound if no agent qualifies.
func (r *Registry) BestAgent(name string) (*AgentInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *AgentInfo
	for _, id := range r.capIndex[name] {
		agent, ok := r.agents[id]
		if !ok || !agent.Status.Available() {
			continue
		}
		if best == nil || agent.Load < best.Load {
			c := agent.clone()
			best = &c
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

// Get retrieves a specific agent by ID.
func (r *Registry) Get(id string) (*AgentInfo, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, exists := r.agents[id]
	if !exists {
		return nil, ErrNotFound
	}

	c := agent.clone()
	return &c, nil
}

// List returns all registered agents sorted by ID.
func (r *Registry) List() []AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]AgentInfo, 0, len(r.agents))
	for _, agent := range r.agents {
		result = append(result, agent.clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// SearchCapabilities queries the capability discovery index. Returns nil
// when the registry was built without one.
func (r *Registry) SearchCapabilities(query string, limit int) ([]CapabilityMatch, error) {
	if r.search == nil {
		return nil, nil
	}
	return r.search.Search(query, limit)
}

// Watch returns a channel of registry events.
// The channel is closed when the registry is closed.
// Multiple watchers are supported.
func (r *Registry) Watch() (<-chan Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	ch := make(chan Event, 64)
	r.watchers = append(r.watchers, ch)
	return ch, nil
}

// notifyWatchers sends an event to all watchers.
// Must be called with lock held.
func (r *Registry) notifyWatchers(event Event) {
	for _, ch := range r.watchers {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}
}

// staleLoop periodically marks agents offline when LastSeen ages out.
func (r *Registry) staleLoop() {
	ticker := time.NewTicker(r.staleAfter / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.markStale()
		case <-r.done:
			return
		}
	}
}

// markStale flips stale agents to offline. Profiles stay registered so
// they remain queryable and recover on the next UpdateStatus.
func (r *Registry) markStale() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	now := time.Now()
	for id, agent := range r.agents {
		if agent.Status == StatusOffline {
			continue
		}
		if now.Sub(agent.LastSeen) > r.staleAfter {
			agent.Status = StatusOffline
			r.agents[id] = agent
			r.log.Debug("agent_stale", map[string]interface{}{"agent": id})
			r.notifyWatchers(Event{Type: EventUpdated, Agent: agent.clone()})
		}
	}
}

// Close shuts down the registry and its watch channels.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	close(r.done)

	for _, ch := range r.watchers {
		close(ch)
	}
	r.watchers = nil

	if r.search != nil {
		r.search.Close()
	}

	return nil
}
