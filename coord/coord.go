// Package coord is the composition root for one coordination domain. It
// owns one instance of each component, wires them together, and forwards a
// curated event stream for observability. Multiple isolated domains can
// coexist in a single process; nothing here is package-level state.
package coord

import (
	"sync"
	"sync/atomic"

	"github.com/vinayprograms/coordkit/balancer"
	"github.com/vinayprograms/coordkit/bus"
	"github.com/vinayprograms/coordkit/handoff"
	"github.com/vinayprograms/coordkit/logging"
	"github.com/vinayprograms/coordkit/registry"
	"github.com/vinayprograms/coordkit/state"
)

// statusHistoryLimit bounds the bus snapshot in Status.
const statusHistoryLimit = 10

// EventSource identifies which component produced a facade event.
type EventSource string

const (
	SourceRegistry EventSource = "registry"
	SourceMemory   EventSource = "memory"
)

// Event is a curated component event forwarded by the facade. Exactly one
// of Registry or Memory is set, matching Source.
type Event struct {
	Source   EventSource
	Registry *registry.Event
	Memory   *state.Change
}

// CoordinatorStatus aggregates component status for observability tooling.
type CoordinatorStatus struct {
	// Agents is the number of registered agents.
	Agents int

	// Strategy is the current load-balancing strategy.
	Strategy balancer.Strategy

	// RecentMessages is a bounded snapshot of the newest bus traffic.
	RecentMessages []bus.Message

	// Memory summarizes the shared memory store.
	Memory state.Status
}

// Coordinator owns one coordination domain: a bus, a registry, a load
// balancer, a handoff manager, and a shared memory store.
type Coordinator struct {
	cfg Config
	log *logging.Logger

	bus      *bus.Bus
	registry *registry.Registry
	balancer *balancer.Balancer
	handoffs *handoff.Manager
	memory   *state.Store

	events chan Event
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New builds a coordination domain from the given configuration.
func New(cfg Config) (*Coordinator, error) {
	def := DefaultConfig()
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = def.HistoryCapacity
	}
	if cfg.LockTimeoutMS <= 0 {
		cfg.LockTimeoutMS = def.LockTimeoutMS
	}
	if cfg.SweepIntervalMS <= 0 {
		cfg.SweepIntervalMS = def.SweepIntervalMS
	}
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}

	logger := logging.New()
	if cfg.LogLevel != "" {
		logger.SetLevel(logging.Level(cfg.LogLevel))
	}

	var search *registry.CapabilityIndex
	if cfg.EnableSearch {
		idx, err := registry.NewCapabilityIndex()
		if err != nil {
			return nil, err
		}
		search = idx
	}

	b := bus.New(bus.Config{
		HistoryCapacity: cfg.HistoryCapacity,
		Logger:          logger,
	})
	reg := registry.New(registry.Config{
		StaleAfter: cfg.staleAfter(),
		Search:     search,
		Logger:     logger,
	})
	bal, err := balancer.New(reg, balancer.Strategy(cfg.Strategy))
	if err != nil {
		reg.Close()
		b.Close()
		return nil, err
	}
	mem := state.NewStore(state.Config{
		SweepInterval:      cfg.sweepInterval(),
		DefaultLockTimeout: cfg.lockTimeout(),
		Logger:             logger,
	})

	c := &Coordinator{
		cfg:      cfg,
		log:      logger.WithComponent("coord"),
		bus:      b,
		registry: reg,
		balancer: bal,
		handoffs: handoff.NewManager(b, handoff.WithLogger(logger)),
		memory:   mem,
		events:   make(chan Event, 128),
	}

	regEvents, _ := reg.Watch()
	memChanges, _ := mem.Watch("*")
	c.wg.Add(2)
	go c.forwardRegistry(regEvents)
	go c.forwardMemory(memChanges)
	go func() {
		c.wg.Wait()
		close(c.events)
	}()

	return c, nil
}

// forwardRegistry relays registry events until the registry closes.
func (c *Coordinator) forwardRegistry(in <-chan registry.Event) {
	defer c.wg.Done()
	for ev := range in {
		e := ev
		select {
		case c.events <- Event{Source: SourceRegistry, Registry: &e}:
		default:
			// Consumer lagging, drop
		}
	}
}

// forwardMemory relays shared-memory changes until the store closes.
func (c *Coordinator) forwardMemory(in <-chan *state.Change) {
	defer c.wg.Done()
	for change := range in {
		select {
		case c.events <- Event{Source: SourceMemory, Memory: change}:
		default:
			// Consumer lagging, drop
		}
	}
}

// Bus returns the message bus.
func (c *Coordinator) Bus() *bus.Bus { return c.bus }

// Registry returns the agent registry.
func (c *Coordinator) Registry() *registry.Registry { return c.registry }

// Balancer returns the load balancer.
func (c *Coordinator) Balancer() *balancer.Balancer { return c.balancer }

// Handoffs returns the handoff manager.
func (c *Coordinator) Handoffs() *handoff.Manager { return c.handoffs }

// Memory returns the shared memory store.
func (c *Coordinator) Memory() *state.Store { return c.memory }

// Events returns the curated event stream. The channel closes when the
// coordinator closes. Events are dropped rather than blocking components
// when the consumer lags.
func (c *Coordinator) Events() <-chan Event { return c.events }

// Status aggregates agent count, a bounded bus history snapshot, and
// shared-memory status.
func (c *Coordinator) Status() CoordinatorStatus {
	return CoordinatorStatus{
		Agents:         c.registry.Len(),
		Strategy:       c.balancer.Strategy(),
		RecentMessages: c.bus.Recent(statusHistoryLimit),
		Memory:         c.memory.GetStatus(),
	}
}

// Close shuts the domain down in reverse dependency order.
func (c *Coordinator) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.handoffs.Close()
	c.memory.Close()
	c.registry.Close()
	c.bus.Close()

	c.log.Debug("coordinator_closed")
	return nil
}
