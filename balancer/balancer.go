// Package balancer selects agents for a capability using a pluggable
// strategy. Candidates come from the registry's capability index, which
// already excludes offline agents and preserves registration order.
package balancer

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/vinayprograms/coordkit/registry"
)

// Common errors.
var (
	ErrNoAgents        = errors.New("no agents available for capability")
	ErrUnknownStrategy = errors.New("unknown balancing strategy")
)

// Strategy names a selection algorithm.
type Strategy string

const (
	// LeastLoad picks the candidate with the lowest load; ties go to the
	// earliest-registered agent.
	LeastLoad Strategy = "least-load"

	// RoundRobin cycles through candidates with a per-capability cursor.
	RoundRobin Strategy = "round-robin"

	// Random picks a candidate uniformly.
	Random Strategy = "random"
)

// Valid returns true if the strategy is a known value.
func (s Strategy) Valid() bool {
	switch s {
	case LeastLoad, RoundRobin, Random:
		return true
	default:
		return false
	}
}

// Balancer wraps a registry with strategy-based agent selection.
type Balancer struct {
	mu       sync.Mutex
	registry *registry.Registry
	strategy Strategy

	// Round-robin cursors per capability. They persist across calls and
	// across strategy changes; switching strategies and back resumes the
	// cycle where it left off.
	cursors map[string]int
}

// New creates a balancer over the given registry. An empty strategy
// defaults to LeastLoad.
func New(reg *registry.Registry, strategy Strategy) (*Balancer, error) {
	if strategy == "" {
		strategy = LeastLoad
	}
	if !strategy.Valid() {
		return nil, ErrUnknownStrategy
	}

	return &Balancer{
		registry: reg,
		strategy: strategy,
		cursors:  make(map[string]int),
	}, nil
}

// SetStrategy swaps the algorithm for all subsequent Select calls.
// Round-robin cursors are not reset.
func (b *Balancer) SetStrategy(strategy Strategy) error {
	if !strategy.Valid() {
		return ErrUnknownStrategy
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.strategy = strategy
	return nil
}

// Strategy returns the current strategy.
func (b *Balancer) Strategy() Strategy {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.strategy
}

// Select picks one agent among those advertising the capability.
// Returns ErrNoAgents if no candidate is available.
func (b *Balancer) Select(capability string) (*registry.AgentInfo, error) {
	candidates := b.registry.FindByCapability(capability)
	if len(candidates) == 0 {
		return nil, ErrNoAgents
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var pick registry.AgentInfo
	switch b.strategy {
	case RoundRobin:
		cursor := b.cursors[capability]
		pick = candidates[cursor%len(candidates)]
		b.cursors[capability] = cursor + 1
	case Random:
		pick = candidates[rand.Intn(len(candidates))]
	default: // LeastLoad
		pick = candidates[0]
		for _, c := range candidates[1:] {
			if c.Load < pick.Load {
				pick = c
			}
		}
	}

	return &pick, nil
}
