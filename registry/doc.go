// Package registry provides agent registration and discovery.
//
// # Overview
//
// Agents self-register with capabilities, status, and load. Peers discover
// each other by capability name and route work to whoever is least loaded.
// The capability index preserves registration order; that order is the
// tie-break for BestAgent and the candidate order load-balancing
// strategies see.
//
// # Basic Usage
//
//	reg := registry.New(registry.Config{})
//	err := reg.Register(registry.AgentInfo{
//	    ID:   "agent-1",
//	    Name: "Code Review Agent",
//	    Capabilities: []registry.Capability{
//	        {Name: "code-review", Description: "reviews pull request diffs"},
//	    },
//	    Status: registry.StatusIdle,
//	    Load:   30,
//	})
//
// Discover by capability:
//
//	agents := reg.FindByCapability("code-review")
//	best, err := reg.BestAgent("code-review")
//
// Watch for changes:
//
//	events, _ := reg.Watch()
//	for event := range events {
//	    // added / updated / removed
//	}
//
// # Staleness
//
// With Config.StaleAfter set, agents whose LastSeen ages out are marked
// offline rather than removed: their profiles stay queryable and recover
// on the next UpdateStatus. Agents should refresh their registration
// periodically via UpdateStatus.
//
// # Capability Discovery Search
//
// Wiring a CapabilityIndex into Config.Search enables free-text search
// over capability names and descriptions:
//
//	idx, _ := registry.NewCapabilityIndex()
//	reg := registry.New(registry.Config{Search: idx})
//	matches, _ := reg.SearchCapabilities("review diffs", 5)
package registry
