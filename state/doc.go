// Package state provides the shared memory store for in-process agents:
// keyed opaque values with per-key ownership, visibility levels, TTL
// expiry, and advisory locks.
//
// # Visibility
//
//   - public: anyone may read, list, and delete
//   - protected: anyone may read by key; only the owner may delete or list
//   - private: only the owner may read, list, or delete
//
// Writes are ungated: any caller may overwrite any key. Denied reads and
// deletes return sentinel errors and leave a warn-level audit record.
//
// # Advisory locks
//
// Lock/Unlock maintain a parallel table of key -> owner with an
// independent expiry. Holding a lock is a cooperative signal; the store
// never blocks Set, Get, or Delete on lock state. Agents that want mutual
// exclusion must agree to take the lock before mutating:
//
//	if err := store.Lock("plan", myID, 0); err == nil {
//	    defer store.Unlock("plan", myID)
//	    // read-modify-write "plan"
//	}
//
// A lock expires on its own after its timeout, so a crashed holder cannot
// wedge a key forever.
//
// # Expiry
//
// TTLs are absolute deadlines recorded on the entry, enforced lazily on
// every access and reaped by a background sweeper. There are no per-write
// timers: overwriting a key with a new TTL (or none) simply replaces the
// deadline, and nothing stale can delete the new value.
package state
