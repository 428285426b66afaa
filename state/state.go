package state

import (
	"errors"
	"strings"
	"time"
)

// Common errors.
var (
	ErrNotFound      = errors.New("key not found")
	ErrClosed        = errors.New("store closed")
	ErrInvalidKey    = errors.New("invalid key")
	ErrInvalidOwner  = errors.New("invalid owner ID")
	ErrInvalidTTL    = errors.New("invalid TTL")
	ErrInvalidAccess = errors.New("invalid access level")
	ErrAccessDenied  = errors.New("access denied")
	ErrLockHeld      = errors.New("lock held by another owner")
	ErrLockNotHeld   = errors.New("lock not held")
)

// Access is the visibility level of an entry.
type Access string

const (
	// AccessPublic entries are readable and deletable by anyone.
	AccessPublic Access = "public"

	// AccessProtected entries are readable by anyone but deletable only
	// by their owner.
	AccessProtected Access = "protected"

	// AccessPrivate entries are readable and deletable only by their owner.
	AccessPrivate Access = "private"
)

// Valid returns true if the access level is a known value.
func (a Access) Valid() bool {
	switch a {
	case AccessPublic, AccessProtected, AccessPrivate:
		return true
	default:
		return false
	}
}

// DefaultLockTimeout is the lock expiry used when the caller passes none.
const DefaultLockTimeout = 30 * time.Second

// Options configures a Set call. The zero value means a public entry that
// never expires.
type Options struct {
	// TTL removes the entry automatically after this duration.
	// Zero means the entry never expires.
	TTL time.Duration

	// Access is the visibility level. Empty means public.
	Access Access
}

// Entry is a point-in-time snapshot of a stored value with its metadata.
type Entry struct {
	Key       string
	Value     []byte
	Owner     string
	Access    Access
	UpdatedAt time.Time
	TTL       time.Duration
}

// Operation represents the type of change to a key.
type Operation int

const (
	// OpPut indicates a key was created or updated.
	OpPut Operation = iota
	// OpDelete indicates a key was deleted (explicitly or by TTL expiry).
	OpDelete
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change is a watch notification for one key.
type Change struct {
	Key       string
	Operation Operation
	Owner     string
	Access    Access
	At        time.Time
}

// Status summarizes the store contents.
type Status struct {
	// Entries is the number of live entries.
	Entries int

	// Locks is the number of live advisory locks.
	Locks int

	// ByAccess breaks the entry count down by visibility level.
	ByAccess map[Access]int
}

// ValidateKey checks if a key is valid.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if strings.Contains(key, " ") {
		return ErrInvalidKey
	}
	if len(key) > 1024 {
		return ErrInvalidKey
	}
	return nil
}

// MatchPattern checks if a key matches a watch pattern.
// Supports a trailing * wildcard (e.g., "scratch.*" matches "scratch.foo").
func MatchPattern(pattern, key string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(key, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == key
}
