package bym

import "sync"

// StrikeRegistry counts suspected role-override attempts per user. Counts are
// always positive; a user without an entry has zero strikes. It is safe for
// concurrent use and may be shared by several engines.
type StrikeRegistry struct {
	mu     sync.Mutex
	counts map[int64]int
}

// NewStrikeRegistry returns an empty registry.
func NewStrikeRegistry() *StrikeRegistry {
	return &StrikeRegistry{counts: make(map[int64]int)}
}

// Strike records one offence and returns the new count.
func (r *StrikeRegistry) Strike(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[userID]++
	return r.counts[userID]
}

// Decay lowers the count by one, dropping the entry when it reaches zero.
func (r *StrikeRegistry) Decay(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.counts[userID]
	if !ok {
		return 0
	}
	n--
	if n <= 0 {
		delete(r.counts, userID)
		return 0
	}
	r.counts[userID] = n
	return n
}

// Count returns the current strikes of userID.
func (r *StrikeRegistry) Count(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[userID]
}

// Has reports whether userID has an entry.
func (r *StrikeRegistry) Has(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.counts[userID]
	return ok
}

// Snapshot copies the registry.
func (r *StrikeRegistry) Snapshot() map[int64]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

// Reset clears every entry and returns how many were removed.
func (r *StrikeRegistry) Reset() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.counts)
	r.counts = make(map[int64]int)
	return n
}
