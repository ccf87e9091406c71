// Package ratelimit implements a fixed-window rate governor with a cooldown
// lockout.
//
// Each key accumulates request timestamps inside a trailing window; a key
// that reaches the threshold is blocked for a configured duration,
// independent of window decay. This is deliberately not a token bucket and
// not a sliding log: once blocked, a key is rejected unconditionally until
// the deadline passes, and afterwards its record behaves as freshly created.
//
// One Limiter type serves every scope; specializations differ only in how
// the lookup key is derived (see RouteKey, CredentialKey; connection scopes
// use the connection ID directly) and in their default thresholds.
package ratelimit

import "time"

// Default thresholds for the connection-scoped governor.
const (
	DefaultMaxRequests   = 100
	DefaultWindow        = 60 * time.Second
	DefaultBlockDuration = 300 * time.Second
)

// Config carries the governor thresholds. Window and BlockDuration are
// independent: the block outlives the window when configured that way.
type Config struct {
	MaxRequests   int
	Window        time.Duration
	BlockDuration time.Duration
}

// DefaultConfig returns the connection-scoped defaults.
func DefaultConfig() Config {
	return Config{
		MaxRequests:   DefaultMaxRequests,
		Window:        DefaultWindow,
		BlockDuration: DefaultBlockDuration,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxRequests <= 0 {
		c.MaxRequests = DefaultMaxRequests
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.BlockDuration <= 0 {
		c.BlockDuration = DefaultBlockDuration
	}
	return c
}

// record holds one key's window entries and block deadline.
type record struct {
	hits         []time.Time
	blockedUntil time.Time
}

func (r *record) prune(cutoff time.Time) {
	keep := 0
	for _, t := range r.hits {
		if t.After(cutoff) {
			r.hits[keep] = t
			keep++
		}
	}
	r.hits = r.hits[:keep]
}

func (r *record) countSince(cutoff time.Time) int {
	n := 0
	for _, t := range r.hits {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

// Stats aggregates a limiter's counters for the statistics surface.
type Stats struct {
	ActiveKeys    int
	BlockedKeys   int
	TotalAllowed  uint64
	TotalRejected uint64
	Limit         Config
}

// Limiter is the governor. It is not safe for concurrent use: it belongs to
// whichever single goroutine drives admissions (the server event loop, a
// load-test run).
type Limiter struct {
	cfg     Config
	records map[string]*record
	now     func() time.Time

	totalAllowed  uint64
	totalRejected uint64
}

// New returns a Limiter using cfg; zero fields fall back to the
// connection-scoped defaults.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg.withDefaults(),
		records: make(map[string]*record),
		now:     time.Now,
	}
}

// CheckAndHit admits or rejects one request for key, mutating the window.
//
// Check order matters for the block semantics: an unexpired block rejects
// without touching the window; an expired block clears the record; then
// entries older than the window are pruned; a count at the threshold sets
// the block deadline and rejects; otherwise the hit is recorded and
// admitted.
func (l *Limiter) CheckAndHit(key string) bool {
	now := l.now()
	r := l.records[key]
	if r == nil {
		r = &record{}
		l.records[key] = r
	}

	if !r.blockedUntil.IsZero() {
		if now.Before(r.blockedUntil) {
			l.totalRejected++
			return false
		}
		// Elapsed block: the record starts over.
		r.hits = r.hits[:0]
		r.blockedUntil = time.Time{}
	}

	r.prune(now.Add(-l.cfg.Window))

	if len(r.hits) >= l.cfg.MaxRequests {
		r.blockedUntil = now.Add(l.cfg.BlockDuration)
		l.totalRejected++
		return false
	}

	r.hits = append(r.hits, now)
	l.totalAllowed++
	return true
}

// IsAllowed reports whether a request for key would currently be admitted.
// Pure query: no window mutation, no counter movement.
func (l *Limiter) IsAllowed(key string) bool {
	now := l.now()
	r := l.records[key]
	if r == nil {
		return true
	}
	if !r.blockedUntil.IsZero() {
		// Unexpired block rejects; an elapsed one means a fresh record.
		return !now.Before(r.blockedUntil)
	}
	return r.countSince(now.Add(-l.cfg.Window)) < l.cfg.MaxRequests
}

// Remaining reports how many requests key may still make in the current
// window: max(0, MaxRequests - in-window count). A key whose block has
// elapsed reports the full quota.
func (l *Limiter) Remaining(key string) int {
	now := l.now()
	r := l.records[key]
	if r == nil {
		return l.cfg.MaxRequests
	}
	if !r.blockedUntil.IsZero() && !now.Before(r.blockedUntil) {
		return l.cfg.MaxRequests
	}
	remaining := l.cfg.MaxRequests - r.countSince(now.Add(-l.cfg.Window))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// BlockedUntil returns key's block deadline, or the zero time when no block
// is in effect.
func (l *Limiter) BlockedUntil(key string) time.Time {
	r := l.records[key]
	if r == nil || r.blockedUntil.IsZero() || !l.now().Before(r.blockedUntil) {
		return time.Time{}
	}
	return r.blockedUntil
}

// Reset drops key's window and block deadline, as on disconnect or by
// administrative request.
func (l *Limiter) Reset(key string) {
	delete(l.records, key)
}

// ResetAll drops every record.
func (l *Limiter) ResetAll() {
	l.records = make(map[string]*record)
}

// SetConfig swaps the thresholds and resets all records; windows accumulated
// under the old thresholds mean nothing under the new ones.
func (l *Limiter) SetConfig(cfg Config) {
	l.cfg = cfg.withDefaults()
	l.ResetAll()
}

// Limits returns the active thresholds.
func (l *Limiter) Limits() Config {
	return l.cfg
}

// Stats returns the aggregate counters.
func (l *Limiter) Stats() Stats {
	now := l.now()
	blocked := 0
	for _, r := range l.records {
		if !r.blockedUntil.IsZero() && now.Before(r.blockedUntil) {
			blocked++
		}
	}
	return Stats{
		ActiveKeys:    len(l.records),
		BlockedKeys:   blocked,
		TotalAllowed:  l.totalAllowed,
		TotalRejected: l.totalRejected,
		Limit:         l.cfg,
	}
}
