// Package session keeps the graphs of recent reasoning runs in memory.
//
// A Registry is a bounded LRU with an idle TTL. Each Session carries its
// own mutex, so different sessions proceed in parallel while operations on
// one session are serialized through Registry.With. Sessions in use are
// never evicted, so the registry may exceed its capacity while runs are in
// flight.
package session

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HendryAvila/asrgot/internal/apperr"
	"github.com/HendryAvila/asrgot/internal/graph"
	"github.com/HendryAvila/asrgot/internal/pipeline"
	"github.com/HendryAvila/asrgot/internal/report"
)

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

// ─── Session ─────────────────────────────────────────────────────────────────

// Session is the state of one reasoning run. Fields are guarded by the
// session lock; access them only inside Registry.With.
type Session struct {
	ID        string
	Query     string
	Context   map[string]any
	CreatedAt time.Time

	Graph           *graph.Store
	Params          pipeline.Parameters
	Trace           []pipeline.TraceEntry
	Composition     *report.Composition
	Audit           *report.Audit
	FinalConfidence graph.Vector

	mu         sync.Mutex
	lastAccess time.Time
	inUse      int // guarded by Registry.mu
}

// Info is a lock-free snapshot used for listings.
type Info struct {
	ID         string    `json:"session_id"`
	Query      string    `json:"query"`
	CreatedAt  time.Time `json:"created_at"`
	LastAccess time.Time `json:"last_access"`
}

// ─── Registry ────────────────────────────────────────────────────────────────

// Eviction reasons passed to the eviction callback.
const (
	ReasonCapacity = "capacity"
	ReasonExpired  = "expired"
	ReasonClosed   = "closed"
)

// Registry holds live sessions.
type Registry struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List // front = most recently used
	items    map[string]*list.Element
	onEvict  func(id, reason string)
}

// Option configures a Registry.
type Option func(*Registry)

// WithCapacity bounds the number of live sessions. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithTTL expires sessions idle for longer than d. Zero disables expiry.
func WithTTL(d time.Duration) Option {
	return func(r *Registry) { r.ttl = d }
}

// WithEvictCallback registers fn to run after a session leaves the registry.
func WithEvictCallback(fn func(id, reason string)) Option {
	return func(r *Registry) { r.onEvict = fn }
}

// NewRegistry creates an empty Registry. The default capacity is 128 with
// a one hour TTL.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		capacity: 128,
		ttl:      time.Hour,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type eviction struct{ id, reason string }

// Create registers a new session with an empty graph and returns it. The
// least recently used idle session is evicted when the registry is full.
func (r *Registry) Create(query string, qctx map[string]any) *Session {
	return r.create(query, qctx, 0)
}

// Begin is Create for a session that stays in use, and therefore cannot
// be evicted, until it is passed to Release.
func (r *Registry) Begin(query string, qctx map[string]any) *Session {
	return r.create(query, qctx, 1)
}

// Release ends a use started by Begin.
func (r *Registry) Release(s *Session) {
	r.mu.Lock()
	if s.inUse > 0 {
		s.inUse--
	}
	r.mu.Unlock()
}

func (r *Registry) create(query string, qctx map[string]any, inUse int) *Session {
	now := timeNow()
	s := &Session{
		ID:         uuid.NewString(),
		Query:      query,
		Context:    qctx,
		CreatedAt:  now,
		Graph:      graph.NewStore(),
		lastAccess: now,
		inUse:      inUse,
	}

	r.mu.Lock()
	r.items[s.ID] = r.ll.PushFront(s)
	var evicted []eviction
	for el := r.ll.Back(); el != nil && r.ll.Len() > r.capacity; {
		prev := el.Prev()
		if old := el.Value.(*Session); old != s && old.inUse == 0 {
			r.removeLocked(old.ID)
			evicted = append(evicted, eviction{old.ID, ReasonCapacity})
		}
		el = prev
	}
	r.mu.Unlock()

	r.notify(evicted)
	return s
}

// Get returns the session with the given id and marks it as used. Unknown
// and expired ids yield a NotFound error.
func (r *Registry) Get(id string) (*Session, error) {
	return r.get(id, false)
}

// With runs fn while holding the session's lock. The session cannot be
// evicted while fn runs.
func (r *Registry) With(id string, fn func(*Session) error) error {
	s, err := r.get(id, true)
	if err != nil {
		return err
	}
	defer r.Release(s)
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s)
}

func (r *Registry) get(id string, use bool) (*Session, error) {
	r.mu.Lock()
	el, ok := r.items[id]
	if !ok {
		r.mu.Unlock()
		return nil, apperr.NotFound("session %q not found", id)
	}
	s := el.Value.(*Session)
	now := timeNow()
	if r.expired(s, now) {
		r.removeLocked(id)
		r.mu.Unlock()
		r.notify([]eviction{{id, ReasonExpired}})
		return nil, apperr.NotFound("session %q expired", id)
	}
	s.lastAccess = now
	if use {
		s.inUse++
	}
	r.ll.MoveToFront(el)
	r.mu.Unlock()
	return s, nil
}

// Destroy removes a session. It reports whether the session existed.
func (r *Registry) Destroy(id string) bool {
	r.mu.Lock()
	_, ok := r.items[id]
	if ok {
		r.removeLocked(id)
	}
	r.mu.Unlock()
	if ok {
		r.notify([]eviction{{id, ReasonClosed}})
	}
	return ok
}

// List returns snapshots of live sessions, most recently used first.
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Info, 0, r.ll.Len())
	for el := r.ll.Front(); el != nil; el = el.Next() {
		s := el.Value.(*Session)
		out = append(out, Info{ID: s.ID, Query: s.Query, CreatedAt: s.CreatedAt, LastAccess: s.lastAccess})
	}
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ll.Len()
}

// Sweep drops every expired session and returns how many were removed.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	now := timeNow()
	r.mu.Lock()
	var evicted []eviction
	for el := r.ll.Back(); el != nil; {
		prev := el.Prev()
		s := el.Value.(*Session)
		if s.inUse > 0 {
			el = prev
			continue
		}
		if !r.expired(s, now) {
			// everything closer to the front was used more recently
			break
		}
		r.removeLocked(s.ID)
		evicted = append(evicted, eviction{s.ID, ReasonExpired})
		el = prev
	}
	r.mu.Unlock()
	r.notify(evicted)
	return len(evicted)
}

// Start sweeps expired sessions every interval until ctx is done.
func (r *Registry) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}

func (r *Registry) expired(s *Session, now time.Time) bool {
	return r.ttl > 0 && s.inUse == 0 && now.Sub(s.lastAccess) > r.ttl
}

func (r *Registry) removeLocked(id string) {
	if el, ok := r.items[id]; ok {
		r.ll.Remove(el)
		delete(r.items, id)
	}
}

func (r *Registry) notify(evicted []eviction) {
	if r.onEvict == nil {
		return
	}
	for _, e := range evicted {
		r.onEvict(e.id, e.reason)
	}
}
