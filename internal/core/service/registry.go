package service

import (
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"opdscore/internal/core/domain/models"
	"opdscore/internal/core/domain/ports"
)

var _ ports.StatusTracker = (*StatusRegistry)(nil)

// StatusListener is called after a status changes. current is nil when the
// status was cleared.
type StatusListener func(previous, current models.BookStatus)

// StatusRegistry holds the latest status of every tracked book. Writes to one
// book are serialized; different books update independently.
type StatusRegistry struct {
	statuses *xsync.MapOf[models.BookID, models.BookStatus]

	mu        sync.RWMutex
	listeners map[int]StatusListener
	nextID    int
}

func NewStatusRegistry() *StatusRegistry {
	return &StatusRegistry{
		statuses:  xsync.NewMapOf[models.BookID, models.BookStatus](),
		listeners: make(map[int]StatusListener),
	}
}

func (r *StatusRegistry) Get(id models.BookID) (models.BookStatus, bool) {
	return r.statuses.Load(id)
}

func (r *StatusRegistry) Len() int {
	return r.statuses.Size()
}

// Update stores s unless the current status for the same book outranks it.
// It reports whether s was stored.
func (r *StatusRegistry) Update(s models.BookStatus) bool {
	if s == nil {
		return false
	}

	var (
		previous models.BookStatus
		applied  bool
	)
	r.statuses.Compute(s.ID(), func(stored models.BookStatus, loaded bool) (models.BookStatus, bool) {
		if loaded {
			previous = stored
		}
		if !models.ShouldReplace(previous, s) {
			return stored, !loaded
		}
		applied = true
		return s, false
	})

	if applied {
		r.notify(previous, s)
	}
	return applied
}

// Force stores s regardless of priority. Returns, revocations and rollbacks
// use it to move a book back down the ordering.
func (r *StatusRegistry) Force(s models.BookStatus) {
	if s == nil {
		return
	}
	var previous models.BookStatus
	r.statuses.Compute(s.ID(), func(stored models.BookStatus, loaded bool) (models.BookStatus, bool) {
		if loaded {
			previous = stored
		}
		return s, false
	})
	r.notify(previous, s)
}

// Clear forgets the status of id.
func (r *StatusRegistry) Clear(id models.BookID) {
	previous, loaded := r.statuses.LoadAndDelete(id)
	if loaded {
		r.notify(previous, nil)
	}
}

// Snapshot returns every status ordered by book id.
func (r *StatusRegistry) Snapshot() []models.BookStatus {
	out := make([]models.BookStatus, 0, r.statuses.Size())
	r.statuses.Range(func(_ models.BookID, s models.BookStatus) bool {
		out = append(out, s)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Restore replaces the registry contents with statuses without notifying
// listeners. Later entries for the same book win.
func (r *StatusRegistry) Restore(statuses []models.BookStatus) {
	r.statuses.Clear()
	for _, s := range statuses {
		if s != nil {
			r.statuses.Store(s.ID(), s)
		}
	}
}

// Subscribe registers l and returns a function that removes it.
func (r *StatusRegistry) Subscribe(l StatusListener) (cancel func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = l
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.listeners, id)
			r.mu.Unlock()
		})
	}
}

func (r *StatusRegistry) notify(previous, current models.BookStatus) {
	r.mu.RLock()
	listeners := make([]StatusListener, 0, len(r.listeners))
	for _, l := range r.listeners {
		listeners = append(listeners, l)
	}
	r.mu.RUnlock()

	for _, l := range listeners {
		l(previous, current)
	}
}
