package audit

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	rec     Record
	cancel  context.CancelFunc
	created time.Time
	updated time.Time
}

// Registry maps audit ids to their current Record. Safe for concurrent use.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*entry
	now  func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*entry),
		now:  time.Now,
	}
}

// Put upserts rec under id. A completed record drops the stored cancel func.
func (r *Registry) Put(id string, rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	e, ok := r.jobs[id]
	if !ok {
		e = &entry{created: now}
		r.jobs[id] = e
	}
	e.rec = rec
	e.updated = now
	if rec.Completed() {
		e.cancel = nil
	}
}

// Insert adds rec under id only if id is free.
func (r *Registry) Insert(id string, rec Record, cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; ok {
		return false
	}
	now := r.now()
	r.jobs[id] = &entry{rec: rec, cancel: cancel, created: now, updated: now}
	return true
}

func (r *Registry) Get(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return Record{}, false
	}
	return e.rec, true
}

func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()
}

// Take returns the record for id and evicts it when it is completed without
// error, so a successful result is handed out at most once. Failed records
// stay until swept.
func (r *Registry) Take(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return Record{}, false
	}
	if e.rec.Succeeded() {
		delete(r.jobs, id)
	}
	return e.rec, true
}

// Cancel fires the cancel func of a running audit. The record itself is
// completed later by the audit goroutine.
func (r *Registry) Cancel(id string) (found, running bool) {
	r.mu.Lock()
	e, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return false, false
	}
	cancel := e.cancel
	running = e.rec.Status == StatusRunning
	r.mu.Unlock()

	if running && cancel != nil {
		cancel()
	}
	return true, running
}

// CancelAll fires every stored cancel func and returns how many it fired.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	var cancels []context.CancelFunc
	for _, e := range r.jobs {
		if e.cancel != nil && e.rec.Status == StatusRunning {
			cancels = append(cancels, e.cancel)
		}
	}
	r.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	return len(cancels)
}

// Sweep removes completed records last updated more than ttl ago. Running
// records are never swept; their deadline completes them instead.
func (r *Registry) Sweep(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-ttl)
	n := 0
	for id, e := range r.jobs {
		if e.rec.Completed() && e.updated.Before(cutoff) {
			delete(r.jobs, id)
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
