package roster

import (
	"sync"
	"time"

	"pollcast/pkg/types"
)

// Roster tracks connected students keyed by connection ID
// FUNCTIONAL DISCOVERY: Insertion order is kept separately from the lookup map
// so snapshots are deterministic for teachers and tests
type Roster struct {
	mu       sync.RWMutex
	students map[string]*types.Student
	order    []string
	now      func() time.Time
}

// New creates an empty roster
func New() *Roster {
	return &Roster{
		students: make(map[string]*types.Student),
		now:      time.Now,
	}
}

// Join inserts or replaces the entry for id and returns a copy of it.
// A replaced entry keeps its place in the snapshot order.
func (r *Roster) Join(id, name string) *types.Student {
	r.mu.Lock()
	defer r.mu.Unlock()

	student := &types.Student{
		ID:       id,
		Name:     name,
		JoinedAt: r.now(),
	}

	if _, exists := r.students[id]; !exists {
		r.order = append(r.order, id)
	}
	r.students[id] = student

	cp := *student
	return &cp
}

// Leave removes id and returns its prior record, or false if it was absent
func (r *Roster) Leave(id string) (*types.Student, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	student, exists := r.students[id]
	if !exists {
		return nil, false
	}

	delete(r.students, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return student, true
}

// Get returns a copy of the student for id
func (r *Roster) Get(id string) (*types.Student, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	student, exists := r.students[id]
	if !exists {
		return nil, false
	}
	cp := *student
	return &cp, true
}

// Snapshot returns copies of all connected students in join order
func (r *Roster) Snapshot() []*types.Student {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]*types.Student, 0, len(r.order))
	for _, id := range r.order {
		cp := *r.students[id]
		snapshot = append(snapshot, &cp)
	}
	return snapshot
}

// Len returns the number of connected students
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.students)
}
