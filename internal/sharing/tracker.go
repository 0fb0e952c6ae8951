package sharing

import (
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/termhost/internal/shared/id"
)

// Status is the sharing state of a document
type Status string

const (
	StatusNotShared   Status = "notShared"
	StatusShared      Status = "shared"
	StatusContextLost Status = "contextLost"
)

// Transition is emitted whenever a document changes status
type Transition struct {
	ProjectID  id.ProjectID  `json:"project_id"`
	DocumentID id.DocumentID `json:"document_id"`
	From       Status        `json:"from"`
	Status     Status        `json:"status"`
	SharedAt   *time.Time    `json:"shared_at,omitempty"`
	At         time.Time     `json:"at"`
}

// DocumentStatus is the current status of one document
type DocumentStatus struct {
	DocumentID id.DocumentID `json:"document_id"`
	Status     Status        `json:"status"`
	SharedAt   *time.Time    `json:"shared_at,omitempty"`
}

type record struct {
	status   Status
	sharedAt time.Time
}

// Tracker holds document statuses per project
type Tracker struct {
	mu        sync.Mutex
	projects  map[id.ProjectID]map[id.DocumentID]*record
	listeners map[uint64]func(Transition)
	seq       uint64
	now       func() time.Time
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		projects:  make(map[id.ProjectID]map[id.DocumentID]*record),
		listeners: make(map[uint64]func(Transition)),
		now:       time.Now,
	}
}

// Track registers a document as notShared unless already known
func (t *Tracker) Track(project id.ProjectID, doc id.DocumentID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recordLocked(project, doc)
}

func (t *Tracker) recordLocked(project id.ProjectID, doc id.DocumentID) *record {
	docs, ok := t.projects[project]
	if !ok {
		docs = make(map[id.DocumentID]*record)
		t.projects[project] = docs
	}
	rec, ok := docs[doc]
	if !ok {
		rec = &record{status: StatusNotShared}
		docs[doc] = rec
	}
	return rec
}

// Status returns the status of a document; unknown documents are notShared
func (t *Tracker) Status(project id.ProjectID, doc id.DocumentID) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.projects[project][doc]; ok {
		return rec.status
	}
	return StatusNotShared
}

// Documents lists the tracked documents of project ordered by id
func (t *Tracker) Documents(project id.ProjectID) []DocumentStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	docs := t.projects[project]
	out := make([]DocumentStatus, 0, len(docs))
	for doc, rec := range docs {
		ds := DocumentStatus{DocumentID: doc, Status: rec.status}
		if !rec.sharedAt.IsZero() {
			at := rec.sharedAt
			ds.SharedAt = &at
		}
		out = append(out, ds)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out
}

// MarkShared records a completed send at time at
func (t *Tracker) MarkShared(project id.ProjectID, doc id.DocumentID, at time.Time) {
	t.mu.Lock()
	rec := t.recordLocked(project, doc)
	from := rec.status
	rec.status = StatusShared
	rec.sharedAt = at
	shared := at
	tr := Transition{
		ProjectID:  project,
		DocumentID: doc,
		From:       from,
		Status:     StatusShared,
		SharedAt:   &shared,
		At:         t.now(),
	}
	fns := t.listenersLocked()
	t.mu.Unlock()

	notify(fns, tr)
}

// MarkContextLost moves every shared document of project to contextLost and
// returns them. Documents in other states are untouched.
func (t *Tracker) MarkContextLost(project id.ProjectID) []id.DocumentID {
	t.mu.Lock()
	now := t.now()
	var (
		lost        []id.DocumentID
		transitions []Transition
	)
	for doc, rec := range t.projects[project] {
		if rec.status != StatusShared {
			continue
		}
		rec.status = StatusContextLost
		lost = append(lost, doc)
		transitions = append(transitions, Transition{
			ProjectID:  project,
			DocumentID: doc,
			From:       StatusShared,
			Status:     StatusContextLost,
			At:         now,
		})
	}
	fns := t.listenersLocked()
	t.mu.Unlock()

	sort.Slice(lost, func(i, j int) bool { return lost[i] < lost[j] })
	sort.Slice(transitions, func(i, j int) bool { return transitions[i].DocumentID < transitions[j].DocumentID })
	for _, tr := range transitions {
		notify(fns, tr)
	}
	return lost
}

// Forget drops every document of project
func (t *Tracker) Forget(project id.ProjectID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.projects, project)
}

// Subscribe registers fn for status transitions
func (t *Tracker) Subscribe(fn func(Transition)) (unsubscribe func()) {
	t.mu.Lock()
	t.seq++
	key := t.seq
	t.listeners[key] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.listeners, key)
		t.mu.Unlock()
	}
}

func (t *Tracker) listenersLocked() []func(Transition) {
	fns := make([]func(Transition), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func notify(fns []func(Transition), tr Transition) {
	for _, fn := range fns {
		fn(tr)
	}
}
