package sim

import (
	"fmt"
	"time"
)

// UserSession is one synthetic client.
type UserSession struct {
	ID        string    `json:"id"`
	Type      UserType  `json:"type"`
	StartTime time.Time `json:"startTime"`
	// LastActivity is set at creation and not refreshed.
	LastActivity time.Time `json:"lastActivity"`
	// PodName is empty while unassigned.
	PodName string `json:"podName,omitempty"`
}

// Population is the live set of user sessions keyed by ID. Insertion order
// is kept separately: shrinking removes the most recently added sessions and
// assignment walks users oldest first.
type Population struct {
	sessions map[string]UserSession
	order    []string
	nextSeq  int64
}

// NewPopulation creates an empty population.
func NewPopulation() *Population {
	return &Population{sessions: make(map[string]UserSession)}
}

// Len returns the number of live sessions.
func (p *Population) Len() int {
	return len(p.order)
}

// Get returns the session with the given ID.
func (p *Population) Get(id string) (UserSession, bool) {
	s, ok := p.sessions[id]
	return s, ok
}

// Snapshot returns the sessions oldest first. The slice is a copy.
func (p *Population) Snapshot() []UserSession {
	out := make([]UserSession, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.sessions[id])
	}
	return out
}

// Reconcile grows or shrinks the population to target sessions.
// New sessions get the next sequence ID and a type drawn uniformly from
// UserTypes; surplus sessions are removed newest first. Existing sessions
// keep their ID and type. A negative target is treated as zero.
func (p *Population) Reconcile(target int, now time.Time, rng Rand) (added, removed []UserSession) {
	if target < 0 {
		target = 0
	}
	for len(p.order) < target {
		p.nextSeq++
		s := UserSession{
			ID:           fmt.Sprintf("user-%d", p.nextSeq),
			Type:         UserTypes[rng.Intn(len(UserTypes))],
			StartTime:    now,
			LastActivity: now,
		}
		p.sessions[s.ID] = s
		p.order = append(p.order, s.ID)
		added = append(added, s)
	}
	for len(p.order) > target {
		last := len(p.order) - 1
		id := p.order[last]
		removed = append(removed, p.sessions[id])
		delete(p.sessions, id)
		p.order = p.order[:last]
	}
	return added, removed
}

// Assign records assignments produced by DistributeUsers. Sessions not
// present in the population are ignored.
func (p *Population) Assign(users []UserSession) {
	for _, u := range users {
		if s, ok := p.sessions[u.ID]; ok {
			s.PodName = u.PodName
			p.sessions[u.ID] = s
		}
	}
}

// Clear removes every session and restarts the ID sequence.
func (p *Population) Clear() {
	p.sessions = make(map[string]UserSession)
	p.order = nil
	p.nextSeq = 0
}
