package relay

import (
	"context"
	"sync"

	"github.com/mvamarnath1/interview/internal/models"
)

type question struct {
	from models.Role
	text string
}

// Room holds the bindings of one session and its question queue. Questions
// are answered one at a time by the room's worker, in arrival order.
type Room struct {
	ID     string
	UserID string

	mu       sync.Mutex
	bindings map[models.Role]*Client
	closed   bool

	questions chan question
	ctx       context.Context
	cancel    context.CancelFunc
}

func newRoom(id, userID string, queueSize int) *Room {
	ctx, cancel := context.WithCancel(context.Background())
	return &Room{
		ID:        id,
		UserID:    userID,
		bindings:  make(map[models.Role]*Client),
		questions: make(chan question, queueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// bind installs c for role and returns the binding it replaced and the
// current peer, if any.
func (r *Room) bind(role models.Role, c *Client) (prev, peer *Client, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, nil, false
	}
	prev = r.bindings[role]
	r.bindings[role] = c
	return prev, r.bindings[role.Peer()], true
}

// unbind removes c if it still holds role and returns the peer.
func (r *Room) unbind(role models.Role, c *Client) (peer *Client, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bindings[role] != c {
		return nil, false
	}
	delete(r.bindings, role)
	return r.bindings[role.Peer()], true
}

func (r *Room) current(role models.Role, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && r.bindings[role] == c
}

func (r *Room) client(role models.Role) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bindings[role]
}

func (r *Room) bound() (interviewer, candidate bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bindings[models.RoleInterviewer] != nil, r.bindings[models.RoleCandidate] != nil
}

// enqueue adds a question without blocking; false means the queue is full
// or the room is closed.
func (r *Room) enqueue(q question) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	select {
	case r.questions <- q:
		return true
	default:
		return false
	}
}

// close cancels in-flight work and detaches every binding.
func (r *Room) close() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.cancel()
	clients := make([]*Client, 0, len(r.bindings))
	for role, c := range r.bindings {
		clients = append(clients, c)
		delete(r.bindings, role)
	}
	return clients
}
