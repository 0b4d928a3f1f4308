// Package relay fans session-state events from the messaging engine
// out to live clients. It owns the bidirectional mapping between
// channel members and user ids; membership lives only for the lifetime
// of each connection and is rebuilt from nothing on restart, because
// every client re-authenticates when it reconnects.
package relay

import (
	"sync"

	"github.com/google/uuid"

	"github.com/wagate/wagate/internal/utils"
)

// Event is one named frame delivered to a live member.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Well-known event names emitted by the relay itself. Engine-originated
// events (qr_code, whatsapp_connected, ...) pass through with whatever
// name the engine chose.
const (
	EventAuthenticated = "authenticated"
	EventAuthError     = "auth_error"
)

// outBuffer is the per-member event buffer. A member that cannot drain
// this many events is skipped rather than allowed to stall the hub.
const outBuffer = 16

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier func(token string) (utils.Claims, error)

type member struct {
	id     string
	userID string // empty until authenticated
	out    chan Event
}

// Relay is the hub. One mutex guards both directions of the membership
// index, so connect/authenticate/disconnect mutations for any member
// are serialized relative to each other and to broadcasts. Two sockets
// of the same user authenticating at once therefore cannot corrupt the
// group set.
type Relay struct {
	verify TokenVerifier

	mu      sync.Mutex
	members map[string]*member            // member id -> member
	groups  map[string]map[string]*member // user id -> member id -> member
}

func New(verify TokenVerifier) *Relay {
	return &Relay{
		verify:  verify,
		members: make(map[string]*member),
		groups:  make(map[string]map[string]*member),
	}
}

// OnConnect registers a bare connection with no user association and
// returns the member id plus the member's outbound event stream. The
// stream is closed by OnDisconnect.
func (r *Relay) OnConnect() (string, <-chan Event) {
	m := &member{id: uuid.NewString(), out: make(chan Event, outBuffer)}
	r.mu.Lock()
	r.members[m.id] = m
	r.mu.Unlock()
	return m.id, m.out
}

// Authenticate verifies the token and, on success, binds the member to
// the token's subject in both directions of the index, enrolls it in
// the user's broadcast group and emits an authenticated event to that
// member. On failure an auth_error event is emitted and no state is
// mutated. The return value reports whether the member is now bound.
func (r *Relay) Authenticate(memberID, token string) bool {
	claims, err := r.verify(token)

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[memberID]
	if !ok {
		return false
	}
	if err != nil {
		push(m, Event{Event: EventAuthError, Data: map[string]string{"error": err.Error()}})
		return false
	}

	// Re-authentication under a different subject moves the member.
	if m.userID != "" && m.userID != claims.UserID {
		r.leaveGroup(m)
	}
	m.userID = claims.UserID
	g := r.groups[claims.UserID]
	if g == nil {
		g = make(map[string]*member)
		r.groups[claims.UserID] = g
	}
	g[m.id] = m

	push(m, Event{Event: EventAuthenticated, Data: map[string]string{"user_id": claims.UserID}})
	return true
}

// OnDisconnect removes the member from the index and its user's group,
// drops the group entirely once empty, and closes the member's event
// stream. Unknown member ids are a no-op.
func (r *Relay) OnDisconnect(memberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[memberID]
	if !ok {
		return
	}
	delete(r.members, memberID)
	r.leaveGroup(m)
	close(m.out)
}

// Broadcast delivers an engine-originated event to every live member
// of the user's group. A group with no members drops the event
// silently: the relay is ephemeral, not a durable event log.
func (r *Relay) Broadcast(userID, event string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.groups[userID] {
		push(m, Event{Event: event, Data: data})
	}
}

// Members reports how many live members a user currently has.
func (r *Relay) Members(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.groups[userID])
}

// leaveGroup must be called with r.mu held.
func (r *Relay) leaveGroup(m *member) {
	if m.userID == "" {
		return
	}
	g := r.groups[m.userID]
	delete(g, m.id)
	if len(g) == 0 {
		delete(r.groups, m.userID)
	}
	m.userID = ""
}

// push must be called with r.mu held; the lock is what makes the
// close in OnDisconnect safe against concurrent sends. The send is
// non-blocking so one stalled member cannot hold up the hub.
func push(m *member, ev Event) {
	select {
	case m.out <- ev:
	default:
	}
}
