package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Ticket identifies one in-flight estimation within a session.
type Ticket struct {
	SessionID   string
	Token       uuid.UUID
	Fingerprint string
	cancel      context.CancelFunc
}

type pendingRequest struct {
	token       uuid.UUID
	fingerprint string
	cancel      context.CancelFunc
}

// SessionTracker remembers the latest estimation issued by each session so
// that an older lookup still in flight can be cancelled and its result
// discarded once a newer footprint arrives.
type SessionTracker struct {
	mu       sync.Mutex
	sessions map[string]*pendingRequest
}

// NewSessionTracker creates an empty tracker.
func NewSessionTracker() *SessionTracker {
	return &SessionTracker{
		sessions: make(map[string]*pendingRequest),
	}
}

// Begin registers a new request for sessionID, cancelling whatever request
// the session had in flight. The returned context is cancelled when a newer
// request begins or when Finish is called. An empty sessionID is not tracked.
func (t *SessionTracker) Begin(ctx context.Context, sessionID, fingerprint string) (context.Context, Ticket) {
	ctx, cancel := context.WithCancel(ctx)
	ticket := Ticket{
		SessionID:   sessionID,
		Token:       uuid.New(),
		Fingerprint: fingerprint,
		cancel:      cancel,
	}
	if sessionID == "" {
		return ctx, ticket
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.sessions[sessionID]; ok {
		prev.cancel()
	}
	t.sessions[sessionID] = &pendingRequest{
		token:       ticket.Token,
		fingerprint: fingerprint,
		cancel:      cancel,
	}
	return ctx, ticket
}

// Finish releases the ticket and reports whether it was still the latest
// request of its session. A false result means the caller must drop its
// result.
func (t *SessionTracker) Finish(ticket Ticket) bool {
	if ticket.cancel != nil {
		defer ticket.cancel()
	}
	if ticket.SessionID == "" {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.sessions[ticket.SessionID]
	if !ok || current.token != ticket.Token || current.fingerprint != ticket.Fingerprint {
		return false
	}
	delete(t.sessions, ticket.SessionID)
	return true
}

// InFlight returns the number of sessions with an outstanding request.
func (t *SessionTracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
