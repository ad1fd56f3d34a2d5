package presence

import (
	"sync"

	"github.com/goevery/classcast/internal/metrics"
	"github.com/goevery/classcast/internal/transport"
)

// Emitter delivers a message to a single connection.
type Emitter interface {
	Emit(connectionId string, message transport.Message) bool
}

// Registry maps a user identity to the one connection currently on file
// for it. Later registrations for the same identity win.
type Registry struct {
	emitter  Emitter
	observer metrics.Observer

	mu                   sync.RWMutex
	connectionByIdentity map[string]string
	identityByConnection map[string]string
}

func NewRegistry(emitter Emitter, observer metrics.Observer) *Registry {
	return &Registry{
		emitter:              emitter,
		observer:             observer,
		connectionByIdentity: make(map[string]string),
		identityByConnection: make(map[string]string),
	}
}

// Register points identity at connectionId. It returns the connection id
// that was previously on file for identity, if a different one was.
//
// A connection holds a single identity: registering a new identity on a
// connection drops the mapping of the identity it held before.
func (r *Registry) Register(identity string, connectionId string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if previousIdentity, ok := r.identityByConnection[connectionId]; ok && previousIdentity != identity {
		delete(r.connectionByIdentity, previousIdentity)
	}

	previousConnectionId, replaced := r.connectionByIdentity[identity]
	if replaced {
		if previousConnectionId == connectionId {
			return "", false
		}

		delete(r.identityByConnection, previousConnectionId)
	}

	r.connectionByIdentity[identity] = connectionId
	r.identityByConnection[connectionId] = identity

	return previousConnectionId, replaced
}

// Unregister removes the entry owned by connectionId, if any, and returns
// the identity it belonged to.
func (r *Registry) Unregister(connectionId string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.identityByConnection[connectionId]
	if !ok {
		return "", false
	}

	delete(r.identityByConnection, connectionId)

	if r.connectionByIdentity[identity] == connectionId {
		delete(r.connectionByIdentity, identity)
	}

	return identity, true
}

func (r *Registry) Lookup(identity string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connectionId, ok := r.connectionByIdentity[identity]

	return connectionId, ok
}

// IdentityOf returns the identity whose entry currently points at
// connectionId. A connection displaced by a later registration has none.
func (r *Registry) IdentityOf(connectionId string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.identityByConnection[connectionId]

	return identity, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.connectionByIdentity)
}

// EmitToIdentity sends event to the connection on file for identity. An
// unknown identity is silently skipped.
func (r *Registry) EmitToIdentity(identity string, event string, data any) bool {
	connectionId, ok := r.Lookup(identity)
	if !ok {
		r.observer.Missed(metrics.ReasonUnknownIdentity, event, identity)

		return false
	}

	if !r.emitter.Emit(connectionId, transport.NewMessage(event, data)) {
		return false
	}

	r.observer.Delivered(event, 1)

	return true
}
