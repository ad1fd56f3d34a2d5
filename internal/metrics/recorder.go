package metrics

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Reason names why a best-effort delivery reached nobody.
type Reason string

const (
	ReasonUnknownIdentity Reason = "unknown_identity"
	ReasonEmptyRoom       Reason = "empty_room"
	ReasonSendBufferFull  Reason = "send_buffer_full"
	ReasonConnectionGone  Reason = "connection_gone"
)

// Observer receives the outcome of every delivery attempt. Implementations
// must be safe for concurrent use and must not block.
type Observer interface {
	Delivered(event string, recipients int)
	Missed(reason Reason, event string, target string)
}

type Snapshot struct {
	Delivered uint64            `json:"delivered"`
	Missed    map[Reason]uint64 `json:"missed"`
}

type Recorder struct {
	logger *zap.Logger

	delivered atomic.Uint64

	mu     sync.Mutex
	missed map[Reason]uint64
}

func NewRecorder(logger *zap.Logger) *Recorder {
	return &Recorder{
		logger: logger,
		missed: make(map[Reason]uint64),
	}
}

func (r *Recorder) Delivered(event string, recipients int) {
	if recipients <= 0 {
		return
	}

	r.delivered.Add(uint64(recipients))
}

func (r *Recorder) Missed(reason Reason, event string, target string) {
	r.mu.Lock()
	r.missed[reason]++
	r.mu.Unlock()

	r.logger.Debug("delivery missed",
		zap.String("reason", string(reason)),
		zap.String("event", event),
		zap.String("target", target))
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	missed := make(map[Reason]uint64, len(r.missed))
	for reason, count := range r.missed {
		missed[reason] = count
	}

	return Snapshot{
		Delivered: r.delivered.Load(),
		Missed:    missed,
	}
}

type nopObserver struct{}

func (nopObserver) Delivered(string, int) {}
func (nopObserver) Missed(Reason, string, string) {}

// Nop discards every outcome.
var Nop Observer = nopObserver{}
