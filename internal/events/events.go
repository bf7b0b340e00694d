// Package events implements the bounded-queue fan-out broadcaster of
// spec.md §4.1: subscribers get a capacity-100 channel, broadcast is a
// non-blocking enqueue per subscriber, and a subscriber whose queue is
// full is silently dropped rather than allowed to stall the broadcast.
package events

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/lucasiscovici/mcp-proxy-studio/pkg/logging"
)

// QueueCapacity is the fixed per-subscriber buffer size.
const QueueCapacity = 100

// EventType discriminates the payload kinds broadcast over the channel.
type EventType string

const (
	EventLog         EventType = "log"
	EventFlowStarted EventType = "flow_started"
	EventFlowExited  EventType = "flow_exited"
)

// Event is the JSON-serializable envelope delivered to subscribers.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// LogPayload carries a single log line attributed to a port or helper.
type LogPayload struct {
	Port      int    `json:"port,omitempty"`
	Subsystem string `json:"subsystem"`
	Line      string `json:"line"`
}

// FlowStartedPayload announces that a flow's child process has been
// (re)started and is attached to a port.
type FlowStartedPayload struct {
	FlowID string `json:"flow_id"`
	Port   int    `json:"port"`
}

// FlowExitedPayload announces that a flow's port child has exited,
// whether cleanly or not.
type FlowExitedPayload struct {
	FlowID   string `json:"flow_id"`
	Port     int    `json:"port"`
	ExitCode int    `json:"exit_code"`
	Reason   string `json:"reason,omitempty"`
}

// subscriber is one registered listener's queue.
type subscriber struct {
	id string
	ch chan Event
}

// Broadcaster fans events out to every live subscriber. The listener
// list is mutated only under mu; broadcast itself never blocks on a
// slow consumer — a full queue means that subscriber is unregistered.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
	nextID      uint64
}

// New creates an empty broadcaster.
func New() *Broadcaster {
	return &Broadcaster{subscribers: make(map[string]*subscriber)}
}

// Subscribe registers a new listener and returns its ID and channel.
// Callers must read the channel until Unsubscribe or the broadcaster
// drops them for being slow.
func (b *Broadcaster) Subscribe() (string, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := formatSubscriberID(b.nextID)
	sub := &subscriber{id: id, ch: make(chan Event, QueueCapacity)}
	b.subscribers[id] = sub
	return id, sub.ch
}

// Unsubscribe removes a listener and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(sub.ch)
	}
}

// Broadcast delivers payload to every subscriber via a non-blocking
// enqueue; any subscriber whose queue is already full is dropped from
// the registry instead of stalling the call.
func (b *Broadcaster) Broadcast(t EventType, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Broadcaster", err, "failed to marshal %s event payload", t)
		return
	}
	evt := Event{Type: t, Timestamp: time.Now().UTC(), Payload: raw}

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subscribers {
		select {
		case sub.ch <- evt:
		default:
			logging.Warn("Broadcaster", "dropping slow subscriber %s", id)
			delete(b.subscribers, id)
			close(sub.ch)
		}
	}
}

// SubscriberCount reports the number of currently registered listeners.
// Only the tests call it; the status endpoint does not report it.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

func formatSubscriberID(n uint64) string {
	return "sub-" + strconv.FormatUint(n, 10)
}
