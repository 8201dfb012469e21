// Package a2a implements the agent-to-agent message bus: a correlated
// request/response/notification channel between named logical agents. The
// bus is an audit and correlation layer; it never gates workflow control
// flow.
package a2a

import (
	"sync"

	"github.com/hupe1980/caremesh/core"
	"github.com/hupe1980/caremesh/logging"
)

// Bus keeps a FIFO delivery queue plus an append-only history log. A message
// is removed from the live queue once matched for a receiver but its copy in
// the history is retained forever for audit and debugging. Safe for
// concurrent use.
type Bus struct {
	mu      sync.Mutex
	queue   []core.Message
	history []core.Message
	logger  logging.Logger
}

// Options holds configuration overrides for NewBus.
type Options struct {
	Logger logging.Logger
}

// NewBus constructs an empty message bus.
func NewBus(optFns ...func(o *Options)) *Bus {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Bus{logger: opts.Logger}
}

// SendRequest enqueues a request message, generating a fresh correlation id.
func (b *Bus) SendRequest(sender, receiver string, payload map[string]any) core.Message {
	return b.send(core.NewMessage(sender, receiver, core.MessageTypeRequest, payload, ""))
}

// SendResponse enqueues a response. Passing the correlation id of the
// request being answered lets consumers join the pair; an empty id generates
// a new one.
func (b *Bus) SendResponse(sender, receiver string, payload map[string]any, correlationID string) core.Message {
	return b.send(core.NewMessage(sender, receiver, core.MessageTypeResponse, payload, correlationID))
}

// SendNotification enqueues a one-way notification message.
func (b *Bus) SendNotification(sender, receiver string, payload map[string]any) core.Message {
	return b.send(core.NewMessage(sender, receiver, core.MessageTypeNotification, payload, ""))
}

// SendError enqueues an error message.
func (b *Bus) SendError(sender, receiver string, payload map[string]any) core.Message {
	return b.send(core.NewMessage(sender, receiver, core.MessageTypeError, payload, ""))
}

func (b *Bus) send(msg core.Message) core.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.queue = append(b.queue, msg)
	b.history = append(b.history, msg)

	b.logger.Debug("a2a message sent sender=%s receiver=%s type=%s correlation_id=%s",
		msg.SenderID, msg.ReceiverID, msg.Type, msg.CorrelationID)

	return msg
}

// Receive removes and returns the first queued message addressed to the
// receiver, preserving FIFO order among that receiver's messages. It returns
// false when nothing is pending.
func (b *Bus) Receive(receiver string) (core.Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, msg := range b.queue {
		if msg.ReceiverID != receiver {
			continue
		}
		b.queue = append(b.queue[:i], b.queue[i+1:]...)
		b.logger.Debug("a2a message received receiver=%s sender=%s correlation_id=%s",
			receiver, msg.SenderID, msg.CorrelationID)
		return msg, true
	}
	return core.Message{}, false
}

// History returns the most recent limit history entries, optionally filtered
// to messages where agentID is the sender or receiver. A non-positive limit
// returns the full (filtered) history.
func (b *Bus) History(agentID string, limit int) []core.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	src := b.history
	if limit > 0 && len(src) > limit {
		src = src[len(src)-limit:]
	}

	out := make([]core.Message, 0, len(src))
	for _, msg := range src {
		if agentID != "" && msg.SenderID != agentID && msg.ReceiverID != agentID {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// Pending returns the number of undelivered messages in the live queue.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
