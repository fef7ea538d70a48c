package chatlog

import (
	"sync"

	"github.com/google/uuid"
)

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one rendered conversation turn. IDs are assigned at append time
// and stay stable for the lifetime of the entry, so later patches target an
// identifier rather than a position.
type Message struct {
	ID       string `json:"id"`
	Role     Role   `json:"role"`
	Text     string `json:"text"`
	AudioURL string `json:"audioUrl,omitempty"`
}

// Patch holds the fields a patch may change. Nil fields are left untouched.
// Patching is used to attach audio URLs and to replace placeholder content
// once the real data arrives.
type Patch struct {
	Text     *string
	AudioURL *string
}

// Observer receives a consistent snapshot after every mutation.
type Observer func(messages []Message)

// Log is the ordered message log rendered to the user. Append-only except for
// in-place patches by ID; Reset replaces the whole content when the
// conversation boundary moves.
type Log struct {
	mu        sync.Mutex
	messages  []Message
	observers map[int]Observer
	nextObs   int

	// Snapshots queue up under mu and drain in FIFO order, so observers
	// see racing mutations in the order they were applied.
	queue    [][]Message
	draining bool
}

// New creates an empty log. Callers normally Reset it with a greeting before
// showing it.
func New() *Log {
	return &Log{}
}

// Append adds a message to the end and returns its assigned ID.
func (l *Log) Append(msg Message) string {
	l.mu.Lock()
	msg.ID = uuid.New().String()
	l.messages = append(l.messages, msg)
	l.publishLocked()
	return msg.ID
}

// AppendMany adds several messages as one mutation: observers see either none
// or all of them.
func (l *Log) AppendMany(msgs []Message) []string {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, len(msgs))

	l.mu.Lock()
	for i, msg := range msgs {
		msg.ID = uuid.New().String()
		ids[i] = msg.ID
		l.messages = append(l.messages, msg)
	}
	l.publishLocked()
	return ids
}

// Patch merges the given fields into the message with the given ID, keeping
// everything else. It reports whether the entry still exists; after a Reset
// the ID is gone and the patch is a no-op.
func (l *Log) Patch(id string, p Patch) bool {
	l.mu.Lock()
	idx := -1
	for i := range l.messages {
		if l.messages[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return false
	}
	if p.Text != nil {
		l.messages[idx].Text = *p.Text
	}
	if p.AudioURL != nil {
		l.messages[idx].AudioURL = *p.AudioURL
	}
	l.publishLocked()
	return true
}

// Reset replaces the entire content with a single seed message, normally the
// assistant greeting for the newly selected chatbot. Returns the seed's ID.
func (l *Log) Reset(seed Message) string {
	l.mu.Lock()
	seed.ID = uuid.New().String()
	l.messages = []Message{seed}
	l.publishLocked()
	return seed.ID
}

// Get returns the message with the given ID, if present.
func (l *Log) Get(id string) (Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, msg := range l.messages {
		if msg.ID == id {
			return msg, true
		}
	}
	return Message{}, false
}

// Snapshot returns a copy of the current messages in display order.
func (l *Log) Snapshot() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// Subscribe registers an observer for future mutations. The returned func
// detaches it.
func (l *Log) Subscribe(obs Observer) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.observers == nil {
		l.observers = map[int]Observer{}
	}
	id := l.nextObs
	l.nextObs++
	l.observers[id] = obs

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.observers, id)
	}
}

// publishLocked queues the current snapshot and drains the queue unless
// another goroutine already is. Called with mu held; returns with it
// released. Draining FIFO keeps deliveries in mutation order, and observers
// run outside the mutex so they may call back into the log — a mutation made
// from inside an observer is queued and delivered by the active drainer.
func (l *Log) publishLocked() {
	snapshot := make([]Message, len(l.messages))
	copy(snapshot, l.messages)
	l.queue = append(l.queue, snapshot)

	if l.draining {
		l.mu.Unlock()
		return
	}
	l.draining = true
	for len(l.queue) > 0 {
		next := l.queue[0]
		l.queue = l.queue[1:]
		observers := make([]Observer, 0, len(l.observers))
		for _, obs := range l.observers {
			observers = append(observers, obs)
		}
		l.mu.Unlock()

		for _, obs := range observers {
			obs(next)
		}
		l.mu.Lock()
	}
	l.draining = false
	l.mu.Unlock()
}
