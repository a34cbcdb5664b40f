package web

import (
	"bytes"
	"sync"
)

// LogHistory is the number of recent log lines replayed to a new viewer.
const LogHistory = 100

const subscriberQueue = 64

// LogHub is an io.Writer that keeps recent log lines and fans them out
// to live viewers. Writes never block; a viewer that falls behind loses
// lines.
type LogHub struct {
	mu      sync.Mutex
	partial []byte
	history []string
	subs    map[chan string]struct{}
}

// NewLogHub creates an empty hub.
func NewLogHub() *LogHub {
	return &LogHub{subs: make(map[chan string]struct{})}
}

// Write splits p into lines and publishes every complete one.
func (h *LogHub) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.partial = append(h.partial, p...)
	for {
		i := bytes.IndexByte(h.partial, '\n')
		if i < 0 {
			break
		}
		line := string(h.partial[:i])
		h.partial = h.partial[i+1:]
		h.publish(line)
	}
	return len(p), nil
}

func (h *LogHub) publish(line string) {
	if len(h.history) == LogHistory {
		copy(h.history, h.history[1:])
		h.history = h.history[:LogHistory-1]
	}
	h.history = append(h.history, line)

	for ch := range h.subs {
		select {
		case ch <- line:
		default:
		}
	}
}

// Subscribe returns the current history and a channel of new lines.
// Call the returned function to unsubscribe.
func (h *LogHub) Subscribe() ([]string, <-chan string, func()) {
	ch := make(chan string, subscriberQueue)

	h.mu.Lock()
	history := append([]string(nil), h.history...)
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return history, ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
		})
	}
}

// History returns a copy of the recent lines.
func (h *LogHub) History() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.history...)
}
