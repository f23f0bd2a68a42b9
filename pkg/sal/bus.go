package sal

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Topics builds the topic names for one CSC instance under a root such
// as "lsst/sal". The layout is <root>/<name>:<index>/<kind>/<leaf>.
type Topics struct {
	Root  string
	Name  string
	Index int
}

func (t Topics) prefix() string {
	return fmt.Sprintf("%s/%s:%d", t.Root, t.Name, t.Index)
}

// Command returns the topic a controller publishes commands to.
func (t Topics) Command(name string) string { return t.prefix() + "/cmd/" + name }

// Ack returns the topic command acknowledgements are published to.
func (t Topics) Ack(name string) string { return t.prefix() + "/ack/" + name }

// Event returns the topic for a logevent.
func (t Topics) Event(name string) string { return t.prefix() + "/evt/" + name }

// Telemetry returns the topic for a telemetry stream.
func (t Topics) Telemetry(name string) string { return t.prefix() + "/tel/" + name }

// Handler receives the raw payload of a message on a subscribed topic.
type Handler func(topic string, payload []byte)

// Bus is the pub/sub transport the CSC speaks over. Payloads are JSON.
type Bus interface {
	// Publish marshals v and publishes it on topic.
	Publish(topic string, v any) error
	// Subscribe registers handler for messages on an exact topic.
	Subscribe(topic string, handler Handler) error
	Unsubscribe(topic string) error
	Close()
}

// MemoryBus is an in-process Bus for tests and simulation. Messages are
// delivered synchronously to subscribers.
type MemoryBus struct {
	mu       sync.Mutex
	handlers map[string]Handler
	closed   bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string]Handler)}
}

func (b *MemoryBus) Publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %v", topic, err)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("bus is closed")
	}
	handler := b.handlers[topic]
	b.mu.Unlock()

	if handler != nil {
		handler(topic, payload)
	}
	return nil
}

func (b *MemoryBus) Subscribe(topic string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *MemoryBus) Unsubscribe(topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, topic)
	return nil
}

func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[string]Handler)
}
