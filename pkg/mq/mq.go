// Package mq carries task change events to interested listeners.
package mq

import "sync"

type Publisher interface {
	Publish(topic string, payload []byte) error
}

type Subscriber interface {
	Subscribe(topic string, handler func([]byte) error) error
}

// Noop drops every event. It is the default when no broker is configured.
type Noop struct{}

func (Noop) Publish(topic string, payload []byte) error               { return nil }
func (Noop) Subscribe(topic string, handler func([]byte) error) error { return nil }

// Memory delivers events synchronously to in-process subscribers.
// A handler registered for ">" receives every topic.
type Memory struct {
	mu       sync.RWMutex
	handlers map[string][]func([]byte) error
}

func NewMemory() *Memory {
	return &Memory{handlers: make(map[string][]func([]byte) error)}
}

func (m *Memory) Publish(topic string, payload []byte) error {
	m.mu.RLock()
	hs := append(append([]func([]byte) error{}, m.handlers[topic]...), m.handlers[">"]...)
	m.mu.RUnlock()
	for _, h := range hs {
		if err := h(payload); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Subscribe(topic string, handler func([]byte) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = append(m.handlers[topic], handler)
	return nil
}
