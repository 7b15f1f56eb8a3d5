package mq

import (
	"errors"
	"testing"
)

func TestMemoryDeliversToTopicAndWildcard(t *testing.T) {
	m := NewMemory()
	var exact, all []string
	_ = m.Subscribe("tarefas.created", func(b []byte) error {
		exact = append(exact, string(b))
		return nil
	})
	_ = m.Subscribe(">", func(b []byte) error {
		all = append(all, string(b))
		return nil
	})

	if err := m.Publish("tarefas.created", []byte("1")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := m.Publish("tarefas.moved", []byte("2")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(exact) != 1 || exact[0] != "1" {
		t.Errorf("exact subscriber got %v", exact)
	}
	if len(all) != 2 {
		t.Errorf("wildcard subscriber got %v", all)
	}
}

func TestMemoryHandlerError(t *testing.T) {
	m := NewMemory()
	boom := errors.New("boom")
	_ = m.Subscribe("x", func([]byte) error { return boom })
	if err := m.Publish("x", nil); !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	if err := p.Publish("x", []byte("y")); err != nil {
		t.Fatal(err)
	}
}
