package mq

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS publishes and subscribes through a NATS server.
type NATS struct {
	conn *nats.Conn
}

// DialNATS connects to url with reconnect defaults suited to a long-running server.
func DialNATS(url, name string) (*NATS, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATS{conn: conn}, nil
}

func (n *NATS) Publish(topic string, payload []byte) error {
	if n.conn.IsClosed() {
		return fmt.Errorf("nats: connection closed")
	}
	return n.conn.Publish(topic, payload)
}

func (n *NATS) Subscribe(topic string, handler func([]byte) error) error {
	_, err := n.conn.Subscribe(topic, func(m *nats.Msg) {
		_ = handler(m.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", topic, err)
	}
	return n.conn.Flush()
}

// Close drains pending messages and closes the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}
