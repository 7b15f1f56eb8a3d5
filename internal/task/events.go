package task

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"tasklist/internal/store"
)

const TopicPrefix = "tarefas."

type EventType string

const (
	EventCreated  EventType = "created"
	EventUpdated  EventType = "updated"
	EventDeleted  EventType = "deleted"
	EventMoved    EventType = "moved"
	EventRepaired EventType = "repaired"
)

// Event describes one change to the task list.
type Event struct {
	ID     string        `json:"id"`
	Type   EventType     `json:"type"`
	Task   *store.Task   `json:"tarefa,omitempty"`
	Repair *RepairReport `json:"repair,omitempty"`
	At     time.Time     `json:"at"`
}

func newEvent(typ EventType, t store.Task) Event {
	return Event{ID: uuid.NewString(), Type: typ, Task: &t, At: time.Now().UTC()}
}

func newRepairEvent(rep RepairReport) Event {
	return Event{ID: uuid.NewString(), Type: EventRepaired, Repair: &rep, At: time.Now().UTC()}
}

func (e Event) Topic() string { return TopicPrefix + string(e.Type) }

func (e Event) Marshal() ([]byte, error) { return json.Marshal(e) }

func DecodeEvent(b []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(b, &e)
	return e, err
}
