// Package task owns the ranked task list: creation at the end of the
// order, edits, deletes, single-step moves and the repair pass.
package task

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"tasklist/internal/store"
	"tasklist/pkg/mq"
)

const maxCreateAttempts = 3

// Repository is the storage handle the Manager owns.
type Repository interface {
	store.Queries
	WithTx(ctx context.Context, fn func(store.Queries) error) error
}

// MoveMode selects how the three rank writes of a move are committed.
type MoveMode string

const (
	// Transactional wraps the writes of a move in one transaction.
	Transactional MoveMode = "transactional"
	// Sentinel issues the writes one by one; an interruption leaves a
	// parked task for Repair to fix.
	Sentinel MoveMode = "sentinel"
)

func ParseMoveMode(s string) (MoveMode, error) {
	switch MoveMode(s) {
	case "", Transactional:
		return Transactional, nil
	case Sentinel:
		return Sentinel, nil
	}
	return "", fmt.Errorf("unknown move mode %q", s)
}

// Manager serializes every rank-mutating operation behind one lock.
type Manager struct {
	repo Repository
	pub  mq.Publisher
	log  *log.Logger
	mode MoveMode

	mu      sync.RWMutex
	version atomic.Uint64
}

type Option func(*Manager)

func WithPublisher(p mq.Publisher) Option { return func(m *Manager) { m.pub = p } }

func WithLogger(l *log.Logger) Option { return func(m *Manager) { m.log = l } }

func WithMoveMode(mode MoveMode) Option { return func(m *Manager) { m.mode = mode } }

func NewManager(repo Repository, opts ...Option) *Manager {
	m := &Manager{
		repo: repo,
		pub:  mq.Noop{},
		log:  log.New(io.Discard),
		mode: Transactional,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Version increases on every successful mutation.
func (m *Manager) Version() uint64 { return m.version.Load() }

// List returns every task by ascending rank. A task parked by an
// interrupted move triggers a repair before the listing is returned.
func (m *Manager) List(ctx context.Context) ([]store.Task, error) {
	m.mu.RLock()
	tasks, err := m.repo.List(ctx)
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 || tasks[0].Rank >= store.MinRank {
		return tasks, nil
	}

	m.log.Warn("parked task in listing, repairing", "id", tasks[0].ID, "rank", tasks[0].Rank)
	if _, err := m.Repair(ctx, false); err != nil {
		return nil, fmt.Errorf("repair: %w", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.repo.List(ctx)
}

func (m *Manager) Get(ctx context.Context, id int64) (store.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.repo.Get(ctx, id)
}

// Create appends a task at the end of the order.
func (m *Manager) Create(ctx context.Context, in Input) (store.Task, error) {
	in, err := in.Normalize()
	if err != nil {
		return store.Task{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var t store.Task
	for attempt := 1; ; attempt++ {
		rank, err := NextRank(ctx, m.repo)
		if err != nil {
			return store.Task{}, fmt.Errorf("next rank: %w", err)
		}
		t, err = m.repo.Create(ctx, in.Name, in.Cost, in.DueDate, rank)
		if err == nil {
			break
		}
		// another writer outside this process took the rank
		if !store.IsRankConflict(err) || attempt == maxCreateAttempts {
			return store.Task{}, err
		}
		m.log.Warn("rank taken, retrying", "rank", rank, "attempt", attempt)
	}

	m.log.Info("task created", "id", t.ID, "rank", t.Rank)
	m.changed(EventCreated, t)
	return t, nil
}

// Update edits name, cost and due date. The rank is never touched.
func (m *Manager) Update(ctx context.Context, id int64, in Input) (store.Task, error) {
	in, err := in.Normalize()
	if err != nil {
		return store.Task{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.repo.Update(ctx, id, in.Name, in.Cost, in.DueDate)
	if err != nil {
		return store.Task{}, err
	}
	m.log.Info("task updated", "id", t.ID)
	m.changed(EventUpdated, t)
	return t, nil
}

// Delete removes a task. Surviving ranks are left as they are.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}
	m.log.Info("task deleted", "id", id, "rank", t.Rank)
	m.changed(EventDeleted, t)
	return nil
}

// changed bumps the version and publishes the event. Callers hold m.mu.
func (m *Manager) changed(typ EventType, t store.Task) {
	m.version.Add(1)
	m.publish(newEvent(typ, t))
}

func (m *Manager) publish(ev Event) {
	payload, err := ev.Marshal()
	if err == nil {
		err = m.pub.Publish(ev.Topic(), payload)
	}
	if err != nil {
		m.log.Error("publish event", "type", ev.Type, "err", err)
	}
}
