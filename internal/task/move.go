package task

import (
	"context"
	"errors"
	"fmt"

	"tasklist/internal/store"
)

type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// ErrParked is returned when moving a task that an interrupted move left
// on the sentinel rank. Repair fixes it.
var ErrParked = errors.New("task is parked by an interrupted move")

// MoveUp swaps the task with the one immediately above it.
func (m *Manager) MoveUp(ctx context.Context, id int64) (store.Task, error) {
	return m.move(ctx, id, Up)
}

// MoveDown swaps the task with the one immediately below it.
func (m *Manager) MoveDown(ctx context.Context, id int64) (store.Task, error) {
	return m.move(ctx, id, Down)
}

func (m *Manager) move(ctx context.Context, id int64, d Direction) (store.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var moved store.Task
	run := func(q store.Queries) error {
		var err error
		moved, err = swapWithNeighbor(ctx, q, id, d)
		return err
	}

	var err error
	if m.mode == Sentinel {
		err = run(m.repo)
	} else {
		err = m.repo.WithTx(ctx, run)
	}
	if err != nil {
		var ie *interruptedError
		if errors.As(err, &ie) && m.mode == Sentinel {
			m.log.Error("move interrupted, run repair", "id", id, "step", ie.step, "err", ie.err)
		}
		return store.Task{}, err
	}

	m.log.Info("task moved", "id", id, "direction", d, "rank", moved.Rank)
	m.changed(EventMoved, moved)
	return moved, nil
}

func swapWithNeighbor(ctx context.Context, q store.Queries, id int64, d Direction) (store.Task, error) {
	current, err := q.Get(ctx, id)
	if err != nil {
		return store.Task{}, err
	}
	if current.Rank < store.MinRank {
		return store.Task{}, fmt.Errorf("task %d: %w", id, ErrParked)
	}
	other, ok, err := Neighbor(ctx, q, current.Rank, d)
	if err != nil {
		return store.Task{}, err
	}
	if !ok {
		return store.Task{}, &BoundaryError{ID: id, Direction: d}
	}

	// past the first write the exchange runs to completion
	if err := exchange(context.WithoutCancel(ctx), q, current, other); err != nil {
		return store.Task{}, err
	}
	current.Rank = other.Rank
	return current, nil
}

type interruptedError struct {
	step string
	err  error
}

func (e *interruptedError) Error() string { return fmt.Sprintf("exchange %s: %v", e.step, e.err) }

func (e *interruptedError) Unwrap() error { return e.err }

// exchange swaps the ranks of a and b without two rows ever sharing a
// rank: a is parked on the sentinel while b takes its place. The swap is
// journaled first so Repair can tell how far an interrupted one got.
func exchange(ctx context.Context, q store.Queries, a, b store.Task) error {
	sw := store.Swap{TaskID: a.ID, FromRank: a.Rank, NeighborID: b.ID, ToRank: b.Rank}
	if err := q.RecordSwap(ctx, sw); err != nil {
		return fmt.Errorf("journal swap: %w", err)
	}
	if err := q.SetRank(ctx, a.ID, store.SentinelRank); err != nil {
		return &interruptedError{step: "park", err: err}
	}
	if err := q.SetRank(ctx, b.ID, a.Rank); err != nil {
		return &interruptedError{step: "shift", err: err}
	}
	if err := q.SetRank(ctx, a.ID, b.Rank); err != nil {
		return &interruptedError{step: "place", err: err}
	}
	if err := q.ClearSwap(ctx, a.ID); err != nil {
		return &interruptedError{step: "clear", err: err}
	}
	return nil
}
