package task

import (
	"context"
	"errors"

	"tasklist/internal/store"
)

// RepairReport counts what a repair pass changed.
type RepairReport struct {
	Parked     int `json:"parked"`
	Renumbered int `json:"renumbered"`
}

// Repair gives every parked task a real rank again and, when anything was
// parked or compact is set, renumbers all ranks densely from 1.
//
// A parked task with a swap journal entry is put back where its exchange
// left it: at its old rank when the neighbor never moved, at the
// neighbor's old rank when it did. Without an entry it goes to the end.
func (m *Manager) Repair(ctx context.Context, compact bool) (RepairReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rep RepairReport
	err := m.repo.WithTx(ctx, func(q store.Queries) error {
		rep = RepairReport{}
		parked, err := q.ListParked(ctx)
		if err != nil {
			return err
		}
		swaps, err := q.ListSwaps(ctx)
		if err != nil {
			return err
		}
		journal := make(map[int64]store.Swap, len(swaps))
		for _, sw := range swaps {
			journal[sw.TaskID] = sw
		}

		for _, t := range parked {
			sw, ok := journal[t.ID]
			rank, err := restoreRank(ctx, q, sw, ok)
			if err != nil {
				return err
			}
			if err := q.SetRank(ctx, t.ID, rank); err != nil {
				return err
			}
			m.log.Warn("restored parked task", "id", t.ID, "rank", rank, "journaled", ok)
		}
		for _, sw := range swaps {
			if err := q.ClearSwap(ctx, sw.TaskID); err != nil {
				return err
			}
		}
		rep.Parked = len(parked)
		if rep.Parked == 0 && !compact {
			return nil
		}

		all, err := q.List(ctx)
		if err != nil {
			return err
		}
		// ranks are distinct and >= MinRank, so the i-th is never below
		// MinRank+i and assigning it cannot collide with a later row
		for i, t := range all {
			want := store.MinRank + int64(i)
			if t.Rank == want {
				continue
			}
			if err := q.SetRank(ctx, t.ID, want); err != nil {
				return err
			}
			rep.Renumbered++
		}
		return nil
	})
	if err != nil {
		return RepairReport{}, err
	}

	if rep.Parked > 0 || rep.Renumbered > 0 {
		m.log.Info("repair done", "parked", rep.Parked, "renumbered", rep.Renumbered)
		m.version.Add(1)
		m.publish(newRepairEvent(rep))
	}
	return rep, nil
}

// restoreRank picks the rank for a parked task. With a journal entry the
// exchange is completed when the neighbor already holds the task's old
// rank and undone otherwise. A target taken in the meantime, or a missing
// entry, falls back to the next rank.
func restoreRank(ctx context.Context, q store.Queries, sw store.Swap, journaled bool) (int64, error) {
	if journaled {
		target := sw.FromRank
		neighbor, err := q.Get(ctx, sw.NeighborID)
		switch {
		case err == nil && neighbor.Rank == sw.FromRank:
			target = sw.ToRank
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return 0, err
		}
		free, err := rankFree(ctx, q, target)
		if err != nil {
			return 0, err
		}
		if free {
			return target, nil
		}
	}
	return NextRank(ctx, q)
}

func rankFree(ctx context.Context, q store.Queries, rank int64) (bool, error) {
	t, ok, err := q.NeighborBelow(ctx, rank-1)
	if err != nil {
		return false, err
	}
	return !ok || t.Rank != rank, nil
}
