package task

import (
	"context"

	"tasklist/internal/store"
)

// RankReader is the read side the sequencer needs.
type RankReader interface {
	MaxRank(ctx context.Context) (int64, bool, error)
	NeighborAbove(ctx context.Context, rank int64) (store.Task, bool, error)
	NeighborBelow(ctx context.Context, rank int64) (store.Task, bool, error)
}

// NextRank returns the rank a new task is appended at.
func NextRank(ctx context.Context, q RankReader) (int64, error) {
	top, ok, err := q.MaxRank(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return store.MinRank, nil
	}
	return top + 1, nil
}

// Neighbor returns the adjacent task in direction d, or ok=false at the boundary.
func Neighbor(ctx context.Context, q RankReader, rank int64, d Direction) (store.Task, bool, error) {
	if d == Up {
		return q.NeighborAbove(ctx, rank)
	}
	return q.NeighborBelow(ctx, rank)
}
