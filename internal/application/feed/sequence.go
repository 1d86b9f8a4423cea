package feed

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SequenceAllocator hands out the next file sequence number per batch key and
// commits it only after the file carrying it has left this system's control.
// Allocation never mutates the store, so a crashed or review run re-derives
// the same number instead of skipping it; commit uses read-verify-write so a
// concurrent run is detected instead of silently overwritten.
type SequenceAllocator struct {
	store    SequenceStore
	observed map[string]int
	logger   *zap.Logger
}

// NewSequenceAllocator creates an allocator over the given store
func NewSequenceAllocator(store SequenceStore, logger *zap.Logger) *SequenceAllocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SequenceAllocator{
		store:    store,
		observed: make(map[string]int),
		logger:   logger,
	}
}

// Next reads the persisted value for the batch key and returns the candidate
// next value without mutating the store.
func (a *SequenceAllocator) Next(ctx context.Context, key string) (int, error) {
	current, err := a.store.Current(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("reading sequence for %s: %w", key, err)
	}
	a.observed[key] = current
	next := current + 1
	a.logger.Debug("allocated candidate sequence number",
		zap.String("batch_key", key),
		zap.Int("current", current),
		zap.Int("next", next))
	return next, nil
}

// Commit persists used as the new current value for the batch key. It must
// only be called after the file embedding used was handed to the delivery
// collaborator. The write is conditional on the value observed by Next still
// being in place; shared.ErrSequenceConflict surfaces a concurrent run.
func (a *SequenceAllocator) Commit(ctx context.Context, key string, used int) error {
	observed, ok := a.observed[key]
	if !ok {
		return fmt.Errorf("commit for %s without a prior allocation", key)
	}
	if err := a.store.CompareAndSwap(ctx, key, observed, used); err != nil {
		return fmt.Errorf("committing sequence %d for %s: %w", used, key, err)
	}
	a.logger.Info("committed sequence number",
		zap.String("batch_key", key),
		zap.Int("sequence", used))
	return nil
}
