package util

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// LockBridge bounds how many blocking filesystem operations (section
// opens, splices, stats) run concurrently across a generate or clear
// run, so a slow disk never monopolizes more than its fair share of
// concurrency.
type LockBridge struct {
	sem *semaphore.Weighted
}

// NewLockBridge returns a LockBridge that admits at most concurrency
// simultaneous operations.
func NewLockBridge(concurrency int64) *LockBridge {
	return &LockBridge{sem: semaphore.NewWeighted(concurrency)}
}

// Run blocks the caller until a slot is free (or ctx is done), then
// executes fn and releases the slot.
func (b *LockBridge) Run(ctx context.Context, fn func() error) error {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer b.sem.Release(1)
	return fn()
}
