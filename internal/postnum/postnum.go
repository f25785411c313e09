// Package postnum assigns the per-topic sequential post number, which is
// independent of the global post id sequence. Post number 1 is the topic's
// first post; numbering never gaps within a topic during a run.
package postnum

import (
	"context"
	"fmt"
)

// Primer supplies the highest post number already present per topic, and can
// recompute those counters from the posts themselves.
type Primer interface {
	// HighestPostNumbers streams (topic id, highest post number) pairs for
	// every topic in the target.
	HighestPostNumbers(ctx context.Context, fn func(topicID int64, highest int) error) error
	// RepairPostNumbers recomputes each topic's highest-post-number counter
	// from its non-deleted posts, returning the number of topics corrected.
	RepairPostNumbers(ctx context.Context) (int64, error)
}

// Index tracks the next post number per topic. Single writer; posts within a
// topic must be fed in original order for numbering to reproduce the source.
type Index struct {
	highest map[int64]int
}

// NewIndex returns an empty index: every topic starts at post number 1.
func NewIndex() *Index {
	return &Index{highest: make(map[int64]int)}
}

// Prime runs the consistency repair (a previous interrupted run may have left
// stale denormalized counters) and then seeds the index from the repaired
// per-topic counters. Must complete before any post is processed.
func (i *Index) Prime(ctx context.Context, p Primer) error {
	if _, err := p.RepairPostNumbers(ctx); err != nil {
		return fmt.Errorf("repair post numbers: %w", err)
	}
	err := p.HighestPostNumbers(ctx, func(topicID int64, highest int) error {
		i.highest[topicID] = highest
		return nil
	})
	if err != nil {
		return fmt.Errorf("prime post numbers: %w", err)
	}
	return nil
}

// Next returns the next post number for topicID, starting at 1 and strictly
// increasing per topic.
func (i *Index) Next(topicID int64) int {
	i.highest[topicID]++
	return i.highest[topicID]
}

// Highest returns the last number handed out (or primed) for topicID.
func (i *Index) Highest(topicID int64) int {
	return i.highest[topicID]
}
