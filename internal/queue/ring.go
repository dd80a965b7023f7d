package queue

import (
	"fmt"

	ring "github.com/randomizedcoder/go-lock-free-ring"
)

// ShardedRing is a lock-free MPSC queue built on go-lock-free-ring.
//
// Producers write to the shard picked from Nudge.Producer, so
// producers with distinct IDs rarely contend. Pop drains shards in
// the ring's own order; there is no FIFO guarantee across producers.
type ShardedRing struct {
	r      *ring.ShardedRing
	shards uint64
}

// NewShardedRing creates a ShardedRing holding capacity nudges spread
// over shards.
func NewShardedRing(capacity, shards int) (*ShardedRing, error) {
	if capacity < 1 || shards < 1 {
		return nil, fmt.Errorf("queue: ring needs positive capacity and shards, got %d/%d", capacity, shards)
	}
	r, err := ring.NewShardedRing(uint64(capacity), uint64(shards))
	if err != nil {
		return nil, fmt.Errorf("queue: creating sharded ring: %w", err)
	}
	return &ShardedRing{r: r, shards: uint64(shards)}, nil
}

// Push writes a nudge on the producer's shard.
// Returns false if that shard is full.
func (q *ShardedRing) Push(n Nudge) bool {
	return q.r.Write(n.Producer%q.shards, n)
}

// Pop removes a nudge from any shard.
// Returns false if the ring is empty.
//
// SINGLE CONSUMER: Only ONE goroutine may call Pop().
func (q *ShardedRing) Pop() (Nudge, bool) {
	v, ok := q.r.TryRead()
	if !ok {
		return Nudge{}, false
	}
	n, ok := v.(Nudge)
	return n, ok
}

// Shards returns the number of shards.
func (q *ShardedRing) Shards() int {
	return int(q.shards)
}
