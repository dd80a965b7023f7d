// Package queue carries tick requests ("nudges") from many goroutines
// to the single goroutine that owns a gate.
//
// This package offers two implementations of the Queue interface:
//   - ChannelQueue: Standard library approach using a buffered channel
//   - ShardedRing: Lock-free sharded MPSC ring (go-lock-free-ring)
//
// Both are multi-producer. Exactly ONE goroutine may call Pop().
package queue

import (
	"errors"
	"fmt"
)

// Kinds accepted by New.
const (
	KindChannel = "channel"
	KindRing    = "ring"
)

// ErrUnknownKind is returned by New for an unrecognized queue kind.
var ErrUnknownKind = errors.New("queue: unknown kind")

// Nudge asks the consumer to tick its gate.
type Nudge struct {
	// Producer identifies the sender. ShardedRing uses it to pick a
	// shard, so each producing goroutine should use a stable value.
	Producer uint64
}

// Queue is a multi-producer single-consumer queue of nudges.
//
// Implementations are non-blocking: Push returns false if full,
// Pop returns false if empty.
type Queue interface {
	// Push adds a nudge. Safe for concurrent use.
	Push(Nudge) bool

	// Pop removes a nudge. Single consumer only.
	Pop() (Nudge, bool)
}

// New builds a queue of the given kind. shards is only used by
// KindRing.
func New(kind string, capacity, shards int) (Queue, error) {
	switch kind {
	case KindChannel:
		if capacity < 1 {
			return nil, fmt.Errorf("queue: channel capacity must be positive, got %d", capacity)
		}
		return NewChannel[Nudge](capacity), nil
	case KindRing:
		return NewShardedRing(capacity, shards)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
