package domain

import (
	"hash/fnv"
	"math"
	"time"

	"github.com/sky-flux/flux"
)

// Card is the per-user scheduling state for one question. The key is the
// question's prompt text, so catalog content and scheduling history are
// joined by exact string match. Stability, difficulty and lifecycle state
// live inside the embedded flux card and are only ever mutated by the
// scheduling algorithm.
type Card struct {
	Key       string
	Flux      flux.Card
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCard creates a card for a key that has never been seen before.
// It is due immediately.
func NewCard(key string, now time.Time) Card {
	step := 0
	return Card{
		Key: key,
		Flux: flux.Card{
			CardID: CardID(key),
			State:  flux.Learning,
			Step:   &step,
			Due:    now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CardID derives the numeric card identifier the algorithm uses from the
// question key. The optimizer groups review logs by this ID, so it must be
// stable across runs and distinct per key.
func CardID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64() & math.MaxInt64)
}
