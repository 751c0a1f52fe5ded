package scheduler

import (
	"time"

	"github.com/sky-flux/flux"
)

// Algorithm is the narrow boundary to the spaced-repetition model. Given a
// card's current state and the learner's rating it produces the rescheduled
// state and a log entry. The engine treats stability, difficulty and the
// lifecycle state as opaque outputs.
//
// Production code uses the FSRS implementation via FluxAlgorithm; tests use a
// deterministic stub so the engine's persistence and cascade logic can be
// exercised without the real model.
type Algorithm interface {
	Review(card flux.Card, rating flux.Rating, now time.Time) (flux.Card, flux.ReviewLog)
}

type fluxAlgorithm struct {
	sched *flux.Scheduler
}

// FluxAlgorithm adapts a flux FSRS scheduler to the Algorithm boundary.
func FluxAlgorithm(sched *flux.Scheduler) Algorithm {
	return fluxAlgorithm{sched: sched}
}

func (a fluxAlgorithm) Review(card flux.Card, rating flux.Rating, now time.Time) (flux.Card, flux.ReviewLog) {
	return a.sched.ReviewCard(card, rating, now)
}
