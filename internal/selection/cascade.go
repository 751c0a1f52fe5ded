// Package selection chooses exactly one question per request from the
// catalog, falling back through progressively weaker scheduling criteria so a
// non-empty catalog always yields a question.
package selection

import (
	"math/rand"

	"github.com/jomof/kana-game/internal/domain"
)

// SchedulerView is the slice of the scheduling engine the cascade consults.
type SchedulerView interface {
	NextDueKey() (string, bool, error)
	HasCard(key string) (bool, error)
	IsBusy(key string, minutes int) (bool, error)
}

// Next picks the question to present:
//
//  1. An empty catalog yields nothing.
//  2. The due card chosen by the scheduler, if its key maps to a question.
//  3. The first question in catalog order that has never been reviewed.
//  4. A uniformly random question outside its cooldown window.
//  5. A uniformly random question from the whole catalog.
//
// Steps 4 and 5 trade scheduling fidelity for availability: given a non-empty
// catalog, Next only returns false on a storage failure.
//
// rng may be nil, in which case the shared math/rand source is used.
func Next(questions []domain.Question, view SchedulerView, cooldownMinutes int, rng *rand.Rand) (domain.Question, bool, error) {
	if len(questions) == 0 {
		return domain.Question{}, false, nil
	}

	dueKey, ok, err := view.NextDueKey()
	if err != nil {
		return domain.Question{}, false, err
	}
	if ok {
		for _, q := range questions {
			if q.Prompt == dueKey {
				return q, true, nil
			}
		}
		// A due card with no catalog entry means the prompt was edited or
		// removed; fall through rather than fail.
	}

	for _, q := range questions {
		has, err := view.HasCard(q.Prompt)
		if err != nil {
			return domain.Question{}, false, err
		}
		if !has {
			return q, true, nil
		}
	}

	var idle []domain.Question
	for _, q := range questions {
		busy, err := view.IsBusy(q.Prompt, cooldownMinutes)
		if err != nil {
			return domain.Question{}, false, err
		}
		if !busy {
			idle = append(idle, q)
		}
	}
	if len(idle) > 0 {
		return idle[pick(rng, len(idle))], true, nil
	}

	// Every question has a card (step 3 found none unreviewed) and every card
	// is inside its cooldown window. Availability wins: pick anything.
	return questions[pick(rng, len(questions))], true, nil
}

func pick(rng *rand.Rand, n int) int {
	if rng != nil {
		return rng.Intn(n)
	}
	return rand.Intn(n)
}
