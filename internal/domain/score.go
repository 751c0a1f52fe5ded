package domain

import (
	"errors"
	"fmt"

	"github.com/sky-flux/flux"
)

// ErrInvalidScore is returned when an answer score is outside 0..100.
// Use errors.Is to check.
var ErrInvalidScore = errors.New("score out of range 0..100")

// RatingForScore maps a 0-100 answer score to the rating consumed by the
// scheduling algorithm. The percentage is the one canonical unit at the
// boundary; the ordinal rating exists only past this function.
//
//	score >= 90 -> Easy
//	score >= 75 -> Good
//	score >= 50 -> Hard
//	otherwise   -> Again
func RatingForScore(score int) (flux.Rating, error) {
	if score < 0 || score > 100 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidScore, score)
	}
	switch {
	case score >= 90:
		return flux.Easy, nil
	case score >= 75:
		return flux.Good, nil
	case score >= 50:
		return flux.Hard, nil
	default:
		return flux.Again, nil
	}
}
