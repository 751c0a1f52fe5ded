// Package scheduler is the per-user scheduling engine. It owns one user's
// card database, maps answer scores to ratings, invokes the spaced-repetition
// algorithm, and implements the bury/cooldown mechanics.
package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jomof/kana-game/internal/domain"
	"github.com/jomof/kana-game/internal/storage"
)

// Engine binds one user's open database to a scheduling algorithm. Engines
// are cheap and request-scoped: acquire with ForUser, do the work, Close.
// Nothing mutable is shared across requests, so two concurrent requests for
// the same user serialize on the database, not on stale in-process state.
type Engine struct {
	db   *storage.DB
	algo Algorithm
	now  func() time.Time
}

// NewEngine creates an engine over an already-open database.
func NewEngine(db *storage.DB, algo Algorithm) *Engine {
	return &Engine{db: db, algo: algo, now: time.Now}
}

// ForUser opens the scheduling database for the given user under dataDir,
// creating the directory, the database, and the default scheduler
// configuration as needed.
func ForUser(dataDir, user string) (*Engine, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.Open(filepath.Join(dataDir, userFilename(user)))
	if err != nil {
		return nil, err
	}
	sched, err := db.LoadScheduler()
	if err != nil {
		db.Close()
		return nil, err
	}
	return NewEngine(db, FluxAlgorithm(sched)), nil
}

// Close releases the underlying database handle.
func (e *Engine) Close() error {
	return e.db.Close()
}

// NextDueKey returns the key of the earliest-due card at or before now, ties
// broken by creation order. The second return value is false when nothing is
// due.
func (e *Engine) NextDueKey() (string, bool, error) {
	return e.db.NextDueKey(e.now())
}

// HasCard reports whether the key has ever been answered or buried.
func (e *Engine) HasCard(key string) (bool, error) {
	return e.db.HasCard(key)
}

// RecordAnswer maps the 0-100 score to a rating, runs the card through the
// scheduling algorithm, and commits the rescheduled card together with its
// review log entry. A card is created on the fly for a key that has never
// been seen. Returns domain.ErrInvalidScore, with no state mutated, when the
// score is out of range.
func (e *Engine) RecordAnswer(key string, score int) error {
	rating, err := domain.RatingForScore(score)
	if err != nil {
		return err
	}

	now := e.now()
	card, err := e.loadOrNewCard(key, now)
	if err != nil {
		return err
	}

	newState, log := e.algo.Review(card.Flux, rating, now)
	card.Flux = newState
	card.UpdatedAt = now

	return e.db.CommitReview(card, log)
}

// Bury defers the card without judging the learner: its due time is pushed to
// at least minutes from now and nothing is appended to the review history, so
// the optimizer's training data stays pure learner signal. The lifecycle
// state is untouched. A card is created on the fly for an unknown key.
func (e *Engine) Bury(key string, minutes int) error {
	now := e.now()
	card, err := e.loadOrNewCard(key, now)
	if err != nil {
		return err
	}

	until := now.Add(time.Duration(minutes) * time.Minute)
	if card.Flux.Due.Before(until) {
		card.Flux.Due = until
	}
	card.UpdatedAt = now

	return e.db.UpsertCard(card)
}

// IsBusy reports whether the card was reviewed or buried within the last
// minutes minutes. This cooldown is independent of due-based eligibility: it
// keeps a just-touched card out of the random fallback selection.
func (e *Engine) IsBusy(key string, minutes int) (bool, error) {
	card, ok, err := e.db.FindCard(key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	last := card.UpdatedAt
	if t, ok, err := e.db.LastReviewTime(key); err != nil {
		return false, err
	} else if ok && t.After(last) {
		last = t
	}

	return e.now().Sub(last) < time.Duration(minutes)*time.Minute, nil
}

func (e *Engine) loadOrNewCard(key string, now time.Time) (domain.Card, error) {
	card, ok, err := e.db.FindCard(key)
	if err != nil {
		return domain.Card{}, err
	}
	if !ok {
		card = domain.NewCard(key, now)
	}
	return card, nil
}

// userFilename maps a user ID to a filename-safe database name.
func userFilename(user string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, user)
	if sanitized == "" || strings.Trim(sanitized, ".") == "" {
		sanitized = "default"
	}
	return sanitized + ".db"
}
