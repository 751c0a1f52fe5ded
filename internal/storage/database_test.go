package storage

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sky-flux/flux"

	"github.com/jomof/kana-game/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() returned an unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFindCardAbsent(t *testing.T) {
	db := openTestDB(t)

	_, ok, err := db.FindCard("missing")
	if err != nil {
		t.Fatalf("FindCard() returned an unexpected error: %v", err)
	}
	if ok {
		t.Error("Expected no card for an unknown key")
	}
}

func TestUpsertCardRoundTrip(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	card := domain.NewCard("prompt-a", now)

	if err := db.UpsertCard(card); err != nil {
		t.Fatalf("UpsertCard() returned an unexpected error: %v", err)
	}

	got, ok, err := db.FindCard("prompt-a")
	if err != nil {
		t.Fatalf("FindCard() returned an unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("Expected the card to exist after upsert")
	}
	if !got.Flux.Due.Equal(card.Flux.Due) {
		t.Errorf("Expected due %v, got %v", card.Flux.Due, got.Flux.Due)
	}
	if !got.CreatedAt.Equal(now) || !got.UpdatedAt.Equal(now) {
		t.Errorf("Expected timestamps %v, got created=%v updated=%v", now, got.CreatedAt, got.UpdatedAt)
	}

	// Replacing the card keeps created_at but moves updated_at.
	later := now.Add(time.Hour)
	card.Flux.Due = later
	card.UpdatedAt = later
	if err := db.UpsertCard(card); err != nil {
		t.Fatalf("UpsertCard() returned an unexpected error on replace: %v", err)
	}

	got, _, err = db.FindCard("prompt-a")
	if err != nil {
		t.Fatalf("FindCard() returned an unexpected error: %v", err)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("Expected created_at to stay %v, got %v", now, got.CreatedAt)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Errorf("Expected updated_at %v, got %v", later, got.UpdatedAt)
	}
}

func TestHasCard(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()

	has, err := db.HasCard("prompt-a")
	if err != nil {
		t.Fatalf("HasCard() returned an unexpected error: %v", err)
	}
	if has {
		t.Error("Expected HasCard to be false before any write")
	}

	if err := db.UpsertCard(domain.NewCard("prompt-a", now)); err != nil {
		t.Fatalf("UpsertCard() returned an unexpected error: %v", err)
	}

	has, err = db.HasCard("prompt-a")
	if err != nil {
		t.Fatalf("HasCard() returned an unexpected error: %v", err)
	}
	if !has {
		t.Error("Expected HasCard to be true after upsert")
	}
}

func TestNextDueKeyOrdering(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	early := domain.NewCard("early", now.Add(-2*time.Hour))
	late := domain.NewCard("late", now.Add(-time.Hour))
	future := domain.NewCard("future", now.Add(time.Hour))
	for _, card := range []domain.Card{late, early, future} {
		if err := db.UpsertCard(card); err != nil {
			t.Fatalf("UpsertCard(%s) returned an unexpected error: %v", card.Key, err)
		}
	}

	key, ok, err := db.NextDueKey(now)
	if err != nil {
		t.Fatalf("NextDueKey() returned an unexpected error: %v", err)
	}
	if !ok || key != "early" {
		t.Errorf("Expected the earliest due card 'early', got %q (ok=%v)", key, ok)
	}

	key, ok, err = db.NextDueKey(now.Add(-3 * time.Hour))
	if err != nil {
		t.Fatalf("NextDueKey() returned an unexpected error: %v", err)
	}
	if ok {
		t.Errorf("Expected no due card before any due time, got %q", key)
	}
}

func TestNextDueKeyTiesBreakByInsertionOrder(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(-time.Hour)

	for _, key := range []string{"second-inserted-first", "first-alphabetically"} {
		if err := db.UpsertCard(domain.NewCard(key, due)); err != nil {
			t.Fatalf("UpsertCard(%s) returned an unexpected error: %v", key, err)
		}
	}

	key, ok, err := db.NextDueKey(now)
	if err != nil {
		t.Fatalf("NextDueKey() returned an unexpected error: %v", err)
	}
	if !ok || key != "second-inserted-first" {
		t.Errorf("Expected insertion order to break the tie, got %q", key)
	}
}

func TestCommitReviewIsAtomic(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	card := domain.NewCard("prompt-a", now)
	card.Flux.Due = now.Add(24 * time.Hour)

	log := flux.ReviewLog{
		CardID:         card.Flux.CardID,
		Rating:         flux.Good,
		ReviewDatetime: now,
	}
	if err := db.CommitReview(card, log); err != nil {
		t.Fatalf("CommitReview() returned an unexpected error: %v", err)
	}

	got, ok, err := db.FindCard("prompt-a")
	if err != nil || !ok {
		t.Fatalf("Expected the committed card to exist, got ok=%v err=%v", ok, err)
	}
	if !got.Flux.Due.Equal(card.Flux.Due) {
		t.Errorf("Expected due %v, got %v", card.Flux.Due, got.Flux.Due)
	}

	last, ok, err := db.LastReviewTime("prompt-a")
	if err != nil {
		t.Fatalf("LastReviewTime() returned an unexpected error: %v", err)
	}
	if !ok || !last.Equal(now) {
		t.Errorf("Expected last review time %v, got %v (ok=%v)", now, last, ok)
	}
}

func TestAllReviewLogsOrdered(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	card := domain.NewCard("prompt-a", base)

	// Insert out of time order; reads must come back oldest first.
	for _, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		log := flux.ReviewLog{
			CardID:         card.Flux.CardID,
			Rating:         flux.Good,
			ReviewDatetime: base.Add(offset),
		}
		card.UpdatedAt = base.Add(offset)
		if err := db.CommitReview(card, log); err != nil {
			t.Fatalf("CommitReview() returned an unexpected error: %v", err)
		}
	}

	logs, err := db.AllReviewLogs()
	if err != nil {
		t.Fatalf("AllReviewLogs() returned an unexpected error: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("Expected 3 review logs, got %d", len(logs))
	}
	for i := 1; i < len(logs); i++ {
		if logs[i].ReviewDatetime.Before(logs[i-1].ReviewDatetime) {
			t.Errorf("Expected logs ordered by review time, got %v before %v",
				logs[i-1].ReviewDatetime, logs[i].ReviewDatetime)
		}
	}
}

func TestLoadSchedulerCreatesDefault(t *testing.T) {
	db := openTestDB(t)

	sched, err := db.LoadScheduler()
	if err != nil {
		t.Fatalf("LoadScheduler() returned an unexpected error: %v", err)
	}
	if sched == nil {
		t.Fatal("Expected a default scheduler on first load")
	}

	// The default must have been persisted: a second load succeeds and the
	// singleton row is replaceable.
	again, err := db.LoadScheduler()
	if err != nil {
		t.Fatalf("Second LoadScheduler() returned an unexpected error: %v", err)
	}
	if again == nil {
		t.Fatal("Expected the persisted scheduler on second load")
	}

	if err := db.SaveScheduler(sched, time.Now().UTC()); err != nil {
		t.Fatalf("SaveScheduler() returned an unexpected error: %v", err)
	}
}

func TestLoadSchedulerConcurrentFirstLoad(t *testing.T) {
	// Two requests for a brand-new user race the default-scheduler insert.
	// Both must succeed; neither may surface a constraint violation.
	path := filepath.Join(t.TempDir(), "test.db")

	const loaders = 8
	errs := make(chan error, loaders)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < loaders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			db, err := Open(path)
			if err != nil {
				errs <- err
				return
			}
			defer db.Close()
			<-start
			_, err = db.LoadScheduler()
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Concurrent LoadScheduler() returned an unexpected error: %v", err)
		}
	}
}

func TestConcurrentWritersWaitInsteadOfFailing(t *testing.T) {
	// Two connections to the same user file commit reviews at the same time,
	// as happens on a rapid double submit. The busy timeout makes the loser
	// wait; neither commit may fail.
	path := filepath.Join(t.TempDir(), "test.db")
	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open() returned an unexpected error: %v", err)
	}
	defer a.Close()
	b, err := Open(path)
	if err != nil {
		t.Fatalf("Open() returned an unexpected error: %v", err)
	}
	defer b.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	write := func(db *DB, key string) {
		defer wg.Done()
		for i := 0; i < 5; i++ {
			card := domain.NewCard(key, now)
			log := flux.ReviewLog{
				CardID:         card.Flux.CardID,
				Rating:         flux.Good,
				ReviewDatetime: now.Add(time.Duration(i) * time.Minute),
			}
			if err := db.CommitReview(card, log); err != nil {
				t.Errorf("CommitReview(%q) returned an unexpected error: %v", key, err)
				return
			}
		}
	}
	wg.Add(2)
	go write(a, "prompt-a")
	go write(b, "prompt-b")
	wg.Wait()

	logs, err := a.AllReviewLogs()
	if err != nil {
		t.Fatalf("AllReviewLogs() returned an unexpected error: %v", err)
	}
	if len(logs) != 10 {
		t.Errorf("Expected 10 review logs across both writers, got %d", len(logs))
	}
}

func TestStorageErrorsAreTagged(t *testing.T) {
	db := openTestDB(t)
	db.Close()

	_, _, err := db.FindCard("prompt-a")
	if !errors.Is(err, ErrStorage) {
		t.Errorf("Expected ErrStorage after close, got %v", err)
	}
}
