package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sky-flux/flux"

	"github.com/jomof/kana-game/internal/domain"

	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// ErrStorage tags any failure of the underlying database. Callers treat it as
// fatal for the current request. Use errors.Is to check.
var ErrStorage = errors.New("storage unavailable")

// timeLayout is RFC 3339 with fixed-width nanoseconds. Timestamps are stored
// as UTC text; the fixed width keeps lexicographic order equal to time order,
// which the due-selection and log-ordering queries rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB is one user's scheduling database. It holds the cards, the append-only
// review history, and the singleton scheduler configuration.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
// Writers to the same file wait on the busy timeout instead of failing with
// an immediate SQLITE_BUSY, which matters when two requests for one user land
// at the same time.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, wrap(err, "open database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, wrap(err, "connect to database")
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, wrap(err, "apply schema")
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// FindCard retrieves a card by key. The second return value is false when no
// card with that key exists.
func (db *DB) FindCard(key string) (domain.Card, bool, error) {
	row := db.conn.QueryRow(`
		SELECT card_json, created_at_utc, updated_at_utc
		FROM cards WHERE key = ?
	`, key)

	var cardJSON, createdAt, updatedAt string
	err := row.Scan(&cardJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return domain.Card{}, false, nil
	}
	if err != nil {
		return domain.Card{}, false, wrap(err, "find card %q", key)
	}

	card := domain.Card{Key: key}
	if err := json.Unmarshal([]byte(cardJSON), &card.Flux); err != nil {
		return domain.Card{}, false, wrap(err, "decode card %q", key)
	}
	if card.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Card{}, false, wrap(err, "decode card %q", key)
	}
	if card.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Card{}, false, wrap(err, "decode card %q", key)
	}
	return card, true, nil
}

// UpsertCard inserts the card or replaces its state if the key already
// exists. created_at_utc is only written on first insert.
func (db *DB) UpsertCard(card domain.Card) error {
	if err := upsertCard(db.conn, card); err != nil {
		return wrap(err, "upsert card %q", card.Key)
	}
	return nil
}

// CommitReview persists a reviewed card together with its review log entry as
// a single transaction. An observer never sees one without the other.
func (db *DB) CommitReview(card domain.Card, log flux.ReviewLog) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return wrap(err, "begin review commit for %q", card.Key)
	}
	defer tx.Rollback()

	if err := upsertCard(tx, card); err != nil {
		return wrap(err, "commit card %q", card.Key)
	}
	if err := appendReviewLog(tx, card.Key, log); err != nil {
		return wrap(err, "commit review log for %q", card.Key)
	}
	if err := tx.Commit(); err != nil {
		return wrap(err, "commit review for %q", card.Key)
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsertCard(e execer, card domain.Card) error {
	cardJSON, err := json.Marshal(card.Flux)
	if err != nil {
		return err
	}
	_, err = e.Exec(`
		INSERT INTO cards (key, card_json, due_utc, created_at_utc, updated_at_utc)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			card_json = excluded.card_json,
			due_utc = excluded.due_utc,
			updated_at_utc = excluded.updated_at_utc
	`,
		card.Key,
		string(cardJSON),
		formatTime(card.Flux.Due),
		formatTime(card.CreatedAt),
		formatTime(card.UpdatedAt),
	)
	return err
}

func appendReviewLog(e execer, key string, log flux.ReviewLog) error {
	reviewJSON, err := json.Marshal(log)
	if err != nil {
		return err
	}
	_, err = e.Exec(`
		INSERT INTO review_logs (key, rating, review_json, reviewed_at_utc)
		VALUES (?, ?, ?, ?)
	`,
		key,
		int(log.Rating),
		string(reviewJSON),
		formatTime(log.ReviewDatetime),
	)
	return err
}

// HasCard reports whether a card with the given key exists, regardless of its
// due status.
func (db *DB) HasCard(key string) (bool, error) {
	row := db.conn.QueryRow(`SELECT 1 FROM cards WHERE key = ? LIMIT 1`, key)
	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, wrap(err, "check card %q", key)
	}
	return true, nil
}

// NextDueKey returns the key of the card with the earliest due time not after
// now. Ties are broken by insertion order. The second return value is false
// when no card is due.
func (db *DB) NextDueKey(now time.Time) (string, bool, error) {
	row := db.conn.QueryRow(`
		SELECT key
		FROM cards
		WHERE due_utc <= ?
		ORDER BY due_utc ASC, rowid ASC
		LIMIT 1
	`, formatTime(now))

	var key string
	err := row.Scan(&key)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap(err, "select next due card")
	}
	return key, true, nil
}

// LastReviewTime returns the most recent reviewed_at across the key's review
// logs. The second return value is false when the key has never been reviewed.
func (db *DB) LastReviewTime(key string) (time.Time, bool, error) {
	row := db.conn.QueryRow(`
		SELECT MAX(reviewed_at_utc) FROM review_logs WHERE key = ?
	`, key)

	var last sql.NullString
	if err := row.Scan(&last); err != nil {
		return time.Time{}, false, wrap(err, "last review time for %q", key)
	}
	if !last.Valid {
		return time.Time{}, false, nil
	}
	t, err := parseTime(last.String)
	if err != nil {
		return time.Time{}, false, wrap(err, "last review time for %q", key)
	}
	return t, true, nil
}

// AllReviewLogs returns every review log for this user ordered by review
// time, oldest first. The optimizer depends on this ordering.
func (db *DB) AllReviewLogs() ([]flux.ReviewLog, error) {
	rows, err := db.conn.Query(`
		SELECT review_json FROM review_logs ORDER BY reviewed_at_utc ASC, id ASC
	`)
	if err != nil {
		return nil, wrap(err, "load review logs")
	}
	defer rows.Close()

	var logs []flux.ReviewLog
	for rows.Next() {
		var reviewJSON string
		if err := rows.Scan(&reviewJSON); err != nil {
			return nil, wrap(err, "scan review log")
		}
		var log flux.ReviewLog
		if err := json.Unmarshal([]byte(reviewJSON), &log); err != nil {
			return nil, wrap(err, "decode review log")
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err, "load review logs")
	}
	return logs, nil
}

// LoadScheduler returns the stored scheduler configuration, creating and
// persisting the default configuration on first call.
func (db *DB) LoadScheduler() (*flux.Scheduler, error) {
	row := db.conn.QueryRow(`SELECT scheduler_json FROM scheduler WHERE id = 1`)

	var schedulerJSON string
	err := row.Scan(&schedulerJSON)
	if err == sql.ErrNoRows {
		sched, err := flux.NewScheduler(flux.SchedulerConfig{})
		if err != nil {
			return nil, fmt.Errorf("default scheduler: %w", err)
		}
		data, err := json.Marshal(sched)
		if err != nil {
			return nil, fmt.Errorf("encode default scheduler: %w", err)
		}
		// DO NOTHING rather than fail: a concurrent first call for the same
		// user may have inserted the row between the read and here. Re-read
		// so both callers return whatever the winner stored.
		if _, err := db.conn.Exec(`
			INSERT INTO scheduler (id, scheduler_json, last_optimized_at_utc)
			VALUES (1, ?, NULL)
			ON CONFLICT(id) DO NOTHING
		`, string(data)); err != nil {
			return nil, wrap(err, "store default scheduler")
		}
		row = db.conn.QueryRow(`SELECT scheduler_json FROM scheduler WHERE id = 1`)
		err = row.Scan(&schedulerJSON)
	}
	if err != nil {
		return nil, wrap(err, "load scheduler")
	}

	var sched flux.Scheduler
	if err := json.Unmarshal([]byte(schedulerJSON), &sched); err != nil {
		return nil, wrap(err, "decode scheduler")
	}
	return &sched, nil
}

// SaveScheduler replaces the stored scheduler configuration wholesale and
// records when it was last optimized.
func (db *DB) SaveScheduler(sched *flux.Scheduler, optimizedAt time.Time) error {
	data, err := json.Marshal(sched)
	if err != nil {
		return fmt.Errorf("encode scheduler: %w", err)
	}
	if _, err := db.conn.Exec(`
		INSERT INTO scheduler (id, scheduler_json, last_optimized_at_utc)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			scheduler_json = excluded.scheduler_json,
			last_optimized_at_utc = excluded.last_optimized_at_utc
	`, string(data), formatTime(optimizedAt)); err != nil {
		return wrap(err, "save scheduler")
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// wrap tags err with ErrStorage while preserving the driver error chain.
func wrap(err error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errors.Join(ErrStorage, err))
}
