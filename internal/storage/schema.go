package storage

const schema = `
-- One row per (question key). The algorithm's card state is stored as a JSON
-- blob; due and the bookkeeping timestamps are denormalized into columns so
-- due-selection is a plain indexed query.
CREATE TABLE IF NOT EXISTS cards (
    key TEXT PRIMARY KEY,
    card_json TEXT NOT NULL,
    due_utc TEXT NOT NULL,
    created_at_utc TEXT NOT NULL,
    updated_at_utc TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cards_due ON cards (due_utc);

-- Append-only review history, ordered by reviewed_at_utc (and id for
-- same-instant ties). Rows are never updated or deleted.
CREATE TABLE IF NOT EXISTS review_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    key TEXT NOT NULL,
    rating INTEGER NOT NULL,
    review_json TEXT NOT NULL,
    reviewed_at_utc TEXT NOT NULL,

    FOREIGN KEY(key) REFERENCES cards(key)
);

CREATE INDEX IF NOT EXISTS idx_review_logs_key ON review_logs (key, reviewed_at_utc);

-- Singleton scheduler configuration for this user, replaced wholesale by the
-- optimizer.
CREATE TABLE IF NOT EXISTS scheduler (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    scheduler_json TEXT NOT NULL,
    last_optimized_at_utc TEXT
);
`
