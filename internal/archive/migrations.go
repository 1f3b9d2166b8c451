package archive

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    mode        TEXT NOT NULL,
    started_at  DATETIME NOT NULL,
    finished_at DATETIME NOT NULL,
    platforms   INTEGER NOT NULL DEFAULT 0,
    failed      INTEGER NOT NULL DEFAULT 0,
    items       INTEGER NOT NULL DEFAULT 0,
    matched     INTEGER NOT NULL DEFAULT 0,
    selected    INTEGER NOT NULL DEFAULT 0,
    dispatched  BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS observations (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL REFERENCES runs(id),
    key         TEXT NOT NULL,
    platform    TEXT NOT NULL,
    title       TEXT NOT NULL,
    url         TEXT NOT NULL DEFAULT '',
    rank        INTEGER NOT NULL,
    day         TEXT NOT NULL,
    observed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_observations_run ON observations(run_id);
CREATE INDEX IF NOT EXISTS idx_observations_key ON observations(key);
CREATE INDEX IF NOT EXISTS idx_observations_day ON observations(day);
CREATE INDEX IF NOT EXISTS idx_observations_platform ON observations(platform);

CREATE TABLE IF NOT EXISTS digest_entries (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL REFERENCES runs(id),
    key         TEXT NOT NULL,
    platform    TEXT NOT NULL,
    title       TEXT NOT NULL,
    url         TEXT NOT NULL DEFAULT '',
    rank        INTEGER NOT NULL,
    delta       INTEGER,
    is_new      BOOLEAN NOT NULL DEFAULT 0,
    rule_groups TEXT NOT NULL DEFAULT '[]',
    created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_digest_entries_run ON digest_entries(run_id);
CREATE INDEX IF NOT EXISTS idx_digest_entries_key ON digest_entries(key);
`
