package resultstore

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    crate_name TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,
    total INTEGER NOT NULL,
    pass INTEGER NOT NULL,
    regressed INTEGER NOT NULL,
    broken INTEGER NOT NULL,
    errored INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_crate_name ON runs(crate_name);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

CREATE TABLE IF NOT EXISTS results (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    version TEXT NOT NULL,
    verdict TEXT NOT NULL,
    detail TEXT,
    base_duration_ms INTEGER,
    next_duration_ms INTEGER,
    PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_results_name ON results(name);
`
