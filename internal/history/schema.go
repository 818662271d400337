package history

// Schema contains the SQL schema for the fetch history journal. Only
// request metadata is recorded; message content is never persisted.
const Schema = `
CREATE TABLE IF NOT EXISTS fetches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    provider TEXT NOT NULL,
    outcome TEXT NOT NULL,
    duration_ms INTEGER NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_fetches_created_at ON fetches(created_at);
CREATE INDEX IF NOT EXISTS idx_fetches_provider ON fetches(provider);
`
