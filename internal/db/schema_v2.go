package db

const webhooksSchemaV2 = `
CREATE TABLE IF NOT EXISTS webhooks (
    id          TEXT PRIMARY KEY,
    url         TEXT NOT NULL,
    events      TEXT NOT NULL,
    secret      TEXT,
    created     TEXT NOT NULL,
    active      INTEGER NOT NULL DEFAULT 1
);
`
