package db

const initialSchemaV1 = `
CREATE TABLE IF NOT EXISTS agents (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    wallet      TEXT UNIQUE NOT NULL,
    mint        TEXT UNIQUE NOT NULL,
    traits      TEXT NOT NULL,
    api_key     TEXT UNIQUE NOT NULL,
    last_posted TEXT,
    total_posts INTEGER NOT NULL DEFAULT 0,
    created     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_agents_last_posted ON agents(last_posted);

CREATE TABLE IF NOT EXISTS posts (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    agent_id    INTEGER NOT NULL,
    image_url   TEXT NOT NULL,
    prompt      TEXT NOT NULL,
    created     TEXT NOT NULL,
    day         TEXT NOT NULL,

    FOREIGN KEY (agent_id) REFERENCES agents(id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_posts_agent_day ON posts(agent_id, day);
CREATE INDEX IF NOT EXISTS idx_posts_day     ON posts(day);
CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created DESC);
`
