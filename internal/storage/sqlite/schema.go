package sqlite

const schemaSQL = `
CREATE TABLE IF NOT EXISTS videos (
	id               TEXT PRIMARY KEY,
	file_path        TEXT NOT NULL,
	file_hash        TEXT NOT NULL UNIQUE,
	title            TEXT NOT NULL DEFAULT '',
	duration_seconds REAL NOT NULL DEFAULT 0,
	file_size        INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'pending',
	created_at       INTEGER NOT NULL,
	updated_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id               TEXT PRIMARY KEY,
	video_id         TEXT NOT NULL,
	job_type         TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	progress         REAL NOT NULL DEFAULT 0,
	message          TEXT NOT NULL DEFAULT '',
	params           TEXT NOT NULL DEFAULT '{}',
	result           TEXT,
	error_code       TEXT NOT NULL DEFAULT '',
	error_message    TEXT NOT NULL DEFAULT '',
	cancel_requested INTEGER NOT NULL DEFAULT 0,
	created_at       INTEGER NOT NULL,
	updated_at       INTEGER NOT NULL,
	started_at       INTEGER,
	completed_at     INTEGER
);

CREATE INDEX IF NOT EXISTS idx_jobs_video_type ON jobs(video_id, job_type, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, created_at);

CREATE TABLE IF NOT EXISTS transcript_segments (
	video_id      TEXT NOT NULL,
	seq           INTEGER NOT NULL,
	window_idx    INTEGER NOT NULL,
	start_seconds REAL NOT NULL,
	end_seconds   REAL NOT NULL,
	text          TEXT NOT NULL,
	PRIMARY KEY (video_id, seq)
);

CREATE TABLE IF NOT EXISTS transcript_state (
	video_id       TEXT PRIMARY KEY,
	next_window    INTEGER NOT NULL DEFAULT 0,
	window_count   INTEGER NOT NULL DEFAULT 0,
	audio_duration REAL NOT NULL DEFAULT 0,
	updated_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS index_state (
	video_id        TEXT PRIMARY KEY,
	transcript_hash TEXT NOT NULL,
	collection      TEXT NOT NULL,
	chunk_count     INTEGER NOT NULL DEFAULT 0,
	indexed_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS summaries (
	video_id        TEXT PRIMARY KEY,
	overall         TEXT NOT NULL DEFAULT '',
	outline_json    TEXT NOT NULL DEFAULT '[]',
	params_json     TEXT NOT NULL DEFAULT '{}',
	transcript_hash TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS summary_sections (
	video_id      TEXT NOT NULL,
	section_idx   INTEGER NOT NULL,
	start_seconds REAL NOT NULL,
	end_seconds   REAL NOT NULL,
	text          TEXT NOT NULL,
	PRIMARY KEY (video_id, section_idx)
);

CREATE TABLE IF NOT EXISTS keyframes (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	video_id     TEXT NOT NULL,
	timestamp_ms INTEGER NOT NULL,
	image_path   TEXT NOT NULL,
	width        INTEGER NOT NULL DEFAULT 0,
	height       INTEGER NOT NULL DEFAULT 0,
	method       TEXT NOT NULL DEFAULT '',
	score        REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_keyframes_video ON keyframes(video_id, timestamp_ms);
`
