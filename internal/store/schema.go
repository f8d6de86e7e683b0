package store

// schema is executed once at Open time. Types are SQLite's (no native
// boolean/blob distinction issues: hash columns are BLOB, flags are
// INTEGER). Mirrors the entities and invariants of §3.
const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	hexid       TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL,
	body        TEXT NOT NULL,
	url         TEXT NOT NULL,
	author      TEXT NOT NULL,
	subreddit   TEXT NOT NULL,
	permalink   TEXT NOT NULL,
	ups         INTEGER NOT NULL DEFAULT 0,
	downs       INTEGER NOT NULL DEFAULT 0,
	num_comments INTEGER NOT NULL DEFAULT 0,
	created     INTEGER NOT NULL,
	over_18     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS comments (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	hexid       TEXT NOT NULL UNIQUE,
	post_id     INTEGER NOT NULL REFERENCES posts(id),
	author      TEXT NOT NULL,
	body        TEXT NOT NULL,
	permalink   TEXT NOT NULL,
	subreddit   TEXT NOT NULL,
	ups         INTEGER NOT NULL DEFAULT 0,
	downs       INTEGER NOT NULL DEFAULT 0,
	created     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS images (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	sha1   TEXT NOT NULL UNIQUE,
	hash   BLOB NOT NULL,
	width  INTEGER NOT NULL,
	height INTEGER NOT NULL,
	size   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS videos (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	sha1            TEXT NOT NULL UNIQUE,
	size            INTEGER NOT NULL,
	codec           TEXT NOT NULL DEFAULT '',
	format          TEXT NOT NULL DEFAULT '',
	width           INTEGER NOT NULL DEFAULT 0,
	height          INTEGER NOT NULL DEFAULT 0,
	bitrate         INTEGER NOT NULL DEFAULT 0,
	duration        REAL NOT NULL DEFAULT 0,
	total_frames    INTEGER NOT NULL DEFAULT 0,
	sampled_frames  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS video_frames (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	video_id INTEGER NOT NULL REFERENCES videos(id),
	hash     BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_video_frames_video_id ON video_frames(video_id);

CREATE TABLE IF NOT EXISTS albums (
	id  INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS image_urls (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	url        TEXT NOT NULL,
	clean_url  TEXT NOT NULL,
	image_id   INTEGER NOT NULL REFERENCES images(id),
	post_id    INTEGER REFERENCES posts(id),
	comment_id INTEGER REFERENCES comments(id),
	album_id   INTEGER REFERENCES albums(id)
);
CREATE INDEX IF NOT EXISTS idx_image_urls_clean_url ON image_urls(clean_url);
CREATE INDEX IF NOT EXISTS idx_image_urls_image_id ON image_urls(image_id);

CREATE TABLE IF NOT EXISTS video_urls (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	url        TEXT NOT NULL,
	clean_url  TEXT NOT NULL,
	video_id   INTEGER NOT NULL REFERENCES videos(id),
	post_id    INTEGER REFERENCES posts(id),
	comment_id INTEGER REFERENCES comments(id),
	album_id   INTEGER REFERENCES albums(id)
);
CREATE INDEX IF NOT EXISTS idx_video_urls_clean_url ON video_urls(clean_url);
CREATE INDEX IF NOT EXISTS idx_video_urls_video_id ON video_urls(video_id);
`
