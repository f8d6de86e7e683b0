// Package store implements the media store (C6, §4.6): a
// deduplicating writer over images, videos, frames, albums and their
// url-bindings, with the race-safe insert-or-lookup pattern required
// by §9 ("do not use read-then-write").
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/simon987/irarchives-go/internal/ferrors"
	"github.com/simon987/irarchives-go/internal/phash"
)

// maxTransientRetries/transientRetryDelay bound the reconnect-and-retry
// policy for a transient store error (§4.6, §7 point (i)): SQLite has
// no separate connection to reopen, so "reconnect" here means retrying
// the same statement against the same *sql.DB once the busy window
// that caused the lock/i/o error has passed.
const (
	maxTransientRetries = 3
	transientRetryDelay = 50 * time.Millisecond
)

// DB wraps a SQLite-backed media store. A sync.RWMutex serializes
// writes the way the teacher's storage.DB does, since modernc.org/sqlite
// does not tolerate unbounded concurrent writers on one *sql.DB.
type DB struct {
	sqldb *sql.DB
	mu    sync.RWMutex
}

// Open opens or creates the SQLite database at dsn (a file path, or
// ":memory:" for tests) and applies the schema.
func Open(dsn string) (*DB, error) {
	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}

	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqldb.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers anyway

	if _, err := sqldb.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := sqldb.Exec(schema); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &DB{sqldb: sqldb}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error { return d.sqldb.Close() }

// PostInput carries the fields needed to insert a Post (§3).
type PostInput struct {
	HexID       string
	Title       string
	Body        string
	URL         string
	Author      string
	Subreddit   string
	Permalink   string
	Ups         int
	Downs       int
	NumComments int
	Created     int64
	Over18      bool
}

// InsertPost inserts a post on first-seen envelope; a repeat hexid is
// a no-op (posts are immutable after first insert, §3).
func (d *DB) InsertPost(p PostInput) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.execRetry("insert_post", `
		INSERT INTO posts (hexid, title, body, url, author, subreddit, permalink, ups, downs, num_comments, created, over_18)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hexid) DO NOTHING
	`, p.HexID, p.Title, p.Body, p.URL, p.Author, p.Subreddit, p.Permalink, p.Ups, p.Downs, p.NumComments, p.Created, boolToInt(p.Over18))
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		id, _ := res.LastInsertId()
		return id, nil
	}
	var id int64
	if err := d.queryRowRetry("lookup_post", `SELECT id FROM posts WHERE hexid = ?`, []interface{}{p.HexID}, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// CommentInput carries the fields needed to insert a Comment (§3).
type CommentInput struct {
	HexID     string
	PostID    int64
	Author    string
	Body      string
	Permalink string
	Subreddit string
	Ups       int
	Downs     int
	Created   int64
}

// InsertComment inserts a comment, created only by the caller when
// the comment body yields at least one classifiable media link (§3).
func (d *DB) InsertComment(c CommentInput) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.execRetry("insert_comment", `
		INSERT INTO comments (hexid, post_id, author, body, permalink, subreddit, ups, downs, created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hexid) DO NOTHING
	`, c.HexID, c.PostID, c.Author, c.Body, c.Permalink, c.Subreddit, c.Ups, c.Downs, c.Created)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		id, _ := res.LastInsertId()
		return id, nil
	}
	var id int64
	if err := d.queryRowRetry("lookup_comment", `SELECT id FROM comments WHERE hexid = ?`, []interface{}{c.HexID}, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// UpsertImage inserts an image, or returns the existing row's id on a
// sha1 conflict — the race-safe path against two concurrent ingesters
// hashing the same bytes (§4.6, §9).
func (d *DB) UpsertImage(sha1 string, h phash.Hash, width, height, size int) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.execRetry("upsert_image", `
		INSERT INTO images (sha1, hash, width, height, size) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(sha1) DO NOTHING
	`, sha1, h.Bytes(), width, height, size)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		id, _ := res.LastInsertId()
		return id, nil
	}
	var id int64
	if err := d.queryRowRetry("lookup_image_by_sha1", `SELECT id FROM images WHERE sha1 = ?`, []interface{}{sha1}, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// VideoInfo carries the probe/extraction metadata for UpsertVideo.
type VideoInfo struct {
	Codec         string
	Format        string
	Width         int
	Height        int
	BitRate       int64
	Duration      float64
	TotalFrames   int
	SampledFrames int
}

// UpsertVideo is the video analogue of UpsertImage.
func (d *DB) UpsertVideo(sha1 string, size int, info VideoInfo) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.execRetry("upsert_video", `
		INSERT INTO videos (sha1, size, codec, format, width, height, bitrate, duration, total_frames, sampled_frames)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sha1) DO NOTHING
	`, sha1, size, info.Codec, info.Format, info.Width, info.Height, info.BitRate, info.Duration, info.TotalFrames, info.SampledFrames)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		id, _ := res.LastInsertId()
		return id, nil
	}
	var id int64
	if err := d.queryRowRetry("lookup_video_by_sha1", `SELECT id FROM videos WHERE sha1 = ?`, []interface{}{sha1}, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// InsertFrames inserts one row per frame hash for videoID, one INSERT
// per frame inside a single transaction, and returns their ids in
// insertion order (§4.6).
func (d *DB) InsertFrames(videoID int64, hashes []phash.Hash) ([]int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids := make([]int64, 0, len(hashes))
	var tx *sql.Tx
	if err := retryOp("insert_frames.begin", func() error {
		var beginErr error
		tx, beginErr = d.sqldb.Begin()
		return beginErr
	}); err != nil {
		return nil, err
	}
	stmt, err := tx.Prepare(`INSERT INTO video_frames (video_id, hash) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return nil, wrapStoreErr("insert_frames.prepare", err)
	}
	defer stmt.Close()

	for _, h := range hashes {
		res, err := stmt.Exec(videoID, h.Bytes())
		if err != nil {
			tx.Rollback()
			return nil, wrapStoreErr("insert_frames.exec", err)
		}
		id, _ := res.LastInsertId()
		ids = append(ids, id)
	}
	if err := retryOp("insert_frames.commit", tx.Commit); err != nil {
		return nil, err
	}
	return ids, nil
}

// URLBinding describes the optional owning entity for bind_url (§4.6).
// Exactly one of PostID/CommentID/AlbumID should be set (or none, for
// a query-initiated index-only insert, §3).
type URLBinding struct {
	URL       string
	CleanURL  string
	PostID    sql.NullInt64
	CommentID sql.NullInt64
	AlbumID   sql.NullInt64
}

// BindImageURL inserts a url-binding row for an image. Conflicts are
// ignored (best-effort uniqueness, §4.6).
func (d *DB) BindImageURL(imageID int64, b URLBinding) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.execRetry("bind_image_url", `
		INSERT INTO image_urls (url, clean_url, image_id, post_id, comment_id, album_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, b.URL, b.CleanURL, imageID, b.PostID, b.CommentID, b.AlbumID)
	return err
}

// BindVideoURL is the video analogue of BindImageURL.
func (d *DB) BindVideoURL(videoID int64, b URLBinding) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.execRetry("bind_video_url", `
		INSERT INTO video_urls (url, clean_url, video_id, post_id, comment_id, album_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, b.URL, b.CleanURL, videoID, b.PostID, b.CommentID, b.AlbumID)
	return err
}

// GetOrCreateAlbum is the insert-then-select pattern for Album (§4.6).
func (d *DB) GetOrCreateAlbum(url string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.execRetry("get_or_create_album", `INSERT INTO albums (url) VALUES (?) ON CONFLICT(url) DO NOTHING`, url)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		id, _ := res.LastInsertId()
		return id, nil
	}
	var id int64
	if err := d.queryRowRetry("lookup_album", `SELECT id FROM albums WHERE url = ?`, []interface{}{url}, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// LookupImageBySHA1 returns the image id for sha1, if any.
func (d *DB) LookupImageBySHA1(sha1 string) (int64, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var id int64
	err := d.queryRowRetry("lookup_image_by_sha1", `SELECT id FROM images WHERE sha1 = ?`, []interface{}{sha1}, &id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// LookupImageByCleanURL returns the image id bound to cleanURL, if any.
func (d *DB) LookupImageByCleanURL(cleanURL string) (int64, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var id int64
	err := d.queryRowRetry("lookup_image_by_clean_url", `SELECT image_id FROM image_urls WHERE clean_url = ? LIMIT 1`, []interface{}{cleanURL}, &id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// LookupImageHashByCleanURL returns the dhash of the image bound to
// cleanURL, if any.
func (d *DB) LookupImageHashByCleanURL(cleanURL string) (phash.Hash, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var raw []byte
	err := d.queryRowRetry("lookup_image_hash_by_clean_url", `
		SELECT images.hash FROM image_urls
		JOIN images ON images.id = image_urls.image_id
		WHERE image_urls.clean_url = ? LIMIT 1
	`, []interface{}{cleanURL}, &raw)
	if err == sql.ErrNoRows {
		return phash.Hash{}, false, nil
	}
	if err != nil {
		return phash.Hash{}, false, err
	}
	h, ok := phash.FromBytes(raw)
	return h, ok, nil
}

// LookupVideoByCleanURL returns the video id bound to cleanURL, if any.
func (d *DB) LookupVideoByCleanURL(cleanURL string) (int64, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var id int64
	err := d.queryRowRetry("lookup_video_by_clean_url", `SELECT video_id FROM video_urls WHERE clean_url = ? LIMIT 1`, []interface{}{cleanURL}, &id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Stats is the /status payload shape (§6).
type Stats struct {
	Posts      int64 `json:"posts"`
	Comments   int64 `json:"comments"`
	Videos     int64 `json:"videos"`
	Albums     int64 `json:"albums"`
	Images     int64 `json:"images"`
	Subreddits int64 `json:"subreddits"`
}

// Status computes row counts for /status.
func (d *DB) Status() (Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var s Stats
	rows := []struct {
		dst   *int64
		query string
	}{
		{&s.Posts, `SELECT count(*) FROM posts`},
		{&s.Comments, `SELECT count(*) FROM comments`},
		{&s.Videos, `SELECT count(*) FROM videos`},
		{&s.Albums, `SELECT count(*) FROM albums`},
		{&s.Images, `SELECT count(*) FROM images`},
		{&s.Subreddits, `SELECT count(DISTINCT subreddit) FROM posts`},
	}
	for _, r := range rows {
		if err := d.queryRowRetry("status", r.query, nil, r.dst); err != nil {
			return Stats{}, err
		}
	}
	return s, nil
}

// SQL exposes the raw *sql.DB for read-heavy components (index,
// assemble) that need ad hoc joins beyond this package's fixed
// operation set.
func (d *DB) SQL() *sql.DB { return d.sqldb }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// wrapStoreErr classifies a SQL error as transient (connection loss,
// should reconnect-and-retry) or fatal, per §7.
func wrapStoreErr(op string, err error) error {
	transient := strings.Contains(err.Error(), "database is locked") ||
		strings.Contains(err.Error(), "disk i/o error") ||
		strings.Contains(err.Error(), "connection")
	return ferrors.NewStoreError(op, err, transient)
}

// retryOp runs fn, retrying up to maxTransientRetries times when the
// wrapped error is transient per ferrors.IsTransient (§4.6, §7's
// "transient DB -> reconnect-and-retry the same statement"). A
// sql.ErrNoRows is passed through unwrapped so lookup callers can
// still compare against it directly.
func retryOp(op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxTransientRetries; attempt++ {
		err = fn()
		if err == nil || err == sql.ErrNoRows {
			return err
		}
		wrapped := wrapStoreErr(op, err)
		if !ferrors.IsTransient(wrapped) {
			return wrapped
		}
		err = wrapped
		if attempt < maxTransientRetries {
			time.Sleep(time.Duration(attempt+1) * transientRetryDelay)
		}
	}
	return err
}

// execRetry runs an Exec statement under retryOp.
func (d *DB) execRetry(op, query string, args ...interface{}) (sql.Result, error) {
	var res sql.Result
	err := retryOp(op, func() error {
		var execErr error
		res, execErr = d.sqldb.Exec(query, args...)
		return execErr
	})
	return res, err
}

// queryRowRetry runs a QueryRow+Scan under retryOp.
func (d *DB) queryRowRetry(op, query string, args []interface{}, dest ...interface{}) error {
	return retryOp(op, func() error {
		return d.sqldb.QueryRow(query, args...).Scan(dest...)
	})
}
