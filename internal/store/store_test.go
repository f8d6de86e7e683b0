package store

import (
	"sync"
	"testing"

	"github.com/simon987/irarchives-go/internal/phash"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsertImageCreatesOneRow(t *testing.T) {
	db := openTestDB(t)
	h := phash.Hash{}
	id1, err := db.UpsertImage("a1b2c3", h, 400, 300, 1024)
	if err != nil {
		t.Fatalf("UpsertImage() error = %v", err)
	}
	id2, err := db.UpsertImage("a1b2c3", h, 400, 300, 1024)
	if err != nil {
		t.Fatalf("UpsertImage() second call error = %v", err)
	}
	if id1 != id2 {
		t.Errorf("expected same id on conflict, got %d and %d", id1, id2)
	}

	var count int
	if err := db.sqldb.QueryRow(`SELECT count(*) FROM images`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected exactly 1 image row, got %d", count)
	}
}

// TestConcurrentUpsertImageRace exercises invariant 6 (§8): inserting
// the same image bytes twice "in parallel" yields exactly one Image row.
func TestConcurrentUpsertImageRace(t *testing.T) {
	db := openTestDB(t)
	h := phash.Hash{}

	var wg sync.WaitGroup
	ids := make([]int64, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			id, err := db.UpsertImage("deadbeef", h, 10, 10, 100)
			if err != nil {
				t.Error(err)
				return
			}
			ids[idx] = id
		}(i)
	}
	wg.Wait()

	var count int
	if err := db.sqldb.QueryRow(`SELECT count(*) FROM images`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected exactly 1 image row after concurrent upserts, got %d", count)
	}
	for _, id := range ids {
		if id != ids[0] {
			t.Errorf("expected all concurrent upserts to resolve to the same id, got %v", ids)
		}
	}
}

func TestBindImageURLAndLookup(t *testing.T) {
	db := openTestDB(t)
	id, err := db.UpsertImage("sha1value", phash.Hash{}, 1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	err = db.BindImageURL(id, URLBinding{
		URL:      "https://example.com/a.jpg",
		CleanURL: "http://example.com/a.jpg",
	})
	if err != nil {
		t.Fatal(err)
	}

	gotID, ok, err := db.LookupImageByCleanURL("http://example.com/a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || gotID != id {
		t.Errorf("LookupImageByCleanURL: got (%d, %v), want (%d, true)", gotID, ok, id)
	}
}

func TestInsertFramesOrder(t *testing.T) {
	db := openTestDB(t)
	videoID, err := db.UpsertVideo("vsha1", 2048, VideoInfo{Codec: "h264"})
	if err != nil {
		t.Fatal(err)
	}
	h1, h2 := phash.Hash{1}, phash.Hash{2}
	ids, err := db.InsertFrames(videoID, []phash.Hash{h1, h2})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] >= ids[1] {
		t.Errorf("expected 2 ids in insertion order, got %v", ids)
	}
}

func TestInsertPostImmutableOnRepeat(t *testing.T) {
	db := openTestDB(t)
	p := PostInput{HexID: "abc123", Title: "t1", Author: "u", Subreddit: "s", Permalink: "/p"}
	id1, err := db.InsertPost(p)
	if err != nil {
		t.Fatal(err)
	}
	p2 := p
	p2.Title = "changed"
	id2, err := db.InsertPost(p2)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("expected same post id on repeat hexid, got %d and %d", id1, id2)
	}
	var title string
	if err := db.sqldb.QueryRow(`SELECT title FROM posts WHERE id = ?`, id1).Scan(&title); err != nil {
		t.Fatal(err)
	}
	if title != "t1" {
		t.Errorf("post should be immutable after first insert, got title %q", title)
	}
}

func TestGetOrCreateAlbumIdempotent(t *testing.T) {
	db := openTestDB(t)
	id1, err := db.GetOrCreateAlbum("http://example.com/album/1")
	if err != nil {
		t.Fatal(err)
	}
	id2, err := db.GetOrCreateAlbum("http://example.com/album/1")
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("expected idempotent album id, got %d and %d", id1, id2)
	}
}

func TestLookupImageByCleanURLMissing(t *testing.T) {
	db := openTestDB(t)
	_, ok, err := db.LookupImageByCleanURL("http://nope.example.com/x.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected ok=false for a url with no binding")
	}
}

func TestStatusCounts(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.InsertPost(PostInput{HexID: "p1", Title: "t", Subreddit: "pics"}); err != nil {
		t.Fatal(err)
	}
	stats, err := db.Status()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Posts != 1 {
		t.Errorf("expected 1 post, got %d", stats.Posts)
	}
	if stats.Subreddits != 1 {
		t.Errorf("expected 1 distinct subreddit, got %d", stats.Subreddits)
	}
}
