package index

import (
	"testing"

	"github.com/simon987/irarchives-go/internal/phash"
	"github.com/simon987/irarchives-go/internal/store"
)

func openTestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFindSimilarImagesExact(t *testing.T) {
	s := openTestStore(t)
	h := phash.Hash{0xFF, 0x01}
	id, err := s.UpsertImage("sha1", h, 1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	matches, err := New(s.SQL()).FindSimilarImages(h, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].ImageID != id {
		t.Errorf("got %v, want exact match on id %d", matches, id)
	}
}

func TestFindSimilarImagesRadius(t *testing.T) {
	s := openTestStore(t)
	h := phash.Hash{0x00}
	if _, err := s.UpsertImage("sha1", h, 1, 1, 1); err != nil {
		t.Fatal(err)
	}

	near := h
	near[0] = 0x03 // 2 bits different

	matches, err := New(s.SQL()).FindSimilarImages(near, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match within radius 2, got %v", matches)
	}

	none, err := New(s.SQL()).FindSimilarImages(near, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("expected no exact match, got %v", none)
	}
}

func TestFindSimilarVideosThreshold(t *testing.T) {
	s := openTestStore(t)
	videoID, err := s.UpsertVideo("vsha1", 10, store.VideoInfo{})
	if err != nil {
		t.Fatal(err)
	}
	frames := []phash.Hash{{1}, {2}, {3}}
	if _, err := s.InsertFrames(videoID, frames); err != nil {
		t.Fatal(err)
	}

	eng := New(s.SQL())

	matches, err := eng.FindSimilarVideos(frames, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].VideoID != videoID || matches[0].MatchedFrameCount != 3 {
		t.Errorf("got %v, want one match with matched_frame_count=3", matches)
	}

	tooStrict, err := eng.FindSimilarVideos(frames, 0, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(tooStrict) != 0 {
		t.Errorf("kMin above available frames should yield no match, got %v", tooStrict)
	}
}
