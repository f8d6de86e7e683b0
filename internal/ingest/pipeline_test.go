package ingest

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/simon987/irarchives-go/internal/config"
	"github.com/simon987/irarchives-go/internal/store"
)

func encodeTestJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testConfig() config.Config {
	c := config.Config{}
	c.WorkerCount = 1
	c.MaxDistance = 30
	c.DefaultKMin = 10
	return c
}

// End-to-end scenario (§8): a link post whose url points directly at an
// image is ingested, hashed, and bound.
func TestProcessEnvelopePostWithImageLink(t *testing.T) {
	jpegData := encodeTestJPEG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(jpegData)
	}))
	defer srv.Close()

	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	p, err := NewPipeline(db, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	env := map[string]interface{}{
		"id":       "abc123",
		"title":    "look at this",
		"selftext": "check it out " + srv.URL + "/pic.jpg",
		"url":      srv.URL + "/pic.jpg",
		"author":   "someone",
		"subreddit": "pics",
		"permalink": "/r/pics/comments/abc123",
		"is_self":   false,
		"over_18":   false,
	}
	raw, _ := json.Marshal(env)

	if err := p.ProcessEnvelope(t.Context(), raw); err != nil {
		t.Fatalf("ProcessEnvelope: %v", err)
	}

	stats, err := db.Status()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Posts != 1 {
		t.Fatalf("posts = %d, want 1", stats.Posts)
	}
	if stats.Images != 1 {
		t.Fatalf("images = %d, want 1", stats.Images)
	}
}

// A malformed envelope is logged and acked, not returned as an error
// (§7 "envelope malformed").
func TestProcessEnvelopeMalformedIsNotFatal(t *testing.T) {
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	p, err := NewPipeline(db, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	if err := p.ProcessEnvelope(t.Context(), []byte("not json")); err != nil {
		t.Fatalf("expected nil error for malformed envelope, got %v", err)
	}
}

// A comment whose body has no classifiable link is not persisted (§3).
func TestProcessEnvelopeCommentWithoutLinkSkipped(t *testing.T) {
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	p, err := NewPipeline(db, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	env := map[string]interface{}{
		"id":      "c1",
		"link_id": "abc123",
		"author":  "someone",
		"body":    "just a plain comment with no links",
		"subreddit": "pics",
	}
	raw, _ := json.Marshal(env)

	if err := p.ProcessEnvelope(t.Context(), raw); err != nil {
		t.Fatal(err)
	}
	stats, err := db.Status()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Comments != 0 {
		t.Fatalf("comments = %d, want 0", stats.Comments)
	}
}
