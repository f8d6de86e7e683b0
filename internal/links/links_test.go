package links

import (
	"testing"

	"github.com/simon987/irarchives-go/internal/classify"
)

func TestExtractBasic(t *testing.T) {
	c := classify.New(nil)
	body := "check this out [cool pic](https://i.example.com/a.jpg) and also ![inline](https://i.example.com/b.png)"
	got := Extract(body, c)
	want := map[string]bool{
		"https://i.example.com/a.jpg": true,
		"https://i.example.com/b.png": true,
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 links", got)
	}
	for _, u := range got {
		if !want[u] {
			t.Errorf("unexpected link %q", u)
		}
	}
}

func TestExtractSkipsFiltered(t *testing.T) {
	c := classify.New(nil)
	body := "[yt](https://youtube.com/watch?v=abc) [img](https://i.example.com/c.gif)"
	got := Extract(body, c)
	if len(got) != 1 || got[0] != "https://i.example.com/c.gif" {
		t.Errorf("got %v, want only the non-skipped image link", got)
	}
}

func TestExtractDedup(t *testing.T) {
	c := classify.New(nil)
	body := "[a](https://i.example.com/a.jpg) [b](https://i.example.com/a.jpg)"
	got := Extract(body, c)
	if len(got) != 1 {
		t.Errorf("expected dedup to 1 link, got %v", got)
	}
}

func TestExtractEmptyBody(t *testing.T) {
	c := classify.New(nil)
	if got := Extract("", c); len(got) != 0 {
		t.Errorf("expected no links, got %v", got)
	}
}
