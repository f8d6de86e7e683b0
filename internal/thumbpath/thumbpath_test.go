package thumbpath

import "testing"

func TestPathSharding(t *testing.T) {
	cases := []struct {
		id   int64
		want string
	}{
		{5, "static/thumbs/im/5/0/5.jpg"},
		{42, "static/thumbs/im/4/2/42.jpg"},
		{123, "static/thumbs/im/1/2/123.jpg"},
	}
	for _, c := range cases {
		if got := Path("static/thumbs", KindImage, c.id); got != c.want {
			t.Errorf("Path(%d) = %q, want %q", c.id, got, c.want)
		}
	}
}

func TestPathVideoKind(t *testing.T) {
	got := Path("static/thumbs", KindVideo, 7)
	want := "static/thumbs/vid/7/0/7.jpg"
	if got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}
