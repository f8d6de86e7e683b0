package expander

import "testing"

func TestExpandParsesLines(t *testing.T) {
	e := New("/bin/sh", []string{"-c", "printf 'http://a.example/1.jpg\\nhttp://a.example/2.jpg\\n'"})
	got, err := e.Expand(t.Context(), "http://a.example/album/1")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"http://a.example/1.jpg", "http://a.example/2.jpg"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExpandDedupLines(t *testing.T) {
	e := New("/bin/sh", []string{"-c", "printf 'http://a.example/1.jpg\\nhttp://a.example/1.jpg\\n'"})
	got, err := e.Expand(t.Context(), "http://a.example/album/1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("expected dedup, got %v", got)
	}
}

func TestExpandNonzeroExitYieldsNoChildren(t *testing.T) {
	e := New("/bin/sh", []string{"-c", "exit 1"})
	got, err := e.Expand(t.Context(), "http://a.example/unsupported")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no children on nonzero exit, got %v", got)
	}
}
