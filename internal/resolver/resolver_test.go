package resolver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/simon987/irarchives-go/internal/fetch"
)

const sampleManifest = `<?xml version="1.0" encoding="UTF-8"?>
<MPD>
  <Period>
    <AdaptationSet>
      <Representation id="1" width="480" height="270" bandwidth="100000">
        <BaseURL>DASH_480.mp4</BaseURL>
      </Representation>
      <Representation id="2" width="1080" height="608" bandwidth="900000">
        <BaseURL>DASH_1080.mp4</BaseURL>
      </Representation>
      <Representation id="3" width="720" height="404" bandwidth="400000">
        <BaseURL>DASH_720.mp4</BaseURL>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`

func TestResolvePicksWidest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleManifest))
	}))
	defer srv.Close()

	f, err := fetch.New("")
	if err != nil {
		t.Fatal(err)
	}
	r := New(f)
	got, err := r.Resolve(t.Context(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	want := srv.URL + "/DASH_1080.mp4"
	if got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}
