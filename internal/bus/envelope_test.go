package bus

import "testing"

func TestDecodePost(t *testing.T) {
	body := []byte(`{"id":"abc123","title":"t","selftext":"","url":"https://i.example.com/x.jpg","is_self":false,"subreddit":"pics"}`)
	env, err := Decode(body)
	if err != nil {
		t.Fatal(err)
	}
	if !env.IsPost || env.Post == nil {
		t.Fatal("expected a post envelope")
	}
	if env.Post.HexID != "abc123" {
		t.Errorf("HexID = %q", env.Post.HexID)
	}
}

func TestDecodeComment(t *testing.T) {
	body := []byte(`{"id":"def456","link_id":"abc123","body":"check this out","subreddit":"pics"}`)
	env, err := Decode(body)
	if err != nil {
		t.Fatal(err)
	}
	if env.IsPost || env.Comment == nil {
		t.Fatal("expected a comment envelope")
	}
	if env.Comment.PostHexID != "abc123" {
		t.Errorf("PostHexID = %q", env.Comment.PostHexID)
	}
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	if err == nil {
		t.Error("expected a decode error for malformed input")
	}
}
