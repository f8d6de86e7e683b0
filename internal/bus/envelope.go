// Package bus wires the ingestion pipeline to the upstream message
// broker (§4.9, §6): a topic exchange named "reddit", routing key
// "<type>.<subreddit>", whose JSON payloads are post or comment
// envelopes distinguished by the presence of a "title" field.
package bus

import "encoding/json"

// Envelope is a single bus message: either a Post or a Comment.
type Envelope struct {
	IsPost  bool
	Post    *PostEnvelope
	Comment *CommentEnvelope
}

// PostEnvelope mirrors the fields of §3's Post entity as they arrive
// over the bus.
type PostEnvelope struct {
	HexID       string `json:"id"`
	Title       string `json:"title"`
	SelfText    string `json:"selftext"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	Subreddit   string `json:"subreddit"`
	Permalink   string `json:"permalink"`
	Ups         int    `json:"ups"`
	Downs       int    `json:"downs"`
	NumComments int    `json:"num_comments"`
	Created     int64  `json:"created_utc"`
	Over18      bool   `json:"over_18"`
	IsSelf      bool   `json:"is_self"`
}

// CommentEnvelope mirrors §3's Comment entity as it arrives over the bus.
type CommentEnvelope struct {
	HexID     string `json:"id"`
	PostHexID string `json:"link_id"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	Permalink string `json:"permalink"`
	Subreddit string `json:"subreddit"`
	Ups       int    `json:"ups"`
	Downs     int    `json:"downs"`
	Created   int64  `json:"created_utc"`
}

// titleProbe is used only to detect the presence of a "title" key,
// which distinguishes a post envelope from a comment envelope (§4.9).
type titleProbe struct {
	Title *string `json:"title"`
}

// Decode parses a single bus message body into an Envelope. A
// malformed payload returns an error; callers are expected to log and
// ack per §7's "envelope malformed" policy (no DLQ).
func Decode(body []byte) (Envelope, error) {
	var probe titleProbe
	if err := json.Unmarshal(body, &probe); err != nil {
		return Envelope{}, err
	}

	if probe.Title != nil {
		var p PostEnvelope
		if err := json.Unmarshal(body, &p); err != nil {
			return Envelope{}, err
		}
		return Envelope{IsPost: true, Post: &p}, nil
	}

	var c CommentEnvelope
	if err := json.Unmarshal(body, &c); err != nil {
		return Envelope{}, err
	}
	return Envelope{IsPost: false, Comment: &c}, nil
}
