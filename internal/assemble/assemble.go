// Package assemble implements the result assembler (C8, §4.8): it
// joins url-bindings against {album, post, comment→post, media} and
// produces the tagged PostSearchResult/CommentSearchResult sum type
// described in §4.8 and the design notes' "Duck-typed result variants".
package assemble

import (
	"database/sql"

	"github.com/simon987/irarchives-go/internal/thumbpath"
)

// ImageItem is the "item" payload for an image match.
type ImageItem struct {
	Type     string `json:"type"` // always "image"
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Size     int    `json:"size"`
	SHA1     string `json:"sha1"`
	Thumb    string `json:"thumb"`
	AlbumURL string `json:"album_url,omitempty"`
}

// VideoItem is the "item" payload for a video match.
type VideoItem struct {
	Type     string  `json:"type"` // always "video"
	URL      string  `json:"url"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Size     int     `json:"size"`
	SHA1     string  `json:"sha1"`
	VideoID  int64   `json:"video_id"`
	Bitrate  int64   `json:"bitrate"`
	Codec    string  `json:"codec"`
	Format   string  `json:"format"`
	Duration float64 `json:"duration"`
	Frames   int     `json:"frames"`
}

// PostSearchResult is one "post"-typed hit.
type PostSearchResult struct {
	Type      string      `json:"type"` // always "post"
	HexID     string      `json:"hexid"`
	Title     string      `json:"title"`
	Text      string      `json:"text"`
	Author    string      `json:"author"`
	Permalink string      `json:"permalink"`
	Subreddit string      `json:"subreddit"`
	Comments  int         `json:"comments"`
	Ups       int         `json:"ups"`
	Downs     int         `json:"downs"`
	Created   int64       `json:"created"`
	Item      interface{} `json:"item"`
}

// CommentSearchResult is one "comment"-typed hit.
type CommentSearchResult struct {
	Type      string      `json:"type"` // always "comment"
	HexID     string      `json:"hexid"`
	PostID    string      `json:"post_id"`
	Body      string      `json:"body"`
	Author    string      `json:"author"`
	Permalink string      `json:"permalink"`
	Subreddit string      `json:"subreddit"`
	Ups       int         `json:"ups"`
	Downs     int         `json:"downs"`
	Created   int64       `json:"created"`
	Item      interface{} `json:"item"`
}

// Assembler joins the raw store schema into typed results.
type Assembler struct {
	db        *sql.DB
	thumbsDir string
	nsfw      bool // if false, posts/comments flagged over_18 are excluded
}

// New builds an Assembler over the raw *sql.DB.
func New(db *sql.DB, thumbsDir string, allowNSFW bool) *Assembler {
	return &Assembler{db: db, thumbsDir: thumbsDir, nsfw: allowNSFW}
}

// row is the flattened shape of one joined url-binding.
type row struct {
	postHexID     sql.NullString
	postTitle     sql.NullString
	postBody      sql.NullString
	postAuthor    sql.NullString
	postPermalink sql.NullString
	postSubreddit sql.NullString
	postUps       sql.NullInt64
	postDowns     sql.NullInt64
	postComments  sql.NullInt64
	postCreated   sql.NullInt64
	postOver18    sql.NullInt64

	commentHexID     sql.NullString
	commentPostHexID sql.NullString
	commentBody      sql.NullString
	commentAuthor    sql.NullString
	commentPermalink sql.NullString
	commentSubreddit sql.NullString
	commentUps       sql.NullInt64
	commentDowns     sql.NullInt64
	commentCreated   sql.NullInt64

	albumURL sql.NullString
}

// AssembleImages joins image_urls against posts/comments/albums for
// each imageID and returns the typed hits (§4.8, single join).
func (a *Assembler) AssembleImages(imageIDs []int64) ([]interface{}, error) {
	var results []interface{}
	for _, id := range imageIDs {
		hits, err := a.assembleOneImage(id)
		if err != nil {
			return nil, err
		}
		results = append(results, hits...)
	}
	return results, nil
}

func (a *Assembler) assembleOneImage(imageID int64) ([]interface{}, error) {
	const q = `
		SELECT
			p.hexid, p.title, p.body, p.author, p.permalink, p.subreddit, p.ups, p.downs, p.num_comments, p.created, p.over_18,
			c.hexid, cp.hexid, c.body, c.author, c.permalink, c.subreddit, c.ups, c.downs, c.created,
			al.url,
			iu.url, img.width, img.height, img.size, img.sha1
		FROM image_urls iu
		JOIN images img ON img.id = iu.image_id
		LEFT JOIN posts p ON p.id = iu.post_id
		LEFT JOIN comments c ON c.id = iu.comment_id
		LEFT JOIN posts cp ON cp.id = c.post_id
		LEFT JOIN albums al ON al.id = iu.album_id
		WHERE iu.image_id = ?
	`
	rows, err := a.db.Query(q, imageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []interface{}
	for rows.Next() {
		var r row
		var url string
		var width, height, size int
		var sha1 string
		if err := rows.Scan(
			&r.postHexID, &r.postTitle, &r.postBody, &r.postAuthor, &r.postPermalink, &r.postSubreddit, &r.postUps, &r.postDowns, &r.postComments, &r.postCreated, &r.postOver18,
			&r.commentHexID, &r.commentPostHexID, &r.commentBody, &r.commentAuthor, &r.commentPermalink, &r.commentSubreddit, &r.commentUps, &r.commentDowns, &r.commentCreated,
			&r.albumURL,
			&url, &width, &height, &size, &sha1,
		); err != nil {
			return nil, err
		}
		if !a.nsfw && r.postOver18.Valid && r.postOver18.Int64 != 0 {
			continue
		}

		item := ImageItem{
			Type:     "image",
			URL:      url,
			Width:    width,
			Height:   height,
			Size:     size,
			SHA1:     sha1,
			Thumb:    thumbpath.Path(a.thumbsDir, thumbpath.KindImage, imageID),
			AlbumURL: r.albumURL.String,
		}
		hits = append(hits, buildResult(r, item))
	}
	return hits, rows.Err()
}

// AssembleVideos is the video analogue of AssembleImages.
func (a *Assembler) AssembleVideos(videoIDs []int64) ([]interface{}, error) {
	var results []interface{}
	for _, id := range videoIDs {
		hits, err := a.assembleOneVideo(id)
		if err != nil {
			return nil, err
		}
		results = append(results, hits...)
	}
	return results, nil
}

func (a *Assembler) assembleOneVideo(videoID int64) ([]interface{}, error) {
	const q = `
		SELECT
			p.hexid, p.title, p.body, p.author, p.permalink, p.subreddit, p.ups, p.downs, p.num_comments, p.created, p.over_18,
			c.hexid, cp.hexid, c.body, c.author, c.permalink, c.subreddit, c.ups, c.downs, c.created,
			vu.url, v.width, v.height, v.size, v.sha1, v.bitrate, v.codec, v.format, v.duration, v.sampled_frames
		FROM video_urls vu
		JOIN videos v ON v.id = vu.video_id
		LEFT JOIN posts p ON p.id = vu.post_id
		LEFT JOIN comments c ON c.id = vu.comment_id
		LEFT JOIN posts cp ON cp.id = c.post_id
		WHERE vu.video_id = ?
	`
	rows, err := a.db.Query(q, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []interface{}
	for rows.Next() {
		var r row
		var url string
		var width, height, size int
		var sha1, codec, format string
		var bitrate int64
		var duration float64
		var frames int
		if err := rows.Scan(
			&r.postHexID, &r.postTitle, &r.postBody, &r.postAuthor, &r.postPermalink, &r.postSubreddit, &r.postUps, &r.postDowns, &r.postComments, &r.postCreated, &r.postOver18,
			&r.commentHexID, &r.commentPostHexID, &r.commentBody, &r.commentAuthor, &r.commentPermalink, &r.commentSubreddit, &r.commentUps, &r.commentDowns, &r.commentCreated,
			&url, &width, &height, &size, &sha1, &bitrate, &codec, &format, &duration, &frames,
		); err != nil {
			return nil, err
		}
		if !a.nsfw && r.postOver18.Valid && r.postOver18.Int64 != 0 {
			continue
		}

		item := VideoItem{
			Type:     "video",
			URL:      url,
			Width:    width,
			Height:   height,
			Size:     size,
			SHA1:     sha1,
			VideoID:  videoID,
			Bitrate:  bitrate,
			Codec:    codec,
			Format:   format,
			Duration: duration,
			Frames:   frames,
		}
		hits = append(hits, buildResult(r, item))
	}
	return hits, rows.Err()
}

// buildResult classifies a joined row by whether the comment side is
// populated (§4.8) and returns the appropriately typed result.
func buildResult(r row, item interface{}) interface{} {
	if r.commentHexID.Valid {
		return CommentSearchResult{
			Type:      "comment",
			HexID:     r.commentHexID.String,
			PostID:    r.commentPostHexID.String,
			Body:      r.commentBody.String,
			Author:    r.commentAuthor.String,
			Permalink: r.commentPermalink.String,
			Subreddit: r.commentSubreddit.String,
			Ups:       int(r.commentUps.Int64),
			Downs:     int(r.commentDowns.Int64),
			Created:   r.commentCreated.Int64,
			Item:      item,
		}
	}
	return PostSearchResult{
		Type:      "post",
		HexID:     r.postHexID.String,
		Title:     r.postTitle.String,
		Text:      r.postBody.String,
		Author:    r.postAuthor.String,
		Permalink: r.postPermalink.String,
		Subreddit: r.postSubreddit.String,
		Comments:  int(r.postComments.Int64),
		Ups:       int(r.postUps.Int64),
		Downs:     int(r.postDowns.Int64),
		Created:   r.postCreated.Int64,
		Item:      item,
	}
}
