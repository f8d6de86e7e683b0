// Package httpapi implements the query service's HTTP surface (C10,
// §4.10, §6): a thin echo router over the index, assemble, and store
// packages, with a response cache keyed by full query string.
package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/simon987/irarchives-go/internal/assemble"
	"github.com/simon987/irarchives-go/internal/cache"
	"github.com/simon987/irarchives-go/internal/config"
	"github.com/simon987/irarchives-go/internal/fetch"
	"github.com/simon987/irarchives-go/internal/frameextract"
	"github.com/simon987/irarchives-go/internal/index"
	"github.com/simon987/irarchives-go/internal/phash"
	"github.com/simon987/irarchives-go/internal/store"
	"github.com/simon987/irarchives-go/internal/thumbpath"
	"github.com/simon987/irarchives-go/internal/urlnorm"
)

// Server bundles the collaborators the router's handlers need.
type Server struct {
	db        *store.DB
	idx       *index.Engine
	asm       *assemble.Assembler
	fetcher   *fetch.Fetcher
	extractor *frameextract.Extractor
	cache     cache.Cache
	cfg       config.Config
}

// New builds a Server. cacheBackend is selected by cfg.CacheBackend at
// the call site (cmd/queryd), since only it knows the process
// lifetime context a Memory cache's sweep loop needs.
func New(db *store.DB, c cache.Cache, cfg config.Config) (*Server, error) {
	f, err := fetch.New(cfg.HTTPProxy)
	if err != nil {
		return nil, err
	}
	return &Server{
		db:        db,
		idx:       index.New(db.SQL()),
		asm:       assemble.New(db.SQL(), cfg.ThumbsDir, cfg.NSFW),
		fetcher:   f,
		extractor: frameextract.New(),
		cache:     c,
		cfg:       cfg,
	}, nil
}

// Register mounts every route in §6 on e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/search", s.handleSearch)
	e.POST("/upload", s.handleUpload)
	e.GET("/status", s.handleStatus)
	e.GET("/subreddits", s.handleSubreddits)
	e.GET("/video_thumbs/:video_id", s.handleVideoThumbs)
}

// searchResults is the SearchResults JSON schema (§6).
type searchResults struct {
	URL         string        `json:"url,omitempty"`
	ResultCount int           `json:"result_count"`
	Error       string        `json:"error,omitempty"`
	Hits        []interface{} `json:"hits"`
}

func errorResponse(c echo.Context, msg string) error {
	// Errors are returned as {"error": "..."} with HTTP 200 (§4.10).
	return c.JSON(http.StatusOK, map[string]string{"error": msg})
}

func (s *Server) handleSearch(c echo.Context) error {
	q := c.Request().URL.RawQuery
	ctx := c.Request().Context()

	if cached, ok := s.cache.Get(ctx, "search:"+q); ok {
		return c.JSONBlob(http.StatusOK, cached)
	}

	var (
		result searchResults
		err    error
	)
	switch {
	case c.QueryParam("img") != "":
		result, err = s.searchImage(ctx, c.QueryParam("img"), c.QueryParam("d"))
	case c.QueryParam("vid") != "":
		result, err = s.searchVideo(ctx, c.QueryParam("vid"), c.QueryParam("d"), c.QueryParam("f"))
	case c.QueryParam("album") != "":
		return s.handleAlbumSearch(c, c.QueryParam("album"))
	case c.QueryParam("user") != "":
		result, err = s.searchUser(c.QueryParam("user"))
	default:
		return errorResponse(c, "missing img, vid, album, or user parameter")
	}
	if err != nil {
		return errorResponse(c, err.Error())
	}

	body, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		return errorResponse(c, marshalErr.Error())
	}
	s.cache.Set(ctx, "search:"+q, body, cache.TTLSearch)
	return c.JSONBlob(http.StatusOK, body)
}

func (s *Server) searchImage(ctx context.Context, rawURL, dParam string) (searchResults, error) {
	d, _ := strconv.Atoi(dParam)
	d = s.cfg.ClampDistance(d)

	data, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return searchResults{}, err
	}
	img, _, err := decodeImage(data)
	if err != nil {
		return searchResults{}, err
	}
	h := phash.Compute(img)

	matches, err := s.idx.FindSimilarImages(h, d)
	if err != nil {
		return searchResults{}, err
	}
	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.ImageID
	}
	hits, err := s.asm.AssembleImages(ids)
	if err != nil {
		return searchResults{}, err
	}
	return searchResults{URL: rawURL, ResultCount: len(hits), Hits: hits}, nil
}

func (s *Server) searchVideo(ctx context.Context, rawURL, dParam, fParam string) (searchResults, error) {
	d, _ := strconv.Atoi(dParam)
	d = s.cfg.ClampDistance(d)
	f, _ := strconv.Atoi(fParam)
	f = s.cfg.ClampKMin(f)

	data, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return searchResults{}, err
	}
	frames, _, err := s.extractor.Extract(ctx, data, extOf(rawURL))
	if err != nil {
		return searchResults{}, err
	}
	hashes := make([]phash.Hash, len(frames))
	for i, fr := range frames {
		hashes[i] = fr.Hash
	}

	matches, err := s.idx.FindSimilarVideos(hashes, d, f)
	if err != nil {
		return searchResults{}, err
	}
	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.VideoID
	}
	hits, err := s.asm.AssembleVideos(ids)
	if err != nil {
		return searchResults{}, err
	}
	return searchResults{URL: rawURL, ResultCount: len(hits), Hits: hits}, nil
}

// handleAlbumSearch returns every image bound to clean_url's album
// (§6 `{url, images:[{thumb,url,width,height}]}`).
func (s *Server) handleAlbumSearch(c echo.Context, rawURL string) error {
	clean := urlnorm.Clean(rawURL)
	ctx := c.Request().Context()
	key := "album:" + clean
	if cached, ok := s.cache.Get(ctx, key); ok {
		return c.JSONBlob(http.StatusOK, cached)
	}

	type albumImage struct {
		Thumb  string `json:"thumb"`
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	}
	rows, err := s.db.SQL().Query(`
		SELECT iu.image_id, iu.url, img.width, img.height
		FROM image_urls iu
		JOIN images img ON img.id = iu.image_id
		JOIN albums al ON al.id = iu.album_id
		WHERE al.url = ?
	`, clean)
	if err != nil {
		return errorResponse(c, err.Error())
	}
	defer rows.Close()

	images := []albumImage{}
	for rows.Next() {
		var imageID int64
		var ai albumImage
		if err := rows.Scan(&imageID, &ai.URL, &ai.Width, &ai.Height); err != nil {
			return errorResponse(c, err.Error())
		}
		ai.Thumb = thumbpath.Path(s.cfg.ThumbsDir, thumbpath.KindImage, imageID)
		images = append(images, ai)
	}

	body, err := json.Marshal(map[string]interface{}{"url": clean, "images": images})
	if err != nil {
		return errorResponse(c, err.Error())
	}
	s.cache.Set(ctx, key, body, cache.TTLSearch)
	return c.JSONBlob(http.StatusOK, body)
}

var usernameRe = regexp.MustCompile(`^[a-z0-9_-]+$`)

func (s *Server) searchUser(name string) (searchResults, error) {
	if !usernameRe.MatchString(strings.ToLower(name)) {
		return searchResults{}, fmt.Errorf("invalid username")
	}
	// User search has no perceptual query: it collects the images bound to
	// posts authored by name and assembles them the same way as an image
	// hit, so every binding of those images is returned. Comments and
	// videos are not searched.
	rows, err := s.db.SQL().Query(`SELECT id FROM posts WHERE author = ?`, name)
	if err != nil {
		return searchResults{}, err
	}
	defer rows.Close()
	var postIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return searchResults{}, err
		}
		postIDs = append(postIDs, id)
	}

	var hits []interface{}
	for _, pid := range postIDs {
		imgRows, err := s.db.SQL().Query(`SELECT image_id FROM image_urls WHERE post_id = ?`, pid)
		if err != nil {
			return searchResults{}, err
		}
		var ids []int64
		for imgRows.Next() {
			var id int64
			if err := imgRows.Scan(&id); err == nil {
				ids = append(ids, id)
			}
		}
		imgRows.Close()
		h, err := s.asm.AssembleImages(ids)
		if err != nil {
			return searchResults{}, err
		}
		hits = append(hits, h...)
	}
	return searchResults{ResultCount: len(hits), Hits: hits}, nil
}

// handleUpload implements POST /upload: fname=image, data=<data-url>,
// optional d (§6).
func (s *Server) handleUpload(c echo.Context) error {
	fname := c.FormValue("fname")
	dataURL := c.FormValue("data")
	if fname != "image" {
		return errorResponse(c, "unsupported fname")
	}

	data, err := decodeDataURL(dataURL)
	if err != nil {
		return errorResponse(c, err.Error())
	}
	img, _, err := decodeImage(data)
	if err != nil {
		return errorResponse(c, err.Error())
	}
	h := phash.Compute(img)

	d, _ := strconv.Atoi(c.FormValue("d"))
	d = s.cfg.ClampDistance(d)

	matches, err := s.idx.FindSimilarImages(h, d)
	if err != nil {
		return errorResponse(c, err.Error())
	}
	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.ImageID
	}
	hits, err := s.asm.AssembleImages(ids)
	if err != nil {
		return errorResponse(c, err.Error())
	}
	return c.JSON(http.StatusOK, searchResults{ResultCount: len(hits), Hits: hits})
}

func (s *Server) handleStatus(c echo.Context) error {
	ctx := c.Request().Context()
	key := "status"
	if cached, ok := s.cache.Get(ctx, key); ok {
		return c.JSONBlob(http.StatusOK, cached)
	}
	stats, err := s.db.Status()
	if err != nil {
		return errorResponse(c, err.Error())
	}
	body, err := json.Marshal(map[string]interface{}{"status": stats})
	if err != nil {
		return errorResponse(c, err.Error())
	}
	s.cache.Set(ctx, key, body, cache.TTLStatus)
	return c.JSONBlob(http.StatusOK, body)
}

func (s *Server) handleSubreddits(c echo.Context) error {
	ctx := c.Request().Context()
	key := "subreddits"
	if cached, ok := s.cache.Get(ctx, key); ok {
		return c.JSONBlob(http.StatusOK, cached)
	}
	rows, err := s.db.SQL().Query(`SELECT DISTINCT subreddit FROM posts ORDER BY subreddit`)
	if err != nil {
		return errorResponse(c, err.Error())
	}
	defer rows.Close()
	subs := []string{}
	for rows.Next() {
		var sub string
		if err := rows.Scan(&sub); err != nil {
			return errorResponse(c, err.Error())
		}
		subs = append(subs, sub)
	}
	body, err := json.Marshal(map[string]interface{}{"subreddits": subs})
	if err != nil {
		return errorResponse(c, err.Error())
	}
	s.cache.Set(ctx, key, body, cache.TTLStaticList)
	return c.JSONBlob(http.StatusOK, body)
}

func (s *Server) handleVideoThumbs(c echo.Context) error {
	videoID, err := strconv.ParseInt(c.Param("video_id"), 10, 64)
	if err != nil {
		return errorResponse(c, "invalid video_id")
	}
	rows, err := s.db.SQL().Query(`SELECT id FROM video_frames WHERE video_id = ? ORDER BY id`, videoID)
	if err != nil {
		return errorResponse(c, err.Error())
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return errorResponse(c, err.Error())
		}
		ids = append(ids, id)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"thumbs": ids})
}

func decodeImage(data []byte) (image.Image, string, error) {
	return image.Decode(bytes.NewReader(data))
}

// extOf returns u's file extension, ignoring any query/fragment
// (e.g. ".../clip.mp4?sig=..." -> "mp4"), matching the classifier's
// own path-only extraction.
func extOf(u string) string {
	path := u
	if parsed, err := url.Parse(u); err == nil {
		path = parsed.Path
	}
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(path[i+1:])
}

func decodeDataURL(s string) ([]byte, error) {
	i := strings.Index(s, ",")
	if i < 0 {
		return nil, fmt.Errorf("malformed data url")
	}
	header := s[:i]
	payload := s[i+1:]
	if strings.Contains(header, ";base64") {
		return base64.StdEncoding.DecodeString(payload)
	}
	return []byte(payload), nil
}
