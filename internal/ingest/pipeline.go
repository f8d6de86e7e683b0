// Package ingest implements the ingestion pipeline and worker pool
// (C9, §4.9): bus envelope decode -> link extraction -> per-URL
// classify -> (fetch -> hash -> write) | (expand -> per-child
// recurse), run by a fixed-size worker pool.
package ingest

import (
	"bytes"
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"image"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/simon987/irarchives-go/internal/bus"
	"github.com/simon987/irarchives-go/internal/classify"
	"github.com/simon987/irarchives-go/internal/config"
	"github.com/simon987/irarchives-go/internal/expander"
	"github.com/simon987/irarchives-go/internal/fetch"
	"github.com/simon987/irarchives-go/internal/ferrors"
	"github.com/simon987/irarchives-go/internal/frameextract"
	"github.com/simon987/irarchives-go/internal/links"
	"github.com/simon987/irarchives-go/internal/logging"
	"github.com/simon987/irarchives-go/internal/phash"
	"github.com/simon987/irarchives-go/internal/resolver"
	"github.com/simon987/irarchives-go/internal/store"
	"github.com/simon987/irarchives-go/internal/urlnorm"
)

// MaxExpandDepth bounds album-expansion recursion (an indirect URL
// whose expansion yields another indirect URL), guarding against a
// pathological self-referential chain (§9 Open Question; DESIGN.md).
const MaxExpandDepth = 4

// linkConcurrency bounds how many URLs from a single envelope are
// fetched at once.
const linkConcurrency = 4

// owner identifies which entity a url-binding should attach to.
type owner struct {
	postID    sql.NullInt64
	commentID sql.NullInt64
	albumID   sql.NullInt64
}

// Pipeline runs the per-envelope processing logic. Each worker in the
// pool owns its own Pipeline so its Fetcher's connection pool is
// private (§4.9, §9 "per-thread HTTP client").
type Pipeline struct {
	db         *store.DB
	classifier *classify.Classifier
	fetcher    *fetch.Fetcher
	extractor  *frameextract.Extractor
	resolver   *resolver.Resolver
	expander   *expander.Expander
	cfg        config.Config
	linkSem    *semaphore.Weighted
}

// NewPipeline builds a Pipeline with its own private Fetcher.
func NewPipeline(db *store.DB, cfg config.Config) (*Pipeline, error) {
	f, err := fetch.New(cfg.HTTPProxy)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		db:         db,
		classifier: classify.New(nil),
		fetcher:    f,
		extractor:  frameextract.New(),
		resolver:   resolver.New(f),
		expander:   expander.New(cfg.ExpanderCommand, cfg.ExpanderArgs),
		cfg:        cfg,
		linkSem:    semaphore.NewWeighted(linkConcurrency),
	}, nil
}

// ProcessEnvelope decodes and processes a single bus message: insert
// post/comment, then per-URL best-effort processing (a failure on URL i
// does not abort URL i+1). URLs are started in iteration order but run
// up to linkConcurrency at a time, so they do not finish in that order.
func (p *Pipeline) ProcessEnvelope(ctx context.Context, raw []byte) error {
	env, err := bus.Decode(raw)
	if err != nil {
		// Malformed envelope: log and ack, no DLQ (§7).
		logging.For("ingest.pipeline").WithField("error", err.Error()).Warn("malformed envelope")
		return nil
	}

	if env.IsPost {
		return p.processPost(ctx, env.Post)
	}
	return p.processComment(ctx, env.Comment)
}

func (p *Pipeline) processPost(ctx context.Context, post *bus.PostEnvelope) error {
	postID, err := p.db.InsertPost(store.PostInput{
		HexID: post.HexID, Title: post.Title, Body: post.SelfText, URL: post.URL,
		Author: post.Author, Subreddit: post.Subreddit, Permalink: post.Permalink,
		Ups: post.Ups, Downs: post.Downs, NumComments: post.NumComments,
		Created: post.Created, Over18: post.Over18,
	})
	if err != nil {
		return err
	}

	o := owner{postID: sql.NullInt64{Int64: postID, Valid: true}}
	if !post.IsSelf && post.URL != "" {
		// A link post's url is a bare URL, not a markdown link, so it is
		// processed directly rather than through links.Extract.
		p.processURLs(ctx, []string{post.URL}, o)
	}
	p.processLinks(ctx, post.SelfText, o)
	return nil
}

func (p *Pipeline) processComment(ctx context.Context, comment *bus.CommentEnvelope) error {
	found := links.Extract(comment.Body, p.classifier)
	if len(found) == 0 {
		// Comments are only created when their body yields a classifiable
		// media link (§3).
		return nil
	}

	postID, ok, err := p.resolvePostID(comment.PostHexID)
	if err != nil {
		return err
	}
	if !ok {
		// Parent post not seen yet; best-effort skip (the comment will be
		// reprocessed if redelivered, §4.9).
		return nil
	}

	commentID, err := p.db.InsertComment(store.CommentInput{
		HexID: comment.HexID, PostID: postID, Author: comment.Author, Body: comment.Body,
		Permalink: comment.Permalink, Subreddit: comment.Subreddit, Ups: comment.Ups,
		Downs: comment.Downs, Created: comment.Created,
	})
	if err != nil {
		return err
	}

	o := owner{commentID: sql.NullInt64{Int64: commentID, Valid: true}}
	p.processURLs(ctx, found, o)
	return nil
}

func (p *Pipeline) resolvePostID(hexid string) (int64, bool, error) {
	var id int64
	err := p.db.SQL().QueryRow(`SELECT id FROM posts WHERE hexid = ?`, hexid).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// processLinks extracts links from body and processes each
// best-effort (§5: a failure on one URL does not abort the rest).
func (p *Pipeline) processLinks(ctx context.Context, body string, o owner) {
	p.processURLs(ctx, links.Extract(body, p.classifier), o)
}

// processURLs fans the URLs of a single envelope out across at most
// linkConcurrency concurrent fetches, bounded by a semaphore rather
// than one goroutine per link — a post's link list is usually small,
// but a heavily-linked selftext shouldn't serialize behind the
// slowest fetch (§5 "a failure on one URL does not abort the rest").
func (p *Pipeline) processURLs(ctx context.Context, urls []string, o owner) {
	var wg sync.WaitGroup
	for _, u := range urls {
		if err := p.linkSem.Acquire(ctx, 1); err != nil {
			return
		}
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			defer p.linkSem.Release(1)
			p.processOneURL(ctx, u, o, 0)
		}(u)
	}
	wg.Wait()
}

// processOneURL classifies rawURL and dispatches to the fetch/hash/write
// path or the album-expand/recurse path (§4.4, §5).
func (p *Pipeline) processOneURL(ctx context.Context, rawURL string, o owner, depth int) {
	log := logging.For("ingest.pipeline").WithField("url", rawURL)

	kind := p.classifier.Classify(rawURL)
	switch kind {
	case classify.KindSkip:
		return
	case classify.KindRedditVideo:
		resolved, err := p.resolver.Resolve(ctx, rawURL)
		if err != nil {
			cerr := ferrors.NewClassifyError("resolve_reddit_video", rawURL, err)
			log.WithField("error", cerr.Error()).Debug("reddit video resolve failed")
			return
		}
		p.fetchAndStoreVideo(ctx, rawURL, resolved, o)
		return
	case classify.KindImage:
		p.fetchAndStoreImage(ctx, rawURL, o)
		return
	case classify.KindVideo:
		p.fetchAndStoreVideo(ctx, rawURL, rawURL, o)
		return
	case classify.KindIndirect:
		if depth >= MaxExpandDepth {
			return
		}
		children, err := p.expander.Expand(ctx, rawURL)
		if err != nil {
			cerr := ferrors.NewClassifyError("expand_album", rawURL, err)
			log.WithField("error", cerr.Error()).Debug("album expand failed")
			return
		}
		if len(children) == 0 {
			return
		}
		if len(children) > 1 {
			albumID, err := p.db.GetOrCreateAlbum(urlnorm.Clean(rawURL))
			if err != nil {
				log.WithField("error", err.Error()).Warn("get_or_create_album failed")
				return
			}
			childOwner := owner{albumID: sql.NullInt64{Int64: albumID, Valid: true}}
			for _, child := range children {
				p.processOneURL(ctx, child, childOwner, depth+1)
			}
			return
		}
		p.processOneURL(ctx, children[0], o, depth+1)
	}
}

func (p *Pipeline) fetchAndStoreImage(ctx context.Context, rawURL string, o owner) {
	log := logging.For("ingest.pipeline").WithField("url", rawURL)
	clean := urlnorm.Clean(rawURL)

	data, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		if !ferrors.IsNotFound(err) {
			log.WithField("error", err.Error()).Debug("fetch image failed")
		}
		return
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.WithField("error", err.Error()).Debug("decode image failed")
		return
	}

	sum := sha1.Sum(data)
	sha1hex := hex.EncodeToString(sum[:])
	h := phash.Compute(img)
	bounds := img.Bounds()

	imageID, err := p.db.UpsertImage(sha1hex, h, bounds.Dx(), bounds.Dy(), len(data))
	if err != nil {
		log.WithField("error", err.Error()).Warn("upsert_image failed")
		return
	}

	if err := p.db.BindImageURL(imageID, store.URLBinding{
		URL: rawURL, CleanURL: clean, PostID: o.postID, CommentID: o.commentID, AlbumID: o.albumID,
	}); err != nil {
		log.WithField("error", err.Error()).Warn("bind_image_url failed")
	}
}

func (p *Pipeline) fetchAndStoreVideo(ctx context.Context, originalURL, fetchURL string, o owner) {
	log := logging.For("ingest.pipeline").WithField("url", fetchURL)
	clean := urlnorm.Clean(originalURL)

	data, err := p.fetcher.Fetch(ctx, fetchURL)
	if err != nil {
		if !ferrors.IsNotFound(err) {
			log.WithField("error", err.Error()).Debug("fetch video failed")
		}
		return
	}

	frames, info, err := p.extractor.Extract(ctx, data, extOf(fetchURL))
	if err != nil {
		log.WithField("error", err.Error()).Debug("extract frames failed")
		// Still record the video with zero frames; §4.2 "Failure" says the
		// extractor returns empty frames on decode error, caller continues.
	}

	sum := sha1.Sum(data)
	sha1hex := hex.EncodeToString(sum[:])

	videoID, err := p.db.UpsertVideo(sha1hex, len(data), store.VideoInfo{
		Codec: info.Codec, Format: info.FormatLongName, Width: info.Width, Height: info.Height,
		BitRate: info.BitRate, Duration: info.DurationSeconds, TotalFrames: info.TotalFrames,
		SampledFrames: len(frames),
	})
	if err != nil {
		log.WithField("error", err.Error()).Warn("upsert_video failed")
		return
	}

	if len(frames) > 0 {
		hashes := make([]phash.Hash, len(frames))
		for i, f := range frames {
			hashes[i] = f.Hash
		}
		if _, err := p.db.InsertFrames(videoID, hashes); err != nil {
			log.WithField("error", err.Error()).Warn("insert_frames failed")
		}
	}

	if err := p.db.BindVideoURL(videoID, store.URLBinding{
		URL: originalURL, CleanURL: clean, PostID: o.postID, CommentID: o.commentID, AlbumID: o.albumID,
	}); err != nil {
		log.WithField("error", err.Error()).Warn("bind_video_url failed")
	}
}

// extOf returns u's file extension, ignoring any query/fragment
// (e.g. ".../clip.mp4?sig=..." -> "mp4"), matching the classifier's
// own path-only extraction.
func extOf(u string) string {
	path := u
	if parsed, err := url.Parse(u); err == nil {
		path = parsed.Path
	}
	for i := len(path) - 1; i >= 0 && i > len(path)-6; i-- {
		if path[i] == '.' {
			return strings.ToLower(path[i+1:])
		}
	}
	return ""
}
