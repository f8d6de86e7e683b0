// Package classify implements the URL classifier (C4, §4.4): deciding
// whether a URL is a direct image, a direct video, a reddit-hosted
// video needing resolution, an indirect URL needing album expansion,
// or one to skip outright.
package classify

import (
	"net/url"
	"strings"
)

// Kind is the classifier's verdict for a single URL.
type Kind int

const (
	// KindSkip means the URL matches a skip rule and should be ignored.
	KindSkip Kind = iota
	// KindImage means the URL is a direct link to image bytes.
	KindImage
	// KindVideo means the URL is a direct link to video bytes.
	KindVideo
	// KindRedditVideo means the URL is a v.redd.it link that must be
	// resolved to a progressive MP4 before it can be fetched.
	KindRedditVideo
	// KindIndirect means the URL must be handed to the album expander;
	// its children are reclassified individually.
	KindIndirect
)

func (k Kind) String() string {
	switch k {
	case KindSkip:
		return "skip"
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindRedditVideo:
		return "reddit_video"
	case KindIndirect:
		return "indirect"
	}
	return "unknown"
}

// imageExts is the direct-image extension set (§4.4 point 1).
var imageExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"tiff": true, "bmp": true, "webp": true,
}

// videoExts is the direct-video extension set (§4.4 point 2).
var videoExts = map[string]bool{
	"webm": true, "mp4": true,
}

// defaultSkipHosts is the compiled-in default skip list (§9: "treat it
// as config" — this is the fallback when the deployment supplies none).
var defaultSkipHosts = []string{
	"youtube.com", "youtu.be", "github.com", "wikipedia.org", "addons.mozilla.org",
}

// Classifier holds the configurable skip-host list.
type Classifier struct {
	SkipHosts []string
}

// New builds a Classifier, falling back to the compiled-in skip list
// when skipHosts is empty.
func New(skipHosts []string) *Classifier {
	if len(skipHosts) == 0 {
		skipHosts = defaultSkipHosts
	}
	return &Classifier{SkipHosts: skipHosts}
}

// Classify inspects raw (already trimmed of surrounding whitespace) and
// returns its Kind.
func (c *Classifier) Classify(raw string) Kind {
	parsed, err := url.Parse(raw)
	if err != nil {
		return KindSkip
	}
	host := strings.ToLower(parsed.Hostname())
	path := parsed.Path

	if c.skips(host, path) {
		return KindSkip
	}

	ext := extOf(path)
	if imageExts[ext] || host == "i.reddituploads.com" {
		return KindImage
	}
	if videoExts[ext] {
		return KindVideo
	}
	if host == "v.redd.it" {
		return KindRedditVideo
	}
	return KindIndirect
}

// extOf returns the lowercased file extension of path, handling the
// Twitter-style ":orig" size suffix (e.g. "photo.jpg:orig" -> "jpg").
func extOf(path string) string {
	base := path
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.Index(base, ":"); i >= 0 {
		base = base[:i]
	}
	i := strings.LastIndex(base, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// skips reports whether host/path matches one of the skip rules in
// §4.4 point 5: subreddit/user roots, message compose, search, or a
// configured skip host.
func (c *Classifier) skips(host, path string) bool {
	trimmed := strings.Trim(path, "/")
	segments := strings.Split(trimmed, "/")
	onReddit := strings.Contains(host, "reddit.com")

	if onReddit && len(segments) >= 1 {
		switch segments[0] {
		case "r":
			if len(segments) == 1 || (len(segments) == 2 && segments[1] != "") {
				return true
			}
		case "u", "user":
			return true
		case "message":
			if len(segments) >= 2 && segments[1] == "compose" {
				return true
			}
		case "search":
			return true
		}
	}

	for _, h := range c.SkipHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
