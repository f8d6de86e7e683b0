// Package resolver implements the reddit-video resolver (C11, a
// SPEC_FULL.md addition, see §4.4 point 3): resolving a v.redd.it URL
// to its highest-width progressive MP4 by reading the DASH manifest,
// in place of shelling out to youtube-dl the way the original
// implementation does (original_source/rabbitmq_listen.py).
package resolver

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/simon987/irarchives-go/internal/fetch"
)

// representationRe matches a DASH <Representation> element's width and
// its nested <BaseURL>, tolerating attribute order and whitespace.
var representationRe = regexp.MustCompile(`(?s)<Representation[^>]*\bwidth="(\d+)"[^>]*>.*?<BaseURL>([^<]+)</BaseURL>`)

// Resolver resolves v.redd.it URLs via their DASH manifest.
type Resolver struct {
	fetcher *fetch.Fetcher
}

// New builds a Resolver using fetcher for outbound requests.
func New(fetcher *fetch.Fetcher) *Resolver {
	return &Resolver{fetcher: fetcher}
}

// Resolve takes a v.redd.it post URL (e.g. "https://v.redd.it/abc123")
// and returns the absolute URL of its widest progressive MP4
// representation.
func (r *Resolver) Resolve(ctx context.Context, videoURL string) (string, error) {
	base := strings.TrimRight(videoURL, "/")
	manifestURL := base + "/DASHPlaylist.mpd"

	data, err := r.fetcher.Fetch(ctx, manifestURL)
	if err != nil {
		return "", fmt.Errorf("fetch dash manifest: %w", err)
	}

	matches := representationRe.FindAllStringSubmatch(string(data), -1)
	if len(matches) == 0 {
		return "", fmt.Errorf("no video representation found in %s", manifestURL)
	}

	sort.Slice(matches, func(i, j int) bool {
		wi, _ := strconv.Atoi(matches[i][1])
		wj, _ := strconv.Atoi(matches[j][1])
		return wi > wj
	})

	best := matches[0][2]
	if strings.HasPrefix(best, "http") {
		return best, nil
	}
	return base + "/" + best, nil
}
