// Package index implements the similarity engine (C7, §4.7): exact
// lookup when the query radius is zero, and a popcount scan over
// candidate hashes otherwise. The Hamming-distance predicate is
// computed application-side rather than as a registered SQL scalar
// function (DESIGN.md, Open Question 2) — the contract is
// set-equivalence with the reference's DB-side function, not
// implementation.
package index

import (
	"database/sql"

	"github.com/simon987/irarchives-go/internal/phash"
)

// Engine scans the media store's hash columns for matches.
type Engine struct {
	db *sql.DB
}

// New builds an Engine over the raw *sql.DB (exposed by store.DB.SQL).
func New(db *sql.DB) *Engine {
	return &Engine{db: db}
}

// ImageMatch is one candidate returned by FindSimilarImages.
type ImageMatch struct {
	ImageID  int64
	Distance int
}

// FindSimilarImages returns every image whose hash is within Hamming
// distance d of target (§4.7 "Image query"). d must already be
// clamped by the caller.
func (e *Engine) FindSimilarImages(target phash.Hash, d int) ([]ImageMatch, error) {
	if d == 0 {
		id, ok, err := e.exactImage(target)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return []ImageMatch{{ImageID: id, Distance: 0}}, nil
	}

	rows, err := e.db.Query(`SELECT id, hash FROM images`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []ImageMatch
	for rows.Next() {
		var id int64
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		h, ok := phash.FromBytes(raw)
		if !ok {
			continue
		}
		if dist := phash.Distance(target, h); dist <= d {
			matches = append(matches, ImageMatch{ImageID: id, Distance: dist})
		}
	}
	return matches, rows.Err()
}

func (e *Engine) exactImage(target phash.Hash) (int64, bool, error) {
	var id int64
	err := e.db.QueryRow(`SELECT id FROM images WHERE hash = ?`, target.Bytes()).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// VideoMatch is one candidate returned by FindSimilarVideos.
type VideoMatch struct {
	VideoID           int64
	MatchedFrameCount int
}

// FindSimilarVideos finds videos with at least kMin query frames each
// matching some stored frame within distance d (§4.7 "Video query").
// queryFrames, d and kMin must already be clamped/validated by the
// caller.
func (e *Engine) FindSimilarVideos(queryFrames []phash.Hash, d, kMin int) ([]VideoMatch, error) {
	rows, err := e.db.Query(`SELECT video_id, hash FROM video_frames ORDER BY video_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// candidateHashes groups stored frame hashes by video_id so each
	// query frame's nearest-stored-frame distance can be computed once
	// per video.
	candidateHashes := make(map[int64][]phash.Hash)
	for rows.Next() {
		var videoID int64
		var raw []byte
		if err := rows.Scan(&videoID, &raw); err != nil {
			return nil, err
		}
		h, ok := phash.FromBytes(raw)
		if !ok {
			continue
		}
		candidateHashes[videoID] = append(candidateHashes[videoID], h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var matches []VideoMatch
	for videoID, stored := range candidateHashes {
		matched := 0
		for _, qf := range queryFrames {
			if anyWithin(qf, stored, d) {
				matched++
			}
		}
		if matched >= kMin {
			matches = append(matches, VideoMatch{VideoID: videoID, MatchedFrameCount: matched})
		}
	}
	return matches, nil
}

// anyWithin reports whether any hash in candidates is within distance
// d of target — the application-side equivalent of
// hash_is_within_distance_any (§4.7, §9).
func anyWithin(target phash.Hash, candidates []phash.Hash, d int) bool {
	for _, c := range candidates {
		if phash.Within(target, c, d) {
			return true
		}
	}
	return false
}
