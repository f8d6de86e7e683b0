// thumbgc scans the thumbnail filesystem layout under a configured
// thumbs root and:
//   - generates missing <kind>/<d1>/<d2>/<id>.jpg files for images and
//     videos that have a url-binding but no thumbnail yet
//   - deletes thumbnail files whose id has no matching row in the
//     store (orphans left behind by a deleted or never-finished row)
//
// Adapted from the teacher's recordings-directory thumbnail sweep
// (cmd/thumbnails): same generate-missing/delete-orphan shape, but
// walking the media store's ids instead of a day-sharded recordings
// tree, and resizing in process with golang.org/x/image/draw instead
// of shelling out to ffmpeg for a still frame.
//
// Usage:
//
//	thumbgc [--config <path>] [--dry-run]
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/draw"

	"github.com/simon987/irarchives-go/internal/config"
	"github.com/simon987/irarchives-go/internal/fetch"
	"github.com/simon987/irarchives-go/internal/frameextract"
	"github.com/simon987/irarchives-go/internal/logging"
	"github.com/simon987/irarchives-go/internal/store"
	"github.com/simon987/irarchives-go/internal/thumbpath"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the structural config file")
	dryRun := flag.Bool("dry-run", false, "print actions without executing them")
	flag.Parse()

	logging.Init()
	log := logging.For("cmd.thumbgc")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	db, err := store.Open(cfg.DBDSN)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	f, err := fetch.New(cfg.HTTPProxy)
	if err != nil {
		log.WithError(err).Fatal("build fetcher")
	}

	generated, deleted, skipped := run(db, f, cfg, *dryRun)
	if *dryRun {
		fmt.Println("[dry-run] done (no changes made)")
	} else {
		fmt.Printf("done: %d generated, %d deleted, %d already complete\n", generated, deleted, skipped)
	}
}

func run(db *store.DB, f *fetch.Fetcher, cfg config.Config, dryRun bool) (generated, deleted, skipped int) {
	gi, si := generateMissing(db, f, cfg, thumbpath.KindImage, dryRun)
	gv, sv := generateMissing(db, f, cfg, thumbpath.KindVideo, dryRun)
	generated, skipped = gi+gv, si+sv
	deleted += deleteOrphans(db, cfg, thumbpath.KindImage, dryRun)
	deleted += deleteOrphans(db, cfg, thumbpath.KindVideo, dryRun)
	return generated, deleted, skipped
}

func generateMissing(db *store.DB, f *fetch.Fetcher, cfg config.Config, kind thumbpath.Kind, dryRun bool) (int, int) {
	table, urlTable, idCol := tableNames(kind)
	rows, err := db.SQL().Query(fmt.Sprintf(`SELECT id FROM %s`, table))
	if err != nil {
		return 0, 0
	}
	defer rows.Close()

	var generated, skipped int
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			continue
		}
		dest := thumbpath.Path(cfg.ThumbsDir, kind, id)
		if fileExists(dest) {
			skipped++
			continue
		}

		var rawURL string
		err := db.SQL().QueryRow(fmt.Sprintf(`SELECT url FROM %s WHERE %s = ? LIMIT 1`, urlTable, idCol), id).Scan(&rawURL)
		if err != nil {
			continue
		}

		if dryRun {
			fmt.Printf("[dry-run] generate thumb: %s\n", dest)
			generated++
			continue
		}
		if err := writeThumb(f, cfg, kind, rawURL, dest); err != nil {
			logging.For("cmd.thumbgc").WithField("id", id).WithError(err).Warn("thumb generation failed")
			continue
		}
		generated++
	}
	return generated, skipped
}

func writeThumb(f *fetch.Fetcher, cfg config.Config, kind thumbpath.Kind, rawURL, dest string) error {
	data, err := f.Fetch(context.Background(), rawURL)
	if err != nil {
		return err
	}

	var src image.Image
	if kind == thumbpath.KindVideo {
		frames, _, err := frameextract.New().Extract(context.Background(), data, extOf(rawURL))
		if err != nil || len(frames) == 0 {
			return fmt.Errorf("no frames extracted")
		}
		src = frames[0].Image
	} else {
		src, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return err
		}
	}

	resized := resize(src, cfg.ThumbSize)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	return jpeg.Encode(out, resized, &jpeg.Options{Quality: 85})
}

// resize scales src so its longer side is maxDim, preserving aspect
// ratio, using the same Catmull-Rom resampler the hash computation
// uses for consistency of texture across the codebase.
func resize(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || maxDim <= 0 {
		return src
	}
	var newW, newH int
	if w > h {
		newW = maxDim
		newH = h * maxDim / w
	} else {
		newH = maxDim
		newW = w * maxDim / h
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func deleteOrphans(db *store.DB, cfg config.Config, kind thumbpath.Kind, dryRun bool) int {
	table, _, _ := tableNames(kind)
	root := filepath.Join(cfg.ThumbsDir, string(kind))
	var deletedCount int

	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		name := info.Name()
		if !strings.HasSuffix(name, ".jpg") {
			return nil
		}
		idStr := strings.TrimSuffix(name, ".jpg")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil
		}

		var exists int
		if err := db.SQL().QueryRow(fmt.Sprintf(`SELECT count(*) FROM %s WHERE id = ?`, table), id).Scan(&exists); err != nil || exists > 0 {
			return nil
		}

		if dryRun {
			fmt.Printf("[dry-run] delete orphan: %s\n", path)
		} else {
			fmt.Printf("deleting orphan: %s\n", path)
			if err := os.Remove(path); err != nil {
				logging.For("cmd.thumbgc").WithError(err).Warn("remove failed")
				return nil
			}
		}
		deletedCount++
		return nil
	})
	return deletedCount
}

func tableNames(kind thumbpath.Kind) (table, urlTable, idCol string) {
	if kind == thumbpath.KindVideo {
		return "videos", "video_urls", "video_id"
	}
	return "images", "image_urls", "image_id"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func extOf(u string) string {
	i := strings.LastIndex(u, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(u[i+1:])
}
