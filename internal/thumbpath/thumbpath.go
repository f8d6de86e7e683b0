// Package thumbpath implements the thumbnail filesystem layout
// contract (§6): for media id N, thumbnails live at
// static/thumbs/<kind>/<d1>/<d2>/<N>.jpg.
package thumbpath

import (
	"fmt"
	"path"
)

// Kind selects the thumbnail namespace.
type Kind string

const (
	KindImage Kind = "im"
	KindVideo Kind = "vid"
)

// Path returns the thumbnail path for media id within root (the
// configured thumbs directory), not including a leading slash.
func Path(root string, kind Kind, id int64) string {
	d1, d2 := digits(id)
	return path.Join(root, string(kind), d1, d2, fmt.Sprintf("%d.jpg", id))
}

// digits returns the first and second decimal digits of id, with d2
// forced to "0" for single-digit ids (§6).
func digits(id int64) (string, string) {
	s := fmt.Sprintf("%d", id)
	d1 := string(s[0])
	d2 := "0"
	if len(s) >= 2 {
		d2 = string(s[1])
	}
	return d1, d2
}
