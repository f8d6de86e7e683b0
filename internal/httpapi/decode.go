package httpapi

// Blank-imported so image.Decode (reverse-search fetches and uploads)
// recognizes every format in the classifier's direct-image extension
// set (§4.4 point 1): jpg/png/gif from the standard library, bmp/tiff/
// webp from golang.org/x/image.
import (
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)
