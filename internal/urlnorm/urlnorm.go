// Package urlnorm implements clean_url (§4.5): the canonical normalized
// form used as the dedup key for url-bindings. It is part of the
// on-disk contract and must not change without a backfill.
package urlnorm

import "strings"

// Clean normalizes a URL for dedup purposes:
//  1. percent-escape " and '
//  2. strip the http(s):// scheme
//  3. drop any query (?...) or fragment (#...)
//  4. strip trailing slashes
//  5. re-prefix with http://
//
// Clean is idempotent: Clean(Clean(u)) == Clean(u).
func Clean(u string) string {
	u = strings.ReplaceAll(u, `"`, "%22")
	u = strings.ReplaceAll(u, `'`, "%27")

	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")

	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}

	u = strings.TrimRight(u, "/")

	return "http://" + u
}
