// Package links extracts markdown-style link targets from post/comment
// body text (C5, §4.4), filtering through a classifier's skip rules
// before handing back a deduplicated set.
package links

import (
	"strings"

	"github.com/samber/lo"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/simon987/irarchives-go/internal/classify"
)

// md is a package-level parser; goldmark.Markdown is safe for
// concurrent use across Parse calls.
var md = goldmark.New()

// Extract parses body as markdown, walks its AST for link targets
// (unescaping "\)" the way the source's regex-based extractor did),
// and returns the deduplicated set of URLs whose classification is not
// classify.KindSkip.
func Extract(body string, c *classify.Classifier) []string {
	unescaped := strings.ReplaceAll(body, `\)`, ")")
	src := []byte(unescaped)
	doc := md.Parser().Parse(text.NewReader(src))

	var found []string
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if link, ok := n.(*ast.Link); ok {
			found = append(found, string(link.Destination))
		}
		if img, ok := n.(*ast.Image); ok {
			found = append(found, string(img.Destination))
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil
	}

	found = lo.Uniq(found)

	kept := make([]string, 0, len(found))
	for _, u := range found {
		if c.Classify(u) != classify.KindSkip {
			kept = append(kept, u)
		}
	}
	return kept
}
