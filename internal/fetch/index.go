package fetch

import (
	"context"
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// DiveExt is the extension of basestation dive files.
const DiveExt = ".nc"

// List fetches the index page at indexURL and returns the targets of its
// anchors that end in DiveExt, in page order. Targets are reduced to their
// base name so they can be joined to the archive's base URL.
func (c *Client) List(ctx context.Context, indexURL string) ([]string, error) {
	var names []string
	err := c.get(ctx, indexURL, func(body io.Reader) error {
		doc, err := html.Parse(body)
		if err != nil {
			return err
		}
		walkNodeTree(doc, func(n *html.Node) {
			if name, ok := anchorTarget(n); ok {
				names = append(names, name)
			}
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Listed index", "url", indexURL, "files", len(names))
	return names, nil
}

// anchorTarget returns the dive file an <a> element points at.
func anchorTarget(n *html.Node) (string, bool) {
	if n.Type != html.ElementNode || n.Data != "a" {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key != "href" {
			continue
		}
		ref, err := url.Parse(a.Val)
		if err != nil {
			return "", false
		}
		name := path.Base(ref.Path)
		if !strings.HasSuffix(name, DiveExt) {
			return "", false
		}
		return name, true
	}
	return "", false
}

// walkNodeTree walks an HTML parse tree depth first calling fn for each node.
func walkNodeTree(root *html.Node, fn func(*html.Node)) {
	fn(root)
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		walkNodeTree(c, fn)
	}
}
