// Package embed reconciles OCR-detected image regions with the rendered
// output: bare placeholder references in Markdown and <img> elements in
// generated HTML are rewritten to carry the region's inline data.
package embed

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/Lllllllleong/documenttranslationflow/internal/models"
)

// InMarkdown replaces every Markdown image reference ![alt](id) with
// ![alt](data-uri) for each region of each page that carries inline data.
// OCR sometimes emits placeholders with an implicit ".jpeg" extension, so
// an id with no match is retried with that suffix. Mutates the document in
// place; a second run finds no bare-id references and is a no-op.
func InMarkdown(doc *models.Document) {
	for i := range doc.Pages {
		page := &doc.Pages[i]
		for _, img := range page.Images {
			if img.ImageBase64 == "" {
				continue
			}
			uri := dataURI(img.ImageBase64)
			replaced, n := replaceImageRef(page.Text.Markdown, img.ID, uri)
			if n == 0 {
				replaced, n = replaceImageRef(page.Text.Markdown, img.ID+".jpeg", uri)
			}
			if n == 0 {
				slog.Debug("No markdown reference for image region.", "imageId", img.ID, "pageIndex", page.Index)
				continue
			}
			page.Text.Markdown = replaced
		}
	}
}

// InHTML sets the src of the <img> element matching each image region to
// the region's data URI. Match precedence: id attribute equal to the region
// id, then the id with a ".jpeg" suffix stripped, then a substring match
// against every img src. A region with no match is logged and skipped;
// a page with blank HTML is an error.
func InHTML(doc *models.Document) error {
	for i := range doc.Pages {
		page := &doc.Pages[i]
		if strings.TrimSpace(page.Text.HTML) == "" {
			return fmt.Errorf("%w: page %d has no HTML to embed into", models.ErrEmptyContent, page.Index)
		}
		if len(page.Images) == 0 {
			continue
		}

		root, err := html.Parse(strings.NewReader(page.Text.HTML))
		if err != nil {
			return fmt.Errorf("failed to parse page %d HTML: %w", page.Index, err)
		}
		imgs := collectImgNodes(root)

		for _, region := range page.Images {
			if region.ImageBase64 == "" {
				continue
			}
			node := matchImgNode(imgs, region.ID)
			if node == nil {
				slog.Warn("No HTML element for image region.", "imageId", region.ID, "pageIndex", page.Index)
				continue
			}
			setAttr(node, "src", dataURI(region.ImageBase64))
		}

		var b strings.Builder
		if err := html.Render(&b, root); err != nil {
			return fmt.Errorf("failed to render page %d HTML: %w", page.Index, err)
		}
		page.Text.HTML = b.String()
	}
	return nil
}

// CombineHTML merges the HTML of every page into one document: the first
// page contributes the head, every page contributes its body content in
// order. Pages without HTML are skipped.
func CombineHTML(doc *models.Document) string {
	var headContent, bodyContent strings.Builder
	first := true
	for i := range doc.Pages {
		raw := doc.Pages[i].Text.HTML
		if strings.TrimSpace(raw) == "" {
			continue
		}
		root, err := html.Parse(strings.NewReader(raw))
		if err != nil {
			slog.Warn("Skipping unparseable page HTML during combination.", "pageIndex", doc.Pages[i].Index, "error", err)
			continue
		}
		if first {
			if head := findElement(root, "head"); head != nil {
				renderChildren(&headContent, head)
			}
		}
		if body := findElement(root, "body"); body != nil {
			if !first {
				bodyContent.WriteString("\n")
			}
			renderChildren(&bodyContent, body)
		}
		first = false
	}
	if first {
		return ""
	}
	return fmt.Sprintf("<!DOCTYPE html>\n<html lang=\"en\">\n<head>%s</head>\n<body>\n%s\n</body>\n</html>",
		headContent.String(), bodyContent.String())
}

// replaceImageRef rewrites ![alt](id) references to ![alt](uri), returning
// the new text and the number of replacements.
func replaceImageRef(markdown, id, uri string) (string, int) {
	re := regexp.MustCompile(`(!\[[^\]]*\]\()` + regexp.QuoteMeta(id) + `\)`)
	n := 0
	out := re.ReplaceAllStringFunc(markdown, func(m string) string {
		n++
		open := re.FindStringSubmatch(m)[1]
		return open + uri + ")"
	})
	return out, n
}

// dataURI wraps raw base64 as a JPEG data URI; payloads that already carry
// a data: prefix are passed through untouched.
func dataURI(b64 string) string {
	if strings.HasPrefix(b64, "data:") {
		return b64
	}
	return "data:image/jpeg;base64," + b64
}

func collectImgNodes(root *html.Node) []*html.Node {
	var imgs []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			imgs = append(imgs, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return imgs
}

// matchImgNode applies the tie-break policy: exact id attribute, then the
// suffix-normalized id, then a substring match on src. First match wins.
func matchImgNode(imgs []*html.Node, regionID string) *html.Node {
	for _, n := range imgs {
		if getAttr(n, "id") == regionID {
			return n
		}
	}
	if trimmed := strings.TrimSuffix(regionID, ".jpeg"); trimmed != regionID {
		for _, n := range imgs {
			if getAttr(n, "id") == trimmed {
				return n
			}
		}
	}
	for _, n := range imgs {
		if src := getAttr(n, "src"); src != "" && strings.Contains(src, strings.TrimSuffix(regionID, ".jpeg")) {
			return n
		}
	}
	return nil
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func findElement(root *html.Node, tag string) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == tag {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

func renderChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(b, c)
	}
}
