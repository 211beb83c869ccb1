// Package extract pulls structured text blocks out of page HTML. Each block
// keeps its source element (tag, xpath, attributes) so issues found in the
// block's text can point back into the page.
package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/valpere/transqa/internal/qa"
)

// contentTags are the elements whose text becomes blocks.
var contentTags = map[string]struct{}{
	"p": {}, "div": {}, "span": {}, "article": {}, "section": {}, "main": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"li": {}, "td": {}, "th": {}, "blockquote": {}, "figcaption": {},
	"label": {}, "legend": {}, "option": {}, "button": {},
}

// inlineTags are traversed into when collecting a block's own text.
var inlineTags = map[string]struct{}{
	"span": {}, "a": {}, "strong": {}, "em": {}, "b": {}, "i": {},
	"u": {}, "small": {}, "sup": {}, "sub": {},
}

var ignoredTags = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {}, "meta": {}, "link": {}, "head": {},
	"iframe": {}, "svg": {}, "template": {},
}

var hiddenClasses = map[string]struct{}{
	"visually-hidden": {}, "sr-only": {},
}

var (
	spaceRun    = regexp.MustCompile(`\s+`)
	meaningful  = regexp.MustCompile(`[\p{L}\p{N}]`)
	contentExpr = buildContentSelector()
)

func buildContentSelector() string {
	tags := make([]string, 0, len(contentTags))
	for t := range contentTags {
		tags = append(tags, t)
	}
	return strings.Join(tags, ", ")
}

// DefaultMinTextLength is the shortest block text worth keeping.
const DefaultMinTextLength = 10

// Extractor turns HTML into text blocks. The zero value is not usable;
// construct with New.
type Extractor struct {
	minTextLength int
}

// Option adjusts extractor construction.
type Option func(*Extractor)

// WithMinTextLength overrides the minimum block text length.
func WithMinTextLength(n int) Option {
	return func(e *Extractor) { e.minTextLength = n }
}

// New builds an extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{minTextLength: DefaultMinTextLength}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractBlocks parses HTML and returns its text blocks plus page metadata.
// pageURL is used for metadata extraction and may be empty. Parse failures
// yield a result with Success=false rather than an error: an unparseable
// page is an analysis finding, not a pipeline fault.
func (e *Extractor) ExtractBlocks(htmlContent, pageURL string) *qa.ExtractionResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return &qa.ExtractionResult{
			Success:      false,
			ErrorMessage: fmt.Sprintf("parse HTML: %v", err),
		}
	}

	result := &qa.ExtractionResult{Success: true}
	e.fillMetadata(doc, htmlContent, pageURL, result)

	processed := make(map[*html.Node]struct{})
	doc.Find(contentExpr).Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		if _, done := processed[node]; done {
			return
		}
		if hiddenByAncestor(node) {
			return
		}

		text := e.normalize(directText(node, processed))
		if !e.visible(text) {
			return
		}
		processed[node] = struct{}{}

		result.Blocks = append(result.Blocks, qa.TextBlock{
			Text:       text,
			XPath:      xpathOf(node),
			TagName:    node.Data,
			Attributes: relevantAttributes(node),
			BlockType:  classifyBlock(node.Data),
		})
	})

	// Raw text is the blocks joined by blank lines; block offsets index
	// into it.
	texts := make([]string, 0, len(result.Blocks))
	for _, b := range result.Blocks {
		texts = append(texts, b.Text)
	}
	result.RawText = strings.Join(texts, "\n\n")

	offset := 0
	for i := range result.Blocks {
		start := strings.Index(result.RawText[offset:], result.Blocks[i].Text)
		if start < 0 {
			start = 0
		}
		result.Blocks[i].OffsetStart = offset + start
		result.Blocks[i].OffsetEnd = offset + start + len(result.Blocks[i].Text)
		offset = result.Blocks[i].OffsetEnd + 2 // the \n\n separator
		if offset > len(result.RawText) {
			offset = len(result.RawText)
		}
	}

	return result
}

// RawText extracts the page's text without block structure.
func (e *Extractor) RawText(htmlContent string) string {
	result := e.ExtractBlocks(htmlContent, "")
	return result.RawText
}

func (e *Extractor) fillMetadata(doc *goquery.Document, htmlContent, pageURL string, result *qa.ExtractionResult) {
	result.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		result.MetaDescription = strings.TrimSpace(desc)
	}
	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		result.DeclaredLanguage = strings.TrimSpace(lang)
	}

	// Readability fills the gaps when the page carries no explicit metadata.
	if result.Title != "" && result.MetaDescription != "" {
		return
	}
	parsedURL, err := url.Parse(pageURL)
	if err != nil || parsedURL.Host == "" {
		return
	}
	article, err := readability.FromReader(strings.NewReader(htmlContent), parsedURL)
	if err != nil {
		return
	}
	if result.Title == "" {
		result.Title = strings.TrimSpace(article.Title)
	}
	if result.MetaDescription == "" {
		result.MetaDescription = strings.TrimSpace(article.Excerpt)
	}
}

// directText collects the element's own text: text nodes and inline
// descendants, but not nested content elements (those become blocks of
// their own). Consumed inline elements are marked processed.
func directText(n *html.Node, processed map[*html.Node]struct{}) string {
	var parts []string
	var walk func(node *html.Node, depth int)
	walk = func(node *html.Node, depth int) {
		if depth > 10 {
			return
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			switch child.Type {
			case html.TextNode:
				if t := strings.TrimSpace(child.Data); t != "" {
					parts = append(parts, t)
				}
			case html.ElementNode:
				if ignoreNode(child) {
					continue
				}
				if _, inline := inlineTags[child.Data]; inline {
					processed[child] = struct{}{}
					walk(child, depth+1)
					continue
				}
				if _, content := contentTags[child.Data]; content {
					continue // extracted as its own block
				}
				walk(child, depth+1)
			}
		}
	}
	walk(n, 0)
	return strings.Join(parts, " ")
}

func ignoreNode(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if _, ignored := ignoredTags[n.Data]; ignored {
		return true
	}
	for _, attr := range n.Attr {
		switch attr.Key {
		case "aria-hidden":
			if attr.Val == "true" {
				return true
			}
		case "style":
			squeezed := strings.ReplaceAll(attr.Val, " ", "")
			if strings.Contains(squeezed, "display:none") || strings.Contains(squeezed, "visibility:hidden") {
				return true
			}
		case "class":
			for _, cls := range strings.Fields(attr.Val) {
				if _, hidden := hiddenClasses[cls]; hidden {
					return true
				}
			}
		}
	}
	return false
}

func hiddenByAncestor(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if ignoreNode(p) {
			return true
		}
	}
	return false
}

// xpathOf builds a readable XPath for the element: id wins over class wins
// over positional indexing.
func xpathOf(n *html.Node) string {
	var parts []string
	for cur := n; cur != nil && cur.Type == html.ElementNode && cur.Data != "html"; cur = cur.Parent {
		part := cur.Data
		if id := attrValue(cur, "id"); id != "" {
			part = fmt.Sprintf("%s[@id='%s']", cur.Data, id)
		} else if cls := attrValue(cur, "class"); cls != "" {
			part = fmt.Sprintf("%s[@class='%s']", cur.Data, cls)
		} else if pos := siblingPosition(cur); pos > 0 {
			part = fmt.Sprintf("%s[%d]", cur.Data, pos)
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return "/"
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/html/" + strings.Join(parts, "/")
}

// siblingPosition returns the 1-based position among same-tag siblings, or
// 0 when the element is the only one of its tag.
func siblingPosition(n *html.Node) int {
	if n.Parent == nil {
		return 0
	}
	pos, total := 0, 0
	for sib := n.Parent.FirstChild; sib != nil; sib = sib.NextSibling {
		if sib.Type != html.ElementNode || sib.Data != n.Data {
			continue
		}
		total++
		if sib == n {
			pos = total
		}
	}
	if total > 1 {
		return pos
	}
	return 0
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func relevantAttributes(n *html.Node) map[string]string {
	var attrs map[string]string
	for _, attr := range n.Attr {
		relevant := attr.Key == "id" || attr.Key == "class" ||
			attr.Key == "role" || attr.Key == "lang" ||
			strings.HasPrefix(attr.Key, "data-")
		if !relevant {
			continue
		}
		if attrs == nil {
			attrs = make(map[string]string)
		}
		attrs[attr.Key] = attr.Val
	}
	return attrs
}

func classifyBlock(tag string) string {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return "heading"
	case "li", "dt", "dd":
		return "list_item"
	case "td", "th":
		return "table_cell"
	case "blockquote", "q":
		return "quote"
	case "figcaption", "caption":
		return "caption"
	case "label", "legend":
		return "label"
	case "button", "option":
		return "interactive"
	case "p":
		return "paragraph"
	case "article", "section", "main":
		return "section"
	default:
		return "text"
	}
}

func (e *Extractor) visible(text string) bool {
	if len(text) < e.minTextLength {
		return false
	}
	return meaningful.MatchString(text)
}

func (e *Extractor) normalize(text string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(text, " "))
}
