// Package fetch downloads article pages and extracts their main text.
// Selection is a cascade tuned for Korean news sites, whose markup rarely
// uses the article element and varies widely between outlets.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"newsly/internal/core"
	"newsly/internal/httpclient"
)

const (
	acceptHTML     = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	defaultMinBody = 100
	shortParagraph = 20
	titleWordLimit = 10
)

// defaultSelectors is the body selector cascade, ordered by priority. The
// early entries target specific Korean outlets, the tail is generic.
var defaultSelectors = []string{
	"#article-view-content-div",
	"#articleBodyContents",
	".news_body",
	".article_body",
	"#article_body",
	".story-news-article",
	"#articleBody",
	".text_area",
	".detail-body",
	".news_txt",
	".article_content",
	"#newsEndContents",
	".view-content",
	".article-content",
	".news-content",
	".post-content",
	".entry-content",
	"article",
	"main",
}

// defaultJunkSelectors are removed from the document before any text is
// extracted.
var defaultJunkSelectors = []string{
	"script", "style", "noscript", "iframe", "form",
	"nav", "header", "footer", "aside",
	"button", "input", "select", "textarea",
	".ad", ".advertisement", ".banner",
	".social", ".share", ".related", ".comment",
	".sidebar", ".menu", ".navigation", ".breadcrumb",
}

// bodyArtifacts scrub Korean newswire boilerplate from extracted text:
// reporter bylines with emails, copyright footers, reprint bans and
// decorated notice lines. Applied after whitespace is collapsed, so .* runs
// to the end of the text.
var bodyArtifacts = []*regexp.Regexp{
	regexp.MustCompile(`기자\s*=?\s*[\w.%+-]+@[\w.-]+\.[A-Za-z]{2,}`),
	regexp.MustCompile(`[\w.%+-]+@[\w.-]+\.[A-Za-z]{2,}\s*=?\s*기자`),
	regexp.MustCompile(`(?i)copyright\s*[©ⓒ].*`),
	regexp.MustCompile(`저작권자\s*[©ⓒ].*`),
	regexp.MustCompile(`무단\s*전재.*금지`),
	regexp.MustCompile(`\[[^][]*(?:기자|특파원)\]`),
	regexp.MustCompile(`▶.*?◀`),
	regexp.MustCompile(`※.*`),
	regexp.MustCompile(`☞.*`),
}

// listMarkers match the ■/▲/● bullets Korean sites prefix headlines and
// sub-items with. Only the marker is dropped, not the text after it.
var listMarkers = regexp.MustCompile(`(^|\s)[■▲●]+\s*`)

var zeroWidthReplacer = strings.NewReplacer(
	"\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "",
)

// Options adjusts the extraction cascade. Zero values select the defaults.
type Options struct {
	Selectors     []string // body selector cascade override
	JunkSelectors []string // appended to the default junk list
	MinBodyChars  int      // minimum cleaned body length in runes
}

// Extractor turns an article URL into a core.Article. Safe for concurrent
// use.
type Extractor struct {
	client    httpclient.Getter
	selectors []string
	junk      string
	minBody   int
}

// New builds an Extractor on top of the shared HTTP client.
func New(client httpclient.Getter, opts Options) *Extractor {
	selectors := opts.Selectors
	if len(selectors) == 0 {
		selectors = defaultSelectors
	}
	junk := defaultJunkSelectors
	if len(opts.JunkSelectors) > 0 {
		junk = append(append([]string{}, junk...), opts.JunkSelectors...)
	}
	minBody := opts.MinBodyChars
	if minBody <= 0 {
		minBody = defaultMinBody
	}
	return &Extractor{
		client:    client,
		selectors: selectors,
		junk:      strings.Join(junk, ", "),
		minBody:   minBody,
	}
}

// Extract downloads articleURL and returns the cleaned article. The context
// bounds the whole operation; callers typically attach the per-article
// extract timeout.
func (e *Extractor) Extract(ctx context.Context, articleURL string) (*core.Article, error) {
	canonical, err := core.CanonicalURL(articleURL)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Get(ctx, canonical, map[string]string{"Accept": acceptHTML})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := core.KindHTTPError
		if resp.StatusCode == 429 {
			kind = core.KindRateLimited
		}
		return nil, &core.PipelineError{
			Kind:    kind,
			Stage:   core.StageExtract,
			URL:     canonical,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("article returned HTTP %d", resp.StatusCode),
		}
	}

	doc, err := e.document(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &core.PipelineError{
			Kind:    core.KindUnparseable,
			Stage:   core.StageExtract,
			URL:     canonical,
			Message: "page is not parseable HTML",
			Err:     err,
		}
	}
	doc.Find(e.junk).Remove()

	body := e.bodyText(doc)
	if utf8.RuneCountInString(body) < e.minBody {
		return nil, &core.PipelineError{
			Kind:    core.KindBodyTooShort,
			Stage:   core.StageExtract,
			URL:     canonical,
			Message: fmt.Sprintf("extracted body under %d characters", e.minBody),
		}
	}

	// The extractor only knows the page host; callers that resolved the URL
	// from a feed entry overwrite Source with the registered outlet.
	article := &core.Article{
		Title:     title(doc, body),
		URL:       canonical,
		Body:      body,
		Source:    core.FeedSource{Name: hostOf(canonical)},
		FetchedAt: time.Now().UTC(),
	}
	return article, nil
}

// document decodes the response to UTF-8 using the Content-Type header, BOM
// and meta-tag sniffing, then parses it.
func (e *Extractor) document(body []byte, contentType string) (*goquery.Document, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(reader)
}

// bodyText walks the selector cascade and falls back to the largest div and
// finally to concatenated paragraphs. The first rung whose cleaned text
// reaches the minimum length wins.
func (e *Extractor) bodyText(doc *goquery.Document) string {
	best := ""
	consider := func(raw string) bool {
		cleaned := cleanBody(raw)
		if utf8.RuneCountInString(cleaned) > utf8.RuneCountInString(best) {
			best = cleaned
		}
		return utf8.RuneCountInString(cleaned) >= e.minBody
	}

	for _, sel := range e.selectors {
		found := doc.Find(sel).First()
		if found.Length() == 0 {
			continue
		}
		if consider(nodeText(found)) {
			return best
		}
	}
	if consider(largestDivText(doc)) {
		return best
	}
	consider(paragraphText(doc))
	return best
}

// nodeText concatenates descendant text nodes with separating spaces so
// adjacent blocks do not run together.
func nodeText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		walkText(n, &b)
	}
	return b.String()
}

func walkText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, b)
	}
}

func largestDivText(doc *goquery.Document) string {
	best := ""
	bestLen := 0
	doc.Find("div").Each(func(_ int, s *goquery.Selection) {
		text := nodeText(s)
		if n := utf8.RuneCountInString(text); n > bestLen {
			best, bestLen = text, n
		}
	})
	return best
}

// paragraphText joins body paragraphs, dropping stubs like photo captions
// and button labels.
func paragraphText(doc *goquery.Document) string {
	var parts []string
	doc.Find("body p").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(nodeText(s))
		if utf8.RuneCountInString(text) > shortParagraph {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, " ")
}

// cleanBody normalizes extracted text: zero-width characters out, whitespace
// collapsed, newswire artifacts scrubbed.
func cleanBody(s string) string {
	s = zeroWidthReplacer.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	for _, re := range bodyArtifacts {
		s = re.ReplaceAllString(s, "")
	}
	s = listMarkers.ReplaceAllString(s, "$1")
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

// title prefers og:title, then the title element, then the first h1. When a
// page has none of them the first words of the body stand in.
func title(doc *goquery.Document, body string) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if t := cleanTitle(og); t != "" {
			return t
		}
	}
	if t := cleanTitle(doc.Find("head title").First().Text()); t != "" {
		return t
	}
	if t := cleanTitle(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	words := strings.Fields(body)
	if len(words) > titleWordLimit {
		return strings.Join(words[:titleWordLimit], " ") + "..."
	}
	return strings.Join(words, " ")
}

func cleanTitle(s string) string {
	s = zeroWidthReplacer.Replace(s)
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

func hostOf(canonical string) string {
	u, err := url.Parse(canonical)
	if err != nil {
		return ""
	}
	return u.Host
}
