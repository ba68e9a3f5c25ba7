// Package feeds downloads RSS and Atom feeds and normalizes their items
// into entries. Korean news feeds are served in a mix of UTF-8, EUC-KR and
// CP949, frequently mislabeled, so decoding walks a candidate ladder instead
// of trusting any single charset signal.
package feeds

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"mime"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"newsly/internal/core"
	"newsly/internal/httpclient"
)

const snippetLimit = 500

// sniffOrder is tried after the Content-Type header and the XML declaration.
// Order matters: a valid-UTF-8 body must win before EUC-KR, whose decoder
// accepts most UTF-8 trail bytes and would yield mojibake.
var sniffOrder = []string{"utf-8", "euc-kr", "cp949", "iso-8859-1"}

// charsetAliases folds label spellings seen in the wild onto the canonical
// labels the decoders are registered under.
var charsetAliases = map[string]string{
	"utf8":           "utf-8",
	"cp949":          "euc-kr",
	"ms949":          "euc-kr",
	"uhc":            "euc-kr",
	"windows-949":    "euc-kr",
	"x-windows-949":  "euc-kr",
	"ksc5601":        "euc-kr",
	"ks_c_5601-1987": "euc-kr",
	"latin1":         "iso-8859-1",
	"latin-1":        "iso-8859-1",
}

var xmlDeclEncoding = regexp.MustCompile(`(?i)(<\?xml[^>]*?encoding\s*=\s*["'])([^"']*)(["'])`)

var stripPolicy = bluemonday.StrictPolicy()

// dateFormats are fallback layouts for feeds whose timestamps gofeed cannot
// parse on its own.
var dateFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Fetcher downloads one feed per call and converts its items to entries.
// Safe for concurrent use.
type Fetcher struct {
	client   httpclient.Getter
	maxItems int
}

// New returns a Fetcher that retains at most maxItems entries per feed.
// maxItems <= 0 means no cap.
func New(client httpclient.Getter, maxItems int) *Fetcher {
	return &Fetcher{client: client, maxItems: maxItems}
}

// Fetch downloads and parses the feed at source.RSSURL. The context bounds
// the whole operation; callers typically attach the per-feed fetch timeout.
// Failures return zero entries and a PipelineError carrying the outcome kind.
func (f *Fetcher) Fetch(ctx context.Context, source core.FeedSource) ([]core.FeedEntry, error) {
	resp, err := f.client.Get(ctx, source.RSSURL, nil)
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
			Stage:   core.StageFeed,
			URL:     source.RSSURL,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("feed returned HTTP %d", resp.StatusCode),
		}
	}
	feed, err := f.parse(resp.Body, resp.Header.Get("Content-Type"), source.RSSURL)
	if err != nil {
		return nil, err
	}
	return f.entries(feed, source), nil
}

// parse walks the charset candidate ladder and hands the first clean decode
// to gofeed. The first candidate that yields a well-formed feed wins.
func (f *Fetcher) parse(body []byte, contentType, feedURL string) (*gofeed.Feed, error) {
	var parseErr error
	clean := 0
	for _, label := range charsetCandidates(contentType, body) {
		text, ok := decodeAs(body, label)
		if !ok {
			continue
		}
		clean++
		feed, err := gofeed.NewParser().ParseString(neutralizeXMLDecl(text))
		if err != nil {
			parseErr = err
			continue
		}
		return feed, nil
	}
	if clean == 0 {
		return nil, &core.PipelineError{
			Kind:    core.KindCharsetUnresolvable,
			Stage:   core.StageFeed,
			URL:     feedURL,
			Message: "no charset candidate decodes the feed body",
		}
	}
	return nil, &core.PipelineError{
		Kind:    core.KindParseError,
		Stage:   core.StageFeed,
		URL:     feedURL,
		Message: "feed is not valid RSS or Atom",
		Err:     parseErr,
	}
}

func (f *Fetcher) entries(feed *gofeed.Feed, source core.FeedSource) []core.FeedEntry {
	seen := make(map[string]struct{}, len(feed.Items))
	out := make([]core.FeedEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		title := cleanText(item.Title)
		link, err := core.CanonicalURL(item.Link)
		if title == "" || err != nil {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		out = append(out, core.FeedEntry{
			Title:       title,
			Link:        link,
			PublishedAt: publishedAt(item),
			Source:      source,
			Snippet:     snippet(item),
		})
		if f.maxItems > 0 && len(out) >= f.maxItems {
			break
		}
	}
	return out
}

// charsetCandidates orders decode attempts: Content-Type charset parameter,
// then the XML declaration, then the sniff ladder. Duplicates collapse after
// alias folding.
func charsetCandidates(contentType string, body []byte) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(label string) {
		label = normalizeLabel(label)
		if label == "" {
			return
		}
		if _, dup := seen[label]; dup {
			return
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			add(params["charset"])
		}
	}
	add(declaredEncoding(body))
	for _, label := range sniffOrder {
		add(label)
	}
	return out
}

func normalizeLabel(label string) string {
	label = strings.ToLower(strings.Trim(strings.TrimSpace(label), `"'`))
	if canonical, ok := charsetAliases[label]; ok {
		return canonical
	}
	return label
}

// declaredEncoding reads the encoding attribute of the XML declaration from
// the raw bytes. EUC-KR and CP949 are ASCII-compatible, so the declaration
// is readable before any decoding happens.
func declaredEncoding(body []byte) string {
	head := body
	if len(head) > 1024 {
		head = head[:1024]
	}
	m := xmlDeclEncoding.FindSubmatch(head)
	if m == nil {
		return ""
	}
	return string(m[2])
}

// neutralizeXMLDecl rewrites the declared encoding to utf-8 after a manual
// decode, otherwise the XML decoder would attempt a second conversion on
// text that is already UTF-8.
func neutralizeXMLDecl(text string) string {
	return xmlDeclEncoding.ReplaceAllString(text, "${1}utf-8${3}")
}

// decodeAs decodes body according to label and reports whether the result is
// clean: valid UTF-8, no replacement characters, no control bytes that XML
// forbids. A nil encoding means the body is already UTF-8.
func decodeAs(body []byte, label string) (string, bool) {
	enc, ok := lookupEncoding(label)
	if !ok {
		return "", false
	}
	if enc == nil {
		if !utf8.Valid(body) {
			return "", false
		}
		return checkClean(string(body))
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(body), enc.NewDecoder()))
	if err != nil {
		return "", false
	}
	return checkClean(string(decoded))
}

func lookupEncoding(label string) (encoding.Encoding, bool) {
	switch label {
	case "utf-8":
		return nil, true
	case "euc-kr":
		// The WHATWG euc-kr table is the full UHC set, so this decoder
		// also covers CP949-labeled feeds.
		return korean.EUCKR, true
	case "iso-8859-1":
		return charmap.ISO8859_1, true
	case "":
		return nil, false
	}
	if enc, _ := charset.Lookup(label); enc != nil {
		return enc, true
	}
	return nil, false
}

func checkClean(s string) (string, bool) {
	for _, r := range s {
		if r == utf8.RuneError {
			return "", false
		}
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return "", false
		}
	}
	return s, true
}

func publishedAt(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		return &t
	}
	if item.UpdatedParsed != nil {
		t := item.UpdatedParsed.UTC()
		return &t
	}
	for _, raw := range []string{item.Published, item.Updated} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		for _, layout := range dateFormats {
			if t, err := time.Parse(layout, raw); err == nil {
				u := t.UTC()
				return &u
			}
		}
	}
	return nil
}

func snippet(item *gofeed.Item) string {
	raw := item.Description
	if strings.TrimSpace(raw) == "" {
		raw = item.Content
	}
	return core.Excerpt(cleanText(raw), snippetLimit)
}

// cleanText strips HTML, restores entities the sanitizer escaped and
// collapses whitespace runs to single spaces.
func cleanText(s string) string {
	if s == "" {
		return ""
	}
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
