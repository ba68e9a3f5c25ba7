package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"newsly/internal/core"
)

// idempotencyCache replays recent responses so a resubmitted request does not
// repeat LLM calls. Entries expire after the idempotency window and the LRU
// bounds the size; only successful responses are cached.
type idempotencyCache struct {
	lru *expirable.LRU[string, *core.SummarizeResponse]
}

func newIdempotencyCache(size int, ttl time.Duration) *idempotencyCache {
	return &idempotencyCache{
		lru: expirable.NewLRU[string, *core.SummarizeResponse](size, nil, ttl),
	}
}

func (c *idempotencyCache) get(key string) (*core.SummarizeResponse, bool) {
	return c.lru.Get(key)
}

func (c *idempotencyCache) put(key string, resp *core.SummarizeResponse) {
	c.lru.Add(key, resp)
}

// cacheKey derives the replay key from the request identity: user, language,
// query and the URL sets order-independently, plus the article cap.
func cacheKey(req *core.PipelineRequest) string {
	rss := append([]string(nil), req.RSSURLs...)
	articles := append([]string(nil), req.ArticleURLs...)
	sort.Strings(rss)
	sort.Strings(articles)

	var b strings.Builder
	b.WriteString(req.UserID)
	b.WriteByte('\x00')
	b.WriteString(req.Language)
	b.WriteByte('\x00')
	b.WriteString(req.Query)
	b.WriteByte('\x00')
	b.WriteString(strings.Join(rss, "\x01"))
	b.WriteByte('\x00')
	b.WriteString(strings.Join(articles, "\x01"))
	b.WriteByte('\x00')
	fmt.Fprintf(&b, "%d", req.MaxArticles)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
