// Package registry holds the curated table of news feed sources. The table
// is immutable after load; every pipeline run reads from the same snapshot.
package registry

import (
	"fmt"
	"sort"

	"newsly/internal/config"
	"newsly/internal/core"
)

// defaultSources covers the major Korean outlets. Config may extend the
// table, disable entries, or replace it outright.
var defaultSources = []core.FeedSource{
	// General dailies
	{Name: "한겨레", Category: core.CategoryGeneral, RSSURL: "http://www.hani.co.kr/rss/"},
	{Name: "조선일보", Category: core.CategoryGeneral, RSSURL: "https://www.chosun.com/arc/outboundfeeds/rss/"},
	{Name: "중앙일보", Category: core.CategoryGeneral, RSSURL: "https://rss.joins.com/joins_news_list.xml"},
	{Name: "동아일보", Category: core.CategoryGeneral, RSSURL: "https://rss.donga.com/total.xml"},
	{Name: "경향신문", Category: core.CategoryGeneral, RSSURL: "http://www.khan.co.kr/rss/rssdata/total_news.xml"},

	// Wire services
	{Name: "연합뉴스", Category: core.CategoryGeneral, RSSURL: "https://www.yna.co.kr/rss/news.xml"},
	{Name: "뉴스1", Category: core.CategoryGeneral, RSSURL: "https://www.news1.kr/rss/news.xml"},

	// IT / tech
	{Name: "ZDNet Korea", Category: core.CategoryIT, RSSURL: "https://www.zdnet.co.kr/news/news_list_rss.asp"},
	{Name: "전자신문", Category: core.CategoryIT, RSSURL: "https://www.etnews.com/rss/news.xml"},
	{Name: "디지털타임스", Category: core.CategoryIT, RSSURL: "https://www.dt.co.kr/rss/news.xml"},
	{Name: "아이뉴스24", Category: core.CategoryIT, RSSURL: "https://www.inews24.com/rss/allnews.xml"},
	{Name: "블로터", Category: core.CategoryIT, RSSURL: "https://www.bloter.net/feed/"},

	// Economy
	{Name: "한국경제", Category: core.CategoryEconomy, RSSURL: "https://www.hankyung.com/feed/all-news"},
	{Name: "매일경제", Category: core.CategoryEconomy, RSSURL: "https://www.mk.co.kr/rss/30000001/"},
	{Name: "서울경제", Category: core.CategoryEconomy, RSSURL: "https://www.sedaily.com/RSS/S1N1.xml"},

	// Broadcasters
	{Name: "SBS", Category: core.CategoryBroadcast, RSSURL: "https://news.sbs.co.kr/news/SectionRssFeed.do?sectionId=01"},
	{Name: "MBC", Category: core.CategoryBroadcast, RSSURL: "https://imnews.imbc.com/rss/news.xml"},
	{Name: "KBS", Category: core.CategoryBroadcast, RSSURL: "http://world.kbs.co.kr/rss/rss_news.htm?lang=k"},
	{Name: "YTN", Category: core.CategoryBroadcast, RSSURL: "https://www.ytn.co.kr/_comm/rss_list.php"},
	{Name: "JTBC", Category: core.CategoryBroadcast, RSSURL: "https://news.jtbc.joins.com/rss/news.xml"},
}

// Registry is the loaded, deduplicated source table.
type Registry struct {
	sources    []core.FeedSource
	byCategory map[core.Category][]core.FeedSource
}

// Load merges the built-in table with the configured extras, applies the
// disabled list, deduplicates by feed URL and validates category coverage.
func Load(cfg config.Feeds) (*Registry, error) {
	var merged []core.FeedSource
	if !cfg.ReplaceDefaults {
		merged = append(merged, defaultSources...)
	}
	for _, src := range cfg.Sources {
		cat := core.Category(src.Category)
		if !core.ValidCategory(cat) {
			return nil, core.NewError(core.KindConfigError,
				fmt.Sprintf("feed source %q has unknown category %q", src.Name, src.Category))
		}
		merged = append(merged, core.FeedSource{Name: src.Name, Category: cat, RSSURL: src.RSSURL})
	}

	// The supported set is everything the merged table claims to cover;
	// disabling must not silently empty a category.
	supported := map[core.Category]bool{}
	for _, src := range merged {
		supported[src.Category] = true
	}

	disabled := map[string]bool{}
	for _, u := range cfg.Disabled {
		disabled[u] = true
	}

	seen := map[string]bool{}
	reg := &Registry{byCategory: make(map[core.Category][]core.FeedSource)}
	for _, src := range merged {
		if disabled[src.RSSURL] || seen[src.RSSURL] {
			continue
		}
		seen[src.RSSURL] = true
		reg.sources = append(reg.sources, src)
		reg.byCategory[src.Category] = append(reg.byCategory[src.Category], src)
	}

	if len(reg.sources) == 0 {
		return nil, core.NewError(core.KindNoFeedsConfigured, "no feed sources configured")
	}
	for cat := range supported {
		if len(reg.byCategory[cat]) == 0 {
			return nil, core.NewError(core.KindConfigError,
				fmt.Sprintf("category %q has no remaining feed sources", cat))
		}
	}

	return reg, nil
}

// Default returns the registry built purely from the built-in table.
func Default() *Registry {
	reg, err := Load(config.Feeds{})
	if err != nil {
		// The built-in table is statically valid.
		panic(err)
	}
	return reg
}

// List returns every source in load order.
func (r *Registry) List() []core.FeedSource {
	out := make([]core.FeedSource, len(r.sources))
	copy(out, r.sources)
	return out
}

// ByCategory returns the sources tagged with the given category.
func (r *Registry) ByCategory(cat core.Category) []core.FeedSource {
	srcs := r.byCategory[cat]
	out := make([]core.FeedSource, len(srcs))
	copy(out, srcs)
	return out
}

// Categories returns the covered categories in stable (sorted) order.
func (r *Registry) Categories() []core.Category {
	cats := make([]core.Category, 0, len(r.byCategory))
	for cat := range r.byCategory {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

// Len returns the number of sources.
func (r *Registry) Len() int { return len(r.sources) }
