package feeds

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"newsly/internal/core"
	"newsly/internal/httpclient"
)

const utf8RSS = `<?xml version="1.0" encoding="utf-8"?>
<rss version="2.0">
<channel>
<title>뉴스 피드</title>
<link>https://news.example.com</link>
<item>
<title>반도체 수출 &lt;b&gt;사상&lt;/b&gt; 최대</title>
<link>https://News.example.com/articles/1#section</link>
<pubDate>Mon, 02 Jan 2006 15:04:05 +0900</pubDate>
<description><![CDATA[<p>반도체   수출이&nbsp;크게 늘었다</p>]]></description>
</item>
<item>
<title>링크 없는 기사</title>
<link></link>
</item>
<item>
<title></title>
<link>https://news.example.com/articles/2</link>
</item>
<item>
<title>중복 기사</title>
<link>https://news.example.com/articles/1#other</link>
</item>
<item>
<title>경제 전망</title>
<link>https://news.example.com/articles/3</link>
</item>
</channel>
</rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>기술 블로그</title>
<entry>
<title>새 프레임워크 공개</title>
<link href="https://tech.example.com/posts/1"/>
<updated>2006-01-02T15:04:05Z</updated>
<summary>요약 내용</summary>
</entry>
</feed>`

func testFetcher(maxItems int) *Fetcher {
	client := httpclient.New(httpclient.Options{HostInterval: time.Millisecond})
	return New(client, maxItems)
}

func serveFeed(contentType string, body []byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		_, _ = w.Write(body)
	}))
}

func testSource(url string) core.FeedSource {
	return core.FeedSource{Name: "테스트", Category: core.CategoryGeneral, RSSURL: url}
}

func encodeEUCKR(t *testing.T, s string) []byte {
	t.Helper()
	out, err := io.ReadAll(transform.NewReader(strings.NewReader(s), korean.EUCKR.NewEncoder()))
	if err != nil {
		t.Fatalf("encoding sample as EUC-KR failed: %v", err)
	}
	return out
}

func koreanRSS(decl string) string {
	return decl + `
<rss version="2.0">
<channel>
<title>한국 뉴스</title>
<link>https://korea.example.com</link>
<item>
<title>한겨레 속보: 위성 발사 성공</title>
<link>https://korea.example.com/articles/42</link>
<description>누리호가 궤도에 올랐다</description>
</item>
</channel>
</rss>`
}

func TestFetchParsesUTF8Feed(t *testing.T) {
	server := serveFeed("application/rss+xml; charset=utf-8", []byte(utf8RSS))
	defer server.Close()

	entries, err := testFetcher(0).Fetch(context.Background(), testSource(server.URL))
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries after skipping malformed and duplicate items, got %d", len(entries))
	}

	first := entries[0]
	if first.Title != "반도체 수출 사상 최대" {
		t.Errorf("Expected stripped title, got %q", first.Title)
	}
	if first.Link != "https://news.example.com/articles/1" {
		t.Errorf("Expected canonical link, got %q", first.Link)
	}
	if first.Snippet != "반도체 수출이 크게 늘었다" {
		t.Errorf("Expected cleaned snippet, got %q", first.Snippet)
	}
	if first.PublishedAt == nil {
		t.Fatal("Expected publication time to be set")
	}
	want := time.Date(2006, 1, 2, 6, 4, 5, 0, time.UTC)
	if !first.PublishedAt.Equal(want) {
		t.Errorf("Expected publication time %v, got %v", want, first.PublishedAt)
	}
	if first.Source.Name != "테스트" {
		t.Errorf("Expected source name to carry over, got %q", first.Source.Name)
	}
	if entries[1].Title != "경제 전망" {
		t.Errorf("Expected second entry title 경제 전망, got %q", entries[1].Title)
	}
}

func TestFetchParsesAtomFeed(t *testing.T) {
	server := serveFeed("application/atom+xml; charset=utf-8", []byte(atomFeed))
	defer server.Close()

	entries, err := testFetcher(0).Fetch(context.Background(), testSource(server.URL))
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].Title != "새 프레임워크 공개" {
		t.Errorf("Expected Atom entry title, got %q", entries[0].Title)
	}
	if entries[0].Link != "https://tech.example.com/posts/1" {
		t.Errorf("Expected Atom entry link, got %q", entries[0].Link)
	}
	if entries[0].PublishedAt == nil {
		t.Error("Expected publication time from the updated element")
	}
	if entries[0].Snippet != "요약 내용" {
		t.Errorf("Expected snippet from summary, got %q", entries[0].Snippet)
	}
}

func TestFetchDecodesEUCKRFromHeader(t *testing.T) {
	body := encodeEUCKR(t, koreanRSS(`<?xml version="1.0"?>`))
	server := serveFeed("text/xml; charset=euc-kr", body)
	defer server.Close()

	entries, err := testFetcher(0).Fetch(context.Background(), testSource(server.URL))
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].Title != "한겨레 속보: 위성 발사 성공" {
		t.Errorf("Expected round-tripped Korean title, got %q", entries[0].Title)
	}
	if entries[0].Snippet != "누리호가 궤도에 올랐다" {
		t.Errorf("Expected round-tripped snippet, got %q", entries[0].Snippet)
	}
}

func TestFetchDecodesCP949Label(t *testing.T) {
	body := encodeEUCKR(t, koreanRSS(`<?xml version="1.0"?>`))
	server := serveFeed("application/rss+xml; charset=cp949", body)
	defer server.Close()

	entries, err := testFetcher(0).Fetch(context.Background(), testSource(server.URL))
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "한겨레 속보: 위성 발사 성공" {
		t.Errorf("Expected CP949 label to decode via the EUC-KR table, got %+v", entries)
	}
}

func TestFetchHonorsXMLDeclaration(t *testing.T) {
	body := encodeEUCKR(t, koreanRSS(`<?xml version="1.0" encoding="euc-kr"?>`))
	server := serveFeed("text/xml", body)
	defer server.Close()

	entries, err := testFetcher(0).Fetch(context.Background(), testSource(server.URL))
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "한겨레 속보: 위성 발사 성공" {
		t.Errorf("Expected XML declaration to drive decoding, got %+v", entries)
	}
}

func TestFetchSniffsEUCKRWithoutLabels(t *testing.T) {
	body := encodeEUCKR(t, koreanRSS(`<?xml version="1.0"?>`))
	server := serveFeed("text/xml", body)
	defer server.Close()

	entries, err := testFetcher(0).Fetch(context.Background(), testSource(server.URL))
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "한겨레 속보: 위성 발사 성공" {
		t.Errorf("Expected byte sniffing to find EUC-KR, got %+v", entries)
	}
}

func TestFetchCapsEntries(t *testing.T) {
	server := serveFeed("application/rss+xml; charset=utf-8", []byte(utf8RSS))
	defer server.Close()

	entries, err := testFetcher(1).Fetch(context.Background(), testSource(server.URL))
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected the per-feed cap to keep 1 entry, got %d", len(entries))
	}
}

func TestFetchReportsHTTPStatus(t *testing.T) {
	tests := []struct {
		status   int
		wantKind core.Kind
	}{
		{500, core.KindHTTPError},
		{404, core.KindHTTPError},
		{429, core.KindRateLimited},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		_, err := testFetcher(0).Fetch(context.Background(), testSource(server.URL))
		server.Close()
		if err == nil {
			t.Errorf("Expected error for HTTP %d", tt.status)
			continue
		}
		var pe *core.PipelineError
		if !errors.As(err, &pe) {
			t.Errorf("Expected PipelineError for HTTP %d, got %T", tt.status, err)
			continue
		}
		if pe.Kind != tt.wantKind {
			t.Errorf("Expected kind %s for HTTP %d, got %s", tt.wantKind, tt.status, pe.Kind)
		}
		if pe.Status != tt.status {
			t.Errorf("Expected status %d on the error, got %d", tt.status, pe.Status)
		}
		if pe.Stage != core.StageFeed {
			t.Errorf("Expected feed stage, got %q", pe.Stage)
		}
	}
}

func TestFetchReportsParseError(t *testing.T) {
	server := serveFeed("text/html; charset=utf-8", []byte("this page is not a feed at all"))
	defer server.Close()

	_, err := testFetcher(0).Fetch(context.Background(), testSource(server.URL))
	if core.KindOf(err) != core.KindParseError {
		t.Errorf("Expected ParseError, got %v", err)
	}
}

func TestFetchReportsCharsetUnresolvable(t *testing.T) {
	body := []byte{0x00, 0x01, 0xff, 0xfe, 0x00, 0x01, 0xff}
	server := serveFeed("application/octet-stream", body)
	defer server.Close()

	_, err := testFetcher(0).Fetch(context.Background(), testSource(server.URL))
	if core.KindOf(err) != core.KindCharsetUnresolvable {
		t.Errorf("Expected CharsetUnresolvable, got %v", err)
	}
}

func TestFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := testFetcher(0).Fetch(ctx, testSource(server.URL))
	if core.KindOf(err) != core.KindTimeout {
		t.Errorf("Expected Timeout, got %v", err)
	}
}

func TestCharsetCandidateOrder(t *testing.T) {
	body := []byte(`<?xml version="1.0" encoding="EUC-KR"?><rss/>`)
	got := charsetCandidates("text/xml; charset=CP949", body)
	want := []string{"euc-kr", "utf-8", "iso-8859-1"}
	if len(got) != len(want) {
		t.Fatalf("Expected candidates %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected candidates %v, got %v", want, got)
		}
	}
}

func TestPublishedAtFallbackFormats(t *testing.T) {
	tm := publishedAt(&gofeed.Item{Published: "2026-01-02 09:30:00"})
	if tm == nil {
		t.Fatal("Expected fallback layout to parse the timestamp")
	}
	want := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)
	if !tm.Equal(want) {
		t.Errorf("Expected %v, got %v", want, tm)
	}
	if publishedAt(&gofeed.Item{}) != nil {
		t.Error("Expected nil when no timestamp is present")
	}
}
