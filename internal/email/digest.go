// Package email renders summary digests and hands them to a mail sender.
// Rendering and transport are separate so the pipeline can inject a fake
// sender in tests.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"newsly/internal/core"
)

// Digest is the rendered email content for one pipeline run.
type Digest struct {
	Subject  string
	HTMLBody string
	TextBody string
}

var htmlTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { margin: 0; padding: 0; background-color: #f8fafc; font-family: system-ui, -apple-system, 'Segoe UI', Roboto, sans-serif; color: #1e293b; line-height: 1.6; }
  .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; border: 1px solid #e2e8f0; border-radius: 8px; overflow: hidden; }
  .header { background-color: #2563eb; color: #ffffff; padding: 24px; text-align: center; }
  .header h1 { margin: 0; font-size: 20px; font-weight: 600; }
  .article { padding: 20px 24px; border-bottom: 1px solid #e2e8f0; }
  .article h2 { margin: 0 0 4px 0; font-size: 16px; }
  .article .source { color: #64748b; font-size: 13px; margin: 0 0 8px 0; }
  .article p { margin: 0 0 8px 0; font-size: 14px; }
  .article a { color: #3b82f6; text-decoration: none; }
  .footer { padding: 16px 24px; color: #94a3b8; font-size: 12px; text-align: center; }
</style>
</head>
<body>
<div class="container">
  <div class="header"><h1>{{.Heading}}</h1></div>
  {{range .Articles}}
  <div class="article">
    <h2>{{.Title}}</h2>
    <p class="source">{{.Source}}</p>
    <p>{{.Summary}}</p>
    <p><a href="{{.URL}}">{{.LinkLabel}}</a></p>
  </div>
  {{end}}
  <div class="footer">{{.Footer}}</div>
</div>
</body>
</html>
`))

type htmlArticle struct {
	Title     string
	Source    string
	Summary   string
	URL       string
	LinkLabel string
}

type htmlData struct {
	Heading  string
	Articles []htmlArticle
	Footer   string
}

// Render builds the digest for the given summaries. The subject and labels
// follow the summary language.
func Render(articles []core.SummarizedArticle, language string, now time.Time) (*Digest, error) {
	if len(articles) == 0 {
		return nil, core.NewError(core.KindMailError, "nothing to send")
	}

	korean := language == core.LanguageKorean
	subject := fmt.Sprintf("📰 News Summary Report (%d articles)", len(articles))
	heading := "News Summary Report"
	linkLabel := "Read the original article"
	footer := fmt.Sprintf("Generated at %s", now.Format("2006-01-02 15:04 MST"))
	if korean {
		subject = fmt.Sprintf("📰 뉴스 요약 리포트 (%d개 기사)", len(articles))
		heading = "뉴스 요약 리포트"
		linkLabel = "원문 보기"
		footer = fmt.Sprintf("생성 시각 %s", now.Format("2006-01-02 15:04 MST"))
	}

	data := htmlData{Heading: heading, Footer: footer}
	for _, a := range articles {
		data.Articles = append(data.Articles, htmlArticle{
			Title:     a.Article.Title,
			Source:    sourceLabel(a.Article),
			Summary:   a.Summary,
			URL:       a.Article.URL,
			LinkLabel: linkLabel,
		})
	}

	var html bytes.Buffer
	if err := htmlTemplate.Execute(&html, data); err != nil {
		return nil, core.WrapError(core.KindMailError, "rendering digest failed", err)
	}

	return &Digest{
		Subject:  subject,
		HTMLBody: html.String(),
		TextBody: renderText(articles, footer),
	}, nil
}

// renderText is the plaintext alternative: one numbered block per article.
func renderText(articles []core.SummarizedArticle, footer string) string {
	var b strings.Builder
	for i, a := range articles {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, a.Article.Title)
		fmt.Fprintf(&b, "%s\n\n", sourceLabel(a.Article))
		b.WriteString(a.Summary)
		b.WriteString("\n\n")
		b.WriteString(a.Article.URL)
		b.WriteString("\n\n----------------------------------------\n\n")
	}
	b.WriteString(footer)
	b.WriteString("\n")
	return b.String()
}

func sourceLabel(article core.Article) string {
	if article.Source.Name != "" {
		return article.Source.Name
	}
	return article.URL
}
