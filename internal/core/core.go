package core

import "time"

// Category classifies a news source or article.
type Category string

const (
	CategoryGeneral       Category = "general"
	CategoryIT            Category = "it"
	CategoryEconomy       Category = "economy"
	CategoryBroadcast     Category = "broadcast"
	CategoryPolitics      Category = "politics"
	CategorySociety       Category = "society"
	CategoryCulture       Category = "culture"
	CategoryInternational Category = "international"
	CategoryEntertainment Category = "entertainment"
	CategorySports        Category = "sports"
	CategoryGovernment    Category = "government"
)

// Categories lists every category the system understands.
var Categories = []Category{
	CategoryGeneral, CategoryIT, CategoryEconomy, CategoryBroadcast,
	CategoryPolitics, CategorySociety, CategoryCulture, CategoryInternational,
	CategoryEntertainment, CategorySports, CategoryGovernment,
}

// ValidCategory reports whether c is one of the known categories.
func ValidCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// FeedSource is one curated RSS/Atom source. Immutable after registry load.
type FeedSource struct {
	Name     string   `json:"name"`     // Human-readable outlet name
	Category Category `json:"category"` // Category tag for the source
	RSSURL   string   `json:"rss_url"`  // Feed URL; registry key
}

// FeedEntry is a single normalized item pulled out of a feed.
type FeedEntry struct {
	Title       string     `json:"title"`                  // Item title
	Link        string     `json:"link"`                   // Canonicalized item URL
	PublishedAt *time.Time `json:"published_at,omitempty"` // Publication time, nil when the feed omits it
	Source      FeedSource `json:"source"`                 // Source the entry came from
	Snippet     string     `json:"snippet,omitempty"`      // First 500 chars of the description, tags stripped
}

// Article is the full text fetched from a FeedEntry link.
type Article struct {
	Title     string     `json:"title"`      // Extracted title
	URL       string     `json:"url"`        // Article URL
	Body      string     `json:"body"`       // Plain text body, normalized whitespace
	Source    FeedSource `json:"source"`     // Originating source
	FetchedAt time.Time  `json:"fetched_at"` // When the article was fetched
}

// KeywordSet holds the salient terms extracted from a user query.
type KeywordSet struct {
	Terms        []string `json:"terms"`         // Ordered, deduplicated, lowercased terms (1..10)
	LanguageHint string   `json:"language_hint"` // "ko", "en" or "auto"
}

// SummarizedArticle pairs an article with its generated summary.
type SummarizedArticle struct {
	Article    Article   `json:"article"`     // The summarized article
	Summary    string    `json:"summary"`     // Generated summary text
	Language   string    `json:"language"`    // Summary language ("ko" or "en")
	Model      string    `json:"model"`       // LLM model identifier used
	ProducedAt time.Time `json:"produced_at"` // When the summary was produced
}

// HistoryRecord is the persisted form of one summarization for one user.
type HistoryRecord struct {
	ID              string    `json:"id"`               // Opaque record identifier
	UserID          string    `json:"user_id"`          // Owning user
	ArticleURL      string    `json:"article_url"`      // URL of the summarized article
	ArticleTitle    string    `json:"article_title"`    // Title at summarization time
	ContentExcerpt  string    `json:"content_excerpt"`  // Leading excerpt of the article body
	SummaryText     string    `json:"summary_text"`     // The stored summary
	SummaryLanguage string    `json:"summary_language"` // "ko" or "en"
	OriginalLength  int       `json:"original_length"`  // Body length in characters
	SummaryLength   int       `json:"summary_length"`   // Summary length in characters
	Keywords        []string  `json:"keywords"`         // Keywords active for the request
	Category        Category  `json:"category"`         // Classified category
	CreatedAt       time.Time `json:"created_at"`       // Insertion time
}

// FeedbackRecord is a user rating for a previously summarized article.
type FeedbackRecord struct {
	UserID       string    `json:"user_id"`       // Rating user
	ArticleURL   string    `json:"article_url"`   // Rated article
	Rating       int       `json:"rating"`        // 1..5
	FeedbackType string    `json:"feedback_type"` // "positive" or "negative"
	CreatedAt    time.Time `json:"created_at"`    // When the feedback was recorded
}

// Recommendation types.
const (
	RecommendationKeyword  = "keyword"
	RecommendationCategory = "category"
	RecommendationTrending = "trending"
)

// Recommendation is one suggested article, scored from history signals.
type Recommendation struct {
	ArticleTitle        string    `json:"article_title"`        // Suggested article title
	ArticleURL          string    `json:"article_url"`          // Suggested article URL
	ArticleSource       string    `json:"article_source"`       // Outlet name
	Category            Category  `json:"category"`             // Source category
	Keywords            []string  `json:"keywords"`             // Matched history keywords, if any
	RecommendationType  string    `json:"recommendation_type"`  // keyword, category or trending
	RecommendationScore float64   `json:"recommendation_score"` // Normalized to [0,1]
	CreatedAt           time.Time `json:"created_at"`           // When the recommendation was computed
}

// PipelineRequest is the validated input DTO handed to the orchestrator.
type PipelineRequest struct {
	Query          string   `json:"query,omitempty"`           // Natural-language query (query path)
	RSSURLs        []string `json:"rss_urls,omitempty"`        // Explicit feed URLs (URL-list path)
	ArticleURLs    []string `json:"article_urls,omitempty"`    // Pre-selected article URLs (URL-list path)
	MaxArticles    int      `json:"max_articles"`              // Requested article cap, 1..50
	Language       string   `json:"language"`                  // Summary language, "ko" or "en"
	UserID         string   `json:"user_id,omitempty"`         // Persist history under this user when set
	RecipientEmail string   `json:"recipient_email,omitempty"` // Digest recipient when set
	CustomPrompt   string   `json:"custom_prompt,omitempty"`   // Optional prefix for the summarizer user message
}

// HasQuery reports whether the request takes the query path.
func (r *PipelineRequest) HasQuery() bool { return r.Query != "" }

// HasURLs reports whether the request carries explicit feed or article URLs.
func (r *PipelineRequest) HasURLs() bool {
	return len(r.RSSURLs) > 0 || len(r.ArticleURLs) > 0
}

// Validate checks the structural invariants of the request. Exactly one of
// query or URL lists must be supplied; both or neither is invalid.
func (r *PipelineRequest) Validate() error {
	if r.HasQuery() && r.HasURLs() {
		return NewError(KindInvalidRequest, "request must supply either a query or URL lists, not both")
	}
	if !r.HasQuery() && !r.HasURLs() {
		return NewError(KindInvalidRequest, "request must supply a query or at least one URL")
	}
	if r.MaxArticles < 0 {
		return NewError(KindInvalidRequest, "max_articles must not be negative")
	}
	switch r.Language {
	case LanguageKorean, LanguageEnglish:
	default:
		return NewError(KindInvalidRequest, "language must be \"ko\" or \"en\"")
	}
	return nil
}

// ArticleSummary is one article block inside a SummarizeResponse.
type ArticleSummary struct {
	Title    string   `json:"title"`              // Article title
	URL      string   `json:"url"`                // Article URL
	Source   string   `json:"source"`             // Outlet name
	Summary  string   `json:"summary"`            // Generated summary
	Language string   `json:"language"`           // Summary language
	Category Category `json:"category,omitempty"` // Classified category, when known
}

// SummarizeResponse is the synchronous result of one pipeline run.
type SummarizeResponse struct {
	Success           bool             `json:"success"`                      // True when at least one article was summarized
	Articles          []ArticleSummary `json:"articles"`                     // Summaries in selection order
	TotalArticles     int              `json:"total_articles"`               // len(Articles)
	ExtractedKeywords []string         `json:"extracted_keywords,omitempty"` // Query path only
	Partial           bool             `json:"partial"`                      // True when the deadline cut the run short
	Errors            []StageError     `json:"errors"`                       // Collected per-item failures
	ProcessedAt       time.Time        `json:"processed_at"`                 // Completion time
}

// HistoryPage is one page of a user's summary history.
type HistoryPage struct {
	Records    []HistoryRecord `json:"records"`     // Page contents, created_at desc
	Total      int             `json:"total"`       // Total matching records
	Page       int             `json:"page"`        // 1-indexed page number
	PerPage    int             `json:"per_page"`    // Page size used
	TotalPages int             `json:"total_pages"` // ceil(Total/PerPage)
}

// UserStats aggregates a user's summarization history.
type UserStats struct {
	UserID         string           `json:"user_id"`            // The user
	TotalSummaries int              `json:"total_summaries"`    // All-time summary count
	PerLanguage    map[string]int   `json:"per_language"`       // Counts keyed by summary language
	PerCategory    map[Category]int `json:"per_category"`       // Counts keyed by category
	FirstAt        *time.Time       `json:"first_at,omitempty"` // Oldest record time
	LastAt         *time.Time       `json:"last_at,omitempty"`  // Newest record time
}
