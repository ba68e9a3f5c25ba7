// Package category assigns a news category to summarized articles from
// keyword tables. Articles that hit no table, or tie across tables, fall to
// the general category.
package category

import (
	"strings"

	"newsly/internal/core"
)

// categoryTerms maps each category to the lowercase terms that indicate it.
// Korean and English terms live in one table; matching is substring-based so
// particles attached to Korean nouns still hit.
var categoryTerms = map[core.Category][]string{
	core.CategoryPolitics: {
		"정치", "국회", "대통령", "총리", "장관", "여당", "야당", "선거", "공천", "외교",
		"politics", "election", "parliament", "president", "minister",
	},
	core.CategoryEconomy: {
		"경제", "금리", "물가", "주가", "증시", "환율", "수출", "투자", "부동산", "코스피", "금융",
		"economy", "market", "inflation", "stocks", "trade", "finance",
	},
	core.CategoryIT: {
		"반도체", "인공지능", "소프트웨어", "스타트업", "플랫폼", "데이터", "클라우드", "게임",
		"ai", "chip", "semiconductor", "software", "startup", "tech", "robot",
	},
	core.CategorySociety: {
		"사회", "사건", "사고", "경찰", "검찰", "법원", "재판", "교육", "학교", "노조", "복지",
		"society", "crime", "court", "police", "education", "welfare",
	},
	core.CategoryCulture: {
		"문화", "영화", "음악", "공연", "전시", "출판", "드라마", "예술",
		"culture", "film", "music", "art", "festival", "drama",
	},
	core.CategorySports: {
		"스포츠", "야구", "축구", "농구", "배구", "올림픽", "월드컵", "리그", "선수",
		"sports", "baseball", "football", "soccer", "olympic", "league",
	},
	core.CategoryInternational: {
		"국제", "미국", "중국", "일본", "유럽", "러시아", "외신", "정상회담",
		"international", "global", "world", "summit",
	},
}

// Classify scores the article's title, summary and request keywords against
// the term tables and returns the highest-scoring category. Title hits count
// double. No hits, or a tie for the top score, yields general.
func Classify(title, summary string, keywords []string) core.Category {
	title = strings.ToLower(title)
	summary = strings.ToLower(summary)
	joined := strings.ToLower(strings.Join(keywords, " "))

	best := core.CategoryGeneral
	bestScore := 0
	tied := false
	for _, cat := range orderedCategories {
		score := 0
		for _, term := range categoryTerms[cat] {
			score += 2 * strings.Count(title, term)
			score += strings.Count(summary, term)
			score += strings.Count(joined, term)
		}
		if score > bestScore {
			best, bestScore, tied = cat, score, false
		} else if score == bestScore && score > 0 {
			tied = true
		}
	}
	if bestScore == 0 || tied {
		return core.CategoryGeneral
	}
	return best
}

// orderedCategories fixes the iteration order so classification is
// deterministic.
var orderedCategories = []core.Category{
	core.CategoryPolitics, core.CategoryEconomy, core.CategoryIT,
	core.CategorySociety, core.CategoryCulture, core.CategorySports,
	core.CategoryInternational,
}
