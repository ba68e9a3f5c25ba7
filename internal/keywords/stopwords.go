package keywords

// Stopword lists for the heuristic fallback tokenizer. The Korean list
// covers particles and query filler ("뉴스 알려줘") that would otherwise
// dominate frequency counts.

var koreanStopwords = map[string]struct{}{
	"그리고": {}, "그런데": {}, "하지만": {}, "그래서": {}, "또한": {},
	"및": {}, "등": {}, "것": {}, "수": {}, "때": {}, "년": {}, "월": {}, "일": {},
	"이번": {}, "지난": {}, "오늘": {}, "어제": {}, "내일": {}, "최근": {}, "관련": {},
	"대한": {}, "대해": {}, "위해": {}, "통해": {}, "있는": {}, "없는": {}, "하는": {},
	"있다": {}, "없다": {}, "한다": {}, "했다": {}, "된다": {}, "됐다": {},
	"뉴스": {}, "기사": {}, "소식": {}, "정보": {}, "내용": {},
	"알려줘": {}, "알려주세요": {}, "보여줘": {}, "보여주세요": {}, "찾아줘": {},
	"요약": {}, "요약해줘": {}, "정리": {}, "정리해줘": {},
}

var englishStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "of": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "from": {}, "with": {},
	"by": {}, "about": {}, "as": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"it": {}, "its": {}, "me": {}, "my": {}, "you": {}, "your": {}, "we": {},
	"what": {}, "which": {}, "who": {}, "when": {}, "where": {}, "how": {},
	"do": {}, "does": {}, "did": {}, "can": {}, "could": {}, "will": {},
	"would": {}, "should": {}, "get": {}, "give": {}, "show": {}, "find": {},
	"tell": {}, "please": {}, "latest": {}, "recent": {}, "news": {},
	"article": {}, "articles": {}, "summary": {}, "summarize": {},
}

func isStopword(term string) bool {
	if _, ok := koreanStopwords[term]; ok {
		return true
	}
	_, ok := englishStopwords[term]
	return ok
}
