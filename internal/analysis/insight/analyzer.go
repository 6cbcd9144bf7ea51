package insight

import "strings"

// Urgency grades how pressing a caller's request sounds.
type Urgency struct {
	Level      string   `json:"level"`
	Score      int      `json:"score"`
	Indicators []string `json:"indicators"`
}

// Bundle is the full set of heuristic signals derived from one
// transcript fragment. It is a value: build it once, never mutate it.
type Bundle struct {
	Urgency     Urgency  `json:"urgency"`
	Sentiment   string   `json:"sentiment"`
	Keywords    []string `json:"keywords"`
	ActionItems []string `json:"action_items"`
	Emotion     string   `json:"customer_emotion"`
}

var urgencyKeywords = []string{
	"urgent", "immediately", "asap", "right now", "emergency",
	"critical", "important", "priority", "rush", "hurry",
}

var positiveWords = []string{
	"good", "great", "excellent", "happy", "satisfied", "love", "amazing",
}

var negativeWords = []string{
	"bad", "terrible", "angry", "frustrated", "hate", "awful", "disappointed",
}

// Product/service terms come before issue terms so keyword order is
// stable across calls.
var productTerms = []string{
	"product", "service", "account", "billing", "payment", "order",
}

var issueTerms = []string{
	"problem", "issue", "error", "broken", "not working", "failed",
}

var actionPhrases = []string{
	"need to", "want to", "would like to", "can you", "please",
	"help me", "fix this", "resolve", "change", "update",
}

type emotionBucket struct {
	name     string
	keywords []string
}

// Declaration order is the tie-break order.
var emotionBuckets = []emotionBucket{
	{"frustrated", []string{"frustrated", "annoyed", "fed up", "ridiculous", "waiting", "unacceptable"}},
	{"angry", []string{"angry", "furious", "mad", "outraged", "worst", "demand"}},
	{"satisfied", []string{"satisfied", "happy", "pleased", "glad", "thank", "great"}},
	{"confused", []string{"confused", "don't understand", "unclear", "what do you mean", "lost"}},
	{"anxious", []string{"worried", "anxious", "nervous", "concerned", "afraid", "urgent"}},
}

// Analyze scores one transcript fragment. It is pure and deterministic:
// the same text always produces the same bundle.
func Analyze(text string) Bundle {
	normalized := strings.ToLower(text)

	return Bundle{
		Urgency:     scoreUrgency(normalized),
		Sentiment:   scoreSentiment(normalized),
		Keywords:    matchKeywords(normalized),
		ActionItems: matchActionItems(normalized),
		Emotion:     scoreEmotion(normalized),
	}
}

func scoreUrgency(normalized string) Urgency {
	var indicators []string
	for _, word := range urgencyKeywords {
		if strings.Contains(normalized, word) {
			indicators = append(indicators, word)
		}
	}

	level := "low"
	switch {
	case len(indicators) > 2:
		level = "high"
	case len(indicators) > 0:
		level = "medium"
	}

	return Urgency{Level: level, Score: len(indicators), Indicators: indicators}
}

func scoreSentiment(normalized string) string {
	var positive, negative int
	for _, word := range positiveWords {
		if strings.Contains(normalized, word) {
			positive++
		}
	}
	for _, word := range negativeWords {
		if strings.Contains(normalized, word) {
			negative++
		}
	}

	switch {
	case positive > negative:
		return "positive"
	case negative > positive:
		return "negative"
	default:
		return "neutral"
	}
}

func matchKeywords(normalized string) []string {
	var keywords []string
	for _, term := range productTerms {
		if strings.Contains(normalized, term) {
			keywords = append(keywords, term)
		}
	}
	for _, term := range issueTerms {
		if strings.Contains(normalized, term) {
			keywords = append(keywords, term)
		}
	}
	return keywords
}

func matchActionItems(normalized string) []string {
	var items []string
	for _, phrase := range actionPhrases {
		if strings.Contains(normalized, phrase) {
			items = append(items, phrase)
		}
	}
	return items
}

func scoreEmotion(normalized string) string {
	best := "neutral"
	bestScore := 0
	for _, bucket := range emotionBuckets {
		score := 0
		for _, word := range bucket.keywords {
			if strings.Contains(normalized, word) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = bucket.name
		}
	}
	return best
}
