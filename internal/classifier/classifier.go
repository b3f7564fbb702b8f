package classifier

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Complexity adjustments by word count.
const (
	baseComplexity    = 0.5
	shortInputWords   = 10
	longInputWords    = 50
	veryLongWords     = 100
	speedWordLimit    = 15
	tokensPerWord     = 1.3
	creativeTokenMult = 2.0
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// Classifier assigns a TaskProfile to request text. It is safe for
// concurrent use; all tables are built once in New.
type Classifier struct {
	categories []category
}

// New creates a classifier with the built-in category table.
func New() *Classifier {
	return &Classifier{categories: buildCategories()}
}

// Classify analyzes text and returns its TaskProfile. It never fails:
// text that matches no category is classified as TaskGeneral.
func (c *Classifier) Classify(text string) TaskProfile {
	profile, _ := c.classify(text)
	return profile
}

// ClassifyWithMatches returns the profile along with every category pattern
// that matched, formatted as "<task_type>: <regexp>". Useful for debugging.
func (c *Classifier) ClassifyWithMatches(text string) (TaskProfile, []string) {
	return c.classify(text)
}

func (c *Classifier) classify(text string) (TaskProfile, []string) {
	lower := strings.ToLower(strings.TrimSpace(text))
	wordCount := len(strings.Fields(lower))
	kw := newKeywordMatcher(lower)

	var matches []string
	winner := TaskGeneral
	boost := 0.0
	decided := false

	for _, cat := range c.categories {
		keywordHits := kw.collect(cat.keywords)

		patternHits := 0
		for _, re := range cat.patterns {
			if re.MatchString(lower) {
				patternHits++
				matches = append(matches, string(cat.taskType)+": "+re.String())
			}
		}

		if !decided && (keywordHits >= 2 || patternHits >= 1) {
			winner = cat.taskType
			boost = cat.complexityBoost
			decided = true
		}
	}

	creativityHit := kw.collect(creativityTriggers) > 0
	accuracyHit := kw.collect(accuracyTriggers) > 0
	speedHit := kw.collect(speedTriggers) > 0
	sensitiveHit := kw.collect(sensitiveKeywords) > 0

	profile := TaskProfile{
		TaskType:           winner,
		Complexity:         complexity(wordCount, boost),
		RequiresCreativity: winner == TaskCreative || winner == TaskAdult || creativityHit,
		RequiresAccuracy:   winner == TaskCoding || winner == TaskMath || winner == TaskAnalysis || accuracyHit,
		RequiresSpeed:      speedHit || wordCount < speedWordLimit,
		DetectedLanguages:  detectLanguages(lower),
	}

	profile.IsSensitive = winner == TaskAdult || sensitiveHit ||
		(kw.hasToken("generate") && kw.anyToken(generateNouns))

	mult := 1.0
	if profile.RequiresCreativity {
		mult = creativeTokenMult
	}
	profile.EstimatedTokens = int(math.Round(float64(wordCount) * tokensPerWord * mult))
	profile.Keywords = kw.found

	return profile, matches
}

// complexity applies the word-count buckets and the category boost, clamped to [0, 1].
func complexity(wordCount int, boost float64) float64 {
	score := baseComplexity
	if wordCount < shortInputWords {
		score -= 0.2
	}
	if wordCount > longInputWords {
		score += 0.2
	}
	if wordCount > veryLongWords {
		score += 0.3
	}
	score += boost
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func detectLanguages(lower string) []string {
	langs := []string{}
	for name, re := range languagePatterns {
		if re.MatchString(lower) {
			langs = append(langs, name)
		}
	}
	sort.Strings(langs)
	return langs
}

// ═══════════════════════════════════════════════════════════════════════════════
// KEYWORD MATCHING
// ═══════════════════════════════════════════════════════════════════════════════

// keywordMatcher matches single-word keywords against whole tokens and
// multi-word keywords as substrings, recording each hit once in order.
type keywordMatcher struct {
	lower  string
	tokens map[string]bool
	seen   map[string]bool
	found  []string
}

func newKeywordMatcher(lower string) *keywordMatcher {
	tokens := make(map[string]bool)
	for _, tok := range tokenPattern.FindAllString(lower, -1) {
		tokens[tok] = true
	}
	return &keywordMatcher{
		lower:  lower,
		tokens: tokens,
		seen:   make(map[string]bool),
		found:  []string{},
	}
}

// collect returns how many of keywords occur in the text.
func (m *keywordMatcher) collect(keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if !m.matches(kw) {
			continue
		}
		hits++
		if !m.seen[kw] {
			m.seen[kw] = true
			m.found = append(m.found, kw)
		}
	}
	return hits
}

func (m *keywordMatcher) matches(kw string) bool {
	if isSingleWord(kw) {
		return m.tokens[kw]
	}
	return strings.Contains(m.lower, kw)
}

func (m *keywordMatcher) hasToken(tok string) bool {
	return m.tokens[tok]
}

func (m *keywordMatcher) anyToken(toks []string) bool {
	for _, tok := range toks {
		if m.tokens[tok] {
			return true
		}
	}
	return false
}

func isSingleWord(kw string) bool {
	for _, r := range kw {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return kw != ""
}
