package agentstub

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/kiranshivaraju/analysisctl/pkg/models"
)

var (
	positiveWords = map[string]bool{
		"good": true, "great": true, "love": true, "excellent": true, "happy": true,
		"easy": true, "fast": true, "helpful": true, "improved": true, "satisfied": true,
	}
	negativeWords = map[string]bool{
		"bad": true, "poor": true, "slow": true, "hate": true, "broken": true,
		"difficult": true, "confusing": true, "expensive": true, "crash": true, "frustrated": true,
	}
	stopWords = map[string]bool{
		"the": true, "and": true, "that": true, "this": true, "with": true, "have": true,
		"for": true, "are": true, "was": true, "but": true, "not": true, "our": true,
		"from": true, "they": true, "were": true, "been": true, "more": true, "very": true,
	}
)

// KeywordAnalyzer produces a deterministic result from word counts. It is
// only good enough to give the client realistic documents to render.
type KeywordAnalyzer struct{}

func (KeywordAnalyzer) Analyze(_ context.Context, content, analysisType string) (json.RawMessage, error) {
	words := tokenize(content)
	if len(words) == 0 {
		return nil, fmt.Errorf("no analysable text in content")
	}

	out := map[string]any{}
	themes := topThemes(words, 3)
	sentiment, confidence := score(words)
	summary := summarize(content)

	switch analysisType {
	case models.AnalysisThematic:
		out["themes"] = themes
	case models.AnalysisSentiment:
		out["sentiment"] = sentiment
		out["confidence"] = confidence
	case models.AnalysisSummary:
		out["summary"] = summary
	default:
		out["themes"] = themes
		out["sentiment"] = sentiment
		out["confidence"] = confidence
		out["summary"] = summary
		out["recommendations"] = recommend(themes, sentiment)
	}

	return json.Marshal(out)
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	return fields
}

func topThemes(words []string, n int) []string {
	counts := map[string]int{}
	for _, w := range words {
		if len(w) < 4 || stopWords[w] || positiveWords[w] || negativeWords[w] {
			continue
		}
		counts[w]++
	}
	themes := make([]string, 0, len(counts))
	for w := range counts {
		themes = append(themes, w)
	}
	sort.Slice(themes, func(i, j int) bool {
		if counts[themes[i]] != counts[themes[j]] {
			return counts[themes[i]] > counts[themes[j]]
		}
		return themes[i] < themes[j]
	})
	if len(themes) > n {
		themes = themes[:n]
	}
	return themes
}

func score(words []string) (string, float64) {
	var pos, neg int
	for _, w := range words {
		switch {
		case positiveWords[w]:
			pos++
		case negativeWords[w]:
			neg++
		}
	}
	total := pos + neg
	if total == 0 {
		return "neutral", 0.5
	}
	confidence := 0.5 + 0.5*float64(max(pos, neg)-min(pos, neg))/float64(total)
	switch {
	case pos > neg:
		return "positive", confidence
	case neg > pos:
		return "negative", confidence
	default:
		return "mixed", confidence
	}
}

func summarize(content string) string {
	content = strings.TrimSpace(content)
	if i := strings.IndexAny(content, ".!?"); i >= 0 {
		return content[:i+1]
	}
	if len(content) > 200 {
		return content[:200] + "..."
	}
	return content
}

func recommend(themes []string, sentiment string) []string {
	var recs []string
	for _, t := range themes {
		switch sentiment {
		case "negative":
			recs = append(recs, "Investigate complaints about "+t)
		default:
			recs = append(recs, "Keep monitoring feedback on "+t)
		}
	}
	return recs
}
