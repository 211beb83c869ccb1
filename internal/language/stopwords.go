package language

import (
	"regexp"
	"sort"

	"github.com/valpere/transqa/internal/config"
)

// stopwordDetector is a rule-based backend scoring texts by stopword hits
// and language-specific characters. It is cheap, deterministic, and works
// offline; its confidence ceiling is deliberately below the statistical
// backends so it mostly serves as a tie-breaker vote.
type stopwordDetector struct {
	minConfidence float64
	minTextLength int
}

type langHints struct {
	stopwords map[string]struct{}
	chars     *regexp.Regexp
}

var hints = map[string]langHints{
	"es": {
		stopwords: stopwordSet("el la de que y en un es se no te lo con para una su por como más pero sus le ya o este sí porque esta entre cuando muy sin sobre también"),
		chars:     regexp.MustCompile(`[ñáéíóúü¿¡]`),
	},
	"en": {
		stopwords: stopwordSet("the be to of and a in that have i it for not on with he as you do at this but his by from they we say her she or an will my one all would there their what"),
		chars:     nil, // plain ASCII carries no signal of its own
	},
	"nl": {
		stopwords: stopwordSet("de het een en van ik te dat die in je niet zijn is was op aan met als voor er maar om hij dan zou of wat mijn men dit zo door over ze"),
		chars:     regexp.MustCompile(`ij|[ëïö]`),
	},
}

func stopwordSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range tokenPattern.FindAllString(words, -1) {
		set[w] = struct{}{}
	}
	return set
}

func newStopwordDetector(cfg config.DetectorConfig) (Detector, error) {
	return &stopwordDetector{
		minConfidence: cfg.MinConfidence,
		minTextLength: cfg.MinTextLength,
	}, nil
}

func (d *stopwordDetector) Name() string { return "stopwords" }

func (d *stopwordDetector) DetectBlock(text string) Result {
	if tooShort(text, d.minTextLength) {
		return unknownResult(d.Name())
	}

	text = preprocess(text)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return unknownResult(d.Name())
	}

	scores := make(map[string]float64, len(hints))
	for lang, h := range hints {
		hitCount := 0
		for _, tok := range tokens {
			if _, ok := h.stopwords[tok]; ok {
				hitCount++
			}
		}
		score := float64(hitCount) / float64(len(tokens))
		if h.chars != nil {
			charHits := len(h.chars.FindAllString(text, -1))
			score += 0.5 * float64(charHits) / float64(len(tokens))
		}
		scores[lang] = score
	}

	best, confidence := "", 0.0
	var alternatives []Alternative
	for lang, score := range scores {
		// Stopword ratios top out well under 1 in natural text; scale up
		// but keep the ceiling below statistical backends.
		conf := min(score*2.5, 0.9)
		if conf > confidence {
			if best != "" {
				alternatives = append(alternatives, Alternative{Lang: best, Score: confidence})
			}
			best, confidence = lang, conf
		} else if conf > 0 {
			alternatives = append(alternatives, Alternative{Lang: lang, Score: conf})
		}
	}

	if best == "" || confidence < d.minConfidence {
		return unknownResult(d.Name())
	}
	sort.Slice(alternatives, func(i, j int) bool { return alternatives[i].Score > alternatives[j].Score })
	return Result{
		DetectedLanguage: best,
		Confidence:       confidence,
		Alternatives:     alternatives,
		Method:           d.Name(),
	}
}
