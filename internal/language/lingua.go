package language

import (
	"strings"

	"github.com/pemistahl/lingua-go"

	"github.com/valpere/transqa/internal/config"
)

// linguaDetector wraps the lingua statistical model, restricted to the
// supported languages so close relatives outside the set cannot win.
type linguaDetector struct {
	detector      lingua.LanguageDetector
	minConfidence float64
	minTextLength int
}

var linguaLanguages = map[string]lingua.Language{
	"en": lingua.English,
	"es": lingua.Spanish,
	"nl": lingua.Dutch,
}

func newLinguaDetector(cfg config.DetectorConfig) (Detector, error) {
	langs := make([]lingua.Language, 0, len(linguaLanguages))
	for _, l := range linguaLanguages {
		langs = append(langs, l)
	}
	det := lingua.NewLanguageDetectorBuilder().
		FromLanguages(langs...).
		WithPreloadedLanguageModels().
		Build()
	return &linguaDetector{
		detector:      det,
		minConfidence: cfg.MinConfidence,
		minTextLength: cfg.MinTextLength,
	}, nil
}

func (d *linguaDetector) Name() string { return "lingua" }

func (d *linguaDetector) DetectBlock(text string) Result {
	if tooShort(text, d.minTextLength) {
		return unknownResult(d.Name())
	}
	return d.detect(preprocess(text))
}

// detectToken classifies a single token, bypassing the block-length floor.
func (d *linguaDetector) detectToken(token string) Result {
	return d.detect(token)
}

func (d *linguaDetector) detect(text string) Result {
	values := d.detector.ComputeLanguageConfidenceValues(text)
	if len(values) == 0 {
		return unknownResult(d.Name())
	}

	// Values arrive sorted by confidence, highest first.
	top := values[0]
	confidence := top.Value()
	if confidence < d.minConfidence {
		return unknownResult(d.Name())
	}

	result := Result{
		DetectedLanguage: isoCode(top.Language()),
		Confidence:       confidence,
		Method:           d.Name(),
	}
	for _, v := range values[1:] {
		if v.Value() <= 0 {
			continue
		}
		result.Alternatives = append(result.Alternatives, Alternative{
			Lang:  isoCode(v.Language()),
			Score: v.Value(),
		})
		if len(result.Alternatives) == 3 {
			break
		}
	}
	return result
}

func isoCode(l lingua.Language) string {
	return strings.ToLower(l.IsoCode639_1().String())
}
