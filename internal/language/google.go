package language

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/translate"
	"google.golang.org/api/option"

	"github.com/valpere/transqa/internal/config"
)

const googleDetectTimeout = 10 * time.Second

// googleDetector queries the Google Translate detection API. It is an
// opt-in backend: it needs credentials and network access, so it is not in
// the default backend list.
type googleDetector struct {
	client        *translate.Client
	minConfidence float64
	minTextLength int
}

func newGoogleDetector(cfg config.DetectorConfig) (Detector, error) {
	opts := []option.ClientOption{}
	if cfg.Credentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials))
	}

	client, err := translate.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create translate client: %w", err)
	}
	return &googleDetector{
		client:        client,
		minConfidence: cfg.MinConfidence,
		minTextLength: cfg.MinTextLength,
	}, nil
}

func (d *googleDetector) Name() string { return "google" }

func (d *googleDetector) Close() error { return d.client.Close() }

func (d *googleDetector) DetectBlock(text string) Result {
	if tooShort(text, d.minTextLength) {
		return unknownResult(d.Name())
	}

	ctx, cancel := context.WithTimeout(context.Background(), googleDetectTimeout)
	defer cancel()

	detections, err := d.client.DetectLanguage(ctx, []string{preprocess(text)})
	if err != nil || len(detections) == 0 || len(detections[0]) == 0 {
		return unknownResult(d.Name())
	}

	result := unknownResult(d.Name())
	for _, det := range detections[0] {
		lang := baseLang(det.Language.String())
		if !supported(lang) {
			continue
		}
		if det.Confidence > result.Confidence {
			if result.DetectedLanguage != Unknown {
				result.Alternatives = append(result.Alternatives, Alternative{
					Lang:  result.DetectedLanguage,
					Score: result.Confidence,
				})
			}
			result.DetectedLanguage = lang
			result.Confidence = det.Confidence
		} else {
			result.Alternatives = append(result.Alternatives, Alternative{Lang: lang, Score: det.Confidence})
		}
	}

	if result.Confidence < d.minConfidence {
		return unknownResult(d.Name())
	}
	return result
}

// baseLang reduces a BCP 47 tag like "en-US" to its primary subtag.
func baseLang(tag string) string {
	for i := 0; i < len(tag); i++ {
		if tag[i] == '-' {
			return tag[:i]
		}
	}
	return tag
}

func supported(lang string) bool {
	for _, l := range config.SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}
