// Package config loads and validates the analyzer configuration. The
// resulting Config is immutable by convention: it is validated once at
// startup and passed by value to component constructors.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valpere/transqa/internal/qa"
)

// SupportedLanguages are the target languages the pipeline understands.
var SupportedLanguages = []string{"es", "en", "nl"}

// LeakPolicy selects how language leakage is reported: by the per-block
// detector signal, by the heuristic verifier, or by both (deduplicated).
type LeakPolicy string

const (
	LeakDirect    LeakPolicy = "direct"
	LeakHeuristic LeakPolicy = "heuristic"
	LeakBoth      LeakPolicy = "both"
)

// DetectorConfig configures the composite language detector.
type DetectorConfig struct {
	Backends      []string           `mapstructure:"backends"`
	Weights       map[string]float64 `mapstructure:"weights"`
	VotingMethod  string             `mapstructure:"voting_method"` // weighted, majority, best
	MinDetectors  int                `mapstructure:"min_detectors"`
	MinConfidence float64            `mapstructure:"min_confidence"`
	MinTextLength int                `mapstructure:"min_text_length"`
	SampleSize    int                `mapstructure:"sample_size"`
	// Google Cloud credentials, only needed by the google backend.
	Credentials string `mapstructure:"credentials"`
	ProjectID   string `mapstructure:"project_id"`
}

// VerifierConfig configures the composite verifier and its backends.
type VerifierConfig struct {
	Backends          []string          `mapstructure:"backends"`
	DeduplicateIssues bool              `mapstructure:"deduplicate_issues"`
	MergeOverlapping  bool              `mapstructure:"merge_overlapping"`
	IgnoreRules       []string          `mapstructure:"ignore_rules"`
	EnableRules       []string          `mapstructure:"enable_rules"`
	SeverityOverrides map[string]string `mapstructure:"severity_overrides"` // rule id or issue type -> severity name
	LanguageToolURL   string            `mapstructure:"languagetool_url"`
	LeakThreshold     float64           `mapstructure:"leak_threshold"`
	MinWordsForLeak   int               `mapstructure:"min_words_for_leak"`
	Whitelist         []string          `mapstructure:"whitelist"`
}

// FetcherConfig configures the HTTP fetcher.
type FetcherConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryBudget time.Duration `mapstructure:"retry_budget"`
	UserAgent   string        `mapstructure:"user_agent"`
}

// Config is the full analyzer configuration surface.
type Config struct {
	TargetLang    string        `mapstructure:"target_lang"`
	RenderJS      bool          `mapstructure:"render_js"`
	LeakPolicy    LeakPolicy    `mapstructure:"leak_policy"`
	BlockSizeCap  int           `mapstructure:"block_size_cap"` // chars; larger blocks skip verification
	MaxAnalysisTime   time.Duration `mapstructure:"max_analysis_time"`
	NormalizeByBlocks bool          `mapstructure:"normalize_score_by_blocks"`

	Detector DetectorConfig `mapstructure:"detector"`
	Verifier VerifierConfig `mapstructure:"verifier"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"`

	DBPath  string `mapstructure:"db_path"`
	NoCache bool   `mapstructure:"no_cache"`
	Workers int    `mapstructure:"workers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target_lang", "en")
	v.SetDefault("render_js", false)
	v.SetDefault("leak_policy", string(LeakBoth))
	v.SetDefault("block_size_cap", 1000)
	v.SetDefault("max_analysis_time", 60*time.Second)
	v.SetDefault("normalize_score_by_blocks", true)

	v.SetDefault("detector.backends", []string{"lingua", "stopwords"})
	v.SetDefault("detector.voting_method", "weighted")
	v.SetDefault("detector.min_detectors", 1)
	v.SetDefault("detector.min_confidence", 0.5)
	v.SetDefault("detector.min_text_length", 20)
	v.SetDefault("detector.sample_size", 200)

	v.SetDefault("verifier.backends", []string{"grammar", "placeholder", "heuristic"})
	v.SetDefault("verifier.deduplicate_issues", true)
	v.SetDefault("verifier.merge_overlapping", true)
	v.SetDefault("verifier.languagetool_url", "http://localhost:8081")
	v.SetDefault("verifier.leak_threshold", 0.08)
	v.SetDefault("verifier.min_words_for_leak", 3)

	v.SetDefault("fetcher.timeout", 20*time.Second)
	v.SetDefault("fetcher.max_attempts", 3)
	v.SetDefault("fetcher.retry_budget", 30*time.Second)
	v.SetDefault("fetcher.user_agent", "transqa/0.2 (+https://github.com/valpere/transqa)")

	v.SetDefault("db_path", "./data/transqa.db")
	v.SetDefault("workers", 4)
}

// Load reads configuration from an optional file plus TRANSQA_* environment
// variables and returns a validated Config.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("transqa")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() Config {
	cfg, err := Load("")
	if err != nil {
		panic(err) // defaults are always valid
	}
	return cfg
}

// Validate checks the configuration once, at startup.
func (c Config) Validate() error {
	if !isSupportedLang(c.TargetLang) {
		return fmt.Errorf("%w: target_lang %q (supported: %s)",
			qa.ErrConfiguration, c.TargetLang, strings.Join(SupportedLanguages, ", "))
	}

	switch c.LeakPolicy {
	case LeakDirect, LeakHeuristic, LeakBoth:
	default:
		return fmt.Errorf("%w: leak_policy %q", qa.ErrConfiguration, c.LeakPolicy)
	}

	switch c.Detector.VotingMethod {
	case "weighted", "majority", "best":
	default:
		return fmt.Errorf("%w: detector.voting_method %q", qa.ErrConfiguration, c.Detector.VotingMethod)
	}

	if len(c.Detector.Backends) == 0 {
		return fmt.Errorf("%w: at least one detector backend required", qa.ErrConfiguration)
	}
	if len(c.Verifier.Backends) == 0 {
		return fmt.Errorf("%w: at least one verifier backend required", qa.ErrConfiguration)
	}

	if c.Verifier.LeakThreshold < 0 || c.Verifier.LeakThreshold > 1 {
		return fmt.Errorf("%w: verifier.leak_threshold must be in [0,1], got %g",
			qa.ErrConfiguration, c.Verifier.LeakThreshold)
	}

	for key, name := range c.Verifier.SeverityOverrides {
		if _, err := qa.ParseSeverity(name); err != nil {
			return fmt.Errorf("%w: severity override for %q: %v", qa.ErrConfiguration, key, err)
		}
	}

	if c.MaxAnalysisTime <= 0 {
		return fmt.Errorf("%w: max_analysis_time must be positive", qa.ErrConfiguration)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", qa.ErrConfiguration)
	}
	return nil
}

func isSupportedLang(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}
