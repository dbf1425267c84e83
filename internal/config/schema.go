package config

// Config holds limner configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Backend       BackendCfg       `mapstructure:"backend" yaml:"backend"`
	Illustrations IllustrationsCfg `mapstructure:"illustrations" yaml:"illustrations"`
	Batch         BatchCfg         `mapstructure:"batch" yaml:"batch"`
}

// BackendCfg configures the generative backend.
type BackendCfg struct {
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"`                 // API key (supports ${ENV_VAR} syntax)
	TextModel      string  `mapstructure:"text_model" yaml:"text_model"`           // Model for scene analysis
	ImageModel     string  `mapstructure:"image_model" yaml:"image_model"`         // Model for image generation
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // Per-call timeout
	MaxRetries     int     `mapstructure:"max_retries" yaml:"max_retries"`         // Image generation retries per scene
	RateLimit      float64 `mapstructure:"rate_limit" yaml:"rate_limit"`           // Requests per second across the whole process
}

// IllustrationsCfg configures scene analysis and image validation.
type IllustrationsCfg struct {
	SceneCount      int     `mapstructure:"scene_count" yaml:"scene_count"`             // Scenes (and images) per chapter
	Style           string  `mapstructure:"style" yaml:"style"`                         // Free-text style modifier, e.g. "watercolor"
	MinImageBytes   int     `mapstructure:"min_image_bytes" yaml:"min_image_bytes"`     // Smaller payloads are treated as blank output
	MaxPromptChars  int     `mapstructure:"max_prompt_chars" yaml:"max_prompt_chars"`   // Scene summaries are truncated to fit
	MaxChapterChars int     `mapstructure:"max_chapter_chars" yaml:"max_chapter_chars"` // Chapter text sent for analysis is truncated to fit
	AnchorThreshold float64 `mapstructure:"anchor_threshold" yaml:"anchor_threshold"`   // Minimum fuzzy-match score to accept an anchor
}

// BatchCfg configures multi-chapter batch runs.
type BatchCfg struct {
	Concurrency     int `mapstructure:"concurrency" yaml:"concurrency"`           // Chapters illustrated simultaneously
	MinChapterWords int `mapstructure:"min_chapter_words" yaml:"min_chapter_words"` // Chapters below this are skipped
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendCfg{
			APIKey:         "${GEMINI_API_KEY}",
			TextModel:      "gemini-2.0-flash-exp",
			ImageModel:     "gemini-2.5-flash-image",
			TimeoutSeconds: 120,
			MaxRetries:     2,
			RateLimit:      1.0,
		},
		Illustrations: IllustrationsCfg{
			SceneCount:      3,
			MinImageBytes:   1024,
			MaxPromptChars:  2000,
			MaxChapterChars: 50000,
			AnchorThreshold: 0.6,
		},
		Batch: BatchCfg{
			Concurrency:     3,
			MinChapterWords: 1000,
		},
	}
}
