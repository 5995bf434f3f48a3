package anthropic

// Config contains Anthropic transport configuration.
// All fields map to Anthropic SDK options:
//   - APIKey: Maps to option.WithAPIKey()
//   - BaseURL: Maps to option.WithBaseURL()
//   - Timeout: Maps to option.WithRequestTimeout() (in seconds)
type Config struct {
	APIKey  string `env:"ANTHROPIC_API_KEY"`
	BaseURL string `env:"ANTHROPIC_BASE_URL" envDefault:"https://api.anthropic.com"`
	Timeout int    `env:"ANTHROPIC_TIMEOUT"  envDefault:"60"`
}
