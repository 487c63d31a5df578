package pindora

// Config holds configuration for the access-control provider API.
type Config struct {
	// BaseURL is the root URL of the Pindora API.
	BaseURL string `mapstructure:"base_url" default:""`
	// ApiKey is the API key sent with every request.
	ApiKey string `mapstructure:"api_key" default:""`
	// TimeoutSeconds is the per-request timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"10"`
	// CacheTTLSeconds is the response cache time-to-live in seconds.
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" default:"30"`
}
