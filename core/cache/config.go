package cache

// Config holds configuration for the Redis connection used by the response
// cache and the distributed job locks.
type Config struct {
	// Addr is the host:port of the Redis server.
	Addr string `mapstructure:"addr" default:"localhost:6379"`
	// Password is the optional Redis password.
	Password string `mapstructure:"password" default:""`
	// DB is the Redis database number.
	DB int `mapstructure:"db" default:"0"`
	// Enabled toggles Redis usage. When false (or when the connection
	// cannot be established) callers fall back to in-process storage.
	Enabled bool `mapstructure:"enabled" default:"true"`
}
