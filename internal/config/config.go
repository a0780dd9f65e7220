package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"db_path" yaml:"db_path"`
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer         string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience       string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	// AuthTimeout bounds how long an opened socket may stay unauthenticated
	// before the server closes it.
	AuthTimeout time.Duration `mapstructure:"auth_timeout" yaml:"auth_timeout"`
	// RedisAddr enables the shared presence cache when non-empty.
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "jobdial.db",
		JWTSecret:         "dev-secret-change-me",
		JWTIssuer:         "jobdial",
		JWTAudience:       "jobdial-dashboard",
		AuthTimeout:       30 * time.Second,
		RedisAddr:         "",
		LogLevel:          "info",
	}
}
