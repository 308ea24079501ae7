// Package config loads typed configuration from environment variables.
//
// Load parses any struct annotated with github.com/caarlos0/env/v11 tags.
// Before parsing, the optional .env file in the working directory is read
// once per process with github.com/joho/godotenv, and WithEnvFiles adds
// further files. Values already set in the process environment are never
// overridden by files.
//
//	type Config struct {
//		DatabaseURL string `env:"DATABASE_URL,required"`
//		AllowBypass bool   `env:"ALLOW_BYPASS" envDefault:"false"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg, config.WithPrefix("TENANTGUARD_")); err != nil {
//		return err
//	}
//
// Errors match ErrParsingConfig, ErrEnvFile or ErrNilPointer with errors.Is.
package config
