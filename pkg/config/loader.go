package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Option configures a Load call.
type Option func(*loader)

type loader struct {
	files  []string
	prefix string
}

// WithEnvFiles loads the given dotenv files before parsing. Variables already
// present in the environment win. Missing files are an error, unlike the
// default .env which is optional.
func WithEnvFiles(paths ...string) Option {
	return func(l *loader) { l.files = append(l.files, paths...) }
}

// WithPrefix prepends prefix to every variable name, e.g. "TENANTGUARD_".
func WithPrefix(prefix string) Option {
	return func(l *loader) { l.prefix = prefix }
}

var (
	defaultEnvLoaded sync.Once
	defaultEnvErr    error
)

// Load fills v from environment variables according to its env tags.
// The .env file in the working directory is read once per process when it
// exists.
//
//	type CacheConfig struct {
//		Size int           `env:"SIZE" envDefault:"1024"`
//		TTL  time.Duration `env:"TTL" envDefault:"5m"`
//	}
//
//	var cfg CacheConfig
//	if err := config.Load(&cfg, config.WithPrefix("TENANT_CACHE_")); err != nil {
//		return err
//	}
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	var l loader
	for _, opt := range opts {
		opt(&l)
	}

	defaultEnvLoaded.Do(func() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			defaultEnvErr = err
		}
	})
	if defaultEnvErr != nil {
		return errors.Join(ErrEnvFile, defaultEnvErr)
	}
	if len(l.files) > 0 {
		if err := godotenv.Load(l.files...); err != nil {
			return errors.Join(ErrEnvFile, err)
		}
	}

	if err := env.ParseWithOptions(v, env.Options{Prefix: l.prefix}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad is Load for configuration the process cannot start without.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}
