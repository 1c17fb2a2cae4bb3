package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrNotPointer is returned when Load receives a non-pointer value.
	ErrNotPointer = errors.New("config: target must be a non-nil pointer to a struct")

	dotenvOnce sync.Once
	cacheMu    sync.Mutex
	cache      = map[reflect.Type]any{}
)

// Load parses environment variables into cfg. The first call loads .env from the
// working directory if present. Each configuration type is parsed once and cached.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNotPointer
	}

	dotenvOnce.Do(func() {
		// Missing .env is the normal case in production.
		_ = godotenv.Load()
	})

	typ := reflect.TypeOf(cfg).Elem()
	if typ.Kind() != reflect.Struct {
		return ErrNotPointer
	}

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached, ok := cache[typ]; ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", typ.Name(), err)
	}
	cache[typ] = *cfg

	return nil
}

// MustLoad is like Load but panics on failure. Intended for program startup.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

// Reset drops every cached configuration. Tests use it to reload after t.Setenv.
func Reset() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache = map[reflect.Type]any{}
}
