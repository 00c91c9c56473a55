package config

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// SecretStore resolves secrets by key.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
}

// EnvironmentSecretStore reads secrets from the process environment.
// A KEY_FILE variable, when set, names a file holding the value.
type EnvironmentSecretStore struct {
	lookup lookupFunc
}

func NewEnvironmentSecretStore() *EnvironmentSecretStore {
	return &EnvironmentSecretStore{lookup: os.LookupEnv}
}

func (s *EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	if path, ok := s.lookup(key + "_FILE"); ok && path != "" {
		data, err := os.ReadFile(path) // #nosec G304 - operator supplied secret path
		if err != nil {
			return "", fmt.Errorf("secret %s: %w", key, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	if v, ok := s.lookup(key); ok {
		return v, nil
	}
	return "", fmt.Errorf("secret %s not set", key)
}

func (s *EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	return v
}

// LoadSecrets fills credentials that should never live in a config file.
func (c *Config) LoadSecrets(ctx context.Context, store SecretStore) error {
	if v, err := store.Get(ctx, "GAMESERVICES_REDIS_PASSWORD"); err == nil {
		c.Platform.Redis.Password = v
	}
	if v, err := store.Get(ctx, "GAMESERVICES_SECURITY_API_KEYS"); err == nil {
		var keys []string
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		c.Security.APIKeys = keys
	}
	if c.Environment == EnvProduction && c.Debug.Enabled && len(c.Security.APIKeys) == 0 {
		return fmt.Errorf("debug server requires api keys in production")
	}
	return nil
}

// LoadSecretsFromEnv is LoadSecrets backed by the environment.
func (c *Config) LoadSecretsFromEnv(ctx context.Context) error {
	return c.LoadSecrets(ctx, NewEnvironmentSecretStore())
}
