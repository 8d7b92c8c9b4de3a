// Package config loads the control plane's environment-driven
// configuration via envconfig struct tags, with explicit defaults for
// anything not required.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Env holds the three environment variables the control plane reads
// directly. DatabaseURL is required; SecretKey is generated if absent;
// WorkersDir defaults to "." if unset (helper binaries exsnap/ffmpeg are
// then expected on PATH).
type Env struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	SecretKey   string `envconfig:"SECRET_KEY"`
	WorkersDir  string `envconfig:"EXOPTICONWORKERS" default:"."`
}

// Load reads Env from the process environment, generating a random
// SecretKey when the caller didn't supply one.
func Load() (*Env, error) {
	var e Env
	if err := envconfig.Process("", &e); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if e.DatabaseURL == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_URL must not be empty")
	}
	if e.WorkersDir == "" {
		e.WorkersDir = "."
	}
	if e.SecretKey == "" {
		key, err := randomSecretKey()
		if err != nil {
			return nil, fmt.Errorf("config.Load: generate secret key: %w", err)
		}
		e.SecretKey = key
	}
	return &e, nil
}

func randomSecretKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
