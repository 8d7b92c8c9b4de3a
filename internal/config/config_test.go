package config

import "testing"

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when DATABASE_URL is unset")
	}
}

func TestLoadGeneratesSecretKeyWhenAbsent(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/exopticon")
	t.Setenv("SECRET_KEY", "")
	t.Setenv("EXOPTICONWORKERS", "")

	env, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.SecretKey == "" {
		t.Fatalf("expected a generated secret key")
	}
	if env.WorkersDir != "." {
		t.Fatalf("expected default workers dir, got %q", env.WorkersDir)
	}
}

func TestLoadPreservesSuppliedSecretKey(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/exopticon")
	t.Setenv("SECRET_KEY", "fixed-key")

	env, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.SecretKey != "fixed-key" {
		t.Fatalf("expected supplied secret key to be preserved, got %q", env.SecretKey)
	}
}
