package secret

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandEnvStrict_MissingVarErrors(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.internal")

	_, err := ExpandEnvStrict("redis://${REDIS_HOST}:${REDIS_PORT_UNSET}/0")
	if !errors.Is(err, ErrMissingEnv) {
		t.Fatalf("expected ErrMissingEnv, got %v", err)
	}
	if !strings.Contains(err.Error(), "REDIS_PORT_UNSET") {
		t.Fatalf("expected missing var name in error, got: %v", err)
	}
}

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "hunter2")

	tests := map[string]string{
		"redis://:${REDIS_PASSWORD}@localhost:6379": "redis://:hunter2@localhost:6379",
		"$$${REDIS_PASSWORD}":                       "$hunter2",
		"data/cache":                                "data/cache",
	}
	for in, want := range tests {
		got, err := ExpandEnvStrict(in)
		if err != nil {
			t.Fatalf("ExpandEnvStrict(%q) error = %v", in, err)
		}
		if got != want {
			t.Errorf("ExpandEnvStrict(%q) = %q, want %q", in, got, want)
		}
	}
}
