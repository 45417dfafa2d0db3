package config

import (
	"os"
	"testing"
)

func TestExpandEnv_SetVariable(t *testing.T) {
	os.Setenv("RECORDER_TEST_VAR", "bucket-1")
	defer os.Unsetenv("RECORDER_TEST_VAR")

	got := ExpandEnv("bucket: ${RECORDER_TEST_VAR}")
	if got != "bucket: bucket-1" {
		t.Errorf("ExpandEnv = %q, want %q", got, "bucket: bucket-1")
	}
}

func TestExpandEnv_DefaultWhenUnset(t *testing.T) {
	os.Unsetenv("RECORDER_TEST_UNSET")
	got := ExpandEnv("level: ${RECORDER_TEST_UNSET:-info}")
	if got != "level: info" {
		t.Errorf("ExpandEnv = %q, want %q", got, "level: info")
	}
}

func TestExpandEnv_UnsetWithoutDefaultIsEmpty(t *testing.T) {
	os.Unsetenv("RECORDER_TEST_UNSET2")
	got := ExpandEnv("token: ${RECORDER_TEST_UNSET2}")
	if got != "token: " {
		t.Errorf("ExpandEnv = %q, want %q", got, "token: ")
	}
}

func TestExpandEnv_SetOverridesDefault(t *testing.T) {
	os.Setenv("RECORDER_TEST_VAR2", "explicit")
	defer os.Unsetenv("RECORDER_TEST_VAR2")

	got := ExpandEnv("x: ${RECORDER_TEST_VAR2:-fallback}")
	if got != "x: explicit" {
		t.Errorf("ExpandEnv = %q, want %q", got, "x: explicit")
	}
}
