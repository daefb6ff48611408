package util

import (
	"errors"
	"strings"
	"testing"
)

func TestSchemaErrorLookup(t *testing.T) {
	err := NewLookupError("table", "ipv4_host")

	msg := err.Error()
	if !strings.Contains(msg, "table") {
		t.Errorf("Error message should contain kind: %s", msg)
	}
	if !strings.Contains(msg, "ipv4_host") {
		t.Errorf("Error message should contain name: %s", msg)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("lookup error should unwrap to ErrNotFound")
	}
}

func TestSchemaErrorInvalid(t *testing.T) {
	err := NewSchemaError("action", "fwd", "duplicate name")

	msg := err.Error()
	if !strings.Contains(msg, "duplicate name") {
		t.Errorf("Error message should contain detail: %s", msg)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Error("schema error with detail should unwrap to ErrInvalidConfig")
	}
}

func TestEncodeError(t *testing.T) {
	err := NewEncodeError("port", 512, 9, "does not fit in 9 bits")

	msg := err.Error()
	for _, want := range []string{"port", "512", "9 bits"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error message should contain %q: %s", want, msg)
		}
	}
}

func TestEncodeErrorNoField(t *testing.T) {
	err := NewEncodeError("", "abc", 8, "not a number")
	if strings.HasPrefix(err.Error(), ":") {
		t.Errorf("message should not start with empty field prefix: %s", err.Error())
	}
}
