package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidConfig, "zone %q: bad rect", "guest_name")

	if err.Code != ErrCodeInvalidConfig {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidConfig)
	}

	if err.Message != `zone "guest_name": bad rect` {
		t.Errorf("Message = %v", err.Message)
	}

	expected := `INVALID_CONFIG: zone "guest_name": bad rect`
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("gs exited with status 1")
	err := Wrap(ErrCodeDocumentLoad, cause, "rasterize template")

	if err.Code != ErrCodeDocumentLoad {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeDocumentLoad)
	}
	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeEncoding, "test"),
			code:     ErrCodeEncoding,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeEncoding, "test"),
			code:     ErrCodePageRender,
			expected: false,
		},
		{
			name:     "outer code wins",
			err:      Wrap(ErrCodeRendererUnavailable, New(ErrCodeFontNotFound, "inner"), "outer"),
			code:     ErrCodeRendererUnavailable,
			expected: true,
		},
		{
			name:     "fmt wrapped",
			err:      fmt.Errorf("guest 3: %w", New(ErrCodeEncoding, "jpeg")),
			code:     ErrCodeEncoding,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInvalidInput,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInvalidInput,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{"Error type", New(ErrCodeZoneBleed, "test"), ErrCodeZoneBleed},
		{"plain error", errors.New("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"Error type", New(ErrCodeInvalidInput, "friendly message"), "friendly message"},
		{"plain error", errors.New("plain error"), "plain error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTemplateLevel(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{New(ErrCodeDocumentLoad, "x"), true},
		{New(ErrCodePageRender, "x"), true},
		{New(ErrCodeInvalidConfig, "x"), true},
		{New(ErrCodeEncoding, "x"), false},
		{New(ErrCodeRendererUnavailable, "x"), false},
		{errors.New("plain"), false},
	}

	for _, tt := range tests {
		if got := TemplateLevel(tt.err); got != tt.want {
			t.Errorf("TemplateLevel(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestValidationError(t *testing.T) {
	var v ValidationError
	if v.Err() != nil {
		t.Fatal("empty ValidationError should produce nil error")
	}

	v.Add("zone %q: page_number must be >= 1", "a")
	v.Add("zone %q: unknown mask mode", "b")

	err := v.Err()
	if !Is(err, ErrCodeInvalidConfig) {
		t.Fatalf("Err() code = %v, want %v", GetCode(err), ErrCodeInvalidConfig)
	}

	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Problems) != 2 {
		t.Fatalf("expected 2 problems, got %+v", ve)
	}
	if got := ve.Error(); got != `zone "a": page_number must be >= 1 (and 1 more)` {
		t.Errorf("Error() = %q", got)
	}
}
