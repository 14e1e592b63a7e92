package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"testing"
)

func TestAppErrorFormatting(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewAIError(ErrCodeAIServiceFailed, "Failed to generate content", cause)

	want := "AI_SERVICE_FAILED: Failed to generate content (caused by: connection reset)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !stderrors.Is(err, cause) {
		t.Error("Expected the cause to be reachable through Unwrap")
	}

	plain := NewValidationError(ErrCodeInvalidTab, "unknown tab", nil)
	if plain.Error() != "INVALID_TAB: unknown tab" {
		t.Errorf("Unexpected message %q", plain.Error())
	}
}

func TestErrorHelpers(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewConflictError(ErrCodeInvalidTransition, "cannot select tab", nil))

	appErr, ok := AsAppError(err)
	if !ok {
		t.Fatal("Expected an AppError in the chain")
	}
	if appErr.Type != ErrorTypeConflict {
		t.Errorf("Expected conflict type, got %s", appErr.Type)
	}
	if !IsType(err, ErrorTypeConflict) || IsType(err, ErrorTypeValidation) {
		t.Error("IsType does not match the wrapped error type")
	}
	if !HasCode(err, ErrCodeInvalidTransition) || HasCode(err, ErrCodeInvalidTab) {
		t.Error("HasCode does not match the wrapped error code")
	}
	if _, ok := AsAppError(stderrors.New("plain")); ok {
		t.Error("Plain errors are not AppErrors")
	}
}

func TestLoggerExpandsAppErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, slog.LevelDebug)

	err := NewNotFoundError(ErrCodeSessionNotFound, "session not found", nil).WithContext("session_id", "abc")
	logger.LogError(err, "Request failed", "path", "/api/v1/sessions/abc")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("Log output is not JSON: %v", err)
	}

	expected := map[string]any{
		"msg":        "Request failed",
		"level":      "ERROR",
		"error_type": "not_found",
		"error_code": "SESSION_NOT_FOUND",
		"session_id": "abc",
		"path":       "/api/v1/sessions/abc",
	}
	for key, want := range expected {
		if record[key] != want {
			t.Errorf("%s = %v, want %v", key, record[key], want)
		}
	}
}

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		if _, err := New(level); err != nil {
			t.Errorf("New(%q) failed: %v", level, err)
		}
	}
	if _, err := New("verbose"); err == nil {
		t.Error("Expected an error for an unknown level")
	}
}
