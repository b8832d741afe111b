package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestErrorConstants(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"ErrInvalidArgument", ErrInvalidArgument, "invalid argument"},
		{"ErrUnauthenticated", ErrUnauthenticated, "unauthenticated"},
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrConflict", ErrConflict, "conflict"},
		{"ErrRateLimited", ErrRateLimited, "rate limited"},
		{"ErrProviderUnavailable", ErrProviderUnavailable, "provider unavailable"},
		{"ErrMalformedResponse", ErrMalformedResponse, "malformed response"},
		{"ErrCancelled", ErrCancelled, "cancelled"},
		{"ErrInternal", ErrInternal, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.expected {
				t.Errorf("Expected %s to be %q, got %q", tt.name, tt.expected, tt.err.Error())
			}
		})
	}
}

func TestProviderUnavailableError(t *testing.T) {
	var err error = &ProviderUnavailableError{Primary: "gemini: 503", Secondary: "openrouter: timeout"}
	wrapped := fmt.Errorf("op=gateway.generate: %w", err)

	if !errors.Is(wrapped, ErrProviderUnavailable) {
		t.Fatalf("expected wrapped error to match ErrProviderUnavailable")
	}
	var pu *ProviderUnavailableError
	if !errors.As(wrapped, &pu) {
		t.Fatalf("expected errors.As to find ProviderUnavailableError")
	}
	if pu.Primary != "gemini: 503" || pu.Secondary != "openrouter: timeout" {
		t.Errorf("unexpected messages: %+v", pu)
	}
	if got := err.Error(); got != "provider unavailable: primary: gemini: 503; secondary: openrouter: timeout" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestInterviewStatusTerminal(t *testing.T) {
	tests := []struct {
		status   InterviewStatus
		terminal bool
	}{
		{InterviewCreated, false},
		{InterviewProcessing, false},
		{InterviewCompleted, true},
		{InterviewError, true},
	}
	for _, tt := range tests {
		if tt.status.Terminal() != tt.terminal {
			t.Errorf("%s: expected terminal=%v", tt.status, tt.terminal)
		}
	}
}

func TestNormalizeResourceType(t *testing.T) {
	if NormalizeResourceType("video") != ResourceVideo {
		t.Errorf("video should be kept")
	}
	if NormalizeResourceType("podcast") != ResourceArticle {
		t.Errorf("unknown type should map to article")
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxRetries != 3 || p.InitialDelay != 2*time.Second || p.Multiplier != 2.0 {
		t.Errorf("unexpected default policy: %+v", p)
	}
}
