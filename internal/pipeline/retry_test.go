package pipeline

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cpt-tools/cptgest/internal/extract"
)

func TestIsRetryable(t *testing.T) {
	re := &extract.RetryableError{StatusCode: 429, Message: "quota"}
	if !IsRetryable(re) {
		t.Error("expected RetryableError to be retryable")
	}
	if !IsRetryable(fmt.Errorf("wrapped: %w", re)) {
		t.Error("expected wrapped RetryableError to be retryable")
	}
	if IsRetryable(errors.New("plain error")) {
		t.Error("expected plain error not to be retryable")
	}
	if IsRetryable(nil) {
		t.Error("expected nil not to be retryable")
	}
}

func TestBackoff_Bounds(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := Backoff(attempt)
		if d < time.Second {
			t.Errorf("attempt %d: backoff %v below base", attempt, d)
		}
		// Base caps at 30s, jitter adds at most half of that.
		if d > 45*time.Second {
			t.Errorf("attempt %d: backoff %v above cap", attempt, d)
		}
	}
}

func TestBackoff_Grows(t *testing.T) {
	// Jitter aside, the base doubles per attempt.
	if Backoff(3) < 8*time.Second {
		t.Error("expected attempt 3 base of at least 8s")
	}
}
