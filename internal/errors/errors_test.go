package errors

import (
	"context"
	"fmt"
	"testing"
)

func TestNotFoundIsCriticalAndUnrecoverable(t *testing.T) {
	err := NewNotFound("teleport")
	if err.Code != CapabilityNotFound {
		t.Errorf("expected code %s, got %s", CapabilityNotFound, err.Code)
	}
	if err.Severity != SeverityCritical {
		t.Errorf("expected critical severity, got %s", err.Severity)
	}
	if err.Recoverable {
		t.Error("expected not recoverable")
	}
	if err.Error() != `[CAPABILITY_NOT_FOUND] capability teleport: capability "teleport" is not registered` {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestAsFindsWrappedRunError(t *testing.T) {
	inner := NewValidationError("bad input", "")
	wrapped := fmt.Errorf("loading: %w", inner)
	re, ok := As(wrapped)
	if !ok {
		t.Fatal("expected RunError in chain")
	}
	if re != inner {
		t.Error("expected the original RunError")
	}
}

func TestFromClassifiesErrors(t *testing.T) {
	if From(nil) != nil {
		t.Error("expected nil for nil error")
	}
	if got := From(context.DeadlineExceeded); got.Code != Timeout {
		t.Errorf("expected TIMEOUT, got %s", got.Code)
	}
	if got := From(fmt.Errorf("boom")); got.Code != CriticalError {
		t.Errorf("expected CRITICAL_ERROR, got %s", got.Code)
	}
	partial := NewPartialFailure(3, 2, "3 of 5 saved")
	if got := From(partial); got != partial {
		t.Error("expected existing RunError to pass through")
	}
}

func TestForCopiesWithCapability(t *testing.T) {
	base := NewCritical(fmt.Errorf("boom"))
	attributed := base.For("build")
	if base.Capability != "" {
		t.Error("expected original to be untouched")
	}
	if attributed.Capability != "build" {
		t.Errorf("expected capability build, got %q", attributed.Capability)
	}
}
