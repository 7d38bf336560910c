package errors

import (
	"fmt"
	"testing"
)

func TestAgentwatchError(t *testing.T) {
	err := New(ErrCodeLockBusy, "lock busy")
	if err.Code != ErrCodeLockBusy {
		t.Errorf("expected code %s, got %s", ErrCodeLockBusy, err.Code)
	}

	cause := fmt.Errorf("underlying error")
	wrapped := Wrap(cause, ErrCodeWriteFailed, "write failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	if !Is(wrapped, ErrCodeWriteFailed) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeLockBusy) {
		t.Error("Is should return false for non-matching code")
	}

	detailed := err.WithDetail("path", "/tmp/x.lock").WithDetail("pid", 42)
	if detailed.Details["path"] != "/tmp/x.lock" {
		t.Error("WithDetail should add details")
	}
}

func TestIsThroughWrapping(t *testing.T) {
	inner := LockBusy("/tmp/state.json.lock", 7)
	outer := Wrap(inner, ErrCodeWriteFailed, "write failed")
	fmtWrapped := fmt.Errorf("update: %w", outer)

	if !Is(fmtWrapped, ErrCodeWriteFailed) {
		t.Error("Is should find the outer code through fmt wrapping")
	}
	if !Is(fmtWrapped, ErrCodeLockBusy) {
		t.Error("Is should find a nested code")
	}
	if GetCode(fmtWrapped) != ErrCodeWriteFailed {
		t.Errorf("GetCode = %s, want %s", GetCode(fmtWrapped), ErrCodeWriteFailed)
	}
	if GetCode(nil) != "" {
		t.Error("GetCode(nil) should be empty")
	}
}

func TestErrorConstructors(t *testing.T) {
	err := LockBusy("/tmp/a.lock", 99)
	if err.Code != ErrCodeLockBusy {
		t.Errorf("expected code %s, got %s", ErrCodeLockBusy, err.Code)
	}
	if err.Details["pid"] != 99 {
		t.Error("LockBusy should include pid detail")
	}

	err = StateCorrupt("/tmp/state.json", fmt.Errorf("unexpected EOF"))
	if err.Code != ErrCodeStateCorrupt {
		t.Errorf("expected code %s, got %s", ErrCodeStateCorrupt, err.Code)
	}
	if err.Details["path"] != "/tmp/state.json" {
		t.Error("StateCorrupt should include path detail")
	}
}
