package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := (&DomainError{
		Category: ErrCatTransfer,
		Code:     CodeTransferFailed,
		Message:  "message",
	}).WithCause(cause)

	if err.Unwrap() != cause {
		t.Fatalf("expected cause to be unwrapped")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to match cause")
	}
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected errors.Is to match the transfer sentinel")
	}
	if errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("transfer error must not match capture sentinel")
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := &DomainError{Category: ErrCatCapture, Code: "X", Message: "msg"}
	err.WithDetail("k", "v")
	if err.Details == nil || err.Details["k"] != "v" {
		t.Fatalf("expected details to be set")
	}
}

func TestErrorFactories(t *testing.T) {
	t.Parallel()

	unsupported := ErrUnsupported("core dump", "windows")
	if !errors.Is(unsupported, ErrUnsupportedPlatform) {
		t.Errorf("expected unsupported platform match, got %v", unsupported)
	}
	if unsupported.Details["platform"] != "windows" {
		t.Errorf("expected platform detail, got %v", unsupported.Details)
	}

	capture := ErrCapture(KindHeapSnapshot, errors.New("boom"))
	if !errors.Is(capture, ErrCaptureFailed) {
		t.Errorf("expected capture match, got %v", capture)
	}

	transfer := ErrTransfer("volume", errors.New("boom"))
	if GetCategory(transfer) != ErrCatTransfer {
		t.Errorf("expected transfer category, got %s", GetCategory(transfer))
	}
}

func TestGetCategory_Wrapped(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("outer: %w", ErrCapture(KindReport, nil))
	if !IsCategory(wrapped, ErrCatCapture) {
		t.Errorf("expected wrapped capture category")
	}
	if GetCategory(errors.New("plain")) != ErrCatInternal {
		t.Errorf("plain errors should be internal")
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	transient := fmt.Errorf("upload: %w", ErrTransient(errors.New("503")))
	if !IsRetryable(transient) {
		t.Errorf("expected wrapped transient error to be retryable")
	}
	if !errors.Is(transient, ErrTransient(nil)) {
		t.Errorf("expected transient sentinel match")
	}
	if IsRetryable(ErrTransfer("dumps", errors.New("denied"))) {
		t.Errorf("transfer errors are not retryable by default")
	}
	if IsRetryable(errors.New("plain")) {
		t.Errorf("plain errors are not retryable")
	}
}
