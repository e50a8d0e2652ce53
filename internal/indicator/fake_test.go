package indicator

import (
	"errors"
	"testing"
)

func TestFakeIndicatorSet(t *testing.T) {
	f := NewFakeIndicator()

	if f.On() {
		t.Error("should be off initially")
	}

	f.Set(true)
	if !f.On() {
		t.Error("expected on")
	}
	f.Set(false)
	if f.On() {
		t.Error("expected off")
	}
	if len(f.States) != 2 {
		t.Errorf("states: got %v", f.States)
	}
}

func TestFakeIndicatorError(t *testing.T) {
	f := NewFakeIndicator()
	f.SetError = errors.New("simulated error")

	if err := f.Set(true); err == nil || err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
	if len(f.States) != 0 {
		t.Error("failed Set must not be recorded")
	}
}

func TestFakeIndicatorClose(t *testing.T) {
	f := NewFakeIndicator()
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}
