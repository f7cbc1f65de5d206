package errorsx

import (
	"errors"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonConnect)
	if Reason(err) != ReasonConnect {
		t.Fatalf("expected reason %s, got %s", ReasonConnect, Reason(err))
	}
	if !HasReason(err, ReasonConnect) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonTimeout)
	second := Wrap(first, ReasonUnavailable)
	if Reason(second) != ReasonTimeout {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestRewrapReplacesReason(t *testing.T) {
	inner := Wrap(assertErr{}, ReasonConnect)
	outer := Rewrap(inner, ReasonUnavailable)
	if Reason(outer) != ReasonUnavailable {
		t.Fatalf("expected reason replaced, got %s", Reason(outer))
	}
	if !errors.Is(outer, assertErr{}) {
		t.Fatal("expected original error preserved in chain")
	}
	if Rewrap(nil, ReasonUnavailable) != nil {
		t.Fatal("rewrapping nil should return nil")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ReasonSend) != nil {
		t.Fatal("wrapping nil should return nil")
	}
	if Reason(nil) != ReasonUnknown {
		t.Fatal("nil error should have unknown reason")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
