package security

import (
	"context"
	"errors"
	"testing"
)

func TestGeneratePINFormat(t *testing.T) {
	for i := 0; i < 100; i++ {
		pin, err := GeneratePIN()
		if err != nil {
			t.Fatalf("generate pin: %v", err)
		}
		if !IsValidPIN(pin) {
			t.Fatalf("expected 4 digits, got %q", pin)
		}
	}
}

func TestGenerateUniquePINSkipsTakenValues(t *testing.T) {
	calls := 0
	pin, err := GenerateUniquePIN(context.Background(), 10, func(_ context.Context, _ string) (bool, error) {
		calls++
		return calls < 3, nil
	})
	if err != nil {
		t.Fatalf("generate unique pin: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 lookups, got %d", calls)
	}
	if !IsValidPIN(pin) {
		t.Fatalf("unexpected pin %q", pin)
	}
}

func TestGenerateUniquePINGivesUpWhenSpaceIsFull(t *testing.T) {
	_, err := GenerateUniquePIN(context.Background(), 5, func(_ context.Context, _ string) (bool, error) {
		return true, nil
	})
	if !errors.Is(err, ErrPINSpaceExhausted) {
		t.Fatalf("expected ErrPINSpaceExhausted, got %v", err)
	}
}

func TestGenerateUniquePINPropagatesLookupErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := GenerateUniquePIN(context.Background(), 5, func(_ context.Context, _ string) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}

func TestIsValidPIN(t *testing.T) {
	cases := map[string]bool{"0000": true, "1234": true, "123": false, "12345": false, "12a4": false, "": false}
	for pin, want := range cases {
		if got := IsValidPIN(pin); got != want {
			t.Fatalf("IsValidPIN(%q) = %v, want %v", pin, got, want)
		}
	}
}
