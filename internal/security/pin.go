package security

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// PINLength is the number of digits in a door PIN.
const PINLength = 4

// DefaultPINAttempts bounds the unique PIN search.
const DefaultPINAttempts = 200

// ErrPINSpaceExhausted indicates no unused PIN was found within the attempt budget.
var ErrPINSpaceExhausted = errors.New("pin space exhausted")

var pinSpace = big.NewInt(10000)

// GeneratePIN returns a uniformly random 4-digit PIN.
func GeneratePIN() (string, error) {
	n, err := rand.Int(rand.Reader, pinSpace)
	if err != nil {
		return "", fmt.Errorf("generate pin: %w", err)
	}
	return fmt.Sprintf("%0*d", PINLength, n.Int64()), nil
}

// GenerateUniquePIN samples PINs until exists reports one as unused.
func GenerateUniquePIN(ctx context.Context, maxAttempts int, exists func(context.Context, string) (bool, error)) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultPINAttempts
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if errCtx := ctx.Err(); errCtx != nil {
			return "", errCtx
		}
		pin, err := GeneratePIN()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, pin)
		if err != nil {
			return "", fmt.Errorf("check pin: %w", err)
		}
		if !taken {
			return pin, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrPINSpaceExhausted, maxAttempts)
}

// IsValidPIN reports whether pin is exactly four ASCII digits.
func IsValidPIN(pin string) bool {
	if len(pin) != PINLength {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}
