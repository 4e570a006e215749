package domain

import (
	"errors"
	"math"
	"regexp"
)

var (
	// ErrInvalidAccountNumber indicates an identifier that is empty or not all digits.
	ErrInvalidAccountNumber = errors.New("invalid account number format")
	// ErrInvalidAmount indicates a non-positive, non-numeric, or sub-cent amount.
	ErrInvalidAmount = errors.New("invalid amount format or must be greater than zero")
)

var accountNumberPattern = regexp.MustCompile(`^[0-9]+$`)

// ValidateAccountNumber checks that an account number is a non-empty string
// of digits. The mutation coordinator trusts this result and does not
// re-validate.
func ValidateAccountNumber(accountNumber string) error {
	if !accountNumberPattern.MatchString(accountNumber) {
		return ErrInvalidAccountNumber
	}
	return nil
}

// ParseAmount converts a decimal amount in whole currency units into cents.
// It rejects non-finite values, values that are not strictly positive, and
// values with more than two decimal places.
func ParseAmount(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, ErrInvalidAmount
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	cents := math.Round(amount * 100)
	if cents > math.MaxInt64/2 {
		return 0, ErrInvalidAmount
	}
	if math.Abs(amount*100-cents) > 1e-6 {
		return 0, ErrInvalidAmount
	}
	return int64(cents), nil
}

// CentsToAmount converts a cents quantity back into whole currency units
// for API responses.
func CentsToAmount(cents int64) float64 {
	return float64(cents) / 100
}
