// Package idgen generates the human-facing codes the parking network uses
// alongside internal UUID primary keys: booking numbers, customer codes,
// membership numbers/PINs, and booking OTPs. Generators take the current
// time as a parameter; the random digits always come from crypto/rand,
// which callers cannot inject, so random output is not reproducible in
// tests. crypto/rand usage is isolated to one small function, the same way
// the teacher's apikey service does it.
package idgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// VehicleType selects the booking number prefix.
type VehicleType string

const (
	VehicleTwoWheeler  VehicleType = "two_wheeler"
	VehicleFourWheeler VehicleType = "four_wheeler"
)

// BookingNumber returns a booking number of the form BK{TW|FW}{last 8 digits
// of epoch milliseconds}, e.g. BKFW87654321.
func BookingNumber(vehicleType VehicleType, now time.Time) string {
	prefix := "TW"
	if vehicleType == VehicleFourWheeler {
		prefix = "FW"
	}
	ms := fmt.Sprintf("%d", now.UnixMilli())
	return fmt.Sprintf("BK%s%s", prefix, last(ms, 8))
}

// CustomerCode returns a customer code of the form CUST{last 6 digits of
// epoch milliseconds}, e.g. CUST654321.
func CustomerCode(now time.Time) string {
	ms := fmt.Sprintf("%d", now.UnixMilli())
	return fmt.Sprintf("CUST%s", last(ms, 6))
}

// UniquenessChecker reports whether a candidate code is already in use.
// Generators that must avoid collisions (membership numbers, PINs) take one
// so the caller can retry against its own store without idgen depending on
// storage.
type UniquenessChecker func(candidate string) (inUse bool, err error)

const maxGenerateAttempts = 5

// MembershipNumber returns a unique 6-digit membership number with a
// non-zero leading digit, drawn uniformly from [100000, 999999] and
// retried against exists until a free one is found or maxGenerateAttempts
// is exhausted.
func MembershipNumber(exists UniquenessChecker) (string, error) {
	for i := 0; i < maxGenerateAttempts; i++ {
		candidate, err := noLeadingZeroDigits(6)
		if err != nil {
			return "", err
		}
		inUse, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !inUse {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("idgen: exhausted %d attempts generating a unique membership number", maxGenerateAttempts)
}

// MembershipPIN returns a unique 4-digit membership PIN with a non-zero
// leading digit, retrying against exists the same way MembershipNumber does.
func MembershipPIN(exists UniquenessChecker) (string, error) {
	for i := 0; i < maxGenerateAttempts; i++ {
		candidate, err := noLeadingZeroDigits(4)
		if err != nil {
			return "", err
		}
		inUse, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !inUse {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("idgen: exhausted %d attempts generating a unique membership PIN", maxGenerateAttempts)
}

// OTPValidity is the lifetime of a generated booking OTP.
const OTPValidity = 30 * time.Minute

// OTP returns a fresh 6-digit one-time password (non-zero leading digit)
// and its expiry, computed from now.
func OTP(now time.Time) (code string, expiresAt time.Time, err error) {
	code, err = noLeadingZeroDigits(6)
	if err != nil {
		return "", time.Time{}, err
	}
	return code, now.Add(OTPValidity), nil
}

// noLeadingZeroDigits draws n decimal digits uniformly from the range whose
// first digit is never zero (e.g. n=6 draws from [100000, 999999]).
func noLeadingZeroDigits(n int) (string, error) {
	lo := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n-1)), nil)
	hi := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	span := new(big.Int).Sub(hi, lo)
	v, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("idgen: reading random digits: %w", err)
	}
	v.Add(v, lo)
	return v.String(), nil
}

// last returns the last n characters of s, left-padded with zeros if s is
// shorter than n.
func last(s string, n int) string {
	if len(s) >= n {
		return s[len(s)-n:]
	}
	return strings.Repeat("0", n-len(s)) + s
}
