// Package validation adds the domain-specific field formats from spec.md
// §4.B (operator IDs, vehicle plates, machine/pallet codes, OTPs, membership
// identifiers) as custom tags on top of the struct-tag validation the
// service already runs via go-playground/validator, plus a handful of plain
// sanitization helpers for fields validator tags can't express.
package validation

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	emailRegex         = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRegex         = regexp.MustCompile(`^[6-9]\d{9}$`)
	operatorIDRegex    = regexp.MustCompile(`^OP\d{3,6}$`)
	plateRegex         = regexp.MustCompile(`^[A-Z]{2}\d{1,2}[A-Z]{1,2}\d{4}$`)
	machineCodeRegex   = regexp.MustCompile(`^M\d{3}$`)
	palletNumberRegex  = regexp.MustCompile(`^[1-9][0-9]*$`)
	otpRegex           = regexp.MustCompile(`^\d{6}$`)
	membershipNumRegex = regexp.MustCompile(`^\d{6}$`)
	membershipPINRegex = regexp.MustCompile(`^\d{4}$`)
	pincodeRegex       = regexp.MustCompile(`^[1-9]\d{5}$`)
)

// MaxEmailLen and MaxNameLen are the length ceilings from spec.md §4.B that
// validator's "max" tag enforces directly on request struct fields.
const (
	MaxEmailLen = 255
	MaxNameLen  = 100
)

// Register adds every custom validation tag used by request DTOs across the
// service to v. Call once against the shared validator instance at startup.
func Register(v *validator.Validate) error {
	tags := map[string]validator.Func{
		"parkcore_email":        isEmail,
		"parkcore_phone":        isPhone,
		"parkcore_operator_id":  isOperatorID,
		"parkcore_plate":        isPlate,
		"parkcore_machine_code": isMachineCode,
		"parkcore_pallet_num":   isPalletNumber,
		"parkcore_otp":          isOTP,
		"parkcore_membership_number": isMembershipNumber,
		"parkcore_membership_pin":    isMembershipPIN,
		"parkcore_pincode":          isPincode,
	}

	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

func isEmail(fl validator.FieldLevel) bool        { return emailRegex.MatchString(fl.Field().String()) }
func isPhone(fl validator.FieldLevel) bool        { return phoneRegex.MatchString(fl.Field().String()) }
func isOperatorID(fl validator.FieldLevel) bool   { return operatorIDRegex.MatchString(fl.Field().String()) }
func isPlate(fl validator.FieldLevel) bool        { return plateRegex.MatchString(strings.ToUpper(fl.Field().String())) }
func isMachineCode(fl validator.FieldLevel) bool  { return machineCodeRegex.MatchString(fl.Field().String()) }
func isPalletNumber(fl validator.FieldLevel) bool { return palletNumberRegex.MatchString(fl.Field().String()) }
func isOTP(fl validator.FieldLevel) bool          { return otpRegex.MatchString(fl.Field().String()) }
func isMembershipNumber(fl validator.FieldLevel) bool {
	return membershipNumRegex.MatchString(fl.Field().String())
}
func isMembershipPIN(fl validator.FieldLevel) bool { return membershipPINRegex.MatchString(fl.Field().String()) }
func isPincode(fl validator.FieldLevel) bool       { return pincodeRegex.MatchString(fl.Field().String()) }

// IsEmail, IsPhone, etc. are standalone predicates for code paths that need
// to validate a value outside of a decoded request struct (e.g. inside a
// service method before a lookup).
func IsEmail(s string) bool            { return emailRegex.MatchString(s) }
func IsPhone(s string) bool            { return phoneRegex.MatchString(s) }
func IsOperatorID(s string) bool       { return operatorIDRegex.MatchString(s) }
func IsPlate(s string) bool            { return plateRegex.MatchString(strings.ToUpper(s)) }
func IsMachineCode(s string) bool      { return machineCodeRegex.MatchString(s) }
func IsPalletNumber(s string) bool     { return palletNumberRegex.MatchString(s) }
func IsOTP(s string) bool              { return otpRegex.MatchString(s) }
func IsMembershipNumber(s string) bool { return membershipNumRegex.MatchString(s) }
func IsMembershipPIN(s string) bool    { return membershipPINRegex.MatchString(s) }
func IsPincode(s string) bool          { return pincodeRegex.MatchString(s) }

const maxFreeTextLen = 1000

// Sanitize trims surrounding whitespace, removes every <, >, ' and "
// character, and caps the result at maxFreeTextLen runes.
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("<", "", ">", "", `'`, "", `"`, "").Replace(s)
	s = strings.TrimSpace(s)

	r := []rune(s)
	if len(r) > maxFreeTextLen {
		r = r[:maxFreeTextLen]
	}
	return string(r)
}

// NormalizePlate upper-cases and strips whitespace from a vehicle plate
// before it is validated or stored, so "mh12 ab 1234" and "MH12AB1234"
// compare equal.
func NormalizePlate(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "")
}
