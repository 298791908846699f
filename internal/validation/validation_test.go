package validation

import "testing"

func TestIsOperatorID(t *testing.T) {
	cases := map[string]bool{
		"OP001":   true,
		"OP12345": true,
		"op001":   false,
		"OPERATOR": false,
		"":        false,
	}
	for in, want := range cases {
		if got := IsOperatorID(in); got != want {
			t.Errorf("IsOperatorID(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsOTP(t *testing.T) {
	if !IsOTP("123456") {
		t.Error("expected 6-digit OTP to validate")
	}
	if IsOTP("12345") {
		t.Error("expected 5-digit OTP to fail")
	}
	if IsOTP("abcdef") {
		t.Error("expected non-numeric OTP to fail")
	}
}

func TestIsMembershipNumber(t *testing.T) {
	if !IsMembershipNumber("123456") {
		t.Error("expected well-formed membership number to validate")
	}
	if IsMembershipNumber("MEM123") {
		t.Error("expected non-numeric membership number to fail")
	}
	if IsMembershipNumber("12345") {
		t.Error("expected short membership number to fail")
	}
}

func TestIsPhone(t *testing.T) {
	if !IsPhone("9876543210") {
		t.Error("expected valid Indian mobile number to validate")
	}
	if IsPhone("1234567890") {
		t.Error("expected a number not starting 6-9 to fail")
	}
	if IsPhone("987654321") {
		t.Error("expected a 9-digit number to fail")
	}
}

func TestIsMachineCode(t *testing.T) {
	if !IsMachineCode("M001") {
		t.Error("expected M followed by 3 digits to validate")
	}
	if IsMachineCode("MACH01") {
		t.Error("expected non-conforming machine code to fail")
	}
}

func TestIsPlate(t *testing.T) {
	if !IsPlate("mh12ab1234") {
		t.Error("expected plate to validate after uppercasing")
	}
	if IsPlate("1234") {
		t.Error("expected malformed plate to fail")
	}
}

func TestIsPincode(t *testing.T) {
	if !IsPincode("560001") {
		t.Error("expected 6-digit pincode starting 1-9 to validate")
	}
	if IsPincode("012345") {
		t.Error("expected pincode with leading zero to fail")
	}
}

func TestNormalizePlate(t *testing.T) {
	got := NormalizePlate(" mh12 ab 1234 ")
	if got != "MH12AB1234" {
		t.Errorf("NormalizePlate() = %q, want MH12AB1234", got)
	}
}

func TestSanitizeTrimsAndStripsQuotes(t *testing.T) {
	got := Sanitize(`  "hello world"  `)
	if got != "hello world" {
		t.Errorf("Sanitize() = %q, want %q", got, "hello world")
	}
}

func TestSanitizeCapsLength(t *testing.T) {
	long := make([]rune, 2000)
	for i := range long {
		long[i] = 'a'
	}
	got := Sanitize(string(long))
	if len(got) != maxFreeTextLen {
		t.Errorf("Sanitize() length = %d, want %d", len(got), maxFreeTextLen)
	}
}
