package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDuration(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(2*time.Hour + 45*time.Minute)

	hours, minutes := Duration(start, end)
	assert.Equal(t, 2, hours)
	assert.Equal(t, 45, minutes)
}

func TestDuration_ExactHours(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)

	hours, minutes := Duration(start, end)
	assert.Equal(t, 3, hours)
	assert.Equal(t, 0, minutes)
}

// TestOTP_RedemptionBoundary reproduces spec.md §8 scenario #4: booking B30
// is created at 2025-01-01T10:00:00Z with a 30-minute OTP. Redeeming at
// 10:29:59 succeeds; redeeming the same code at 10:30:01 fails.
func TestOTP_RedemptionBoundary(t *testing.T) {
	created := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	otp := OTP{Code: "483920", ExpiresAt: created.Add(30 * time.Minute)}

	justBefore := created.Add(29*time.Minute + 59*time.Second)
	assert.True(t, otp.IsRedeemable(justBefore))

	justAfter := created.Add(30*time.Minute + 1*time.Second)
	assert.False(t, otp.IsRedeemable(justAfter))
}

func TestOTP_AlreadyUsedIsNotRedeemable(t *testing.T) {
	created := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	usedAt := created.Add(5 * time.Minute)
	otp := OTP{
		Code:      "483920",
		ExpiresAt: created.Add(30 * time.Minute),
		IsUsed:    true,
		UsedAt:    &usedAt,
	}

	assert.False(t, otp.IsRedeemable(created.Add(10*time.Minute)))
}
