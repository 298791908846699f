package idgen

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBookingNumberPrefix(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tw := BookingNumber(VehicleTwoWheeler, now)
	require.True(t, strings.HasPrefix(tw, "BKTW"))
	require.Len(t, tw, len("BKTW")+8)

	fw := BookingNumber(VehicleFourWheeler, now)
	require.True(t, strings.HasPrefix(fw, "BKFW"))
}

func TestCustomerCode(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	code := CustomerCode(now)
	require.True(t, strings.HasPrefix(code, "CUST"))
	require.Len(t, code, len("CUST")+6)
}

func TestMembershipNumberRetriesOnCollision(t *testing.T) {
	calls := 0
	exists := func(candidate string) (bool, error) {
		calls++
		return calls < 3, nil
	}

	num, err := MembershipNumber(exists)
	require.NoError(t, err)
	require.Len(t, num, 6)
	require.NotEqual(t, byte('0'), num[0])
	require.Equal(t, 3, calls)
}

func TestMembershipNumberExhaustsAttempts(t *testing.T) {
	exists := func(candidate string) (bool, error) { return true, nil }

	_, err := MembershipNumber(exists)
	require.Error(t, err)
}

func TestMembershipPINIsFourDigits(t *testing.T) {
	exists := func(candidate string) (bool, error) { return false, nil }

	pin, err := MembershipPIN(exists)
	require.NoError(t, err)
	require.Len(t, pin, 4)
	require.NotEqual(t, byte('0'), pin[0])
	for _, r := range pin {
		require.True(t, r >= '0' && r <= '9')
	}
}

func TestOTPExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	code, expiresAt, err := OTP(now)
	require.NoError(t, err)
	require.Len(t, code, 6)
	require.Equal(t, now.Add(30*time.Minute), expiresAt)
}
