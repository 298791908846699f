package apierr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindStatusCode(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:        http.StatusUnprocessableEntity,
		KindBadRequest:        http.StatusBadRequest,
		KindUnauthorized:      http.StatusUnauthorized,
		KindForbidden:         http.StatusForbidden,
		KindNotFound:          http.StatusNotFound,
		KindConflict:          http.StatusConflict,
		KindIllegalTransition: http.StatusBadRequest,
		KindPalletFull:        http.StatusBadRequest,
		KindAccountLocked:     http.StatusLocked,
		KindRateLimited:       http.StatusTooManyRequests,
		KindServiceUnavailable: http.StatusServiceUnavailable,
		KindInternal:          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		require.Equal(t, want, kind.StatusCode(), "kind %s", kind)
	}
}

func TestAsRecoversTaggedError(t *testing.T) {
	original := NotFound("customer")
	wrapped := errors.New("store: " + original.Error())

	// A plain error falls back to Internal.
	got := As(wrapped)
	require.Equal(t, KindInternal, got.Kind)

	// A directly tagged error is recovered as-is.
	got = As(original)
	require.Equal(t, KindNotFound, got.Kind)
}

func TestAsReturnsNilForNilError(t *testing.T) {
	require.Nil(t, As(nil))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := Wrap(KindServiceUnavailable, "database unavailable", cause)

	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, KindServiceUnavailable, wrapped.Kind)
}
