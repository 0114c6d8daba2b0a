package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrValidation, http.StatusBadRequest},
		{ErrMissingReferenceText, http.StatusBadRequest},
		{ErrNotFound, http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{ErrAlreadyRecording, http.StatusConflict},
		{ErrInvalidTransition, http.StatusConflict},
		{ErrTimeout, http.StatusGatewayTimeout},
		{ErrUpload, http.StatusBadGateway},
		{ErrScoring, http.StatusBadGateway},
		{ErrTranscription, http.StatusBadGateway},
		{ErrTts, http.StatusBadGateway},
		{ErrDeviceUnavailable, http.StatusServiceUnavailable},
		{ErrInternal, http.StatusInternalServerError},
		{ErrDatabase, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, New(tc.code, "x").HTTPStatus(), string(tc.code))
	}
}

func TestCodeUnwrapsThroughWrapping(t *testing.T) {
	inner := New(ErrNotFound, "missing")
	wrapped := fmt.Errorf("loading card: %w", inner)

	require.Equal(t, ErrNotFound, Code(wrapped))
	require.True(t, Is(wrapped, ErrNotFound))
	require.False(t, Is(wrapped, ErrConflict))
}

func TestCodeDefaultsToInternal(t *testing.T) {
	require.Equal(t, ErrInternal, Code(fmt.Errorf("plain")))
}

func TestAlreadyRecordingCarriesActiveSlot(t *testing.T) {
	err := AlreadyRecording("formal")

	require.Equal(t, ErrAlreadyRecording, err.Code)
	require.Equal(t, "formal", err.Details["active_slot_id"])
	require.Equal(t, http.StatusConflict, err.HTTPStatus())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrUpload, "failed to store recording", cause)

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "UPLOAD_ERROR")
	require.Contains(t, err.Error(), "connection refused")
}
