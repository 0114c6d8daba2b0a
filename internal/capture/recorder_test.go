package capture

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/windfall/fgl_practice/internal/errors"
)

func testPCM(n int) []byte {
	pcm := make([]byte, n)
	for i := range pcm {
		pcm[i] = byte(i % 251)
	}
	return pcm
}

func TestRecorderStartStopProducesWAV(t *testing.T) {
	pcm := testPCM(4000)
	ctx := NewFakeContext(pcm, 320)
	rec := NewRecorder(ctx, Config{SampleRate: 16000, Channels: 1})

	require.NoError(t, rec.Start("formal"))

	slot, active := rec.Active()
	require.True(t, active)
	require.Equal(t, "formal", slot)

	artifact, err := rec.Stop()
	require.NoError(t, err)
	require.Equal(t, MimeWAV, artifact.MimeType)
	require.Len(t, artifact.Data, wavHeaderSize+len(pcm))

	require.Equal(t, "RIFF", string(artifact.Data[0:4]))
	require.Equal(t, "WAVE", string(artifact.Data[8:12]))
	require.Equal(t, uint32(16000), binary.LittleEndian.Uint32(artifact.Data[24:28]))
	require.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(artifact.Data[40:44]))
	require.Equal(t, pcm, artifact.Data[wavHeaderSize:])

	require.True(t, ctx.AllReleased())

	_, active = rec.Active()
	require.False(t, active)
}

func TestRecorderSecondStartFailsWithAlreadyRecording(t *testing.T) {
	ctx := NewFakeContext(testPCM(640), 320)
	rec := NewRecorder(ctx, Config{})

	require.NoError(t, rec.Start("formal"))

	err := rec.Start("informal")
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.ErrAlreadyRecording))

	// The original capture is unaffected.
	slot, active := rec.Active()
	require.True(t, active)
	require.Equal(t, "formal", slot)
	require.Equal(t, 1, ctx.OpenCount())
}

func TestRecorderOpenFailureIsDeviceUnavailable(t *testing.T) {
	ctx := NewFakeContext(nil, 0)
	ctx.FailOpen(errors.New("permission denied"))
	rec := NewRecorder(ctx, Config{})

	err := rec.Start("formal")
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.ErrDeviceUnavailable))

	_, active := rec.Active()
	require.False(t, active)
}

func TestRecorderStartFailureReleasesDevice(t *testing.T) {
	ctx := NewFakeContext(testPCM(100), 50)
	ctx.FailStart(errors.New("device busy"))
	rec := NewRecorder(ctx, Config{})

	err := rec.Start("formal")
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.ErrDeviceUnavailable))
	require.True(t, ctx.AllReleased())

	// Recorder is reusable after the failed start.
	ctx.FailStart(nil)
	require.NoError(t, rec.Start("formal"))
}

func TestRecorderAbortDropsChunks(t *testing.T) {
	ctx := NewFakeContext(testPCM(1000), 100)
	rec := NewRecorder(ctx, Config{})

	require.NoError(t, rec.Start("7"))
	rec.Abort()
	require.True(t, ctx.AllReleased())

	// A stop after abort yields an empty artifact, not stale chunks.
	artifact, err := rec.Stop()
	require.NoError(t, err)
	require.Len(t, artifact.Data, wavHeaderSize)
}
