package indicator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCueSamplesPresent(t *testing.T) {
	for _, kind := range []cueKind{cueStart, cueStop, cueComplete, cueError} {
		require.NotEmpty(t, cueSamples(kind), "cue %d", kind)
	}
	require.Empty(t, cueSamples(cueKind(99)))
}

func TestSynthesizeCueInsertsGaps(t *testing.T) {
	parts := cueTones[cueStart]
	want := samplesForDuration(parts[0].duration) + samplesForDuration(22*time.Millisecond) + samplesForDuration(parts[1].duration)
	require.Len(t, synthesizeCue(parts), want)
	require.Nil(t, synthesizeCue(nil))
}

func TestSynthesizeToneDurationAndFade(t *testing.T) {
	got := synthesizeTone(toneSpec{frequencyHz: 440, duration: 100 * time.Millisecond, volume: 0.2})
	require.Len(t, got, samplesForDuration(100*time.Millisecond))
	require.Equal(t, int16(0), got[0])
	require.Equal(t, int16(0), got[len(got)-1])
}

func TestSynthesizeToneInvalidSpecReturnsEmpty(t *testing.T) {
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 0, duration: 100 * time.Millisecond, volume: 0.2}))
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: 0, volume: 0.2}))
	require.Empty(t, synthesizeTone(toneSpec{frequencyHz: 440, duration: 100 * time.Millisecond, volume: 0}))
}

func TestEmitCueRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := emitCue(ctx, cueStart)
	require.True(t, errors.Is(err, context.Canceled))
}
