package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVoiceParamsDefaults(t *testing.T) {
	var v VoiceParams
	require.NoError(t, v.Validate())
	require.Equal(t, DefaultVoiceID, v.VoiceID)
	require.Equal(t, DefaultSpeechSpeed, v.Speed)
	require.Equal(t, DefaultSpeechPitch, v.Pitch)
	require.Equal(t, DefaultAudioFormat, v.Format)
}

func TestVoiceParamsBounds(t *testing.T) {
	cases := []VoiceParams{
		{Speed: 49},
		{Speed: 201},
		{Pitch: -1},
		{Pitch: 101},
	}
	for _, v := range cases {
		err := v.Validate()
		require.Error(t, err)
		require.Equal(t, ValidationError, KindOf(err))
	}

	edge := VoiceParams{Speed: MinSpeechSpeed, Pitch: MaxSpeechPitch}
	require.NoError(t, edge.Validate())
}

func TestAudioRef(t *testing.T) {
	require.Empty(t, (*SynthesisResult)(nil).AudioRef())
	require.Empty(t, (&SynthesisResult{}).AudioRef())

	url := &SynthesisResult{AudioURL: "https://audio.example/a.mp3"}
	require.Equal(t, "https://audio.example/a.mp3", url.AudioRef())

	raw := &SynthesisResult{Audio: []byte{1, 2, 3}}
	require.True(t, strings.HasPrefix(raw.AudioRef(), "data:audio/mpeg;base64,"))
}
