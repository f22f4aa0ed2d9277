package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault_Validates(t *testing.T) {
	audio, detection, fmeRules := Default()

	require.NoError(t, audio.Validate())
	require.NoError(t, detection.Validate())
	require.NoError(t, fmeRules.Validate())
}

func TestAudioSettings_Validate_Rejections(t *testing.T) {
	audio, _, _ := Default()

	bad := audio
	bad.SampleLengthSeconds = 0
	require.Error(t, bad.Validate())

	bad = audio
	bad.ChannelIndex = audio.Channels
	require.Error(t, bad.Validate())

	bad = audio
	bad.CandidateFrequencies = nil
	require.Error(t, bad.Validate())

	bad = audio
	bad.RecordLowerSeconds = bad.RecordUpperSeconds + 1
	require.Error(t, bad.Validate())

	bad = audio
	bad.RecordLowerSeconds = -2
	bad.RecordBufferSeconds = 1
	require.Error(t, bad.Validate())
}

func TestDetectionParams_Validate_Rejections(t *testing.T) {
	_, detection, _ := Default()

	bad := detection
	bad.SampleLengthCoarseMS = bad.SampleLengthMS
	require.Error(t, bad.Validate())

	bad = detection
	bad.Overlap = 1
	require.Error(t, bad.Validate())

	bad = detection
	bad.SearchFreqs = bad.SearchFreqs[:5]
	require.Error(t, bad.Validate())
}

func TestFMERules_Validate_Rejections(t *testing.T) {
	_, _, fmeRules := Default()

	bad := fmeRules
	bad.MaxLengthMS = bad.MinLengthMS
	require.Error(t, bad.Validate())

	bad = fmeRules
	bad.MaxToneLevelRatio = 1
	require.Error(t, bad.Validate())
}

func TestLoadAudioSettings_MissingFile(t *testing.T) {
	_, err := LoadAudioSettings("/nonexistent/path/audio.yaml")
	require.Error(t, err)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
}
