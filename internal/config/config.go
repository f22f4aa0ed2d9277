// Package config loads the three parameter sets spec §6 describes
// ("Parameter persistence"): audio settings, detection parameters and FME
// rules. The teacher's config.go reads an ad hoc text format; we use
// gopkg.in/yaml.v3 instead; field names below are a direct transliteration
// of spec §6's parameter lists.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadError reports a deserialization failure (spec §7 "Deserialization
// failure"): the file is readable but its content is invalid or malformed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("config: failed to load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// AudioSettings is the "audio settings" parameter set from spec §6.
type AudioSettings struct {
	SampleLengthSeconds  float64   `yaml:"sampleLength"`
	Channels             int       `yaml:"channels"`
	ChannelIndex         int       `yaml:"channelIndex"`
	MaxQueueLength       int       `yaml:"maxLengthInputQueue"`
	MaxMissedAttempts    int       `yaml:"maxMissedAttempts"`
	DetectionParamsPath  string    `yaml:"detectionParamsPath"`
	FMERulesPath         string    `yaml:"fmeParamsPath"`
	MaxRequiredProcFreq  float64   `yaml:"maxRequiredProcFreq"`
	TransWidthProc       float64   `yaml:"transWidthProc"`
	TransWidthRec        float64   `yaml:"transWidthRec"`
	MainThreadCycleTime  float64   `yaml:"mainThreadCycleTime"`
	CandidateFrequencies []float64 `yaml:"candidateSamplingFrequencies"`
	RecordSampleRate     float64   `yaml:"recordSampleRate"` // 0 disables the recording branch

	// RecordLowerSeconds/RecordUpperSeconds bound the Audio Preserver's
	// post-trigger slice relative to a sequence's start (spec §4.6/§3);
	// RecordLowerSeconds may be negative to capture pre-trigger lead-in.
	// RecordBufferSeconds is how far behind the latest sample the rolling
	// deque is kept, and must be large enough to still hold the earliest
	// sample a pending slice could need.
	RecordLowerSeconds  float64 `yaml:"recordLower"`
	RecordUpperSeconds  float64 `yaml:"recordUpper"`
	RecordBufferSeconds float64 `yaml:"recordBuffer"`
}

// Validate checks the invariants spec §4.2/§4.8 depend on.
func (a AudioSettings) Validate() error {
	if a.SampleLengthSeconds <= 0 {
		return fmt.Errorf("sampleLength must be > 0")
	}

	if a.Channels <= 0 {
		return fmt.Errorf("channels must be > 0")
	}

	if a.ChannelIndex < 0 || a.ChannelIndex >= a.Channels {
		return fmt.Errorf("channelIndex out of range")
	}

	if a.MaxQueueLength <= 0 {
		return fmt.Errorf("maxLengthInputQueue must be > 0")
	}

	if a.MaxMissedAttempts < 0 {
		return fmt.Errorf("maxMissedAttempts must be >= 0")
	}

	if a.MaxRequiredProcFreq <= 0 {
		return fmt.Errorf("maxRequiredProcFreq must be > 0")
	}

	if len(a.CandidateFrequencies) == 0 {
		return fmt.Errorf("candidateSamplingFrequencies must not be empty")
	}

	if a.RecordLowerSeconds > a.RecordUpperSeconds {
		return fmt.Errorf("recordLower must be <= recordUpper")
	}

	if a.RecordBufferSeconds < 0 {
		return fmt.Errorf("recordBuffer must be >= 0")
	}

	if a.RecordLowerSeconds < 0 && a.RecordBufferSeconds < -a.RecordLowerSeconds {
		return fmt.Errorf("recordBuffer must be >= |recordLower| when recordLower < 0")
	}

	return nil
}

// DetectionParams is the "detection parameters" set from spec §6.
type DetectionParams struct {
	SampleLengthMS          float64   `yaml:"sampleLength"`
	SampleLengthCoarseMS    float64   `yaml:"sampleLengthCoarse"`
	MaxNumPeaks             int       `yaml:"maxNumPeaks"`
	MaxNumPeaksCoarse       int       `yaml:"maxNumPeaksCoarse"`
	FreqResolution          int       `yaml:"freqResolution"`
	FreqResolutionCoarse    int       `yaml:"freqResolutionCoarse"`
	MaxDeltaF               float64   `yaml:"maxDeltaF"`
	Overlap                 float64   `yaml:"overlap"`
	OverlapCoarse           float64   `yaml:"overlapCoarse"`
	Delta                   float64   `yaml:"delta"`
	DeltaCoarse             float64   `yaml:"deltaCoarse"`
	MaxFreqDevConstrained   float64   `yaml:"maxFreqDevConstrained"`
	MaxFreqDevUnconstrained float64   `yaml:"maxFreqDevUnconstrained"`
	NumNeighbours           int       `yaml:"numNeighbours"`
	EvalToneLengthMS        float64   `yaml:"evalToneLength"`
	SearchTimestepMS        float64   `yaml:"searchTimestep"`
	SearchFreqs             []float64 `yaml:"searchFreqs"`
}

// Validate checks the invariants spec §4.3/§4.4 depend on.
func (d DetectionParams) Validate() error {
	if d.SampleLengthMS <= 0 || d.SampleLengthCoarseMS <= 0 {
		return fmt.Errorf("sampleLength and sampleLengthCoarse must be > 0")
	}

	if d.SampleLengthCoarseMS <= d.SampleLengthMS {
		return fmt.Errorf("sampleLengthCoarse must exceed sampleLength")
	}

	if d.Overlap < 0 || d.Overlap >= 1 || d.OverlapCoarse < 0 || d.OverlapCoarse >= 1 {
		return fmt.Errorf("overlap and overlapCoarse must be in [0, 1)")
	}

	if len(d.SearchFreqs) < 11 {
		return fmt.Errorf("searchFreqs must list the 10 TR-BOS tones plus the repetition tone")
	}

	if d.NumNeighbours < 0 {
		return fmt.Errorf("numNeighbours must be >= 0")
	}

	return nil
}

// ZeroToneIndex is the search-tone slot representing digit 0 (spec §4.5,
// "Digit 0 mapping"): the 10th entry in SearchFreqs.
const ZeroToneIndex = 9

// RepetitionToneIndex is the 11th entry in SearchFreqs, the internal
// repetition tone "R".
const RepetitionToneIndex = 10

// FMERules is the "FME rules" parameter set from spec §6.
type FMERules struct {
	CodeLength         int     `yaml:"codeLength"`
	ExcessTimeMS       float64 `yaml:"excessTime"`
	DeltaTMaxTwiceMS   float64 `yaml:"deltaTMaxTwice"`
	MinLengthMS        float64 `yaml:"minLength"`
	MaxLengthMS        float64 `yaml:"maxLength"`
	MaxToneLevelRatio  float64 `yaml:"maxToneLevelRatio"`
}

// Validate checks the invariants spec §4.5 depends on.
func (f FMERules) Validate() error {
	if f.CodeLength <= 0 {
		return fmt.Errorf("codeLength must be > 0")
	}

	if f.MinLengthMS <= 0 || f.MaxLengthMS <= f.MinLengthMS {
		return fmt.Errorf("minLength must be > 0 and less than maxLength")
	}

	if f.MaxToneLevelRatio <= 1 {
		return fmt.Errorf("maxToneLevelRatio must be > 1")
	}

	return nil
}

func loadYAML[T any](path string) (T, error) {
	var zero T

	data, err := os.ReadFile(path)
	if err != nil {
		return zero, &LoadError{Path: path, Err: err}
	}

	var parsed T
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return zero, &LoadError{Path: path, Err: err}
	}

	return parsed, nil
}

// LoadAudioSettings reads and validates an audio settings file.
func LoadAudioSettings(path string) (AudioSettings, error) {
	cfg, err := loadYAML[AudioSettings](path)
	if err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, &LoadError{Path: path, Err: err}
	}

	return cfg, nil
}

// LoadDetectionParams reads and validates a detection parameters file.
func LoadDetectionParams(path string) (DetectionParams, error) {
	cfg, err := loadYAML[DetectionParams](path)
	if err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, &LoadError{Path: path, Err: err}
	}

	return cfg, nil
}

// LoadFMERules reads and validates an FME rules file.
func LoadFMERules(path string) (FMERules, error) {
	cfg, err := loadYAML[FMERules](path)
	if err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, &LoadError{Path: path, Err: err}
	}

	return cfg, nil
}

// Default returns the stock TR-BOS FME parameter set used when no config
// directory is given — ten tone frequencies plus the repetition tone, and
// the standard minimum/maximum tone lengths.
func Default() (AudioSettings, DetectionParams, FMERules) {
	audio := AudioSettings{
		SampleLengthSeconds:  0.02,
		Channels:             1,
		ChannelIndex:         0,
		MaxQueueLength:       100,
		MaxMissedAttempts:    5,
		MaxRequiredProcFreq:  2800,
		TransWidthProc:       200,
		TransWidthRec:        100,
		MainThreadCycleTime:  0.1,
		CandidateFrequencies: []float64{48000, 44100, 22050, 16000, 8000},
		RecordSampleRate:     8000,
		RecordLowerSeconds:   -0.6,
		RecordUpperSeconds:   1.9,
		RecordBufferSeconds:  1.6,
	}

	detection := DetectionParams{
		SampleLengthMS:          20,
		SampleLengthCoarseMS:    100,
		MaxNumPeaks:             4,
		MaxNumPeaksCoarse:       4,
		FreqResolution:          1024,
		FreqResolutionCoarse:    4096,
		MaxDeltaF:               0.02,
		Overlap:                 0.5,
		OverlapCoarse:           0.5,
		Delta:                   0.1,
		DeltaCoarse:             0.1,
		MaxFreqDevConstrained:   0.3,
		MaxFreqDevUnconstrained: 0.05,
		NumNeighbours:           3,
		EvalToneLengthMS:        1200,
		SearchTimestepMS:        400,
		SearchFreqs: []float64{
			2400, 1060, 1160, 1270, 1400,
			1530, 1670, 1830, 2000, 2200, // index 9 ("0")
			1800, // index 10, repetition tone "R"
		},
	}

	fmeRules := FMERules{
		CodeLength:        5,
		ExcessTimeMS:      5,
		DeltaTMaxTwiceMS:  700,
		MinLengthMS:       70,
		MaxLengthMS:       100,
		MaxToneLevelRatio: 3.16, // ~10 dB
	}

	return audio, detection, fmeRules
}
