package preserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erl987fme/fmed/internal/fme"
)

type recordingSink struct {
	called bool
	start  time.Time
	clip   []fme.Sample
}

func (s *recordingSink) OnRecordedAudio(seq fme.Sequence, samples []fme.Sample, fs float64) {
	s.called = true
	s.start = seq.Start
	s.clip = samples
}

func TestPreserver_SliceBoundary(t *testing.T) {
	const fsRec = 8000.0

	sink := &recordingSink{}
	p2 := New(sink)

	require.NoError(t, p2.SetParams(Params{
		RecordBuffer: 1600 * time.Millisecond,
		RecordLower:  -600 * time.Millisecond,
		RecordUpper:  1900 * time.Millisecond,
	}))

	base := time.Now()
	seqStart := base.Add(5 * time.Second)

	total := int(10 * fsRec)
	samples := make([]fme.Sample, total)
	calc := make([]time.Time, total)

	for i := range samples {
		samples[i] = fme.Sample(i)
		calc[i] = base.Add(time.Duration(float64(i) / fsRec * float64(time.Second)))
	}

	const chunk = 400

	p2.MergeSequence(fme.Sequence{Start: seqStart})

	for i := 0; i < total; i += chunk {
		end := i + chunk
		if end > total {
			end = total
		}

		p2.MergeAudio(fme.RecordFrame{Calculated: calc[i:end], Samples: samples[i:end], Fs: fsRec})
		p2.Tick()
	}

	require.True(t, sink.called)
	require.Equal(t, seqStart, sink.start)

	expectedLen := int(((1900.0 - (-600.0)) / 1000.0) * fsRec)
	require.InDelta(t, expectedLen, len(sink.clip), 1)
}
