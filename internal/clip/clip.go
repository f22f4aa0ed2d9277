// Package clip writes post-trigger audio clips recovered by the Audio
// Preserver to disk as WAV files, named from a strftime-style pattern.
// Adapted from the teacher's tq.go/xmit.go, which both format recorded-
// audio timestamps with github.com/lestrrat-go/strftime rather than Go's
// reference-time layout strings — kept here because operators already
// write these patterns into existing configuration.
package clip

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lestrrat-go/strftime"

	"github.com/erl987fme/fmed/internal/fme"
)

// Writer saves recorded clips under Dir, named by NamePattern (a strftime
// pattern; "%s" is replaced with the decoded digit string before the
// pattern is evaluated).
type Writer struct {
	Dir         string
	NamePattern string
}

// NewWriter builds a Writer. dir is created if it does not already exist.
func NewWriter(dir, namePattern string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("clip: create %s: %w", dir, err)
	}

	return &Writer{Dir: dir, NamePattern: namePattern}, nil
}

// OnRecordedAudio implements fme.RecordedAudioSink: it writes one mono
// 16-bit PCM WAV file per recorded clip.
func (w *Writer) OnRecordedAudio(seq fme.Sequence, samples []fme.Sample, fs float64) {
	digits := digitsString(seq.Code.Digits())

	pattern, err := strftime.New(substituteDigits(w.NamePattern, digits))
	if err != nil {
		return
	}

	name := pattern.FormatString(seq.Start)
	path := filepath.Join(w.Dir, name)

	if err := writeWAV(path, samples, fs); err != nil {
		return
	}
}

func substituteDigits(pattern, digits string) string {
	out := make([]byte, 0, len(pattern))

	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '%' && i+1 < len(pattern) && pattern[i+1] == 's' {
			out = append(out, digits...)
			i++

			continue
		}

		out = append(out, pattern[i])
	}

	return string(out)
}

func digitsString(digits []int) string {
	b := make([]byte, len(digits))
	for i, d := range digits {
		b[i] = byte('0' + d)
	}

	return string(b)
}

func writeWAV(path string, samples []fme.Sample, fs float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("clip: create %s: %w", path, err)
	}
	defer f.Close()

	const (
		bitsPerSample = 16
		numChannels   = 1
	)

	byteRate := int(fs) * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataSize := len(samples) * bitsPerSample / 8

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], numChannels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(fs))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))

	if _, err := f.Write(header); err != nil {
		return err
	}

	buf := make([]byte, 2)

	for _, s := range samples {
		v := int16(clampSample(s) * 32767)
		binary.LittleEndian.PutUint16(buf, uint16(v))

		if _, err := f.Write(buf); err != nil {
			return err
		}
	}

	return nil
}

func clampSample(s fme.Sample) float64 {
	v := float64(s)
	if v > 1 {
		return 1
	}

	if v < -1 {
		return -1
	}

	return v
}
