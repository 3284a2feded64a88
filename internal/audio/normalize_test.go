package audio

import (
	"bytes"
	"math"
	"testing"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"voice-transcribe-go/internal/fault"
)

// sineWAV builds an in-memory WAV file: one sine tone, given rate/channels.
func sineWAV(t *testing.T, rate, channels, frames int) []byte {
	t.Helper()
	samples := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		v := int(12000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = v
		}
	}
	out, err := encodeMultiWAV(samples, rate, channels)
	if err != nil {
		t.Fatalf("build test wav: %v", err)
	}
	return out
}

func TestNormalizeStereo44kToMono16k(t *testing.T) {
	in := sineWAV(t, 44100, 2, 44100) // one second, stereo

	out, err := NewNormalizer().Normalize(in, "sample.wav")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	dec := wav.NewDecoder(bytes.NewReader(out))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("re-decode normalized output: %v", err)
	}
	if buf.Format.SampleRate != TargetSampleRate {
		t.Errorf("sample rate = %d; want %d", buf.Format.SampleRate, TargetSampleRate)
	}
	if buf.Format.NumChannels != 1 {
		t.Errorf("channels = %d; want 1", buf.Format.NumChannels)
	}
	// One second in should stay roughly one second out.
	if got := len(buf.Data); got < TargetSampleRate-50 || got > TargetSampleRate+50 {
		t.Errorf("frames = %d; want ~%d", got, TargetSampleRate)
	}
}

func TestNormalizeMono16kPassthroughRate(t *testing.T) {
	in := sineWAV(t, 16000, 1, 8000)

	out, err := NewNormalizer().Normalize(in, "already.wav")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	dec := wav.NewDecoder(bytes.NewReader(out))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if len(buf.Data) != 8000 {
		t.Errorf("frames = %d; want 8000 (no resample needed)", len(buf.Data))
	}
}

func TestNormalizeUnsupportedExtension(t *testing.T) {
	_, err := NewNormalizer().Normalize([]byte("whatever"), "notes.txt")
	if !fault.Is(err, fault.Validation) {
		t.Fatalf("err = %v; want validation fault", err)
	}
}

func TestNormalizeCorruptWAV(t *testing.T) {
	_, err := NewNormalizer().Normalize([]byte("RIFFgarbage-not-audio"), "corrupt.wav")
	if !fault.Is(err, fault.Decode) {
		t.Fatalf("err = %v; want decode fault", err)
	}
}

func TestNormalizeCorruptMP3(t *testing.T) {
	_, err := NewNormalizer().Normalize([]byte{0x00, 0x01, 0x02, 0x03}, "corrupt.mp3")
	if !fault.Is(err, fault.Decode) {
		t.Fatalf("err = %v; want decode fault", err)
	}
}

func TestDownmixAverages(t *testing.T) {
	c := downmix(clip{samples: []int{100, 300, -200, 200}, rate: 16000, channels: 2})
	if c.channels != 1 {
		t.Fatalf("channels = %d; want 1", c.channels)
	}
	want := []int{200, 0}
	if len(c.samples) != len(want) {
		t.Fatalf("samples = %v; want %v", c.samples, want)
	}
	for i := range want {
		if c.samples[i] != want[i] {
			t.Errorf("sample[%d] = %d; want %d", i, c.samples[i], want[i])
		}
	}
}

func TestResampleHalvesRate(t *testing.T) {
	in := make([]int, 32000)
	c := resample(clip{samples: in, rate: 32000, channels: 1}, 16000)
	if c.rate != 16000 {
		t.Fatalf("rate = %d; want 16000", c.rate)
	}
	if len(c.samples) != 16000 {
		t.Errorf("len = %d; want 16000", len(c.samples))
	}
}

// encodeMultiWAV is a test-only encoder that, unlike encodeWAV, keeps the
// requested channel count.
func encodeMultiWAV(samples []int, rate, channels int) ([]byte, error) {
	ws := &writeSeekBuffer{}
	enc := wav.NewEncoder(ws, rate, 16, channels, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return ws.Bytes(), nil
}
