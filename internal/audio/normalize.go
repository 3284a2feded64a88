package audio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"voice-transcribe-go/internal/fault"
)

// TargetSampleRate is the canonical rate the transcription service expects.
const TargetSampleRate = 16000

// clip is decoded audio: interleaved integer samples plus its layout.
type clip struct {
	samples  []int
	rate     int
	channels int
}

type Normalizer struct {
	TargetRate int
}

func NewNormalizer() *Normalizer {
	return &Normalizer{TargetRate: TargetSampleRate}
}

// Normalize decodes the upload by extension, downmixes to mono, resamples to
// the target rate and re-encodes as 16-bit PCM WAV, all in memory. Unknown
// extensions fail before any decoding is attempted.
func (n *Normalizer) Normalize(data []byte, filename string) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var (
		c   clip
		err error
	)
	switch ext {
	case ".wav":
		c, err = decodeWAV(data)
	case ".mp3":
		c, err = decodeMP3(data)
	case ".m4a", ".aac", ".mp4":
		c, err = n.decodeWithFFmpeg(data, ext)
	default:
		return nil, fault.Newf(fault.Validation, "unsupported audio format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	if len(c.samples) == 0 {
		return nil, fault.New(fault.Decode, "audio stream contains no samples")
	}

	c = downmix(c)
	c = resample(c, n.TargetRate)

	out, err := encodeWAV(c)
	if err != nil {
		return nil, fault.Wrap(fault.Infrastructure, "wav encode", err)
	}
	return out, nil
}

func decodeWAV(data []byte) (clip, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return clip{}, fault.New(fault.Decode, "not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return clip{}, fault.Wrap(fault.Decode, "wav decode", err)
	}
	return clip{
		samples:  buf.Data,
		rate:     buf.Format.SampleRate,
		channels: buf.Format.NumChannels,
	}, nil
}

func decodeMP3(data []byte) (clip, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return clip{}, fault.Wrap(fault.Decode, "mp3 decode", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return clip{}, fault.Wrap(fault.Decode, "mp3 decode", err)
	}
	// go-mp3 always emits 16-bit little-endian stereo.
	samples := make([]int, len(raw)/2)
	for i := range samples {
		samples[i] = int(int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8))
	}
	return clip{samples: samples, rate: dec.SampleRate(), channels: 2}, nil
}

// decodeWithFFmpeg handles containers go has no pure decoder for (MP4/AAC).
// The input goes through a temp file because the MP4 moov atom is frequently
// at the tail, which rules out a stdin pipe; ffmpeg emits mono 16 kHz s16le
// straight to stdout so no resampling pass is needed afterwards.
func (n *Normalizer) decodeWithFFmpeg(data []byte, ext string) (clip, error) {
	tmp, err := os.CreateTemp("", "upload-*"+ext)
	if err != nil {
		return clip{}, fault.Wrap(fault.Infrastructure, "temp file", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return clip{}, fault.Wrap(fault.Infrastructure, "temp file write", err)
	}
	if err := tmp.Close(); err != nil {
		return clip{}, fault.Wrap(fault.Infrastructure, "temp file close", err)
	}

	var out bytes.Buffer
	err = ffmpeg.Input(tmp.Name()).
		Output("pipe:1", ffmpeg.KwArgs{
			"f":      "s16le",
			"acodec": "pcm_s16le",
			"ac":     1,
			"ar":     n.TargetRate,
		}).
		WithOutput(&out, io.Discard).
		Silent(true).
		Run()
	if err != nil {
		return clip{}, fault.Wrap(fault.Decode, fmt.Sprintf("ffmpeg decode of %s", ext), err)
	}

	raw := out.Bytes()
	samples := make([]int, len(raw)/2)
	for i := range samples {
		samples[i] = int(int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8))
	}
	return clip{samples: samples, rate: n.TargetRate, channels: 1}, nil
}
