package audio

// downmix averages interleaved channels into a single mono channel.
func downmix(c clip) clip {
	if c.channels <= 1 {
		c.channels = 1
		return c
	}
	frames := len(c.samples) / c.channels
	mono := make([]int, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for ch := 0; ch < c.channels; ch++ {
			sum += c.samples[i*c.channels+ch]
		}
		mono[i] = sum / c.channels
	}
	return clip{samples: mono, rate: c.rate, channels: 1}
}

// resample converts a mono clip to the target rate by linear interpolation.
// Linear is enough here: the output feeds a speech recognizer, not playback.
func resample(c clip, rate int) clip {
	if c.rate == rate || c.rate <= 0 || len(c.samples) == 0 {
		c.rate = rate
		return c
	}
	outLen := int(int64(len(c.samples)) * int64(rate) / int64(c.rate))
	if outLen == 0 {
		outLen = 1
	}
	out := make([]int, outLen)
	step := float64(c.rate) / float64(rate)
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= len(c.samples)-1 {
			out[i] = c.samples[len(c.samples)-1]
			continue
		}
		frac := pos - float64(idx)
		a, b := float64(c.samples[idx]), float64(c.samples[idx+1])
		out[i] = clampInt16(int(a + (b-a)*frac))
	}
	return clip{samples: out, rate: rate, channels: 1}
}

func clampInt16(v int) int {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}
