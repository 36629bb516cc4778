// Package audio provides the duplex conversation stream the assistant client
// records from and plays back to. A Stream pairs a capture Source with a
// playback Sink behind idempotent recording/playback toggles and a mutable
// volume, and hands audio out in fixed-size PCM16 blocks.
package audio

// Chunk represents a block of PCM16 audio data.
type Chunk struct {
	// Samples contains PCM16 audio samples (little-endian).
	Samples []int16

	// SampleRate is the sample rate of this chunk.
	SampleRate int

	// Channels is the number of channels in this chunk.
	Channels int
}

// Bytes returns the raw bytes of the audio chunk.
func (c *Chunk) Bytes() []byte {
	buf := make([]byte, len(c.Samples)*2)
	for i, s := range c.Samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}

// FromBytes populates the chunk from raw PCM16 bytes.
func (c *Chunk) FromBytes(data []byte, sampleRate, channels int) {
	c.SampleRate = sampleRate
	c.Channels = channels
	c.Samples = make([]int16, len(data)/2)
	for i := range c.Samples {
		c.Samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
}

// Duration returns the duration of this audio chunk in seconds.
func (c *Chunk) Duration() float64 {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate*c.Channels)
}

// ApplyGain scales the samples to the given volume percentage, clipping at
// the int16 range. 100 leaves the chunk unchanged.
func (c *Chunk) ApplyGain(pct int) {
	if pct == 100 {
		return
	}
	for i, s := range c.Samples {
		v := int32(s) * int32(pct) / 100
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		c.Samples[i] = int16(v)
	}
}
