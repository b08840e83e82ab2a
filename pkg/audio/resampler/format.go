package resampler

// Format describes interleaved input audio.
type Format struct {
	// SampleRate is the sample rate in Hz (e.g., 44100, 48000).
	SampleRate int

	// Channels is the number of interleaved channels. Zero means mono.
	Channels int
}

// Frames returns the number of sample frames in n interleaved samples.
func (f Format) Frames(n int) int {
	return n / max(1, f.Channels)
}
