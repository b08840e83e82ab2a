package reference

import (
	"math"

	"github.com/haivivi/pockettts/pkg/acoustic"
)

// voice holds the synthesis parameters derived from conditioning.
type voice struct {
	f0         float64
	brightness float64 // [-1, 1]
	harmonics  [NumHarmonics]float64
}

// voice derives synthesis parameters from cond. Row element 0 carries
// 4*ln(f0/140); elements 1..8 average into spectral brightness.
func (b *Backend) voice(cond *acoustic.Conditioning) voice {
	v := voice{f0: b.f0, harmonics: b.harmonics}
	if cond.Empty() {
		return v
	}
	var pitch, bright float64
	for i := range cond.Frames {
		row := cond.Row(i)
		pitch += float64(row[0])
		for _, x := range row[1:9] {
			bright += float64(x)
		}
	}
	n := float64(cond.Frames)
	v.f0 = clampF0(defaultF0 * math.Exp(pitch/n/4))
	v.brightness = math.Tanh(bright / (n * 8))
	return v
}

func clampF0(f float64) float64 {
	return min(max(f, minF0), maxF0)
}

// synth is a harmonic oscillator bank. Pitch and loudness are linearly
// interpolated from the previous frame's targets, and phases run
// continuously, so rendering a latent sequence in several calls produces
// the same samples as one call.
type synth struct {
	voice  voice
	f0     float64
	amp    float64
	phases [NumHarmonics]float64
}

func (s *synth) reset(v voice) {
	s.voice = v
	s.f0 = v.f0
	s.amp = 0
	s.phases = [NumHarmonics]float64{}
}

func (s *synth) frame(out []float32, l []float32) []float32 {
	targetF0 := clampF0(s.voice.f0 * (1 + 0.06*math.Tanh(float64(l[1]))))
	targetAmp := 0.2 * (0.5 + 0.5*math.Tanh(float64(l[0])))

	// Harmonic weights for this frame, normalized to unit sum.
	var w [NumHarmonics]float64
	tilt := 1.2 - 0.4*s.voice.brightness
	total := 0.0
	for k := range NumHarmonics {
		m := 1 + 0.3*math.Tanh(float64(l[2+k]))
		w[k] = s.voice.harmonics[k] * m * math.Pow(float64(k+1), -tilt)
		total += w[k]
	}
	if total > 0 {
		for k := range w {
			w[k] /= total
		}
	}

	nyquist := SampleRate / 2.0
	for n := range FrameSize {
		t := float64(n+1) / FrameSize
		f := s.f0 + (targetF0-s.f0)*t
		a := s.amp + (targetAmp-s.amp)*t
		sum := 0.0
		for k := range NumHarmonics {
			hf := f * float64(k+1)
			if hf >= nyquist {
				break
			}
			sum += w[k] * math.Sin(s.phases[k])
			s.phases[k] = math.Mod(s.phases[k]+2*math.Pi*hf/SampleRate, 2*math.Pi)
		}
		out = append(out, float32(a*sum))
	}
	s.f0 = targetF0
	s.amp = targetAmp
	return out
}
