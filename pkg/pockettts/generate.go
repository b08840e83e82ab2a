package pockettts

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/haivivi/pockettts/pkg/acoustic"
	"github.com/haivivi/pockettts/pkg/sentence"
)

// Pauses inserted by GenerateWithPauses after each kind of boundary.
const (
	SentencePause = 400 * time.Millisecond
	ClausePause   = 200 * time.Millisecond
	LinePause     = 600 * time.Millisecond
)

// PauseFor returns the silence that follows a segment ending in b.
func PauseFor(b sentence.Boundary) time.Duration {
	switch b {
	case sentence.BoundarySentence:
		return SentencePause
	case sentence.BoundaryClause:
		return ClausePause
	case sentence.BoundaryLine:
		return LinePause
	}
	return 0
}

// run is one acoustic session shared by the segments of an utterance.
type run struct {
	m      *Model
	sess   acoustic.Session
	params Params
}

func (m *Model) newRun(ctx context.Context, cond *acoustic.Conditioning) (*run, error) {
	sess, err := m.backend.NewSession(ctx, cond)
	if err != nil {
		return nil, fmt.Errorf("pockettts: new session: %w", err)
	}
	return &run{m: m, sess: sess, params: m.params}, nil
}

func (r *run) Close() error {
	return r.sess.Close()
}

// segment is the decode state of one prepared text segment.
type segment struct {
	text  string
	rng   *rand.Rand
	limit int
	after int
	steps int
	// eos counts frames still to decode after end-of-speech; -1 until the
	// detector fires.
	eos  int
	done bool
}

// segmentSeed derives a per-segment stream so that a segment sounds the
// same whichever mode synthesizes it.
func segmentSeed(text string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(text))
	return h.Sum64()
}

// start feeds a prepared segment into the session.
func (r *run) start(ctx context.Context, text string) (*segment, error) {
	tokens := r.m.tokenizer.Encode(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: %q has no tokens", ErrEmptyText, text)
	}
	if err := r.sess.Feed(ctx, tokens); err != nil {
		return nil, fmt.Errorf("pockettts: feed: %w", err)
	}
	return &segment{
		text:  text,
		rng:   rand.New(rand.NewPCG(r.params.Seed, segmentSeed(text))),
		limit: r.params.stepLimit(utf8.RuneCountInString(text)),
		after: r.params.framesAfterEOS(sentence.Words(text)),
		eos:   -1,
	}, nil
}

// step decodes up to n latent frames of seg. seg.done is set once the
// frames after end-of-speech are out.
func (r *run) step(ctx context.Context, seg *segment, n int) ([][]float32, error) {
	in := acoustic.StepInput{
		Temperature: r.params.Temperature,
		DecodeSteps: r.params.DecodeSteps,
		Noise:       seg.rng.NormFloat64,
	}
	var latents [][]float32
	for len(latents) < n {
		if seg.eos == 0 {
			seg.done = true
			break
		}
		if seg.eos < 0 && seg.steps >= seg.limit {
			return nil, fmt.Errorf("%w: no end of speech after %d frames of %q", ErrDiverged, seg.steps, seg.text)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := r.sess.Step(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("pockettts: step: %w", err)
		}
		seg.steps++
		latents = append(latents, frame.Latent)
		switch {
		case seg.eos > 0:
			seg.eos--
		case seg.eos < 0 && acoustic.Sigmoid(frame.EOSLogit) >= r.params.EOSThreshold:
			seg.eos = seg.after
		}
	}
	if seg.eos == 0 {
		seg.done = true
	}
	return latents, nil
}

func (r *run) decode(ctx context.Context, latents [][]float32) ([]float32, error) {
	if len(latents) == 0 {
		return nil, nil
	}
	pcm, err := r.sess.Decode(ctx, latents)
	if err != nil {
		return nil, fmt.Errorf("pockettts: decode: %w", err)
	}
	return pcm, nil
}

// segmentAudio synthesizes a whole segment.
func (r *run) segmentAudio(ctx context.Context, text string) ([]float32, int, error) {
	seg, err := r.start(ctx, text)
	if err != nil {
		return nil, 0, err
	}
	var latents [][]float32
	for !seg.done {
		l, err := r.step(ctx, seg, 64)
		if err != nil {
			return nil, 0, err
		}
		latents = append(latents, l...)
	}
	pcm, err := r.decode(ctx, latents)
	return pcm, len(latents), err
}

// Generate synthesizes text as one segment. A nil voice is the default
// voice. It returns the whole waveform or an error, never partial audio.
func (m *Model) Generate(ctx context.Context, text string, voice *VoiceState) (out []float32, err error) {
	ctx, span := m.startSpan(ctx, "pockettts.Generate", attribute.Int("pockettts.text_runes", utf8.RuneCountInString(text)))
	defer func() { endSpan(span, err) }()

	if err := m.acquire(); err != nil {
		return nil, err
	}
	defer m.release()

	prepared := sentence.Prepare(text)
	if prepared == "" {
		return nil, ErrEmptyText
	}
	cond, err := m.conditioning(voice)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	r, err := m.newRun(ctx, cond)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	pcm, frames, err := r.segmentAudio(ctx, prepared)
	if err != nil {
		return nil, err
	}
	m.record(ctx, "generate", frames, len(pcm))
	m.logger.Debug("pockettts: generated",
		"runes", utf8.RuneCountInString(prepared),
		"frames", frames,
		"samples", len(pcm),
		"elapsed", time.Since(start),
	)
	return pcm, nil
}

// pauseSegments splits text at every boundary and prepares each segment.
// Line breaks survive as boundaries because Prepare runs per segment.
func pauseSegments(text string) []sentence.Segment {
	var out []sentence.Segment
	for _, seg := range (sentence.Splitter{}).Split(text) {
		if p := sentence.Prepare(seg.Text); p != "" {
			out = append(out, sentence.Segment{Text: p, Boundary: seg.Boundary})
		}
	}
	return out
}

// GenerateWithPauses synthesizes text segment by segment in one session
// and inserts silence after sentence, clause and line boundaries.
func (m *Model) GenerateWithPauses(ctx context.Context, text string, voice *VoiceState) (out []float32, err error) {
	ctx, span := m.startSpan(ctx, "pockettts.GenerateWithPauses", attribute.Int("pockettts.text_runes", utf8.RuneCountInString(text)))
	defer func() { endSpan(span, err) }()

	if err := m.acquire(); err != nil {
		return nil, err
	}
	defer m.release()

	segs := pauseSegments(text)
	if len(segs) == 0 {
		prepared := sentence.Prepare(text)
		if prepared == "" {
			return nil, ErrEmptyText
		}
		segs = []sentence.Segment{{Text: prepared}}
	}
	cond, err := m.conditioning(voice)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	r, err := m.newRun(ctx, cond)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var total int
	for i, seg := range segs {
		pcm, frames, err := r.segmentAudio(ctx, seg.Text)
		if err != nil {
			return nil, err
		}
		total += frames
		out = append(out, pcm...)
		if i < len(segs)-1 {
			if d := PauseFor(seg.Boundary); d > 0 {
				out = append(out, make([]float32, int(d.Milliseconds())*m.info.SampleRate/1000)...)
			}
		}
	}
	span.SetAttributes(attribute.Int("pockettts.segments", len(segs)))
	m.record(ctx, "pauses", total, len(out))
	m.logger.Debug("pockettts: generated with pauses",
		"segments", len(segs),
		"frames", total,
		"samples", len(out),
		"elapsed", time.Since(start),
	)
	return out, nil
}
