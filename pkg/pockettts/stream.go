package pockettts

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/iterator"

	"github.com/haivivi/pockettts/pkg/sentence"
)

// Stream segmentation and decode windows. Windows are in frames: 480 ms
// and 2 s at 12.5 Hz.
const (
	StreamMaxRunes = 240
	StreamWindow   = 6
	LongMaxRunes   = 1000
	LongWindow     = 25
)

// StreamState is the lifecycle state of a Stream.
type StreamState int

const (
	// StreamOpen means no chunk has been produced yet.
	StreamOpen StreamState = iota
	// StreamActive means at least one chunk has been produced and more
	// remain.
	StreamActive
	// StreamExhausted means the last chunk has been produced or an error
	// was reported. Next returns iterator.Done.
	StreamExhausted
	// StreamClosed means Close was called.
	StreamClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamOpen:
		return "open"
	case StreamActive:
		return "active"
	case StreamExhausted:
		return "exhausted"
	case StreamClosed:
		return "closed"
	}
	return "unknown"
}

// Stream produces the audio of one text in bounded chunks. A Stream is not
// safe for concurrent use; the internal lock only serializes misuse.
type Stream struct {
	id     string
	m      *Model
	mode   string
	window int
	logger *slog.Logger

	mu       sync.Mutex
	state    StreamState
	segs     *sentence.Iterator
	run      *run
	cur      *segment
	chunks   int
	released bool
}

// NewStream opens a stream in normal mode.
func (m *Model) NewStream(ctx context.Context, text string, voice *VoiceState) (*Stream, error) {
	return m.OpenStream(ctx, text, voice, false)
}

// NewStreamLong opens a stream in long-text mode.
func (m *Model) NewStreamLong(ctx context.Context, text string, voice *VoiceState) (*Stream, error) {
	return m.OpenStream(ctx, text, voice, true)
}

// OpenStream prepares and segments text and starts an acoustic session.
// Normal mode keeps segments under StreamMaxRunes and yields StreamWindow
// frames per chunk; long mode uses LongMaxRunes and LongWindow.
//
// The stream keeps the model alive until it is exhausted or closed, even
// if the model is closed first.
func (m *Model) OpenStream(ctx context.Context, text string, voice *VoiceState, long bool) (*Stream, error) {
	if err := m.acquire(); err != nil {
		return nil, err
	}
	s, err := m.openStream(ctx, text, voice, long)
	if err != nil {
		m.release()
		return nil, err
	}
	return s, nil
}

func (m *Model) openStream(ctx context.Context, text string, voice *VoiceState, long bool) (*Stream, error) {
	mode, window, limit := "stream", StreamWindow, StreamMaxRunes
	if long {
		mode, window, limit = "stream_long", LongWindow, LongMaxRunes
	}
	segs := streamSegments(text, limit)
	if len(segs) == 0 {
		return nil, ErrEmptyText
	}
	cond, err := m.conditioning(voice)
	if err != nil {
		return nil, err
	}
	r, err := m.newRun(ctx, cond)
	if err != nil {
		return nil, err
	}
	s := &Stream{
		id:     uuid.NewString(),
		m:      m,
		mode:   mode,
		window: window,
		segs:   sentence.NewIterator(segs),
		run:    r,
	}
	s.logger = m.logger.With("stream", s.id)
	s.logger.Debug("pockettts: stream opened", "mode", mode, "segments", len(segs))
	return s, nil
}

// streamSegments prepares text for streaming. Text that fits in limit
// stays one segment, so it decodes exactly as Generate does.
func streamSegments(text string, limit int) []sentence.Segment {
	prepared := sentence.Prepare(text)
	if prepared == "" {
		return nil
	}
	if utf8.RuneCountInString(prepared) <= limit {
		return []sentence.Segment{{Text: prepared}}
	}
	var out []sentence.Segment
	for _, seg := range (sentence.Splitter{MaxRunes: limit, Merge: true}).Split(text) {
		if p := sentence.Prepare(seg.Text); p != "" {
			out = append(out, sentence.Segment{Text: p, Boundary: seg.Boundary})
		}
	}
	if len(out) == 0 {
		out = []sentence.Segment{{Text: prepared}}
	}
	return out
}

// ID returns the stream id used in logs.
func (s *Stream) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Next decodes one window and returns its samples. After the last chunk
// it returns iterator.Done, every time. A closed stream returns
// ErrStreamClosed. A synthesis error is returned once; the stream is then
// exhausted.
func (s *Stream) Next(ctx context.Context) (out []float32, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StreamClosed:
		return nil, ErrStreamClosed
	case StreamExhausted:
		return nil, iterator.Done
	}

	start := time.Now()
	ctx, span := s.m.startSpan(ctx, "pockettts.Stream.Next",
		attribute.String("pockettts.stream", s.id),
		attribute.Int("pockettts.chunk", s.chunks),
	)
	defer func() {
		if errors.Is(err, iterator.Done) {
			endSpan(span, nil)
			return
		}
		endSpan(span, err)
	}()

	out, frames, err := s.nextWindow(ctx)
	if err != nil {
		s.logger.Warn("pockettts: stream failed", "chunk", s.chunks, "err", err)
		s.finish()
		return nil, err
	}
	s.chunks++
	s.state = StreamActive
	s.m.record(ctx, s.mode, frames, len(out))
	s.m.recordPull(ctx, s.mode, time.Since(start))
	s.logger.Debug("pockettts: stream window", "chunk", s.chunks, "frames", frames, "samples", len(out))

	if s.cur.done && s.segs.Remaining() == 0 {
		s.logger.Debug("pockettts: stream exhausted", "chunks", s.chunks)
		s.finish()
	}
	return out, nil
}

// nextWindow decodes up to one window from the current segment, starting the
// next one when needed.
func (s *Stream) nextWindow(ctx context.Context) ([]float32, int, error) {
	if s.cur == nil || s.cur.done {
		seg, err := s.segs.Next()
		if err != nil {
			return nil, 0, err
		}
		if s.cur, err = s.run.start(ctx, seg.Text); err != nil {
			return nil, 0, err
		}
	}
	latents, err := s.run.step(ctx, s.cur, s.window)
	if err != nil {
		return nil, 0, err
	}
	pcm, err := s.run.decode(ctx, latents)
	if err != nil {
		return nil, 0, err
	}
	return pcm, len(latents), nil
}

// finish moves the stream to exhausted and releases its session.
func (s *Stream) finish() {
	s.state = StreamExhausted
	s.releaseLocked()
}

func (s *Stream) releaseLocked() {
	if s.released {
		return
	}
	s.released = true
	if err := s.run.Close(); err != nil {
		s.logger.Warn("pockettts: close session", "err", err)
	}
	s.m.release()
}

// Close releases the stream. It is safe in any state and idempotent.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StreamClosed {
		return nil
	}
	s.state = StreamClosed
	s.releaseLocked()
	return nil
}

// Producer yields chunks until iterator.Done.
type Producer interface {
	Next(ctx context.Context) ([]float32, error)
}

// Iter adapts p to a range-over-func sequence. It stops after the last
// chunk or the first error.
func Iter(ctx context.Context, p Producer) iter.Seq2[[]float32, error] {
	return func(yield func([]float32, error) bool) {
		for {
			chunk, err := p.Next(ctx)
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}
