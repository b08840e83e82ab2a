package pockettts

import "errors"

// Configuration errors.
var (
	// ErrUnknownVariant is returned when no built-in variant has the
	// requested name.
	ErrUnknownVariant = errors.New("pockettts: unknown variant")

	// ErrInvalidParams is returned for out-of-range hyperparameters.
	ErrInvalidParams = errors.New("pockettts: invalid parameters")

	// ErrModelFiles is returned when a model bundle is missing, corrupt or
	// fails its checksum.
	ErrModelFiles = errors.New("pockettts: invalid model files")
)

// Input errors.
var (
	// ErrVoiceAudio is returned when reference audio cannot be read or
	// decoded.
	ErrVoiceAudio = errors.New("pockettts: invalid voice audio")

	// ErrPromptFormat is returned when prompt bytes do not describe a
	// [1, T, D] embedding for the model.
	ErrPromptFormat = errors.New("pockettts: invalid voice prompt")
)

// Synthesis errors.
var (
	// ErrEmptyText is returned when the text has nothing to say.
	ErrEmptyText = errors.New("pockettts: empty text")

	// ErrDiverged is returned when a segment runs out of its step budget
	// before the end-of-speech detector fires.
	ErrDiverged = errors.New("pockettts: decode diverged")
)

// Misuse errors.
var (
	ErrModelClosed   = errors.New("pockettts: model closed")
	ErrVoiceClosed   = errors.New("pockettts: voice state closed")
	ErrVoiceMismatch = errors.New("pockettts: voice state belongs to a different model")
	ErrStreamClosed  = errors.New("pockettts: stream closed")
)
