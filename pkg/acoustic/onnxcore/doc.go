// Package onnxcore runs the acoustic core from exported ONNX graphs. It
// registers the "onnx" backend kind and is only compiled with the
// onnxruntime build tag.
//
// A model directory lists these files in its manifest:
//
//	flow_lm    autoregressive step graph
//	decoder    latent to waveform graph
//	encoder    waveform to voice embedding graph (optional)
//	tokenizer  tokenizer.json vocabulary
//
// The step graph takes tokens [1, N] int64, voice [1, T, D],
// voice_frames [1] int64, state [1, S], prev_latent [1, L], noise [1, L],
// temperature [1], decode_steps [1] int64 and position [1] int64, and
// returns latent [1, L], eos_logit [1, 1] and next_state [1, S].
//
// The decoder takes latents [1, F, L] and state [1, Sd] and returns
// audio [1, F*frame_size] and next_state [1, Sd]. The encoder takes
// audio [1, 1, N] and returns embedding [1, T, D].
//
// Manifest options: sample_rate, frame_size, latent_dim, embedding_dim,
// lm_state_dim, decoder_state_dim and threads.
package onnxcore
