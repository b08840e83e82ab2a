// Package pcm provides types and utilities for working with 16-bit mono PCM
// audio.
//
// Synthesis works on float32 samples in [-1, 1]; this package converts them
// to and from the L16 byte form used on the wire and in raw output files.
//
// Example usage:
//
//	format, _ := pcm.FormatForRate(24000)
//
//	// 400ms of silence between sentences
//	gap := format.Silence(400 * time.Millisecond)
//
//	// Write synthesized samples as raw L16
//	w := pcm.ChunkWriter(os.Stdout)
//	w.Write(format.FloatChunk(samples))
package pcm
