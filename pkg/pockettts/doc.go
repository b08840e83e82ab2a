// Package pockettts is a native text-to-speech engine.
//
// A Model holds loaded acoustic weights and generation hyperparameters. A
// VoiceState conditions generation on a speaker: the neutral default, a
// reference recording, or a precomputed prompt embedding. Audio is produced
// either in one call:
//
//	m, err := pockettts.Load(ctx, pockettts.DefaultVariant)
//	defer m.Close()
//	pcm, err := m.Generate(ctx, "Hello world.", nil)
//
// or incrementally from a Stream, which splits long text into segments and
// hands out bounded decode windows while keeping prosody continuous across
// segment boundaries:
//
//	s, err := m.NewStream(ctx, text, voice)
//	defer s.Close()
//	for {
//		chunk, err := s.Next(ctx)
//		if err == iterator.Done {
//			break
//		}
//		...
//	}
//
// All samples are mono float32 at Model.SampleRate.
//
// Built-in variants are served by the reference acoustic core. A model
// directory (local path or s3://bucket/prefix) carries a manifest.yaml that
// names its backend and files; see Manifest.
package pockettts
