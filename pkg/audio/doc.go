// Package audio groups the audio sub-packages used by the synthesis engine:
//
//   - pcm: 16-bit mono PCM formats and float conversion
//   - codec: WAV and MP3 decoding of reference recordings
//   - resampler: sample rate conversion to the model rate
//   - fbank: log-mel filterbank features
//
// Example usage:
//
//	clip, err := codec.Decode(data)
//	if err != nil {
//	    return err
//	}
//	samples, err := resampler.ToMono(clip.Samples, clip.Format(), 24000)
package audio
