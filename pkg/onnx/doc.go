// Package onnx provides Go bindings for the ONNX Runtime C API.
//
// The package exposes three core types:
//
//   - [Env]: global environment, one per process
//   - [Session]: a loaded graph
//   - [Tensor]: N-dimensional float32 or int64 tensor
//
// Usage flow:
//
//	env, _ := onnx.NewEnv("pockettts")
//	defer env.Close()
//
//	session, _ := env.NewSession(modelData, onnx.SessionOptions{})
//	defer session.Close()
//
//	input, _ := onnx.NewTensor([]int64{1, 6, 32}, latents)
//	defer input.Close()
//
//	outputs, _ := session.Run([]string{"latents"}, []*onnx.Tensor{input}, []string{"audio"})
//	pcm, _ := outputs[0].FloatData()
//
// ONNX Runtime is dynamically linked via cgo and only compiled with the
// onnxruntime build tag. Without the tag the package is empty.
//
// Env is safe for concurrent use. Session.Run is thread-safe (ONNX Runtime
// uses internal locking).
package onnx
