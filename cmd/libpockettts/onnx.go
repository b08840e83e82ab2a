//go:build onnxruntime

package main

// Registers the ONNX Runtime backend for model directories whose manifest
// names backend "onnx".
import _ "github.com/haivivi/pockettts/pkg/acoustic/onnxcore"
